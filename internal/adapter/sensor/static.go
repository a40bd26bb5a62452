package sensor

import "fmt"

// Static reports fixed values, for dry runs without a battery monitor.
type Static struct {
	cfg StaticConfig
}

func NewStatic(cfg StaticConfig) *Static {
	return &Static{cfg: cfg}
}

func (s *Static) Available() bool {
	return s.cfg.Voltage > 0
}

func (s *Static) ReadVoltage() (float64, error) {
	return s.cfg.Voltage, nil
}

func (s *Static) ReadCurrent(channel int) (float64, error) {
	if channel < 0 || channel >= len(s.cfg.Currents) {
		return 0, fmt.Errorf("static channel %d not configured", channel)
	}
	return s.cfg.Currents[channel], nil
}
