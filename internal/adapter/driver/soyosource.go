package driver

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/goburrow/serial"
	"go.uber.org/zap"
)

const (
	soyosourceBaudRate  = 4800
	soyosourceFrameSize = 8
	soyosourceStatusLen = 10
	// status age limit when no poll interval is configured
	soyosourceStaleAfter = 10 * time.Second
)

var (
	soyosourceStatusHeader  = []byte{0x23, 0x01, 0x01, 0x00}
	soyosourceStatusRequest = [soyosourceFrameSize]byte{0x24, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

type SoyosourceStatus struct {
	Mode        uint8
	DCVoltage   float64
	DCCurrent   float64
	ACVoltage   float64
	ACFrequency float64
	Temperature float64
	Updated     time.Time
}

func (s SoyosourceStatus) DCPower() float64 {
	return s.DCVoltage * s.DCCurrent
}

// PowerFrame encodes an output request in watts.
func PowerFrame(watts int) [soyosourceFrameSize]byte {
	watts = min(max(watts, 0), math.MaxUint16)
	hi := byte(watts >> 8)
	lo := byte(watts & 0xFF)
	return [soyosourceFrameSize]byte{0x24, 0x56, 0x00, 0x21, hi, lo, 0x80, byte((264 - int(hi) - int(lo)) & 0xFF)}
}

// ParseStatus decodes the payload following the status header.
func ParseStatus(data []byte) (SoyosourceStatus, error) {
	if len(data) < soyosourceStatusLen {
		return SoyosourceStatus{}, fmt.Errorf("soyosource status too short: %d bytes", len(data))
	}
	be := func(i int) float64 {
		return float64(uint16(data[i])<<8 | uint16(data[i+1]))
	}
	return SoyosourceStatus{
		Mode:        data[0],
		DCVoltage:   0.1 * be(1),
		DCCurrent:   0.1 * be(3),
		ACVoltage:   be(5),
		ACFrequency: 0.5 * float64(data[7]),
		Temperature: 0.1 * (be(8) - 300),
	}, nil
}

// Soyosource drives a grid-tie inverter over its half-duplex serial link.
// The inverter drops to zero when it stops hearing from us, so the last
// frame is repeated every feed interval.
type Soyosource struct {
	cfg    SoyosourceConfig
	port   io.ReadWriteCloser
	logger *zap.Logger

	writeMu sync.Mutex
	frame   [soyosourceFrameSize]byte

	mu      sync.Mutex
	enabled bool
	level   float64
	status  SoyosourceStatus
	readErr error

	stop chan struct{}
	wg   sync.WaitGroup
}

func OpenSoyosource(cfg SoyosourceConfig, logger *zap.Logger) (*Soyosource, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("soyosource serial port not configured")
	}
	p, err := serial.Open(&serial.Config{
		Address:  cfg.Port,
		BaudRate: soyosourceBaudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("soyosource open %s: %w", cfg.Port, err)
	}
	logger.Info("soyosource link open", zap.String("port", cfg.Port))
	d := NewSoyosource(cfg, p, logger)
	d.Start()
	return d, nil
}

func NewSoyosource(cfg SoyosourceConfig, port io.ReadWriteCloser, logger *zap.Logger) *Soyosource {
	if cfg.Loss < 0 || cfg.Loss >= 1 {
		cfg.Loss = 0
	}
	return &Soyosource{
		cfg:     cfg,
		port:    port,
		logger:  logger,
		frame:   PowerFrame(0),
		enabled: true,
		stop:    make(chan struct{}),
	}
}

func (d *Soyosource) Name() string {
	return DRIVER_SOYOSOURCE
}

// Start launches the keepalive, status poll and status reader loops.
func (d *Soyosource) Start() {
	if d.cfg.FeedInterval > 0 {
		d.wg.Add(1)
		go d.every(d.cfg.FeedInterval, d.feed)
	}
	if d.cfg.StatusInterval > 0 {
		d.wg.Add(1)
		go d.every(d.cfg.StatusInterval, d.RequestStatus)
	}
	d.wg.Add(1)
	go d.readLoop()
	d.RequestStatus()
}

func (d *Soyosource) Close() error {
	close(d.stop)
	err := d.port.Close()
	d.wg.Wait()
	return err
}

func (d *Soyosource) every(interval time.Duration, fn func()) {
	defer d.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (d *Soyosource) feed() {
	if !d.Enabled() {
		return
	}
	d.writeMu.Lock()
	frame := d.frame
	d.writeMu.Unlock()
	if err := d.send(frame); err != nil {
		d.logger.Warn("soyosource keepalive failed", zap.Error(err))
	}
}

func (d *Soyosource) RequestStatus() {
	if err := d.send(soyosourceStatusRequest); err != nil {
		d.logger.Warn("soyosource status request failed", zap.Error(err))
	}
}

func (d *Soyosource) send(frame [soyosourceFrameSize]byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	n, err := d.port.Write(frame[:])
	if err != nil {
		return err
	}
	if n != len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

func (d *Soyosource) writePower(watts float64) error {
	frame := PowerFrame(int(math.Round(watts)))
	if err := d.send(frame); err != nil {
		return err
	}
	d.writeMu.Lock()
	d.frame = frame
	d.writeMu.Unlock()
	return nil
}

func (d *Soyosource) readLoop() {
	defer d.wg.Done()
	buf := make([]byte, 1)
	matched := 0
	payload := make([]byte, 0, soyosourceStatusLen)
	for {
		select {
		case <-d.stop:
			return
		default:
		}
		n, err := d.port.Read(buf)
		if err != nil {
			if errors.Is(err, serial.ErrTimeout) {
				continue
			}
			select {
			case <-d.stop:
			default:
				d.logger.Error("soyosource status reader stopped, live power unavailable", zap.Error(err))
				d.mu.Lock()
				d.readErr = err
				d.mu.Unlock()
			}
			return
		}
		if n == 0 {
			continue
		}
		c := buf[0]
		if matched < len(soyosourceStatusHeader) {
			switch {
			case c == soyosourceStatusHeader[matched]:
				matched++
			case c == soyosourceStatusHeader[0]:
				matched = 1
			default:
				matched = 0
			}
			continue
		}
		payload = append(payload, c)
		if len(payload) < soyosourceStatusLen {
			continue
		}
		status, _ := ParseStatus(payload)
		status.Updated = time.Now()
		d.mu.Lock()
		d.status = status
		d.mu.Unlock()
		d.logger.Debug("soyosource status", zap.Uint8("mode", status.Mode), zap.Float64("dc_voltage", status.DCVoltage),
			zap.Float64("dc_current", status.DCCurrent), zap.Float64("ac_voltage", status.ACVoltage),
			zap.Float64("ac_frequency", status.ACFrequency), zap.Float64("temperature", status.Temperature))
		matched = 0
		payload = payload[:0]
	}
}

func (d *Soyosource) Status() SoyosourceStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// LivePower reports DC input power from the last status reply. A reply
// older than three poll intervals, or a dead reader, yields no value.
func (d *Soyosource) LivePower() (float64, bool) {
	d.mu.Lock()
	status, readErr := d.status, d.readErr
	d.mu.Unlock()
	if readErr != nil || status.Updated.IsZero() {
		return 0, false
	}
	staleAfter := 3 * d.cfg.StatusInterval
	if staleAfter <= 0 {
		staleAfter = soyosourceStaleAfter
	}
	if time.Since(status.Updated) > staleAfter {
		return 0, false
	}
	return status.DCPower(), true
}

func (d *Soyosource) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// SetEnabled switches the link on or off. Disabling commands zero output
// first.
func (d *Soyosource) SetEnabled(enabled bool) error {
	if !enabled {
		if err := d.writePower(0); err != nil {
			return err
		}
		d.mu.Lock()
		d.level = 0
		d.mu.Unlock()
	}
	d.mu.Lock()
	d.enabled = enabled
	d.mu.Unlock()
	return nil
}

func (d *Soyosource) Level() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

func (d *Soyosource) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	if !d.Enabled() {
		req.Power = 0
		return domain.ChangeFailed, ErrInterfaceDisabled
	}
	prev := d.Level()
	level := min(max(prev+req.Power, d.cfg.Min), d.cfg.Max)

	if level <= d.cfg.Min && req.Power < 0 {
		if err := d.writePower(0); err != nil {
			req.Power = 0
			return domain.ChangeFailed, err
		}
		d.setLevel(0)
		req.Power = -prev
		return domain.ChangeAtMin, nil
	}

	// the inverter outputs less than it draws
	if err := d.writePower(level * (1 - d.cfg.Loss)); err != nil {
		req.Power = 0
		return domain.ChangeFailed, err
	}
	d.setLevel(level)
	req.Power = level - prev
	return domain.ChangeOk, nil
}

func (d *Soyosource) setLevel(level float64) {
	d.mu.Lock()
	d.level = level
	d.mu.Unlock()
}
