package domain

import "time"

// ControllerStatus is a point-in-time copy of the controller fields that are
// exported as metrics and sensors.
type ControllerStatus struct {
	Timestamp         time.Time
	PowerState        PowerState
	BatteryState      BatteryState
	BatterySOC        int
	BatteryVoltage    float64
	CurrentPowerIn    float64
	CurrentPowerOut   float64
	RequestedStepsIn  float64
	CurrentTotalPower float64
	OptimizeEnabled   bool
	OptimizeTarget    OptimizeTarget
	InTarget          float64
	CapacityIn        float64
	CapacityOut       float64
	PowerOutEnabled   bool
	CurrentPrice      *float64
}
