package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidState  = errors.New("invalid power state")
	ErrInvalidTarget = errors.New("invalid optimize target: min must be <= max")
	ErrNoPriceData   = errors.New("no price statistics available")
)

// PowerState mirrors the two physical switch lines.
type PowerState int

const (
	PowerOff     PowerState = 0
	PowerIn      PowerState = 1
	PowerOut     PowerState = -1
	PowerInvalid PowerState = -99
)

func (s PowerState) String() string {
	switch s {
	case PowerOff:
		return "off"
	case PowerIn:
		return "in"
	case PowerOut:
		return "out"
	default:
		return "invalid"
	}
}

func (s PowerState) Valid() bool {
	return s == PowerOff || s == PowerIn || s == PowerOut
}

func ParsePowerState(value string) (PowerState, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "off":
		return PowerOff, nil
	case "in", "charging", "charging_in":
		return PowerIn, nil
	case "out", "discharging", "discharging_out":
		return PowerOut, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return PowerInvalid, fmt.Errorf("%w: %q", ErrInvalidState, value)
	}
	s := PowerState(n)
	if !s.Valid() {
		return PowerInvalid, fmt.Errorf("%w: %d", ErrInvalidState, n)
	}
	return s, nil
}

type BatteryState int

const (
	BatteryIdle        BatteryState = 0
	BatteryFull        BatteryState = 1
	BatteryEmpty       BatteryState = -1
	BatteryCharging    BatteryState = 2
	BatteryDischarging BatteryState = -2
	BatteryDisabled    BatteryState = -98
	BatteryInvalid     BatteryState = -99
)

func (s BatteryState) String() string {
	switch s {
	case BatteryIdle:
		return "idle"
	case BatteryFull:
		return "full"
	case BatteryEmpty:
		return "empty"
	case BatteryCharging:
		return "charging"
	case BatteryDischarging:
		return "discharging"
	case BatteryDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}

// ChangeRequest is a signed power delta in watts. Drivers overwrite Power
// with the delta they actually achieved.
type ChangeRequest struct {
	Power float64
}

type ChangeResult int

const (
	ChangeInvalid  ChangeResult = -99
	ChangeFailed   ChangeResult = -98
	ChangeUnknown  ChangeResult = -97
	ChangeOk       ChangeResult = 1
	ChangeNoChange ChangeResult = 0
	ChangeAtMin    ChangeResult = -1
	ChangeAtMax    ChangeResult = 99
)

func (r ChangeResult) String() string {
	switch r {
	case ChangeInvalid:
		return "invalid"
	case ChangeFailed:
		return "failed"
	case ChangeUnknown:
		return "unknown"
	case ChangeOk:
		return "ok"
	case ChangeNoChange:
		return "no_change"
	case ChangeAtMin:
		return "at_min"
	case ChangeAtMax:
		return "at_max"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Saturated reports AtMin or AtMax. Stepping further in the same direction
// this cycle is pointless.
func (r ChangeResult) Saturated() bool {
	return r == ChangeAtMin || r == ChangeAtMax
}

// OptimizeTarget is the total power deadband in watts.
type OptimizeTarget struct {
	Min float64
	Max float64
}

func (t OptimizeTarget) Mid() float64 {
	return (t.Min + t.Max) / 2
}

func (t OptimizeTarget) Contains(power float64) bool {
	return power >= t.Min && power <= t.Max
}

// PriceEntry is one market interval, price in EUR/kWh.
type PriceEntry struct {
	Start time.Time
	End   time.Time
	Price float64
}

func (e PriceEntry) Contains(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}
