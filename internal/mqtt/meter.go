package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
)

var ErrEmptyPayload = errors.New("empty meter payload")

type meterPayload struct {
	Power *float64 `json:"power"`
	// unix millis
	Timestamp int64 `json:"timestamp"`
}

// ParseMeterPayload accepts a plain number of watts or a JSON object
// {"power": w, "timestamp": ms}. Readings without a timestamp get now.
func ParseMeterPayload(payload []byte, now time.Time) (domain.MeterReading, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return domain.MeterReading{}, ErrEmptyPayload
	}
	if strings.HasPrefix(text, "{") {
		var p meterPayload
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return domain.MeterReading{}, fmt.Errorf("meter payload: %w", err)
		}
		if p.Power == nil {
			return domain.MeterReading{}, errors.New("meter payload: missing power")
		}
		ts := p.Timestamp
		if ts <= 0 {
			ts = now.UnixMilli()
		}
		return domain.MeterReading{Timestamp: ts, Power: *p.Power}, nil
	}
	power, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return domain.MeterReading{}, fmt.Errorf("meter payload: %w", err)
	}
	return domain.MeterReading{Timestamp: now.UnixMilli(), Power: power}, nil
}
