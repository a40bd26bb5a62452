package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeterPayload(t *testing.T) {

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		power   float64
		ts      int64
		err     bool
	}{
		{"plain", "-312.5", -312.5, now.UnixMilli(), false},
		{"plain spaces", " 42\n", 42, now.UnixMilli(), false},
		{"json", `{"power": 180, "timestamp": 1709294400000}`, 180, 1709294400000, false},
		{"json no timestamp", `{"power": -20}`, -20, now.UnixMilli(), false},
		{"json no power", `{"timestamp": 1}`, 0, 0, true},
		{"garbage", "n/a", 0, 0, true},
		{"empty", "", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading, err := ParseMeterPayload([]byte(tt.payload), now)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.power, reading.Power)
			assert.Equal(t, tt.ts, reading.Timestamp)
		})
	}
}
