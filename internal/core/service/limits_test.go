package service

import (
	"testing"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestApplyLimits(t *testing.T) {

	live := 450.0

	tests := []struct {
		name    string
		limits  Limits
		tracked float64
		live    *float64
		power   float64
		result  domain.ChangeResult
		shaped  float64
	}{
		{"disabled passes through", Limits{Min: 0, Max: 0, Target: -1}, 100, nil, 5000, domain.ChangeOk, 5000},
		{"within range", Limits{Min: 0, Max: 1000, Target: -1}, 100, nil, 200, domain.ChangeOk, 200},
		{"clamped to max", Limits{Min: 0, Max: 1000, Target: -1}, 900, nil, 300, domain.ChangeOk, 100},
		{"clamped to min", Limits{Min: 0, Max: 1000, Target: -1}, 100, nil, -300, domain.ChangeOk, -100},
		{"at max", Limits{Min: 0, Max: 1000, Target: -1}, 1000, nil, 10, domain.ChangeAtMax, 10},
		{"at min", Limits{Min: 0, Max: 1000, Target: -1}, 0, nil, -10, domain.ChangeAtMin, -10},
		{"leaving max is allowed", Limits{Min: 0, Max: 1000, Target: -1}, 1000, nil, -10, domain.ChangeOk, -10},
		{"target caps", Limits{Min: 0, Max: 1000, Target: 300}, 100, nil, 500, domain.ChangeOk, 200},
		{"target reached", Limits{Min: 0, Max: 1000, Target: 300}, 300, nil, 50, domain.ChangeNoChange, 0},
		{"live reading wins", Limits{Min: 0, Max: 500, Target: -1}, 100, &live, 200, domain.ChangeOk, 50},
		{"zero request", Limits{Min: 0, Max: 1000, Target: -1}, 100, nil, 0, domain.ChangeNoChange, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reader *testDriver
			if tt.live != nil {
				reader = &testDriver{live: tt.live}
			}
			req := domain.ChangeRequest{Power: tt.power}
			var res domain.ChangeResult
			if reader != nil {
				res = ApplyLimits(tt.limits, tt.tracked, reader, &req)
			} else {
				res = ApplyLimits(tt.limits, tt.tracked, nil, &req)
			}
			assert.Equal(t, tt.result, res)
			assert.Equal(t, tt.shaped, req.Power)
		})
	}
}

func TestPendingBufferWraps(t *testing.T) {

	assert := assert.New(t)

	b := NewPendingBuffer(3)
	assert.Equal(3, b.Cap())
	b.Push(100)
	b.Push(-50)
	assert.Equal(50.0, b.Sum())
	b.Push(10)
	b.Push(1)
	// 100 was overwritten
	assert.Equal(-39.0, b.Sum())

	b.Reset()
	assert.Zero(b.Sum())
	assert.Equal(1, NewPendingBuffer(0).Cap())
}
