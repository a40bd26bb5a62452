package job

import (
	"context"
	"testing"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSpecs(t *testing.T) {

	cfg := util.LoadTestConfig()

	specs := Specs(cfg)
	require.Len(t, specs, 1, "price refresh disabled")
	assert.Equal(t, JOB_CAPACITY_RESET, specs[0].Name)
	assert.IsType(t, domain.ResetCapacityRequest{}, specs[0].Command)

	cfg.Price.Enable = true
	specs = Specs(cfg)
	require.Len(t, specs, 2)
	assert.Equal(t, JOB_PRICE_REFRESH, specs[1].Name)
	assert.IsType(t, domain.RefreshPricesRequest{}, specs[1].Command)

	cfg.Jobs.CapacityResetCron = ""
	assert.Len(t, Specs(cfg), 1)
}

func TestCommandJobSends(t *testing.T) {

	var sent []domain.PowerCommandRequest
	s := NewScheduler(nil, func(cmd domain.PowerCommandRequest) {
		sent = append(sent, cmd)
	}, zap.NewNop())

	j := s.commandJob(Spec{Name: JOB_CAPACITY_RESET, Command: domain.ResetCapacityRequest{}})
	require.NoError(t, j.Execute(context.Background()))
	require.Len(t, sent, 1)
	assert.IsType(t, domain.ResetCapacityRequest{}, sent[0])
}

func TestStartRejectsInvalidCron(t *testing.T) {

	s := NewScheduler([]Spec{{Name: "broken", Cron: "every day", Command: domain.ResetCapacityRequest{}}},
		func(domain.PowerCommandRequest) {}, zap.NewNop())

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "broken")
}

func TestStartSchedulesConfiguredJobs(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.Price.Enable = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(Specs(cfg), func(domain.PowerCommandRequest) {}, zap.NewNop())
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.scheduler.IsStarted())
	s.Stop()
}
