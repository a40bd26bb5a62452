package job

import (
	"context"
	"fmt"

	"github.com/berfenger/powerpilot/internal/config"
	"github.com/berfenger/powerpilot/internal/core/domain"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	JOB_CAPACITY_RESET = "capacity_reset"
	JOB_PRICE_REFRESH  = "price_refresh"
)

// Sender delivers a command to the actor system.
type Sender func(cmd domain.PowerCommandRequest)

// Spec binds a cron expression (with seconds) to the command it sends.
type Spec struct {
	Name    string
	Cron    string
	Command domain.PowerCommandRequest
}

type Scheduler struct {
	scheduler quartz.Scheduler
	specs     []Spec
	send      Sender
	logger    *zap.Logger
}

// Specs lists the periodic jobs enabled by the configuration. An empty cron
// expression disables the job.
func Specs(cfg config.Config) []Spec {
	var specs []Spec
	if cfg.Jobs.CapacityResetCron != "" {
		specs = append(specs, Spec{
			Name:    JOB_CAPACITY_RESET,
			Cron:    cfg.Jobs.CapacityResetCron,
			Command: domain.ResetCapacityRequest{},
		})
	}
	if cfg.Price.Enable && cfg.Price.RefreshCron != "" {
		specs = append(specs, Spec{
			Name:    JOB_PRICE_REFRESH,
			Cron:    cfg.Price.RefreshCron,
			Command: domain.RefreshPricesRequest{},
		})
	}
	return specs
}

func NewScheduler(specs []Spec, send Sender, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: quartz.NewStdScheduler(),
		specs:     specs,
		send:      send,
		logger:    logger,
	}
}

// Start validates every cron expression before scheduling anything.
func (s *Scheduler) Start(ctx context.Context) error {
	triggers := make([]*quartz.CronTrigger, len(s.specs))
	for i, spec := range s.specs {
		trigger, err := quartz.NewCronTrigger(spec.Cron)
		if err != nil {
			return fmt.Errorf("job %s: invalid cron %q: %w", spec.Name, spec.Cron, err)
		}
		triggers[i] = trigger
	}

	s.scheduler.Start(ctx)
	for i, spec := range s.specs {
		detail := quartz.NewJobDetail(s.commandJob(spec), quartz.NewJobKey(spec.Name))
		if err := s.scheduler.ScheduleJob(detail, triggers[i]); err != nil {
			s.scheduler.Stop()
			return fmt.Errorf("job %s: %w", spec.Name, err)
		}
		s.logger.Info("job scheduled", zap.String("job", spec.Name), zap.String("cron", spec.Cron))
	}
	return nil
}

func (s *Scheduler) commandJob(spec Spec) *job.FunctionJob[string] {
	return job.NewFunctionJob(func(ctx context.Context) (string, error) {
		s.logger.Debug("job fired", zap.String("job", spec.Name))
		s.send(spec.Command)
		return spec.Name, nil
	})
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
