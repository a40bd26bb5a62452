package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/powerpilot/internal/adapter/driver"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/events"
	"github.com/berfenger/powerpilot/internal/core/port"
	"github.com/berfenger/powerpilot/internal/core/service"
	"github.com/berfenger/powerpilot/internal/metrics"
	. "github.com/berfenger/powerpilot/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// InverterTelemetry is implemented by actuators that report their own status.
type InverterTelemetry interface {
	Status() driver.SoyosourceStatus
}

type ControllerActorConfig struct {
	WatchdogInterval time.Duration
	StatusInterval   time.Duration
	PriceTimeout     time.Duration
	StatusChannels   int
}

type ControllerDeps struct {
	Controller *service.Controller
	Prices     port.PriceSource
	Metrics    *metrics.Metrics
	Inverter   InverterTelemetry
}

// ControllerActor serializes every access to the controller. Commands,
// meter readings and ticks all arrive through its mailbox.
type ControllerActor struct {
	config      ControllerActorConfig
	behavior    actor.Behavior
	stash       *Stash
	scheduler   *scheduler.TimerScheduler
	cancelTicks []scheduler.CancelFunc
	eventStream *eventstream.EventStream

	controller *service.Controller
	prices     port.PriceSource
	metrics    *metrics.Metrics
	inverter   InverterTelemetry

	lastStatus    *domain.ControllerStatus
	priceFetching bool
	priceReplyTo  []*actor.PID

	logger *zap.Logger
}

type watchdogTick struct{}

type statusTick struct{}

func NewControllerActor(config ControllerActorConfig, deps ControllerDeps, eventStream *eventstream.EventStream, logger *zap.Logger) *ControllerActor {
	act := &ControllerActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		eventStream: eventStream,
		controller:  deps.Controller,
		prices:      deps.Prices,
		metrics:     deps.Metrics,
		inverter:    deps.Inverter,
		logger:      ActorLogger(domain.ACTOR_ID_CONTROLLER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ControllerActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ControllerActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("controller@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.config.WatchdogInterval > 0 {
			state.cancelTicks = append(state.cancelTicks,
				state.scheduler.SendRepeatedly(state.config.WatchdogInterval, state.config.WatchdogInterval, ctx.Self(), watchdogTick{}))
		}
		if state.config.StatusInterval > 0 {
			state.cancelTicks = append(state.cancelTicks,
				state.scheduler.SendRepeatedly(state.config.StatusInterval, state.config.StatusInterval, ctx.Self(), statusTick{}))
		}

		state.publishStatus(true)

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("controller@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ControllerActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		powerState, _ := state.controller.GetState()
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CONTROLLER,
			Healthy: powerState != domain.PowerInvalid,
			State:   powerState.String(),
		})
	case domain.MeterReading:
		state.metrics.MeterReading()
		state.controller.ReportTotalPower(time.UnixMilli(msg.Timestamp), msg.Power)
		state.publishStatus(false)
	case watchdogTick:
		report := state.controller.WatchdogTick()
		if report.Forced {
			state.logger.Warn("controller@default watchdog forced power off",
				zap.String("reason", report.Reason), zap.Float64("voltage", report.Voltage))
			state.metrics.WatchdogForced(report.Reason)
		}
		state.publishStatus(false)
		state.controller.LogStatus(state.config.StatusChannels)
	case statusTick:
		if state.inverter != nil {
			state.metrics.UpdateInverter(state.inverter.Status())
		}
		state.publishStatus(true)
	case domain.RefreshPricesRequest:
		state.refreshPrices(ctx, msg)
	case domain.PriceUpdate:
		state.priceUpdate(ctx, msg)
	case domain.PowerCommandRequest:
		state.logger.Debug("controller@default command", zap.String("command", msg.PowerCommand()))
		ForRequest(msg).Respond(ctx, state.handleCommand(msg))
		state.publishStatus(false)
	case *actor.Stopping, *actor.Restarting:
		state.logger.Debug("controller@default stopping")
		for _, cancel := range state.cancelTicks {
			cancel()
		}
		state.cancelTicks = nil
	case *actor.Stopped:
	default:
		state.logger.Debug("controller@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ControllerActor) handleCommand(cmd domain.PowerCommandRequest) domain.ActorResponse {
	c := state.controller
	switch msg := cmd.(type) {
	case domain.GetStateRequest:
		powerState, bs := c.GetState()
		return domain.PowerStateResponse{State: powerState, BatteryState: bs}
	case domain.SetStateRequest:
		if !msg.State.Valid() {
			powerState, bs := c.GetState()
			return domain.PowerStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: fmt.Errorf("%w: %d", domain.ErrInvalidState, msg.State)},
				State:              powerState,
				BatteryState:       bs,
			}
		}
		powerState, bs := c.SetState(msg.State)
		return domain.PowerStateResponse{State: powerState, BatteryState: bs}
	case domain.InChangeRequest:
		res, delta, current := c.InChange(msg.Power)
		return domain.ChangeResponse{Result: res, Power: delta, Current: current}
	case domain.OutChangeRequest:
		res, delta, current := c.OutChange(msg.Power)
		return domain.ChangeResponse{Result: res, Power: delta, Current: current}
	case domain.ResetSOCRequest:
		soc, bs := c.ResetSOC()
		return domain.ResetSOCResponse{SOC: soc, BatteryState: bs}
	case domain.OutEvaluateRequest:
		enabled, price := c.OutEvaluate(msg.Limit)
		return domain.OutEvaluateResponse{Enabled: enabled, Price: price}
	case domain.OptimizeRequest:
		return domain.OptimizeResponse{Enabled: c.SetOptimize(msg.Enable)}
	case domain.SetInTargetRequest:
		return domain.SetInTargetResponse{InTarget: c.SetInTarget(msg.Target)}
	case domain.SetOptimizeTargetRequest:
		return state.setOptimizeTarget(msg.Min, msg.Max)
	case domain.UpdateOptimizeTargetRequest:
		target := c.OptimizeTarget()
		if msg.Min != nil {
			target.Min = *msg.Min
		}
		if msg.Max != nil {
			target.Max = *msg.Max
		}
		return state.setOptimizeTarget(target.Min, target.Max)
	case domain.ResetCapacityRequest:
		in, out := c.ResetCapacity()
		return domain.ResetCapacityResponse{CapacityIn: in, CapacityOut: out}
	case domain.SetOutEnabledRequest:
		return domain.SetOutEnabledResponse{Enabled: c.SetOutEnabled(msg.Enable)}
	case domain.GetStatusRequest:
		return domain.GetStatusResponse{Status: c.Snapshot()}
	}
	return domain.ActorResponseMixIn{ResponseError: fmt.Errorf("unsupported command %s", cmd.PowerCommand())}
}

func (state *ControllerActor) setOptimizeTarget(minPower, maxPower float64) domain.SetOptimizeTargetResponse {
	target, err := state.controller.SetOptimizeTarget(minPower, maxPower)
	return domain.SetOptimizeTargetResponse{
		ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: err},
		Min:                target.Min,
		Max:                target.Max,
	}
}

func (state *ControllerActor) refreshPrices(ctx actor.Context, msg domain.RefreshPricesRequest) {
	if state.prices == nil {
		ForRequest(msg).Respond(ctx, domain.RefreshPricesResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{ResponseError: domain.ErrNoPriceData},
		})
		return
	}
	if replyTo := ForRequest(msg).ReplyTo(ctx); replyTo != nil {
		state.priceReplyTo = append(state.priceReplyTo, replyTo)
	}
	if state.priceFetching {
		return
	}
	state.priceFetching = true

	// the gate compares against the trailing window
	hour := time.Now().Truncate(time.Hour)
	from := hour.Add(-state.controller.PriceWindow())
	to := hour.Add(state.controller.PriceWindow())
	timeout := state.config.PriceTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	state.logger.Debug("controller@default fetching prices", zap.Time("from", from), zap.Time("to", to))

	prices := state.prices
	NewBackgroundTask(ctx, func() (*domain.PriceUpdate, error) {
		fetchCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		entries, err := prices.Fetch(fetchCtx, from, to)
		if err != nil {
			return nil, err
		}
		return &domain.PriceUpdate{Entries: entries}, nil
	}).WithTimeout(timeout + time.Second).Recover(func(err error) domain.PriceUpdate {
		return domain.PriceUpdate{Error: err}
	}).PipeTo(ctx.Self())
}

func (state *ControllerActor) priceUpdate(ctx actor.Context, msg domain.PriceUpdate) {
	state.priceFetching = false
	resp := domain.RefreshPricesResponse{Entries: len(msg.Entries)}
	if msg.Error != nil {
		state.logger.Error("controller@default price fetch failed", zap.Error(msg.Error))
		resp.ResponseError = msg.Error
	} else {
		state.logger.Info("controller@default prices updated", zap.Int("entries", len(msg.Entries)))
		state.controller.UpdatePrices(msg.Entries)
		if best, ok := state.controller.BestPrice(time.Now()); ok {
			state.logger.Info("controller@default cheapest upcoming slot",
				zap.Time("start", best.Start), zap.Float64("price", best.Price))
		}
		state.publishStatus(false)
	}
	for _, pid := range state.priceReplyTo {
		ctx.Send(pid, resp)
	}
	state.priceReplyTo = nil
}

// publishStatus refreshes the metrics and emits sensor events. Unless force
// is set, events are emitted only when the status changed.
func (state *ControllerActor) publishStatus(force bool) {
	status := state.controller.Snapshot()
	state.metrics.UpdateStatus(status)
	if !force && state.lastStatus != nil && !events.StatusChanged(*state.lastStatus, status) {
		return
	}
	state.lastStatus = &status
	if state.eventStream == nil {
		return
	}
	for _, ev := range events.StatusToUpdateEvents(status) {
		state.eventStream.Publish(ev)
	}
}
