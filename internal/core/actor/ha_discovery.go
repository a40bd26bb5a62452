package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/powerpilot/internal/config"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// HADiscoveryActor publishes the Home Assistant discovery documents once the
// controller and the MQTT link are up.
type HADiscoveryActor struct {
	config                 *config.Config
	behavior               actor.Behavior
	stash                  *actorutil.Stash
	controllerActor        *actor.PID
	mqttActor              *actor.PID
	controllerActorHealthy bool
	mqttActorHealthy       bool
	healthyRecv            int

	logger *zap.Logger
}

func NewHADiscoveryActor(config *config.Config, controllerActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:          config,
		controllerActor: controllerActor,
		mqttActor:       mqttActor,
		behavior:        actor.NewBehavior(),
		stash:           &actorutil.Stash{},
		logger:          actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		state.healthyRecv = 0
		state.controllerActorHealthy = false
		state.mqttActorHealthy = false
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.controllerActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_CONTROLLER,
				Healthy: false,
			}
		})
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_CONTROLLER:
				state.controllerActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {
			if !state.controllerActorHealthy || !state.mqttActorHealthy {
				panic(errors.New("MQTT Actor or Controller Actor are not healthy"))
			}
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.controllerActor, domain.GetStatusRequest{}, 2*time.Second), func(err error) any {
				return domain.GetStatusResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				}
			})
			state.behavior.Become(state.WaitingStatusReceive)
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingStatusReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetStatusResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		ctx.Send(state.mqttActor, DiscoveryRequest(state.config, msg.Status))
		state.logger.Info("hadiscovery@status discovery published")
		state.behavior.Become(state.Done)
	default:
		state.logger.Debug("hadiscovery@status: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {

}

// DiscoveryRequest lists every entity of the controller device.
func DiscoveryRequest(cfg *config.Config, status domain.ControllerStatus) domain.PublishDiscoveryRequest {
	dev := domain.ControllerDevice(cfg.MQTT.BaseTopic)
	return domain.PublishDiscoveryRequest{
		Sensors:      domain.ControllerSensors(dev),
		Switches:     domain.ControllerSwitches(dev),
		InputNumbers: domain.ControllerInputNumbers(dev, status.OptimizeTarget, cfg.Power.In.Max),
	}
}
