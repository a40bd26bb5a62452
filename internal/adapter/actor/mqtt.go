package actor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/powerpilot/internal/config"
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/mqtt"
	"github.com/berfenger/powerpilot/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	rpcCallTimeout    = 5 * time.Second
	rpcCommandTimeout = 2 * time.Second
)

var ErrRPCTimeout = errors.New("rpc call timed out")

type MQTTActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	client       *mqtt.MQTTClient
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	scheduler    *scheduler.TimerScheduler
	rpcSeq       int64
	rpcPending   map[int64]func([]byte, error)
	logger       *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *mqtt.ParsedMQTTCommand
}

type rpcFrameReceived struct {
	Frame mqtt.RPCFrame
}

type rpcCallTimedOut struct {
	Id int64
}

type rawMessage struct {
	topic   string
	message string
	retain  bool
}

func NewMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		rpcPending:  map[int64]func([]byte, error){},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mqtt@starting started")

		// create MQTT client
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("mqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// subscribe to command, rpc and meter topics
		state.client.SubscribeToInputTopics(func(c pahomqtt.Client, m pahomqtt.Message) {
			state.route(ctx, m)
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("mqtt@starting subscribed")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.subscribe(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("mqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("mqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case domain.MeterReading:
		ctx.Send(ctx.Parent(), msg)
	case rpcFrameReceived:
		state.handleRPCFrame(ctx, msg.Frame)
	case domain.RemoteCallRequest:
		state.logger.Debug("mqtt@default RemoteCallRequest", zap.String("peer", msg.Peer), zap.String("method", msg.Method))
		state.callRemote(ctx, msg)
	case rpcCallTimedOut:
		if done, ok := state.rpcPending[msg.Id]; ok {
			delete(state.rpcPending, msg.Id)
			done(nil, ErrRPCTimeout)
		}
	case domain.PublishMessageRequest:
		state.logger.Debug("mqtt@default PublishMessageRequest", zap.Any("message", msg))
		state.publishMessage(ctx, msg.Topic, msg.Payload, msg.Retain, actorutil.ForRequest(msg).ReplyTo(ctx))
	case domain.PublishSensorUpdateRequest:
		// receive message from event bus and publish to MQTT if needed
		state.logger.Debug("mqtt@default PublishSensorUpdateRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishSensorValue(ctx, msg.Event, msg.Retain)
	case domain.PublishDiscoveryRequest:
		state.logger.Debug("mqtt@default PublishHADiscovery")
		err := state.PublishHomeAssistantDiscovery(ctx, msg.Sensors, msg.Switches, msg.InputNumbers)
		if err != nil {
			state.logger.Error("mqtt@default PublishHADiscovery error", zap.Error(err))
		}
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("mqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("mqtt@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MQTTActor) event2MQTTMessage(event any) *rawMessage {
	switch msg := event.(type) {
	case domain.FloatSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
		}
	case domain.BinarySensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.BinarySensorStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
		}
	case domain.SwitchSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SwitchStateTopic(msg.Id),
			message: bool2MQTTPayload(msg.Value),
			retain:  true,
		}
	case domain.InputNumberSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.InputNumberStateTopic(msg.Id),
			message: fmt.Sprintf(fmt.Sprintf("%%.%df", msg.Decimals), msg.Value),
			retain:  true,
		}
	case domain.TextSensorUpdateEvent:
		return &rawMessage{
			topic:   state.client.SensorStateTopic(msg.Id),
			message: msg.Value,
		}
	case domain.BridgeStateUpdateEvent:
		var stringMessage string
		if msg.Value {
			stringMessage = mqtt.MQTT_PAYLOAD_ONLINE
		} else {
			stringMessage = mqtt.MQTT_PAYLOAD_OFFLINE
		}
		return &rawMessage{
			topic:   state.client.BridgeStateTopic(),
			message: stringMessage,
		}
	default:
		return nil
	}
}

func (state *MQTTActor) publishSensorValue(ctx actor.Context, event domain.SensorUpdateEvent, retain bool) {
	msg := state.event2MQTTMessage(event)
	if msg != nil {
		state.logger.Sugar().Debugf("mqtt@publish: sensor publish %s => %s", msg.topic, msg.message)
		state.client.Publish(msg.topic, msg.message, 1, msg.retain || retain, func(err error) {
			ctx.Send(ctx.Self(), publishResult{Error: err})
		}, 5*time.Second)
		state.behavior.BecomeStacked(state.EventPublishResultReceive)
	}
}

func (state *MQTTActor) publishMessage(ctx actor.Context, topic, payload string, retain bool, replyTo *actor.PID) {
	state.logger.Sugar().Debugf("mqtt@publish: message publish %s => %s", topic, payload)
	state.client.Publish(topic, payload, 1, retain, func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
	}, 5*time.Second)
	state.behavior.BecomeStacked(state.MessagePublishResultReceive)
}

func (state *MQTTActor) MessagePublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishMessageResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) EventPublishResultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("mqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishSensorUpdateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("mqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MQTTActor) PublishHomeAssistantDiscovery(ctx actor.Context, sensors []domain.GenericSensor,
	switches []domain.GenericSwitch, inputNumbers []domain.GenericInputNumber) error {
	for i := range sensors {
		msg := mqtt.GenericSensorToHADiscoveryMessage(state.client, sensors[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySensorTopic(state.client.DiscoveryPrefix(), sensors[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range switches {
		msg := mqtt.GenericSwitchToHADiscoveryMessage(state.client, switches[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoverySwitchTopic(state.client.DiscoveryPrefix(), switches[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	for i := range inputNumbers {
		msg := mqtt.GenericInputNumberToHADiscoveryMessage(state.client, inputNumbers[i])
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := mqtt.HADiscoveryInputNumberTopic(state.client.DiscoveryPrefix(), inputNumbers[i])
		state.client.Publish(topic, payload, 0, true, func(error) {}, 1*time.Second)
	}
	return nil
}

// route runs on the paho goroutine, it only parses and forwards to the
// mailbox.
func (state *MQTTActor) route(ctx actor.Context, m pahomqtt.Message) {
	topic := m.Topic()
	switch {
	case state.client.IsMeterTopic(topic):
		reading, err := mqtt.ParseMeterPayload(m.Payload(), time.Now())
		if err != nil {
			state.logger.Warn("mqtt@route invalid meter payload", zap.String("topic", topic), zap.Error(err))
			return
		}
		ctx.Send(ctx.Self(), reading)
	case state.client.IsRPCTopic(topic):
		frame, err := mqtt.ParseRPCFrame(m.Payload())
		if err != nil {
			state.logger.Warn("mqtt@route invalid rpc frame", zap.Error(err))
			return
		}
		ctx.Send(ctx.Self(), rpcFrameReceived{Frame: frame})
	default:
		cmd, err := state.client.ParseMQTTCommand(m)
		if err == nil && cmd != nil {
			ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
		}
	}
}

// subscribe forwards controller sensor events to the mailbox.
func (state *MQTTActor) subscribe(ctx actor.Context) {
	if state.eventStream == nil || state.subscription != nil {
		return
	}
	self := ctx.Self()
	system := ctx.ActorSystem()
	state.subscription = state.eventStream.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.SensorUpdateEvent); ok {
			system.Root.Send(self, domain.PublishSensorUpdateRequest{Event: ev})
		}
	})
}

func (state *MQTTActor) callRemote(ctx actor.Context, msg domain.RemoteCallRequest) {
	state.rpcSeq++
	id := state.rpcSeq
	payload, err := mqtt.NewRPCRequest(id, state.client.NodeId(), msg.Peer, msg.Method, msg.Args)
	if err != nil {
		if msg.Done != nil {
			msg.Done(nil, err)
		}
		return
	}
	if msg.Done != nil {
		state.rpcPending[id] = msg.Done
		state.scheduler.RequestOnce(rpcCallTimeout, ctx.Self(), rpcCallTimedOut{Id: id})
	}
	state.publishMessage(ctx, mqtt.RPCTopic(msg.Peer), string(payload), false, nil)
}

func (state *MQTTActor) handleRPCFrame(ctx actor.Context, frame mqtt.RPCFrame) {
	if !frame.IsRequest() {
		done, ok := state.rpcPending[frame.Id]
		if !ok {
			state.logger.Debug("mqtt@rpc reply without pending call", zap.Int64("id", frame.Id))
			return
		}
		delete(state.rpcPending, frame.Id)
		if frame.Error != nil {
			done(nil, frame.Error)
		} else {
			done(frame.Result, nil)
		}
		return
	}

	state.logger.Info("mqtt@rpc request", zap.String("src", frame.Src), zap.String("method", frame.Method),
		zap.ByteString("args", frame.Args))
	cmd, err := actorutil.RPCRequestToCommand(frame)
	if err != nil {
		state.replyRPC(ctx, frame, nil, err)
		return
	}
	ctx.ReenterAfter(ctx.RequestFuture(ctx.Parent(), cmd, rpcCommandTimeout), func(res any, err error) {
		if err != nil {
			state.replyRPC(ctx, frame, nil, &mqtt.RPCError{Code: mqtt.RPC_ERROR_INTERNAL, Message: err.Error()})
			return
		}
		result, err := actorutil.CommandResponseToRPCResult(res)
		state.replyRPC(ctx, frame, result, err)
	})
}

func (state *MQTTActor) replyRPC(ctx actor.Context, req mqtt.RPCFrame, result any, err error) {
	if req.Src == "" {
		return
	}
	var payload []byte
	if err != nil {
		rpcErr, ok := err.(*mqtt.RPCError)
		if !ok {
			rpcErr = &mqtt.RPCError{Code: mqtt.RPC_ERROR_INTERNAL, Message: err.Error()}
		}
		payload, err = mqtt.NewRPCError(req, state.client.NodeId(), rpcErr.Code, rpcErr.Message)
	} else {
		payload, err = mqtt.NewRPCResult(req, state.client.NodeId(), result)
	}
	if err != nil {
		state.logger.Error("mqtt@rpc could not encode reply", zap.Error(err))
		return
	}
	state.publishMessage(ctx, mqtt.RPCTopic(req.Src), string(payload), false, nil)
}

func (state *MQTTActor) stop() {
	state.logger.Debug("mqtt: disconnect")
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	for id, done := range state.rpcPending {
		delete(state.rpcPending, id)
		done(nil, ErrRPCTimeout)
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), mqtt.MQTT_PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func bool2MQTTPayload(value bool) string {
	if value {
		return mqtt.MQTT_PAYLOAD_ON
	} else {
		return mqtt.MQTT_PAYLOAD_OFF
	}
}

// Dummy actor, never connects. Published messages and remote calls are
// recorded and answered.
func NewTestMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *MQTTActor {
	act := &MQTTActor{
		config:      config,
		eventStream: eventStream,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		rpcPending:  map[int64]func([]byte, error){},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *MQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.client = mqtt.CreateMQTTClient(state.config, mqtt.OptsFromConfig(state.config), nil, nil)
		state.subscribe(ctx)
	case *actor.Stopping:
		if state.subscription != nil {
			state.eventStream.Unsubscribe(state.subscription)
			state.subscription = nil
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("mqtt@dummy ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.MeterReading, ParsedCommand:
		ctx.Send(ctx.Parent(), msg)
	case domain.RemoteCallRequest:
		if msg.Done != nil {
			msg.Done([]byte(`{}`), nil)
		}
	case domain.PublishSensorUpdateRequest:
		if m := state.event2MQTTMessage(msg.Event); m != nil {
			state.logger.Debug("mqtt@dummy publish", zap.String("topic", m.topic), zap.String("payload", m.message))
		}
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishSensorUpdateResponse{})
		}
	case domain.PublishMessageRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishMessageResponse{})
		}
	}
}
