package actorutil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

const (
	RPC_METHOD_GET_STATE  = "Power.GetState"
	RPC_METHOD_SET_STATE  = "Power.SetState"
	RPC_METHOD_IN_CHANGE  = "Power.InChange"
	RPC_METHOD_OUT_CHANGE = "Power.OutChange"
	RPC_METHOD_RESET_SOC  = "Power.ResetSOC"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.PowerCommandRequest, error) {
	switch cmd.DeviceId {
	case domain.SWITCH_ID_OPTIMIZE:
		return domain.OptimizeRequest{
			Enable: cmd.Payload == mqtt.MQTT_PAYLOAD_ON,
		}, nil
	case domain.SWITCH_ID_POWER_OUT_ENABLE:
		return domain.SetOutEnabledRequest{
			Enable: cmd.Payload == mqtt.MQTT_PAYLOAD_ON,
		}, nil
	case domain.INPUT_NUMBER_ID_IN_TARGET:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		return domain.SetInTargetRequest{
			Target: value,
		}, nil
	case domain.INPUT_NUMBER_ID_OPTIMIZE_MIN, domain.INPUT_NUMBER_ID_OPTIMIZE_MAX:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, err
		}
		if cmd.DeviceId == domain.INPUT_NUMBER_ID_OPTIMIZE_MIN {
			return domain.UpdateOptimizeTargetRequest{Min: &value}, nil
		}
		return domain.UpdateOptimizeTargetRequest{Max: &value}, nil
	}
	return nil, nil
}

// rpcArgs is the union of the Power.* rpc arguments. steps is accepted as an
// alias of power.
type rpcArgs struct {
	State *int     `json:"state"`
	Power *float64 `json:"power"`
	Steps *float64 `json:"steps"`
}

// RPCRequestToCommand maps a Power.* rpc request to a controller command. The
// returned error is an *mqtt.RPCError ready to be sent back.
func RPCRequestToCommand(req mqtt.RPCFrame) (domain.PowerCommandRequest, error) {
	var args rpcArgs
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, &mqtt.RPCError{Code: mqtt.RPC_ERROR_BAD_REQUEST, Message: err.Error()}
		}
	}
	power := args.Power
	if power == nil {
		power = args.Steps
	}
	switch req.Method {
	case RPC_METHOD_GET_STATE:
		return domain.GetStateRequest{}, nil
	case RPC_METHOD_SET_STATE:
		if args.State == nil {
			return nil, &mqtt.RPCError{Code: mqtt.RPC_ERROR_BAD_REQUEST, Message: "state is a required argument"}
		}
		state := domain.PowerState(*args.State)
		if !state.Valid() {
			return nil, &mqtt.RPCError{Code: mqtt.RPC_ERROR_BAD_REQUEST, Message: fmt.Sprintf(
				"state must be power_in (%d), power_out (%d) or power_off (%d)", domain.PowerIn, domain.PowerOut, domain.PowerOff)}
		}
		return domain.SetStateRequest{State: state}, nil
	case RPC_METHOD_IN_CHANGE, RPC_METHOD_OUT_CHANGE:
		if power == nil {
			return nil, &mqtt.RPCError{Code: mqtt.RPC_ERROR_BAD_REQUEST, Message: "power is a required argument"}
		}
		if req.Method == RPC_METHOD_IN_CHANGE {
			return domain.InChangeRequest{Power: *power}, nil
		}
		return domain.OutChangeRequest{Power: *power}, nil
	case RPC_METHOD_RESET_SOC:
		return domain.ResetSOCRequest{}, nil
	}
	return nil, &mqtt.RPCError{Code: mqtt.RPC_ERROR_NOT_FOUND, Message: fmt.Sprintf("unknown method %q", req.Method)}
}

// CommandResponseToRPCResult builds the rpc result body for a controller
// response.
func CommandResponseToRPCResult(resp any) (any, error) {
	switch r := resp.(type) {
	case domain.PowerStateResponse:
		return map[string]any{"state": int(r.State), "battery_state": r.BatteryState.String()}, nil
	case domain.ChangeResponse:
		return map[string]any{"result": r.Result.String(), "power": r.Power, "current": r.Current}, nil
	case domain.ResetSOCResponse:
		return map[string]any{"soc": r.SOC}, nil
	}
	return nil, &mqtt.RPCError{Code: mqtt.RPC_ERROR_INTERNAL, Message: fmt.Sprintf("unexpected response %T", resp)}
}
