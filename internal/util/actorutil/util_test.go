package actorutil

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/mqtt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {

	require := require.New(t)

	cmd, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.SWITCH_ID_OPTIMIZE, Payload: "on"})
	require.NoError(err)
	require.Equal(domain.OptimizeRequest{Enable: true}, cmd)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.SWITCH_ID_POWER_OUT_ENABLE, Payload: "off"})
	require.NoError(err)
	require.Equal(domain.SetOutEnabledRequest{Enable: false}, cmd)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.INPUT_NUMBER_ID_IN_TARGET, Payload: "750"})
	require.NoError(err)
	require.Equal(domain.SetInTargetRequest{Target: 750}, cmd)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.INPUT_NUMBER_ID_OPTIMIZE_MAX, Payload: "80"})
	require.NoError(err)
	upd, ok := cmd.(domain.UpdateOptimizeTargetRequest)
	require.True(ok)
	require.Nil(upd.Min)
	require.Equal(80.0, *upd.Max)

	_, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: domain.INPUT_NUMBER_ID_IN_TARGET, Payload: "lots"})
	require.Error(err)

	cmd, err = ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{DeviceId: "unknown_switch", Payload: "on"})
	require.NoError(err)
	require.Nil(cmd)
}

func rpcFrame(method, args string) mqtt.RPCFrame {
	f := mqtt.RPCFrame{Id: 1, Src: "peer", Method: method}
	if args != "" {
		f.Args = json.RawMessage(args)
	}
	return f
}

func TestRPCRequestToCommand(t *testing.T) {

	tests := []struct {
		name string
		req  mqtt.RPCFrame
		cmd  domain.PowerCommandRequest
		code int
	}{
		{"get state", rpcFrame(RPC_METHOD_GET_STATE, ""), domain.GetStateRequest{}, 0},
		{"set state", rpcFrame(RPC_METHOD_SET_STATE, `{"state":-1}`), domain.SetStateRequest{State: domain.PowerOut}, 0},
		{"set state missing", rpcFrame(RPC_METHOD_SET_STATE, `{}`), nil, mqtt.RPC_ERROR_BAD_REQUEST},
		{"set state invalid", rpcFrame(RPC_METHOD_SET_STATE, `{"state":-99}`), nil, mqtt.RPC_ERROR_BAD_REQUEST},
		{"in change", rpcFrame(RPC_METHOD_IN_CHANGE, `{"power":120}`), domain.InChangeRequest{Power: 120}, 0},
		{"in change steps", rpcFrame(RPC_METHOD_IN_CHANGE, `{"steps":-30}`), domain.InChangeRequest{Power: -30}, 0},
		{"out change", rpcFrame(RPC_METHOD_OUT_CHANGE, `{"power":50}`), domain.OutChangeRequest{Power: 50}, 0},
		{"out change missing", rpcFrame(RPC_METHOD_OUT_CHANGE, ``), nil, mqtt.RPC_ERROR_BAD_REQUEST},
		{"reset soc", rpcFrame(RPC_METHOD_RESET_SOC, ""), domain.ResetSOCRequest{}, 0},
		{"bad args", rpcFrame(RPC_METHOD_IN_CHANGE, `[1]`), nil, mqtt.RPC_ERROR_BAD_REQUEST},
		{"unknown", rpcFrame("Sys.Reboot", ""), nil, mqtt.RPC_ERROR_NOT_FOUND},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := RPCRequestToCommand(tt.req)
			if tt.code != 0 {
				var rpcErr *mqtt.RPCError
				require.ErrorAs(t, err, &rpcErr)
				assert.Equal(t, tt.code, rpcErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, cmd)
		})
	}
}

func TestCommandResponseToRPCResult(t *testing.T) {

	require := require.New(t)

	res, err := CommandResponseToRPCResult(domain.PowerStateResponse{State: domain.PowerIn, BatteryState: domain.BatteryCharging})
	require.NoError(err)
	require.Equal(map[string]any{"state": 1, "battery_state": "charging"}, res)

	res, err = CommandResponseToRPCResult(domain.ResetSOCResponse{SOC: 66})
	require.NoError(err)
	require.Equal(map[string]any{"soc": 66}, res)

	_, err = CommandResponseToRPCResult(domain.ActorHealthResponse{})
	require.Error(err)
}

type fetched struct {
	value int
}

func TestBackgroundTaskRecover(t *testing.T) {

	var got *fetched
	NewBackgroundTask(nil, func() (*fetched, error) {
		return nil, errors.New("upstream down")
	}).Recover(func(err error) fetched {
		return fetched{value: -1}
	}).OnSuccess(func(v fetched) {
		got = &v
	}).Run()

	require.NotNil(t, got)
	assert.Equal(t, -1, got.value, "recovered value is delivered")
}

func TestBackgroundTaskTimeout(t *testing.T) {

	var failed error
	NewBackgroundTask(nil, func() (*fetched, error) {
		time.Sleep(200 * time.Millisecond)
		return &fetched{value: 1}, nil
	}).WithTimeout(20 * time.Millisecond).OnError(func(err error) {
		failed = err
	}).OnSuccess(func(v fetched) {
		t.Error("success after timeout")
	}).Run()

	assert.Error(t, failed)
}
