package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCRequestRoundTrip(t *testing.T) {

	require := require.New(t)

	payload, err := NewRPCRequest(7, "powerpilot", "shelly-battery", "Power.InChange", map[string]float64{"power": 150})
	require.NoError(err)
	require.JSONEq(`{"id":7,"src":"powerpilot","dst":"shelly-battery","method":"Power.InChange","args":{"power":150}}`, string(payload))

	frame, err := ParseRPCFrame(payload)
	require.NoError(err)
	require.True(frame.IsRequest())
	require.Equal("Power.InChange", frame.Method)
}

func TestRPCReplies(t *testing.T) {

	require := require.New(t)

	req := RPCFrame{Id: 3, Src: "master-node", Method: "Power.GetState"}

	payload, err := NewRPCResult(req, "powerpilot", map[string]int{"state": 1})
	require.NoError(err)
	frame, err := ParseRPCFrame(payload)
	require.NoError(err)
	require.False(frame.IsRequest())
	require.Equal(int64(3), frame.Id)
	require.Equal("master-node", frame.Dst)
	require.JSONEq(`{"state":1}`, string(frame.Result))
	require.Nil(frame.Error)

	payload, err = NewRPCError(req, "powerpilot", RPC_ERROR_BAD_REQUEST, "state is a required argument")
	require.NoError(err)
	frame, err = ParseRPCFrame(payload)
	require.NoError(err)
	require.NotNil(frame.Error)
	require.Equal(RPC_ERROR_BAD_REQUEST, frame.Error.Code)
	require.EqualError(frame.Error, "rpc error 400: state is a required argument")
}

func TestParseRPCFrameInvalid(t *testing.T) {

	_, err := ParseRPCFrame([]byte("{"))
	assert.Error(t, err)
}
