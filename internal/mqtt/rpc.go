package mqtt

import (
	"encoding/json"
	"fmt"
)

const (
	RPC_ERROR_BAD_REQUEST = 400
	RPC_ERROR_NOT_FOUND   = 404
	RPC_ERROR_INTERNAL    = 500
)

// RPCFrame is a mongoose-os style rpc frame, requests carry a method and
// replies carry either result or error.
type RPCFrame struct {
	Id     int64           `json:"id"`
	Src    string          `json:"src,omitempty"`
	Dst    string          `json:"dst,omitempty"`
	Method string          `json:"method,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (f RPCFrame) IsRequest() bool {
	return f.Method != ""
}

func RPCTopic(node string) string {
	return fmt.Sprintf("%s/rpc", node)
}

func ParseRPCFrame(payload []byte) (RPCFrame, error) {
	var f RPCFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		return f, fmt.Errorf("rpc frame: %w", err)
	}
	return f, nil
}

func NewRPCRequest(id int64, src, dst, method string, args any) ([]byte, error) {
	f := RPCFrame{
		Id:     id,
		Src:    src,
		Dst:    dst,
		Method: method,
	}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		f.Args = raw
	}
	return json.Marshal(f)
}

func NewRPCResult(req RPCFrame, src string, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return json.Marshal(RPCFrame{
		Id:     req.Id,
		Src:    src,
		Dst:    req.Src,
		Result: raw,
	})
}

func NewRPCError(req RPCFrame, src string, code int, message string) ([]byte, error) {
	return json.Marshal(RPCFrame{
		Id:    req.Id,
		Src:   src,
		Dst:   req.Src,
		Error: &RPCError{Code: code, Message: message},
	})
}
