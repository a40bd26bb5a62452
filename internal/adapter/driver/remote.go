package driver

import (
	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"
	"go.uber.org/zap"
)

const (
	RPC_METHOD_IN_CHANGE  = "Power.InChange"
	RPC_METHOD_OUT_CHANGE = "Power.OutChange"
)

type RemoteChangeArgs struct {
	Power float64 `json:"power"`
}

// Remote forwards the change to a peer controller. The outcome is not known
// when Change returns, the reply is only logged.
type Remote struct {
	peer   string
	method string
	caller port.RemoteCaller
	logger *zap.Logger
}

func NewRemote(cfg RemoteConfig, direction domain.PowerState, caller port.RemoteCaller, logger *zap.Logger) *Remote {
	method := RPC_METHOD_IN_CHANGE
	if direction == domain.PowerOut {
		method = RPC_METHOD_OUT_CHANGE
	}
	return &Remote{
		peer:   cfg.Peer,
		method: method,
		caller: caller,
		logger: logger.With(zap.String("peer", cfg.Peer)),
	}
}

func (d *Remote) Name() string {
	return DRIVER_REMOTE
}

func (d *Remote) Change(req *domain.ChangeRequest) (domain.ChangeResult, error) {
	power := req.Power
	d.caller.Call(d.peer, d.method, RemoteChangeArgs{Power: power}, func(result []byte, err error) {
		if err != nil {
			d.logger.Warn("remote change failed", zap.String("method", d.method), zap.Float64("power", power), zap.Error(err))
			return
		}
		d.logger.Debug("remote change acknowledged", zap.String("method", d.method), zap.Float64("power", power),
			zap.ByteString("result", result))
	})
	return domain.ChangeUnknown, nil
}
