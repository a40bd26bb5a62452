package actor

import (
	"fmt"

	"github.com/berfenger/powerpilot/internal/core/domain"
	"github.com/berfenger/powerpilot/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
)

// MQTTRemoteCaller hands remote driver calls to the MQTT actor, which owns
// the request/reply correlation. Call never blocks.
type MQTTRemoteCaller struct {
	root *actor.RootContext
	mqtt *actor.PID
}

// NewMQTTRemoteCaller targets the MQTT actor spawned by the master actor.
func NewMQTTRemoteCaller(system *actor.ActorSystem) *MQTTRemoteCaller {
	return &MQTTRemoteCaller{
		root: system.Root,
		mqtt: actor.NewPID(system.Address(), fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT)),
	}
}

func (c *MQTTRemoteCaller) Call(peer, method string, args any, done func([]byte, error)) {
	c.root.Send(c.mqtt, domain.RemoteCallRequest{
		Peer:   peer,
		Method: method,
		Args:   args,
		Done:   done,
	})
}

var _ port.RemoteCaller = (*MQTTRemoteCaller)(nil)
