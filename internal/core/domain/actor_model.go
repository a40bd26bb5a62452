package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_CONTROLLER   = "controller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// MeterReading is pushed by the meter feed. Power is the total grid power
// in watts, positive when importing.
type MeterReading struct {
	Timestamp int64 // unix millis
	Power     float64
}

type PriceUpdate struct {
	Entries []PriceEntry
	Error   error
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

// RemoteCallRequest asks the transport to invoke Method on the peer. Done is
// called from the transport goroutine with the raw result or an error.
type RemoteCallRequest struct {
	ActorRequestMixIn
	Peer   string
	Method string
	Args   any
	Done   func(result []byte, err error)
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
