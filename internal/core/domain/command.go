package domain

import "fmt"

// PowerCommandRequest is any request routed to the controller actor.

type PowerCommandRequest interface {
	ActorRequest
	PowerCommand() string
}

type PowerCommandRequestMixIn struct {
	ActorRequestMixIn
}

func (r PowerCommandRequestMixIn) PowerCommand() string {
	return fmt.Sprintf("%T", r)
}

// Power commands. Every mutating command answers with the resulting state.

type GetStateRequest struct {
	PowerCommandRequestMixIn
}

type SetStateRequest struct {
	PowerCommandRequestMixIn
	State PowerState
}

type PowerStateResponse struct {
	ActorResponseMixIn
	State        PowerState
	BatteryState BatteryState
}

type InChangeRequest struct {
	PowerCommandRequestMixIn
	Power float64
}

type OutChangeRequest struct {
	PowerCommandRequestMixIn
	Power float64
}

type ChangeResponse struct {
	ActorResponseMixIn
	Result ChangeResult
	// achieved delta
	Power float64
	// tracked power after the change
	Current float64
}

type ResetSOCRequest struct {
	PowerCommandRequestMixIn
}

type ResetSOCResponse struct {
	ActorResponseMixIn
	SOC          int
	BatteryState BatteryState
}

type OutEvaluateRequest struct {
	PowerCommandRequestMixIn
	Limit *float64
}

type OutEvaluateResponse struct {
	ActorResponseMixIn
	Enabled bool
	Price   float64
}

type OptimizeRequest struct {
	PowerCommandRequestMixIn
	Enable bool
}

type OptimizeResponse struct {
	ActorResponseMixIn
	Enabled bool
}

type SetInTargetRequest struct {
	PowerCommandRequestMixIn
	Target float64
}

type SetInTargetResponse struct {
	ActorResponseMixIn
	InTarget float64
}

type SetOptimizeTargetRequest struct {
	PowerCommandRequestMixIn
	Min float64
	Max float64
}

type SetOptimizeTargetResponse struct {
	ActorResponseMixIn
	Min float64
	Max float64
}

// UpdateOptimizeTargetRequest changes one or both bounds, a nil bound keeps
// its current value.
type UpdateOptimizeTargetRequest struct {
	PowerCommandRequestMixIn
	Min *float64
	Max *float64
}

type ResetCapacityRequest struct {
	PowerCommandRequestMixIn
}

type ResetCapacityResponse struct {
	ActorResponseMixIn
	CapacityIn  float64
	CapacityOut float64
}

type SetOutEnabledRequest struct {
	PowerCommandRequestMixIn
	Enable bool
}

type SetOutEnabledResponse struct {
	ActorResponseMixIn
	Enabled bool
}

// RefreshPricesRequest asks the controller to fetch market prices for the
// price window starting now.
type RefreshPricesRequest struct {
	PowerCommandRequestMixIn
}

type RefreshPricesResponse struct {
	ActorResponseMixIn
	Entries int
}

type GetStatusRequest struct {
	PowerCommandRequestMixIn
}

type GetStatusResponse struct {
	ActorResponseMixIn
	Status ControllerStatus
}

// ensure interface compliance
var _ PowerCommandRequest = (*SetStateRequest)(nil)
var _ PowerCommandRequest = (*OutEvaluateRequest)(nil)
var _ PowerCommandRequest = (*RefreshPricesRequest)(nil)
