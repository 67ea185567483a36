package domain

import "fmt"

// PowerLimiterRequest

type PowerLimiterRequest interface {
	ActorRequest
	PowerLimiterCommand() string
}

type PowerLimiterRequestMixIn struct {
	ActorRequestMixIn
}

func (r PowerLimiterRequestMixIn) PowerLimiterCommand() string {
	return fmt.Sprintf("%T", r)
}

// PowerLimiterResponse

type PowerLimiterResponse interface {
	ActorResponse
	PowerLimiterResponse() string
}

type PowerLimiterResponseMixIn struct {
	ActorResponse
}

func (r PowerLimiterResponseMixIn) PowerLimiterResponse() string {
	return fmt.Sprintf("%T", r)
}

// PowerLimiter commands

type PowerLimiterEnableRequest struct {
	PowerLimiterRequestMixIn
	Enable bool
}

type PowerLimiterEnableResponse struct {
	PowerLimiterResponseMixIn
	Changed bool
}

type PowerLimiterSetTargetConsumptionRequest struct {
	PowerLimiterRequestMixIn
	TargetConsumptionWatt float64
}

type PowerLimiterSetTargetConsumptionResponse struct {
	PowerLimiterResponseMixIn
	TargetConsumptionWatt float64
}

// ensure interface compliance
var _ PowerLimiterRequest = (*PowerLimiterEnableRequest)(nil)
