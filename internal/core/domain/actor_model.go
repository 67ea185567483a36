package domain

import "sunwarden2mqtt/pkg/hoymiles_modbus"

const (
	ACTOR_ID_MASTER        = "master"
	ACTOR_ID_DTU           = "dtu"
	ACTOR_ID_MQTT          = "mqtt"
	ACTOR_ID_BATTERY_GUARD = "battery_guard"
	ACTOR_ID_POWER_LIMITER = "power_limiter"
	ACTOR_ID_HA_DISCOVERY  = "hadiscovery"
)

type GetDeviceInfoRequest struct {
	ActorRequestMixIn
}

type GetDeviceInfoResponse struct {
	ActorResponseMixIn
	DTU *hoymiles_modbus.DTUInfo
}

type GetInverterFeedRequest struct {
	ActorRequestMixIn
}

type GetInverterFeedResponse struct {
	ActorResponseMixIn
	Feed *hoymiles_modbus.InverterFeed
}

// SendInverterCommandRequest issues start/stop and a non-persistent
// absolute power limit in one batch, in that order.
type SendInverterCommandRequest struct {
	ActorRequestMixIn
	Start     bool
	Stop      bool
	SetLimit  bool
	LimitWatt uint16
}

type SendInverterCommandResponse struct {
	ActorResponseMixIn
}

// Telemetry routed from the MQTT adapter to the core actors.

type BatterySampleMessage struct {
	Sample BatterySample
}

type BatterySoCMessage struct {
	Reading BatterySoCReading
}

type PowerMeterMessage struct {
	Reading PowerMeterReading
}

type SolarChargerMessage struct {
	Reading SolarChargerReading
}

type GetBatteryStateRequest struct {
	ActorRequestMixIn
}

type GetBatteryStateResponse struct {
	ActorResponseMixIn
	OpenCircuitVoltage   float64
	OpenCircuitVoltageOk bool
	InternalResistance   float64
	InternalResistanceOk bool
	SoC                  BatterySoCReading
}

type GetBatteryReportRequest struct {
	ActorRequestMixIn
}

type GetBatteryReportResponse struct {
	ActorResponseMixIn
	Report BatteryGuardReport
}

type GetLimiterStateRequest struct {
	ActorRequestMixIn
}

type GetLimiterStateResponse struct {
	ActorResponseMixIn
	State              PowerLimiterState
	Enabled            bool
	DischargeEnabled   bool
	DirectFeedPercent  float64
	LastRequestedLimit int32
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

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
