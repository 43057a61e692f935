package domain

import (
	"time"

	"github.com/berfenger/ws3000mqtt/pkg/ws3000"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_STATION      = "station"
	ACTOR_ID_POLLER       = "poller"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// Station actor

type ReadStationConfigRequest struct {
	ActorRequestMixIn
}

type ReadStationConfigResponse struct {
	ActorResponseMixIn
	Model         string
	Configuration *ws3000.Record
	// Calibration is nil when the console did not answer the calibration read
	Calibration *ws3000.Record
}

type ReadSensorValuesRequest struct {
	ActorRequestMixIn
}

type ReadSensorValuesResponse struct {
	ActorResponseMixIn
	SensorValues *ws3000.Record
	ReadAt       time.Time
}

type SyncTimeRequest struct {
	ActorRequestMixIn
	Time time.Time
}

type SyncTimeResponse struct {
	ActorResponseMixIn
}

// MQTT actor

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishStateRequest struct {
	ActorRequestMixIn
	Payloads []StatePayload
}

// SubscribeRetainedDiscoveryRequest asks for the discovery configs retained on
// the broker for the station device. Each one comes back as RetainedDiscovery.
type SubscribeRetainedDiscoveryRequest struct {
	ActorRequestMixIn
}

type RetainedDiscovery struct {
	Sensor GenericSensor
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
	// Removed descriptors are cleared from the broker
	Removed []GenericSensor
}

// Poller actor

type GetTopologyRequest struct {
	ActorRequestMixIn
}

type GetTopologyResponse struct {
	ActorResponseMixIn
	Topology Topology
	Config   *StationConfig
	// Settled is set once the debounce window has been filled
	Settled bool
}

// Health

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
