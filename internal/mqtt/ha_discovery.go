package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	ValueTemplate     string            `json:"value_template,omitempty"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
	ExpireAfter       uint              `json:"expire_after,omitempty"`
	Precision         *uint             `json:"suggested_display_precision,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func (c *MQTTClient) HADiscoverySensorTopic(sensor domain.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.discoveryTopic(), sensor.SensorType, sensor.Device.Id, sensor.Id)
}

// HADiscoveryDeviceFilter matches every config of one device and type.
func (c *MQTTClient) HADiscoveryDeviceFilter(sensorType, deviceId string) string {
	return fmt.Sprintf("%s/%s/%s/+/config", c.discoveryTopic(), sensorType, deviceId)
}

// ParseHADiscoveryMessage rebuilds the identity of a retained discovery
// config, enough to clear it again. Empty payloads are deletions and report
// false.
func ParseHADiscoveryMessage(topic string, payload []byte) (domain.GenericSensor, bool) {
	parts := strings.Split(topic, "/")
	n := len(parts)
	if len(payload) == 0 || n < 5 || parts[n-1] != "config" {
		return domain.GenericSensor{}, false
	}
	var cfg HADiscoveryConfig
	if err := json.Unmarshal(payload, &cfg); err != nil || cfg.UniqueId == "" {
		return domain.GenericSensor{}, false
	}
	return domain.GenericSensor{
		Device:     domain.Device{Id: parts[n-3]},
		Id:         parts[n-2],
		SensorType: parts[n-4],
		Name:       cfg.Name,
		UniqueId:   cfg.UniqueId,
	}, true
}

func GenericSensorToHADiscoveryMessage(client *MQTTClient, sensor domain.GenericSensor) HADiscoveryConfig {
	dev := device(sensor.Device)
	var topic string
	switch {
	case sensor.Id == domain.SENSOR_ID_BRIDGE_STATE:
		topic = client.BridgeStateTopic()
	default:
		stateId := sensor.StateId
		if stateId == "" {
			stateId = sensor.Id
		}
		topic = client.SensorStateTopic(stateId)
	}
	disConfig := HADiscoveryConfig{
		Device:            dev,
		StateTopic:        topic,
		ValueTemplate:     sensor.ValueTemplate,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           client.BridgeStateTopic(),
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		ExpireAfter:       sensor.ExpireAfter,
		Precision:         sensor.Precision,
		Platform:          "mqtt",
	}
	if sensor.Id == domain.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
		// the bridge state is its own availability
		disConfig.AvTopic = ""
	}
	return disConfig
}

// HADiscoveryClearMessages are the retained empty payloads that make the hub
// drop the given entities.
func (c *MQTTClient) HADiscoveryClearMessages(removed []domain.GenericSensor) []domain.PublishMessageRequest {
	msgs := make([]domain.PublishMessageRequest, 0, len(removed))
	for _, s := range removed {
		msgs = append(msgs, domain.PublishMessageRequest{
			Topic:   c.HADiscoverySensorTopic(s),
			Payload: "",
			Retain:  true,
		})
	}
	return msgs
}

func (c *MQTTClient) BridgeStateMessage(payload string) domain.PublishMessageRequest {
	return domain.PublishMessageRequest{
		Topic:   c.BridgeStateTopic(),
		Payload: payload,
		Retain:  true,
	}
}

// StatePayloadToMessage renders the JSON object read by the value templates
// of a channel, {"humidity":45,"temperature":21.5}.
func StatePayloadToMessage(payload domain.StatePayload) ([]byte, error) {
	values := make(map[domain.Measurement]float64, len(payload.Values))
	for _, v := range payload.Values {
		values[v.Measurement] = v.Value
	}
	return json.Marshal(values)
}

func device(d domain.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
