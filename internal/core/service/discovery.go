package service

import (
	"fmt"
	"slices"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/internal/core/port"
)

const (
	TEMPERATURE_PRECISION = 1
	HUMIDITY_PRECISION    = 0
)

type DiscoveryConfig struct {
	BaseTopic   string
	DeviceLabel string
	StationId   string
	Model       string
	Version     string
	// ExpireAfter in seconds, 0 disables it
	ExpireAfter uint
}

type DefaultDiscoveryBuilder struct {
	cfg          DiscoveryConfig
	bridgeDevice domain.Device
}

func NewDiscoveryBuilder(cfg DiscoveryConfig) *DefaultDiscoveryBuilder {
	return &DefaultDiscoveryBuilder{
		cfg:          cfg,
		bridgeDevice: domain.BridgeDevice(cfg.BaseTopic),
	}
}

func (b *DefaultDiscoveryBuilder) Device() domain.Device {
	return domain.StationDevice(b.cfg.StationId, b.cfg.DeviceLabel, b.cfg.Model, b.cfg.Version, b.bridgeDevice.Id)
}

func (b *DefaultDiscoveryBuilder) BridgeSensors() []domain.GenericSensor {
	return domain.BridgeSensors(b.bridgeDevice)
}

// Build returns one descriptor per active pair, ordered by channel then
// measurement. An established but empty topology builds nothing.
func (b *DefaultDiscoveryBuilder) Build(topology domain.Topology) []domain.GenericSensor {
	if !topology.Established() {
		return nil
	}
	device := b.Device()
	sensors := make([]domain.GenericSensor, 0, len(topology.Active))
	for _, a := range topology.Active {
		sensors = append(sensors, b.sensor(device, topology.Units, a))
	}
	return sensors
}

func (b *DefaultDiscoveryBuilder) sensor(device domain.Device, units domain.UnitSystem, a domain.ChannelMeasurement) domain.GenericSensor {
	id := EntityId(a.Channel, a.Measurement)
	sensor := domain.GenericSensor{
		Device:        device,
		Id:            id,
		SensorType:    domain.SENSOR_TYPE_SENSOR,
		Name:          fmt.Sprintf("%s %s %s", b.cfg.DeviceLabel, channelName(a.Channel), measurementName(a.Measurement)),
		UniqueId:      domain.UniqueId(b.cfg.StationId, measurementTag(a.Measurement)+"_"+StateId(a.Channel)),
		StateClass:    domain.STATE_CLASS_MEASUREMENT,
		StateId:       StateId(a.Channel),
		ValueTemplate: fmt.Sprintf("{{ value_json.%s }}", a.Measurement),
		ExpireAfter:   b.cfg.ExpireAfter,
	}
	switch a.Measurement {
	case domain.MEASUREMENT_TEMPERATURE:
		sensor.DeviceClass = domain.DEVICE_CLASS_TEMPERATURE
		sensor.UnitOfMeasurement = units.TemperatureUnit()
		sensor.Precision = domain.OptionalUint(TEMPERATURE_PRECISION)
	case domain.MEASUREMENT_HUMIDITY:
		sensor.DeviceClass = domain.DEVICE_CLASS_HUMIDITY
		sensor.UnitOfMeasurement = domain.UNIT_PERCENT
		sensor.Icon = domain.ICON_HUMIDITY
		sensor.Precision = domain.OptionalUint(HUMIDITY_PRECISION)
	}
	return sensor
}

// BuildState returns one payload per active channel with at least one
// active measurement present in reading.
func (b *DefaultDiscoveryBuilder) BuildState(reading domain.LiveReading, topology domain.Topology) []domain.StatePayload {
	if !topology.Established() {
		return nil
	}
	var payloads []domain.StatePayload
	for _, ch := range topology.Channels() {
		c, ok := reading.Channel(ch)
		if !ok {
			continue
		}
		var values []domain.MeasurementValue
		for _, m := range domain.Measurements {
			if v, present := c.Value(m); present && topology.IsActive(ch, m) {
				values = append(values, domain.MeasurementValue{Measurement: m, Value: v})
			}
		}
		if len(values) > 0 {
			payloads = append(payloads, domain.StatePayload{StateId: StateId(ch), Values: values})
		}
	}
	return payloads
}

// Removed returns the descriptors of previous whose identity is not in current.
func (b *DefaultDiscoveryBuilder) Removed(previous, current []domain.GenericSensor) []domain.GenericSensor {
	var removed []domain.GenericSensor
	for _, p := range previous {
		if !slices.ContainsFunc(current, func(c domain.GenericSensor) bool { return c.UniqueId == p.UniqueId }) {
			removed = append(removed, p)
		}
	}
	return removed
}

func StateId(ch int) string {
	return fmt.Sprintf("ch%d", ch)
}

func EntityId(ch int, m domain.Measurement) string {
	return measurementTag(m) + "_" + StateId(ch)
}

func measurementTag(m domain.Measurement) string {
	if m == domain.MEASUREMENT_HUMIDITY {
		return "hum"
	}
	return "temp"
}

func measurementName(m domain.Measurement) string {
	if m == domain.MEASUREMENT_HUMIDITY {
		return "Humidity"
	}
	return "Temperature"
}

func channelName(ch int) string {
	if ch == domain.CHANNEL_INDOOR {
		return "Indoor"
	}
	return fmt.Sprintf("Channel %d", ch)
}

var _ port.DiscoveryBuilder = (*DefaultDiscoveryBuilder)(nil)
