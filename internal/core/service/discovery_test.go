package service

import (
	"testing"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder() *DefaultDiscoveryBuilder {
	return NewDiscoveryBuilder(DiscoveryConfig{
		BaseTopic:   "ws3000",
		DeviceLabel: "WS-3000",
		StationId:   "ws3000",
		Model:       "WS3000",
		Version:     "0.3",
		ExpireAfter: 600,
	})
}

func uniqueIds(sensors []domain.GenericSensor) []string {
	ids := make([]string, 0, len(sensors))
	for _, s := range sensors {
		ids = append(ids, s.UniqueId)
	}
	return ids
}

func TestBuildDescriptors(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	b := testBuilder()
	sensors := b.Build(domain.NewTopology(domain.UNITS_CELSIUS, active(3, 1)))
	require.Len(sensors, 4)

	assert.Equal([]string{
		"uid_ws3000_temp_ch1", "uid_ws3000_hum_ch1",
		"uid_ws3000_temp_ch3", "uid_ws3000_hum_ch3",
	}, uniqueIds(sensors))

	temp := sensors[2]
	assert.Equal("temp_ch3", temp.Id)
	assert.Equal("WS-3000 Channel 3 Temperature", temp.Name)
	assert.Equal(domain.DEVICE_CLASS_TEMPERATURE, temp.DeviceClass)
	assert.Equal("°C", temp.UnitOfMeasurement)
	assert.Equal("ch3", temp.StateId)
	assert.Equal("{{ value_json.temperature }}", temp.ValueTemplate)
	assert.Equal(uint(600), temp.ExpireAfter)
	assert.Equal("ws3000", temp.Device.Id)
	assert.Equal(domain.BridgeDevice("ws3000").Id, temp.Device.ViaDevice)

	hum := sensors[3]
	assert.Equal(domain.DEVICE_CLASS_HUMIDITY, hum.DeviceClass)
	assert.Equal("%", hum.UnitOfMeasurement)
	assert.Equal("{{ value_json.humidity }}", hum.ValueTemplate)
}

func TestBuildFahrenheitUnit(t *testing.T) {

	sensors := testBuilder().Build(domain.NewTopology(domain.UNITS_FAHRENHEIT, active(2)))
	require.NotEmpty(t, sensors)
	assert.Equal(t, "°F", sensors[0].UnitOfMeasurement)
}

func TestBuildIndoorName(t *testing.T) {

	sensors := testBuilder().Build(domain.NewTopology(domain.UNITS_CELSIUS, active(domain.CHANNEL_INDOOR)))
	require.NotEmpty(t, sensors)
	assert.Equal(t, "WS-3000 Indoor Temperature", sensors[0].Name)
	assert.Equal(t, "uid_ws3000_temp_ch0", sensors[0].UniqueId)
}

func TestBuildIdempotent(t *testing.T) {

	topo := domain.NewTopology(domain.UNITS_CELSIUS, active(1, 2, 7))
	first := testBuilder().Build(topo)
	second := testBuilder().Build(topo)
	assert.Equal(t, uniqueIds(first), uniqueIds(second))
	assert.Equal(t, first, second)
}

func TestBuildNotEstablished(t *testing.T) {

	b := testBuilder()
	assert.Empty(t, b.Build(domain.NewTopology(domain.UNITS_UNKNOWN, active(1))))
	assert.Empty(t, b.Build(domain.NewTopology(domain.UNITS_CELSIUS, nil)))
	assert.Empty(t, b.BuildState(reading(1), domain.NewTopology(domain.UNITS_UNKNOWN, active(1))))
}

func TestBuildAbsentChannelHasNoDescriptor(t *testing.T) {

	rec := sensorRecord(map[int]rawChannel{1: {temp: 200, hum: 40}, 3: {temp: 215, hum: 50}})
	r, err := Interpret(celsius(), rec)
	require.NoError(t, err)

	d := NewTopologyDetector(3)
	d.SetUnits(domain.UNITS_CELSIUS)
	topo, _ := d.Observe(r)

	for _, s := range testBuilder().Build(topo) {
		assert.NotContains(t, s.UniqueId, "ch5")
	}
}

func TestBuildState(t *testing.T) {

	topo := domain.NewTopology(domain.UNITS_CELSIUS, active(1, 2, 3))
	r := reading(1, 3, 4)
	r.Channels[3].HasHumidity = false

	payloads := testBuilder().BuildState(r, topo)
	require.Len(t, payloads, 2)

	assert.Equal(t, "ch1", payloads[0].StateId)
	assert.Equal(t, []domain.MeasurementValue{
		{Measurement: domain.MEASUREMENT_TEMPERATURE, Value: 21},
		{Measurement: domain.MEASUREMENT_HUMIDITY, Value: 41},
	}, payloads[0].Values)

	assert.Equal(t, "ch3", payloads[1].StateId)
	assert.Equal(t, []domain.MeasurementValue{{Measurement: domain.MEASUREMENT_TEMPERATURE, Value: 23}}, payloads[1].Values)
}

func TestChannelRemoved(t *testing.T) {

	require := require.New(t)

	b := testBuilder()
	d := NewTopologyDetector(2)
	d.SetUnits(domain.UNITS_CELSIUS)

	topo, _ := d.Observe(reading(1, 2, 3))
	before := b.Build(topo)
	require.Len(before, 6)

	d.Observe(reading(1, 2))
	topo, changed := d.Observe(reading(1, 2))
	require.True(changed)

	after := b.Build(topo)
	removed := b.Removed(before, after)
	assert.Equal(t, []string{"uid_ws3000_temp_ch3", "uid_ws3000_hum_ch3"}, uniqueIds(removed))

	for _, p := range b.BuildState(reading(1, 2, 3), topo) {
		assert.NotEqual(t, "ch3", p.StateId, "no state for removed channel")
	}
	assert.Empty(t, b.Removed(after, after))
}

func TestBridgeSensors(t *testing.T) {

	sensors := testBuilder().BridgeSensors()
	require.Len(t, sensors, 1)
	assert.Equal(t, domain.SENSOR_ID_BRIDGE_STATE, sensors[0].Id)
	assert.Equal(t, domain.SENSOR_TYPE_BINARY, sensors[0].SensorType)
}
