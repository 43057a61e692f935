package ws3000

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedReaderSensorValues(t *testing.T) {

	assert := assert.New(t)
	require := require.New(t)

	reader, sim := CreateTestStationReader()
	require.NoError(reader.Open())
	defer reader.Close()

	rec, err := reader.ReadSensorValues()
	require.NoError(err)

	temp, _ := rec.Lookup(FIELD_TEMPERATURE, 1)
	hum, _ := rec.Lookup(FIELD_HUMIDITY, 1)
	assert.Equal(21.5, temp.Value)
	assert.Equal(45.0, hum.Value)

	temp, _ = rec.Lookup(FIELD_TEMPERATURE, 2)
	assert.Equal(-3.2, temp.Value)

	temp, _ = rec.Lookup(FIELD_TEMPERATURE, 5)
	assert.True(temp.Absent)

	assert.Equal([]Command{CMD_SENSOR_VALUES}, sim.Requests())
}

func TestSimulatedReaderConfiguration(t *testing.T) {

	reader, sim := CreateTestStationReader()
	require.NoError(t, reader.Open())

	sim.Update(func(s *SimulatedStation) {
		s.Fahrenheit = true
		s.Calibration[2] = SimulatedChannel{Temperature: 0.5, Humidity: -3}
	})

	rec, err := reader.ReadDeviceConfiguration()
	require.NoError(t, err)
	units, _ := rec.Lookup(FIELD_UNITS, 0)
	assert.Equal(t, float64(UNITS_FLAG_FAHRENHEIT), units.Value)

	rec, err = reader.ReadCalibration()
	require.NoError(t, err)
	temp, _ := rec.Lookup(FIELD_TEMPERATURE_OFFSET, 3)
	hum, _ := rec.Lookup(FIELD_HUMIDITY_OFFSET, 3)
	assert.Equal(t, 0.5, temp.Value)
	assert.Equal(t, -3.0, hum.Value)
}

func TestReaderTransportFailure(t *testing.T) {

	reader, sim := CreateTestStationReader()
	require.NoError(t, reader.Open())

	sim.FailNext(1)
	_, err := reader.ReadSensorValues()
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrFrame)

	_, err = reader.ReadSensorValues()
	assert.NoError(t, err, "next exchange succeeds")

	require.NoError(t, reader.Close())
	_, err = reader.ReadSensorValues()
	assert.ErrorIs(t, err, ErrTransport, "closed reader")

	require.NoError(t, reader.Open())
	_, err = reader.ReadSensorValues()
	assert.NoError(t, err, "reopened reader")
}

func TestReaderSyncTime(t *testing.T) {

	reader, sim := CreateTestStationReader()
	require.NoError(t, reader.Open())

	ts := time.Date(2024, time.March, 3, 10, 20, 30, 0, time.FixedZone("cet", 3600))
	require.NoError(t, reader.SyncTime(ts))

	clock := sim.Station().Clock
	assert.True(t, ts.Equal(clock), "console clock is %s", clock)
}

func TestRecordTimer(t *testing.T) {

	var names []string
	inst := []Instrument{{RecordTime: func(fnName string, _ time.Duration) {
		names = append(names, fnName)
	}}}

	RecordTimer("sensor_values", inst)()
	RecordTimer("noop", nil)()

	assert.Equal(t, []string{"sensor_values"}, names)
}

func TestReaderOpenFailure(t *testing.T) {

	reader, sim := CreateTestStationReader()
	sim.FailOpen(1)

	err := reader.Open()
	assert.ErrorIs(t, err, ErrTransport)

	require.NoError(t, reader.Open())
	_, err = reader.ReadSensorValues()
	assert.NoError(t, err)
}
