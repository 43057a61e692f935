package service

import (
	"testing"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretConfig(t *testing.T) {

	cfg, err := InterpretConfig(configRecord(false), nil, "WS3000", "0.3")
	require.NoError(t, err)
	assert.Equal(t, domain.UNITS_CELSIUS, cfg.Units)
	assert.Equal(t, "WS3000", cfg.Model)

	cfg, err = InterpretConfig(configRecord(true), nil, "WS3000", "0.3")
	require.NoError(t, err)
	assert.Equal(t, domain.UNITS_FAHRENHEIT, cfg.Units)
}

func TestInterpretConfigCalibration(t *testing.T) {

	l, _ := ws3000.LayoutFor(ws3000.CMD_CALIBRATION_VALUES)
	frame := l.Encode(func(f ws3000.Field) uint16 {
		if f.Channel != 2 {
			return 0
		}
		if f.Kind == ws3000.FIELD_TEMPERATURE_OFFSET {
			return f.RawValue(-1.5)
		}
		return f.RawValue(4)
	}, nil)
	calib, err := ws3000.DecodeFrame(frame, ws3000.CMD_CALIBRATION_VALUES)
	require.NoError(t, err)

	cfg, err := InterpretConfig(configRecord(false), calib, "WS3000", "0.3")
	require.NoError(t, err)
	assert.Equal(t, -1.5, cfg.Calibration[1].TemperatureOffset)
	assert.Equal(t, 4.0, cfg.Calibration[1].HumidityOffset)
	assert.Zero(t, cfg.Calibration[0].TemperatureOffset)
}

func TestInterpretConfigUnknownUnits(t *testing.T) {

	_, err := InterpretConfig(nil, nil, "WS3000", "0.3")
	assert.ErrorIs(t, err, ErrUnitsUnknown)

	_, err = InterpretConfig(sensorRecord(nil), nil, "WS3000", "0.3")
	assert.ErrorIs(t, err, ErrUnitsUnknown, "wrong record kind")

	l, _ := ws3000.LayoutFor(ws3000.CMD_DEVICE_CONFIGURATION)
	frame := l.Encode(func(ws3000.Field) uint16 { return 7 }, nil)
	rec, err := ws3000.DecodeFrame(frame, ws3000.CMD_DEVICE_CONFIGURATION)
	require.NoError(t, err)
	cfg, err := InterpretConfig(rec, nil, "WS3000", "0.3")
	assert.ErrorIs(t, err, ErrUnitsUnknown)
	assert.False(t, cfg.Units.Known(), "no default unit system")
}

func TestInterpretScaledTemperature(t *testing.T) {

	rec := sensorRecord(map[int]rawChannel{3: {temp: 215, hum: 50}})
	r, err := Interpret(celsius(), rec)
	require.NoError(t, err)

	ch, ok := r.Channel(3)
	require.True(t, ok)
	assert.Equal(t, 21.5, ch.Temperature)
	assert.Equal(t, 50.0, ch.Humidity)
	assert.Equal(t, domain.UNITS_CELSIUS, r.Units)
}

func TestInterpretNegativeTemperature(t *testing.T) {

	rec := sensorRecord(map[int]rawChannel{1: {temp: uint16(0xffe0), hum: 80}})
	r, err := Interpret(celsius(), rec)
	require.NoError(t, err)
	assert.Equal(t, -3.2, r.Channels[1].Temperature)
}

func TestInterpretFahrenheitPassThrough(t *testing.T) {

	rec := sensorRecord(map[int]rawChannel{1: {temp: 720, hum: 30}})
	r, err := Interpret(domain.StationConfig{Units: domain.UNITS_FAHRENHEIT}, rec)
	require.NoError(t, err)
	assert.Equal(t, 72.0, r.Channels[1].Temperature, "never converted")
	assert.Equal(t, domain.UNITS_FAHRENHEIT, r.Units)
}

func TestInterpretSentinel(t *testing.T) {

	rec := sensorRecord(map[int]rawChannel{
		1: {temp: 200, hum: 40},
		2: {temp: ws3000.TEMPERATURE_ABSENT, hum: 55},
	})
	r, err := Interpret(celsius(), rec)
	require.NoError(t, err)

	_, ok := r.Channel(5)
	assert.False(t, ok, "channel 5 absent")
	for ch := 3; ch <= domain.MAX_CHANNEL; ch++ {
		assert.False(t, r.Channels[ch].Present(), "channel %d", ch)
	}

	ch2 := r.Channels[2]
	assert.False(t, ch2.HasTemperature)
	assert.True(t, ch2.HasHumidity)
	assert.Zero(t, ch2.Temperature, "sentinel never reported as a value")
}

func TestInterpretHumidityOutOfRange(t *testing.T) {

	rec := sensorRecord(map[int]rawChannel{
		4: {temp: 185, hum: 101},
		6: {temp: 100, hum: 60},
	})
	r, err := Interpret(celsius(), rec)
	assert.ErrorIs(t, err, ErrOutOfRange)

	ch4 := r.Channels[4]
	assert.False(t, ch4.HasHumidity)
	assert.True(t, ch4.HasTemperature)
	assert.Equal(t, 18.5, ch4.Temperature)
	assert.True(t, r.Channels[6].HasHumidity, "other channels unaffected")
}

func TestInterpretWrongRecord(t *testing.T) {

	_, err := Interpret(celsius(), configRecord(false))
	assert.ErrorIs(t, err, ws3000.ErrUnknownCommand)
}
