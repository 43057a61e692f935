package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"
)

var (
	ErrOutOfRange   = errors.New("value out of range")
	ErrUnitsUnknown = errors.New("unit system unknown")
)

const (
	HUMIDITY_MIN = 0.0
	HUMIDITY_MAX = 100.0
)

// InterpretConfig builds the station configuration of a session. A nil
// calibration record leaves every offset at zero.
func InterpretConfig(configRecord, calibrationRecord *ws3000.Record, model, version string) (domain.StationConfig, error) {
	cfg := domain.StationConfig{
		Model:   model,
		Version: version,
		ReadAt:  time.Now(),
	}
	if configRecord == nil || configRecord.Command != ws3000.CMD_DEVICE_CONFIGURATION {
		return cfg, fmt.Errorf("device configuration record expected: %w", ErrUnitsUnknown)
	}

	units, ok := configRecord.Lookup(ws3000.FIELD_UNITS, 0)
	if !ok {
		return cfg, ErrUnitsUnknown
	}
	switch units.Raw {
	case 0:
		cfg.Units = domain.UNITS_CELSIUS
	case ws3000.UNITS_FLAG_FAHRENHEIT:
		cfg.Units = domain.UNITS_FAHRENHEIT
	default:
		return cfg, fmt.Errorf("unit flag 0x%02x: %w", units.Raw, ErrUnitsUnknown)
	}

	if calibrationRecord != nil {
		for ch := 1; ch <= domain.MAX_CHANNEL; ch++ {
			if v, ok := calibrationRecord.Lookup(ws3000.FIELD_TEMPERATURE_OFFSET, ch); ok && !v.Absent {
				cfg.Calibration[ch-1].TemperatureOffset = v.Value
			}
			if v, ok := calibrationRecord.Lookup(ws3000.FIELD_HUMIDITY_OFFSET, ch); ok && !v.Absent {
				cfg.Calibration[ch-1].HumidityOffset = v.Value
			}
		}
	}
	return cfg, nil
}

// Interpret turns a decoded sensor_values record into a LiveReading.
// Temperatures stay in the station unit. Out of range humidities are
// dropped for this reading and reported as ErrOutOfRange, the returned
// reading is valid in any case.
func Interpret(cfg domain.StationConfig, liveRecord *ws3000.Record) (domain.LiveReading, error) {
	reading := domain.LiveReading{Units: cfg.Units}
	if liveRecord == nil || liveRecord.Command != ws3000.CMD_SENSOR_VALUES {
		return reading, fmt.Errorf("sensor values record expected: %w", ws3000.ErrUnknownCommand)
	}

	var errs []error
	for _, v := range liveRecord.Values {
		ch := v.Field.Channel
		if ch < 0 || ch >= domain.CHANNEL_SLOTS || v.Absent {
			continue
		}
		slot := &reading.Channels[ch]
		switch v.Field.Kind {
		case ws3000.FIELD_TEMPERATURE:
			slot.Temperature = v.Value
			slot.HasTemperature = true
		case ws3000.FIELD_HUMIDITY:
			if v.Value < HUMIDITY_MIN || v.Value > HUMIDITY_MAX {
				errs = append(errs, fmt.Errorf("channel %d humidity %.1f: %w", ch, v.Value, ErrOutOfRange))
				continue
			}
			slot.Humidity = v.Value
			slot.HasHumidity = true
		}
	}
	return reading, errors.Join(errs...)
}
