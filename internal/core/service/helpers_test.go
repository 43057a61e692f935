package service

import (
	"github.com/berfenger/ws3000mqtt/internal/core/domain"
	"github.com/berfenger/ws3000mqtt/pkg/ws3000"
)

type rawChannel struct {
	temp uint16
	hum  uint16
}

// sensorRecord decodes a console frame where channels not listed are absent
func sensorRecord(channels map[int]rawChannel) *ws3000.Record {
	l, _ := ws3000.LayoutFor(ws3000.CMD_SENSOR_VALUES)
	frame := l.Encode(func(f ws3000.Field) uint16 {
		c, ok := channels[f.Channel]
		switch {
		case f.Kind == ws3000.FIELD_TEMPERATURE && ok:
			return c.temp
		case f.Kind == ws3000.FIELD_HUMIDITY && ok:
			return c.hum
		case f.Kind == ws3000.FIELD_TEMPERATURE:
			return ws3000.TEMPERATURE_ABSENT
		}
		return ws3000.HUMIDITY_ABSENT
	}, nil)
	rec, err := ws3000.DecodeFrame(frame, ws3000.CMD_SENSOR_VALUES)
	if err != nil {
		panic(err)
	}
	return rec
}

func configRecord(fahrenheit bool) *ws3000.Record {
	l, _ := ws3000.LayoutFor(ws3000.CMD_DEVICE_CONFIGURATION)
	frame := l.Encode(func(f ws3000.Field) uint16 {
		if f.Kind == ws3000.FIELD_UNITS && fahrenheit {
			return ws3000.UNITS_FLAG_FAHRENHEIT
		}
		return 0
	}, nil)
	rec, err := ws3000.DecodeFrame(frame, ws3000.CMD_DEVICE_CONFIGURATION)
	if err != nil {
		panic(err)
	}
	return rec
}

func celsius() domain.StationConfig {
	return domain.StationConfig{Units: domain.UNITS_CELSIUS}
}

// reading builds a LiveReading with both measurements present on channels
func reading(channels ...int) domain.LiveReading {
	r := domain.LiveReading{Units: domain.UNITS_CELSIUS}
	for _, ch := range channels {
		r.Channels[ch] = domain.ChannelReading{
			Temperature: 20 + float64(ch), HasTemperature: true,
			Humidity: 40 + float64(ch), HasHumidity: true,
		}
	}
	return r
}
