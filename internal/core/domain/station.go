package domain

import (
	"fmt"
	"slices"
	"time"
)

type UnitSystem string

const (
	UNITS_UNKNOWN    UnitSystem = ""
	UNITS_CELSIUS    UnitSystem = "celsius"
	UNITS_FAHRENHEIT UnitSystem = "fahrenheit"
)

func (u UnitSystem) Known() bool {
	return u == UNITS_CELSIUS || u == UNITS_FAHRENHEIT
}

func (u UnitSystem) TemperatureUnit() string {
	switch u {
	case UNITS_CELSIUS:
		return "°C"
	case UNITS_FAHRENHEIT:
		return "°F"
	}
	return ""
}

type Measurement string

const (
	MEASUREMENT_TEMPERATURE Measurement = "temperature"
	MEASUREMENT_HUMIDITY    Measurement = "humidity"
)

// Measurements in publication order.
var Measurements = []Measurement{MEASUREMENT_TEMPERATURE, MEASUREMENT_HUMIDITY}

func (m Measurement) order() int {
	return slices.Index(Measurements, m)
}

const (
	CHANNEL_INDOOR = 0
	MAX_CHANNEL    = 8
	CHANNEL_SLOTS  = MAX_CHANNEL + 1
)

type ChannelCalibration struct {
	TemperatureOffset float64 `json:"temperature_offset"`
	HumidityOffset    float64 `json:"humidity_offset"`
}

// StationConfig is the console configuration as read in one session.
// Calibration[i] belongs to channel i+1.
type StationConfig struct {
	Units       UnitSystem                      `json:"units"`
	Calibration [MAX_CHANNEL]ChannelCalibration `json:"calibration"`
	Model       string                          `json:"model"`
	Version     string                          `json:"version"`
	ReadAt      time.Time                       `json:"read_at"`
}

type ChannelReading struct {
	Temperature    float64
	HasTemperature bool
	Humidity       float64
	HasHumidity    bool
}

func (c ChannelReading) Present() bool {
	return c.HasTemperature || c.HasHumidity
}

func (c ChannelReading) Has(m Measurement) bool {
	switch m {
	case MEASUREMENT_TEMPERATURE:
		return c.HasTemperature
	case MEASUREMENT_HUMIDITY:
		return c.HasHumidity
	}
	return false
}

func (c ChannelReading) Value(m Measurement) (float64, bool) {
	switch m {
	case MEASUREMENT_TEMPERATURE:
		return c.Temperature, c.HasTemperature
	case MEASUREMENT_HUMIDITY:
		return c.Humidity, c.HasHumidity
	}
	return 0, false
}

// LiveReading is one polling cycle. Channels is indexed by channel number,
// 0 being the indoor slot. It is a value type and safe to hand over.
type LiveReading struct {
	Units    UnitSystem
	Channels [CHANNEL_SLOTS]ChannelReading
	ReadAt   time.Time
}

func (r LiveReading) Channel(ch int) (ChannelReading, bool) {
	if ch < 0 || ch >= CHANNEL_SLOTS {
		return ChannelReading{}, false
	}
	return r.Channels[ch], r.Channels[ch].Present()
}

type ChannelMeasurement struct {
	Channel     int         `json:"channel"`
	Measurement Measurement `json:"measurement"`
}

func (c ChannelMeasurement) String() string {
	return fmt.Sprintf("ch%d/%s", c.Channel, c.Measurement)
}

func CompareChannelMeasurement(a, b ChannelMeasurement) int {
	if a.Channel != b.Channel {
		return a.Channel - b.Channel
	}
	return a.Measurement.order() - b.Measurement.order()
}

// Topology is the believed set of active channel measurements. Active is
// sorted by channel, then measurement.
type Topology struct {
	Units  UnitSystem           `json:"units"`
	Active []ChannelMeasurement `json:"active"`
}

func NewTopology(units UnitSystem, active []ChannelMeasurement) Topology {
	sorted := slices.Clone(active)
	slices.SortFunc(sorted, CompareChannelMeasurement)
	return Topology{Units: units, Active: slices.Compact(sorted)}
}

// Established reports whether the unit system is known. Without it no
// descriptor can be built.
func (t Topology) Established() bool {
	return t.Units.Known()
}

func (t Topology) Empty() bool {
	return len(t.Active) == 0
}

func (t Topology) Equal(o Topology) bool {
	return t.Units == o.Units && slices.Equal(t.Active, o.Active)
}

func (t Topology) IsActive(ch int, m Measurement) bool {
	return slices.Contains(t.Active, ChannelMeasurement{Channel: ch, Measurement: m})
}

// Channels lists the channels with at least one active measurement.
func (t Topology) Channels() []int {
	var chs []int
	for _, a := range t.Active {
		if len(chs) == 0 || chs[len(chs)-1] != a.Channel {
			chs = append(chs, a.Channel)
		}
	}
	return chs
}
