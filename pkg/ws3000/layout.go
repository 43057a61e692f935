package ws3000

import (
	"encoding/binary"
)

// FieldKind says what a field of a console record measures.
type FieldKind int

const (
	FIELD_TEMPERATURE FieldKind = iota
	FIELD_HUMIDITY
	FIELD_TEMPERATURE_OFFSET
	FIELD_HUMIDITY_OFFSET
	FIELD_UNITS
)

const (
	// CHANNEL_COUNT is the number of remote sensor slots of the console.
	CHANNEL_COUNT = 8

	TEMPERATURE_ABSENT uint16 = 0x7fff
	HUMIDITY_ABSENT    uint16 = 0xff

	UNITS_FLAG_FAHRENHEIT = 1
)

// Field describes one fixed-offset value inside a record payload.
type Field struct {
	Kind        FieldKind
	Channel     int // 0 for station-wide fields
	Offset      int
	Width       int // 1 or 2 bytes
	Signed      bool
	Order       binary.ByteOrder
	Divisor     float64
	HasSentinel bool
	Sentinel    uint16
}

// Layout is the payload description of one response record.
type Layout struct {
	Command       Command
	PayloadLength int
	Fields        []Field
}

var layouts = map[Command]Layout{
	CMD_SENSOR_VALUES: {
		Command:       CMD_SENSOR_VALUES,
		PayloadLength: 3 * CHANNEL_COUNT,
		Fields: channelFields(
			Field{Kind: FIELD_TEMPERATURE, Width: 2, Signed: true, Order: binary.BigEndian, Divisor: 10,
				HasSentinel: true, Sentinel: TEMPERATURE_ABSENT},
			Field{Kind: FIELD_HUMIDITY, Width: 1, Divisor: 1, HasSentinel: true, Sentinel: HUMIDITY_ABSENT},
		),
	},
	CMD_CALIBRATION_VALUES: {
		Command:       CMD_CALIBRATION_VALUES,
		PayloadLength: 3 * CHANNEL_COUNT,
		Fields: channelFields(
			Field{Kind: FIELD_TEMPERATURE_OFFSET, Width: 2, Signed: true, Order: binary.BigEndian, Divisor: 10},
			Field{Kind: FIELD_HUMIDITY_OFFSET, Width: 1, Signed: true, Divisor: 1},
		),
	},
	CMD_DEVICE_CONFIGURATION: {
		Command:       CMD_DEVICE_CONFIGURATION,
		PayloadLength: 27,
		Fields: []Field{
			{Kind: FIELD_UNITS, Offset: 7, Width: 1, Divisor: 1},
		},
	},
}

// channelFields lays out a temperature/humidity pair per channel: a 2 byte
// temperature followed by a 1 byte humidity, channel 1 first.
func channelFields(temp, hum Field) []Field {
	fields := make([]Field, 0, 2*CHANNEL_COUNT)
	for ch := 1; ch <= CHANNEL_COUNT; ch++ {
		base := (ch - 1) * 3
		t := temp
		t.Channel = ch
		t.Offset = base
		h := hum
		h.Channel = ch
		h.Offset = base + 2
		fields = append(fields, t, h)
	}
	return fields
}

// LayoutFor returns the response layout of a command, if it has one.
func LayoutFor(cmd Command) (Layout, bool) {
	l, ok := layouts[cmd]
	return l, ok
}

func (l Layout) decode(payload []byte) *Record {
	rec := &Record{
		Command: l.Command,
		Values:  make([]FieldValue, 0, len(l.Fields)),
	}
	for _, f := range l.Fields {
		rec.Values = append(rec.Values, f.decode(payload))
	}
	return rec
}

// Encode renders a full response frame, taking each field's raw value from
// rawFn. Bytes of prev after the terminator are kept, like the console does
// with its reused buffer.
func (l Layout) Encode(rawFn func(Field) uint16, prev []byte) []byte {
	frame := make([]byte, FrameSize)
	copy(frame, prev)
	frame[0] = frameStart
	payload := frame[1 : 1+l.PayloadLength]
	for i := range payload {
		payload[i] = 0
	}
	for _, f := range l.Fields {
		f.put(payload, rawFn(f))
	}
	frame[1+l.PayloadLength] = frameEnd0
	frame[2+l.PayloadLength] = frameEnd1
	return frame
}

func (f Field) raw(payload []byte) uint16 {
	if f.Width == 1 {
		return uint16(payload[f.Offset])
	}
	return f.Order.Uint16(payload[f.Offset:])
}

func (f Field) put(payload []byte, raw uint16) {
	if f.Width == 1 {
		payload[f.Offset] = byte(raw)
		return
	}
	f.Order.PutUint16(payload[f.Offset:], raw)
}

func (f Field) decode(payload []byte) FieldValue {
	raw := f.raw(payload)
	if f.HasSentinel && raw == f.Sentinel {
		return FieldValue{Field: f, Raw: raw, Absent: true}
	}
	var n int64
	switch {
	case f.Signed && f.Width == 1:
		n = int64(int8(raw))
	case f.Signed:
		n = int64(int16(raw))
	default:
		n = int64(raw)
	}
	return FieldValue{Field: f, Raw: raw, Value: float64(n) / f.Divisor}
}

// RawValue converts a physical value back to the field's raw representation.
func (f Field) RawValue(value float64) uint16 {
	n := int64(roundHalfAway(value * f.Divisor))
	if f.Width == 1 {
		return uint16(uint8(n))
	}
	return uint16(n)
}

func roundHalfAway(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}
