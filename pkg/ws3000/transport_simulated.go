package ws3000

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type SimulatedChannel struct {
	Connected   bool
	Temperature float64
	Humidity    float64
	// NoHumidity models a temperature-only sensor
	NoHumidity bool
}

// SimulatedStation is the state served by a SimulatedTransport. Channels[0]
// is sensor channel 1.
type SimulatedStation struct {
	Fahrenheit  bool
	Channels    [CHANNEL_COUNT]SimulatedChannel
	Calibration [CHANNEL_COUNT]SimulatedChannel
	Clock       time.Time
}

// DefaultSimulatedStation has two connected channels.
func DefaultSimulatedStation() SimulatedStation {
	st := SimulatedStation{}
	st.Channels[0] = SimulatedChannel{Connected: true, Temperature: 21.5, Humidity: 45}
	st.Channels[1] = SimulatedChannel{Connected: true, Temperature: -3.2, Humidity: 88}
	return st
}

// SimulatedTransport emulates a console in memory. It answers requests the
// way the hardware does, including the reused response buffer.
type SimulatedTransport struct {
	mu       sync.Mutex
	station  SimulatedStation
	buffer   []byte
	pending  bool
	failNext int
	failOpen int
	closed   bool
	requests []Command
}

func NewSimulatedTransport(station SimulatedStation) *SimulatedTransport {
	return &SimulatedTransport{
		station: station,
		buffer:  make([]byte, FrameSize),
	}
}

// SimulatedOpener hands out the same simulated console on every open.
func SimulatedOpener(t *SimulatedTransport) TransportOpener {
	return func() (Transport, error) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.failOpen > 0 {
			t.failOpen--
			return nil, fmt.Errorf("%w: simulated device not found", ErrTransport)
		}
		t.closed = false
		return t, nil
	}
}

// Update changes the simulated station state.
func (t *SimulatedTransport) Update(fn func(*SimulatedStation)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.station)
}

// FailNext makes the next n exchanges fail with a transport error.
func (t *SimulatedTransport) FailNext(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = n
}

// FailOpen makes the next n opens fail, as if the console was unplugged.
func (t *SimulatedTransport) FailOpen(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failOpen = n
}

// Requests returns the commands received so far.
func (t *SimulatedTransport) Requests() []Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Command(nil), t.requests...)
}

func (t *SimulatedTransport) Station() SimulatedStation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.station
}

func (t *SimulatedTransport) Write(ctx context.Context, frame []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	if t.failNext > 0 {
		t.failNext--
		return 0, fmt.Errorf("%w: simulated failure", ErrTransport)
	}
	cmd, err := DecodeCommand(frame)
	if err != nil {
		return 0, transportError("simulated write", err)
	}
	t.requests = append(t.requests, cmd)

	if cmd == CMD_SYNC_TIME {
		p := frame[2:]
		year := int(p[0])<<8 | int(p[1])
		t.station.Clock = time.Date(year, time.Month(p[2]), int(p[3]), int(p[4]), int(p[5]), int(p[6]), 0,
			time.FixedZone("console", int(int8(p[7]))*3600))
		return len(frame), nil
	}

	layout, ok := LayoutFor(cmd)
	if !ok {
		// the console answers but nothing here can decode it
		t.buffer = encodeFrame(cmd, nil)
		t.pending = true
		return len(frame), nil
	}
	t.buffer = layout.Encode(t.rawValue, t.buffer)
	t.pending = true
	return len(frame), nil
}

func (t *SimulatedTransport) Read(ctx context.Context, buf []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	if !t.pending {
		return 0, fmt.Errorf("%w: read timeout", ErrTransport)
	}
	t.pending = false
	return copy(buf, t.buffer), nil
}

func (t *SimulatedTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pending = false
	return nil
}

func (t *SimulatedTransport) check(ctx context.Context) error {
	if t.closed {
		return fmt.Errorf("%w: device closed", ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return transportError("simulated exchange", err)
	}
	return nil
}

func (t *SimulatedTransport) rawValue(f Field) uint16 {
	if f.Kind == FIELD_UNITS {
		if t.station.Fahrenheit {
			return UNITS_FLAG_FAHRENHEIT
		}
		return 0
	}
	if f.Channel < 1 || f.Channel > CHANNEL_COUNT {
		return 0
	}
	ch := t.station.Channels[f.Channel-1]
	cal := t.station.Calibration[f.Channel-1]
	switch f.Kind {
	case FIELD_TEMPERATURE:
		if !ch.Connected {
			return TEMPERATURE_ABSENT
		}
		return f.RawValue(ch.Temperature)
	case FIELD_HUMIDITY:
		if !ch.Connected || ch.NoHumidity {
			return HUMIDITY_ABSENT
		}
		return f.RawValue(ch.Humidity)
	case FIELD_TEMPERATURE_OFFSET:
		return f.RawValue(cal.Temperature)
	case FIELD_HUMIDITY_OFFSET:
		return f.RawValue(cal.Humidity)
	}
	return 0
}
