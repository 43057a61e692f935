package ws3000

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// Command is the tag byte that selects which record the console returns.
type Command byte

const (
	CMD_SENSOR_VALUES                Command = 0x03
	CMD_DEVICE_CONFIGURATION         Command = 0x04
	CMD_CALIBRATION_VALUES           Command = 0x05
	CMD_UNKNOWN                      Command = 0x06
	CMD_TEMP_ALARM_CONFIGURATION     Command = 0x08
	CMD_HUMIDITY_ALARM_CONFIGURATION Command = 0x09
	CMD_SYNC_TIME                    Command = 0x30
	CMD_INTERVAL_VALUE               Command = 0x41
)

const (
	// FrameSize is the size of every USB report exchanged with the console.
	FrameSize = 64

	frameStart byte = 0x7b
	frameEnd0  byte = 0x40
	frameEnd1  byte = 0x7d

	syncTimeParamsLength = 8
)

var (
	ErrFrame            = errors.New("ws3000: frame error")
	ErrWrongLength      = fmt.Errorf("%w: wrong length", ErrFrame)
	ErrChecksumMismatch = fmt.Errorf("%w: marker mismatch", ErrFrame)
	ErrUnknownCommand   = fmt.Errorf("%w: unknown command", ErrFrame)
)

var commandNames = map[Command]string{
	CMD_SENSOR_VALUES:                "sensor_values",
	CMD_DEVICE_CONFIGURATION:         "device_configuration",
	CMD_CALIBRATION_VALUES:           "calibration_values",
	CMD_UNKNOWN:                      "unknown",
	CMD_TEMP_ALARM_CONFIGURATION:     "temp_alarm_configuration",
	CMD_HUMIDITY_ALARM_CONFIGURATION: "humidity_alarm_configuration",
	CMD_SYNC_TIME:                    "synctime",
	CMD_INTERVAL_VALUE:               "interval_value",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(c))
}

// Known reports whether the console understands the command tag.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) paramsLength() int {
	if c == CMD_SYNC_TIME {
		return syncTimeParamsLength
	}
	return 0
}

// EncodeCommand builds the request frame for a parameterless command.
func EncodeCommand(cmd Command) ([]byte, error) {
	if !cmd.Known() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	if cmd.paramsLength() > 0 {
		return nil, fmt.Errorf("%w: %s requires parameters", ErrUnknownCommand, cmd)
	}
	return encodeFrame(cmd, nil), nil
}

// EncodeSyncTime builds the request that sets the console clock. The timezone
// byte is the local UTC offset in whole hours.
func EncodeSyncTime(t time.Time) []byte {
	_, offset := t.Zone()
	params := []byte{
		byte(t.Year() >> 8),
		byte(t.Year()),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
		byte(int8(offset / 3600)),
	}
	return encodeFrame(CMD_SYNC_TIME, params)
}

func encodeFrame(cmd Command, params []byte) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = frameStart
	frame[1] = byte(cmd)
	n := copy(frame[2:], params)
	frame[2+n] = frameEnd0
	frame[3+n] = frameEnd1
	return frame
}

// DecodeCommand parses a request frame and returns its command tag, the
// inverse of EncodeCommand in the echo round trip. The simulated console
// uses it on what the reader wrote. Responses carry no tag, DecodeFrame
// reads those.
func DecodeCommand(frame []byte) (Command, error) {
	if len(frame) != FrameSize {
		return 0, fmt.Errorf("%w: request has %d bytes, want %d", ErrWrongLength, len(frame), FrameSize)
	}
	if frame[0] != frameStart {
		return 0, fmt.Errorf("%w: bad first byte 0x%02x", ErrChecksumMismatch, frame[0])
	}
	cmd := Command(frame[1])
	if !cmd.Known() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
	end := 2 + cmd.paramsLength()
	if frame[end] != frameEnd0 || frame[end+1] != frameEnd1 {
		return 0, fmt.Errorf("%w: no terminator after %s", ErrChecksumMismatch, cmd)
	}
	return cmd, nil
}

// DecodeFrame validates a console response against the layout of the expected
// command and extracts its fields.
func DecodeFrame(frame []byte, expected Command) (*Record, error) {
	layout, ok := LayoutFor(expected)
	if !ok {
		return nil, fmt.Errorf("%w: no layout for %s", ErrUnknownCommand, expected)
	}
	if len(frame) != FrameSize {
		return nil, fmt.Errorf("%w: %s frame has %d bytes, want %d", ErrWrongLength, expected, len(frame), FrameSize)
	}
	if frame[0] != frameStart {
		return nil, fmt.Errorf("%w: bad first byte 0x%02x", ErrChecksumMismatch, frame[0])
	}
	// the console reuses its buffer, so bytes after the terminator are leftovers
	end := 1 + layout.PayloadLength
	if frame[end] != frameEnd0 || frame[end+1] != frameEnd1 {
		if idx := terminatorIndex(frame); idx >= 0 {
			return nil, fmt.Errorf("%w: %s payload has %d bytes, want %d", ErrWrongLength, expected, idx-1, layout.PayloadLength)
		}
		return nil, fmt.Errorf("%w: no terminator in %s frame", ErrChecksumMismatch, expected)
	}
	return layout.decode(frame[1:end]), nil
}

func terminatorIndex(frame []byte) int {
	idx := bytes.Index(frame[1:], []byte{frameEnd0, frameEnd1})
	if idx < 0 {
		return -1
	}
	return idx + 1
}

// Hex formats a frame for trace logs.
func Hex(buf []byte) string {
	return fmt.Sprintf("% x (len=%d)", buf, len(buf))
}
