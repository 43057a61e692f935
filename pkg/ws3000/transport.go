package ws3000

import (
	"context"
	"errors"
	"fmt"
)

var ErrTransport = errors.New("ws3000: transport error")

// Transport moves raw frames to and from an already open console handle.
// Exchanges are not safe for concurrent use.
type Transport interface {
	Write(ctx context.Context, frame []byte) (int, error)
	Read(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// TransportOpener acquires a new console handle.
type TransportOpener func() (Transport, error)

func transportError(op string, err error) error {
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransport, op, err)
}
