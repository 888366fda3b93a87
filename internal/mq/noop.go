package mq

import (
	"context"
	"errors"
)

// ErrNoBackend is returned by Noop.Subscribe.
var ErrNoBackend = errors.New("no message bus configured")

// Noop is a Backend that discards published messages (used when no bus is
// configured).
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (Noop) Subscribe(context.Context, string, Handler) error {
	return ErrNoBackend
}

func (Noop) Close() error {
	return nil
}
