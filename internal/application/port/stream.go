package port

import (
	"context"
	"errors"
)

// ErrTransport wraps connection drops and send failures on a Stream.
var ErrTransport = errors.New("transport error")

// Stream is one open upstream connection carrying text frames.
type Stream interface {
	Send(ctx context.Context, msg []byte) error
	// Receive blocks until the next frame arrives, ctx is done or the
	// connection fails.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens upstream streams. Reconnect pacing lives in the dialer, not in
// its callers.
type Dialer interface {
	Dial(ctx context.Context) (Stream, error)
}
