package composite

import (
	"context"
	"errors"
	"strings"

	"marketrelay/internal/application/port"
)

// Transport sends every message to each of its transports in turn.
type Transport struct {
	transports []port.BusTransport
}

func New(transports ...port.BusTransport) *Transport {
	// nil transports are allowed; filter in constructor
	out := make([]port.BusTransport, 0, len(transports))
	for _, t := range transports {
		if t != nil {
			out = append(out, t)
		}
	}
	return &Transport{transports: out}
}

func (c *Transport) Name() string {
	names := make([]string, 0, len(c.transports))
	for _, t := range c.transports {
		names = append(names, t.Name())
	}
	return strings.Join(names, "+")
}

// Send tries every transport and returns the first error. A failure on one
// does not stop delivery to the others.
func (c *Transport) Send(ctx context.Context, topic string, payload []byte) error {
	var firstErr error
	for _, t := range c.transports {
		if err := t.Send(ctx, topic, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Subscribe uses the first transport that supports subscriptions.
func (c *Transport) Subscribe(ctx context.Context, topics ...string) (<-chan port.Message, error) {
	for _, t := range c.transports {
		if s, ok := t.(port.BusSubscriber); ok {
			return s.Subscribe(ctx, topics...)
		}
	}
	return nil, errors.New("no transport supports subscribe")
}

func (c *Transport) Close() error {
	var errs []error
	for _, t := range c.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ port.BusTransport  = (*Transport)(nil)
	_ port.BusSubscriber = (*Transport)(nil)
)
