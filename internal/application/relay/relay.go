// Package relay funnels records from every feed consumer into the one bus
// transport. Producers enqueue on a shared channel; a single writer goroutine
// owns the transport, so it never sees concurrent Sends.
package relay

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
	"marketrelay/internal/infrastructure/metrics"
)

// DefaultQueueSize bounds the number of records waiting for the writer.
const DefaultQueueSize = 1024

// ErrClosed is returned by Publish once the writer has stopped.
var ErrClosed = errors.New("relay closed")

type envelope struct {
	topic   string
	payload []byte
}

type Relay struct {
	transport port.BusTransport
	queue     chan envelope
	done      chan struct{}
	running   atomic.Bool
}

func New(transport port.BusTransport, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Relay{
		transport: transport,
		queue:     make(chan envelope, queueSize),
		done:      make(chan struct{}),
	}
}

// Publish enqueues payload for delivery under topic. Calls from one goroutine
// are delivered in call order; calls from different goroutines interleave in
// no particular order. Publish blocks while the queue is full. The payload
// must not be modified after the call.
func (r *Relay) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	select {
	case r.queue <- envelope{topic: topic, payload: payload}:
		metrics.RelayQueueDepth.Inc()
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the single writer. It returns when ctx is done; records still queued
// at that point are dropped. Run may only be called once.
func (r *Relay) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("relay already running")
	}
	defer close(r.done)

	log.Info().Str("transport", r.transport.Name()).Int("queue", cap(r.queue)).Msg("relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("dropped", len(r.queue)).Msg("relay stopped")
			return nil
		case e := <-r.queue:
			metrics.RelayQueueDepth.Dec()
			if err := r.transport.Send(ctx, e.topic, e.payload); err != nil {
				metrics.RelayPublished.WithLabelValues("failed").Inc()
				log.Warn().Err(err).Str("topic", e.topic).Msg("bus send failed")
				continue
			}
			metrics.RelayPublished.WithLabelValues("sent").Inc()
		}
	}
}

var _ port.Publisher = (*Relay)(nil)
