// Package memory is an in-process bus. It serves single-binary deployments
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

type subscriber struct {
	topics map[string]struct{}
	ch     chan port.Message
}

// Hub fans each message out to subscribers of its exact topic. A message with
// no subscriber is dropped, and so is one that finds a subscriber's buffer
// full; Send never blocks on a slow reader.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{buffer: buffer, subs: make(map[*subscriber]struct{})}
}

func (h *Hub) Name() string { return "memory" }

func (h *Hub) Send(_ context.Context, topic string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs {
		if _, ok := s.topics[topic]; !ok {
			continue
		}
		select {
		case s.ch <- port.Message{Topic: topic, Payload: payload}:
		default:
			log.Warn().Str("topic", topic).Msg("memory subscriber full, dropping message")
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, topics ...string) (<-chan port.Message, error) {
	s := &subscriber{
		topics: make(map[string]struct{}, len(topics)),
		ch:     make(chan port.Message, h.buffer),
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(s.ch)
		return s.ch, nil
	}
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(s)
	}()
	return s.ch, nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// Close ends every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.ch)
	}
	return nil
}

var (
	_ port.BusTransport  = (*Hub)(nil)
	_ port.BusSubscriber = (*Hub)(nil)
)
