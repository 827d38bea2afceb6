package port

import "context"

// Message is one topic-addressed payload on the bus.
type Message struct {
	Topic   string
	Payload []byte
}

// BusTransport delivers payloads to every current subscriber of a topic.
// Implementations are not assumed safe for concurrent Send; the relay is
// their only writer.
type BusTransport interface {
	Name() string
	Send(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// BusSubscriber receives payloads for an exact set of topics. The channel is
// closed when ctx is done or the subscription fails.
type BusSubscriber interface {
	Subscribe(ctx context.Context, topics ...string) (<-chan Message, error)
}
