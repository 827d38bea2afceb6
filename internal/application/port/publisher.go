package port

import (
	"context"

	"marketrelay/internal/domain/model"
)

// Publisher accepts encoded records for fan-out under a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Encoder serializes a normalized record into the bus wire schema.
type Encoder interface {
	Encode(rec model.Record) ([]byte, error)
}
