package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
)

// Transport publishes each bus topic as a Redis pub/sub channel of the same
// name. Redis drops messages for channels nobody is subscribed to.
type Transport struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Transport {
	return &Transport{rdb: rdb}
}

// Dial connects and pings the server.
func Dial(ctx context.Context, addr, password string, db int) (*Transport, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Str("addr", addr).Int("db", db).Msg("redis connected")
	return New(rdb), nil
}

func (t *Transport) Name() string { return "redis" }

func (t *Transport) Send(ctx context.Context, topic string, payload []byte) error {
	return t.rdb.Publish(ctx, topic, payload).Err()
}

func (t *Transport) Subscribe(ctx context.Context, topics ...string) (<-chan port.Message, error) {
	ps := t.rdb.Subscribe(ctx, topics...)
	// wait for the subscription confirmation so no publish after return is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan port.Message, 256)
	in := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- port.Message{Topic: m.Channel, Payload: []byte(m.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (t *Transport) Close() error {
	log.Info().Msg("closing redis connection")
	return t.rdb.Close()
}

var (
	_ port.BusTransport  = (*Transport)(nil)
	_ port.BusSubscriber = (*Transport)(nil)
)
