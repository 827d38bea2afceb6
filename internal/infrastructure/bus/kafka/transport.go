package kafka

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"marketrelay/internal/application/port"
)

// Transport carries every bus topic on one Kafka topic. The bus topic is the
// message key, so the hash balancer keeps each bus topic on one partition and
// in order.
type Transport struct {
	brokers     []string
	topic       string
	groupPrefix string
	writer      *kafka.Writer
}

// New returns a transport writing to topic. Subscribers join consumer groups
// named after groupPrefix.
func New(brokers []string, topic, groupPrefix string) *Transport {
	return &Transport{
		brokers:     brokers,
		topic:       topic,
		groupPrefix: groupPrefix,
		// Send is called once per record by a single writer, so a batch is
		// one message and is flushed at once.
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchSize:    1,
			BatchTimeout: time.Millisecond,
		},
	}
}

func (t *Transport) Name() string { return "kafka" }

func (t *Transport) Send(ctx context.Context, topic string, payload []byte) error {
	return t.writer.WriteMessages(ctx, kafka.Message{Key: []byte(topic), Value: payload})
}

// Subscribe joins a consumer group of its own, so every subscriber sees every
// partition. A fresh group has no committed offset and starts at the newest
// one, which keeps the feed live across restarts. Messages whose key is not
// one of topics are skipped.
func (t *Transport) Subscribe(ctx context.Context, topics ...string) (<-chan port.Message, error) {
	if len(topics) == 0 {
		return nil, errors.New("kafka subscribe: no topics")
	}
	want := make(map[string]struct{}, len(topics))
	for _, tp := range topics {
		want[tp] = struct{}{}
	}

	group := groupName(t.groupPrefix)
	log.Debug().Str("topic", t.topic).Str("group", group).Msg("kafka subscribing")
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     t.brokers,
		Topic:       t.topic,
		GroupID:     group,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	out := make(chan port.Message, 256)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Str("topic", t.topic).Msg("kafka read failed")
				return
			}
			key := string(msg.Key)
			if _, ok := want[key]; !ok {
				continue
			}
			select {
			case out <- port.Message{Topic: key, Payload: msg.Value}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func groupName(prefix string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%s-%d-%s", prefix, host, os.Getpid(), uuid.NewString()[:8])
}

func (t *Transport) Close() error {
	log.Info().Msg("closing kafka writer")
	return t.writer.Close()
}

var (
	_ port.BusTransport  = (*Transport)(nil)
	_ port.BusSubscriber = (*Transport)(nil)
)
