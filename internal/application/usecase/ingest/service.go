package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
	"marketrelay/internal/domain/model"
	"marketrelay/internal/domain/orderbook"
)

// ErrNoFeeds is returned by Run when nothing is configured to consume.
var ErrNoFeeds = errors.New("no feeds")

// Sink is the publisher side of the relay plus its writer loop.
type Sink interface {
	port.Publisher
	Run(ctx context.Context) error
}

type ServiceDeps struct {
	Feeds []Feed
	// DialerFor returns the upstream dialer for one feed. Each feed gets its own
	// connection and backoff.
	DialerFor func(Feed) port.Dialer
	Decoder   port.FeedDecoder
	Encoder   port.Encoder
	Sink      Sink
	Store     *orderbook.Store
}

// Service runs the relay writer and one Consumer per feed until ctx is done.
type Service struct {
	deps      ServiceDeps
	consumers []*Consumer
}

func NewService(deps ServiceDeps) *Service {
	s := &Service{deps: deps}
	for _, f := range deps.Feeds {
		s.consumers = append(s.consumers, NewConsumer(ConsumerDeps{
			Feed:      f,
			Dialer:    deps.DialerFor(f),
			Decoder:   deps.Decoder,
			Encoder:   deps.Encoder,
			Publisher: deps.Sink,
			Store:     deps.Store,
		}))
	}
	return s
}

func (s *Service) Consumers() []*Consumer { return s.consumers }

func (s *Service) Run(ctx context.Context) error {
	if len(s.consumers) == 0 {
		return ErrNoFeeds
	}
	for _, f := range s.deps.Feeds {
		if f.Kind == model.KindBook && s.deps.Store == nil {
			return errors.New("book feed without an order book store")
		}
	}

	var wg sync.WaitGroup
	sinkErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sinkErr <- s.deps.Sink.Run(ctx)
	}()

	for _, c := range s.consumers {
		wg.Add(1)
		go func(c *Consumer) {
			defer wg.Done()
			_ = c.Run(ctx)
			log.Info().Str("feed", c.Name()).Msg("feed stopped")
		}(c)
		log.Info().Str("feed", c.Name()).Msg("feed started")
	}

	wg.Wait()
	if err := <-sinkErr; err != nil {
		return err
	}
	return ctx.Err()
}
