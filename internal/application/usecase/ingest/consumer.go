package ingest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
	"marketrelay/internal/domain/model"
	"marketrelay/internal/domain/orderbook"
	"marketrelay/internal/infrastructure/metrics"
)

// State is where a Consumer is in its connection lifecycle.
type State int32

const (
	Disconnected State = iota
	Subscribing
	Streaming
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Streaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Feed describes one upstream subscription.
type Feed struct {
	// Name labels logs and metrics, e.g. "trade" or "ohlc-60".
	Name      string
	Kind      model.Kind
	Interval  int
	Directive []byte
}

// ConsumerDeps wires a Consumer. Store is required for the book kind only;
// Encoder and Publisher are unused by it.
type ConsumerDeps struct {
	Feed      Feed
	Dialer    port.Dialer
	Decoder   port.FeedDecoder
	Encoder   port.Encoder
	Publisher port.Publisher
	Store     *orderbook.Store
}

// Consumer owns one subscription. It dials, sends the subscribe directive,
// then decodes every inbound frame until the stream fails, and starts over.
// Reconnect pacing is left to the Dialer.
type Consumer struct {
	deps  ConsumerDeps
	state atomic.Int32
	log   zerolog.Logger
}

func NewConsumer(deps ConsumerDeps) *Consumer {
	c := &Consumer{
		deps: deps,
		log:  log.With().Str("feed", deps.Feed.Name).Str("kind", string(deps.Feed.Kind)).Logger(),
	}
	c.setState(Disconnected)
	return c
}

func (c *Consumer) Name() string { return c.deps.Feed.Name }

func (c *Consumer) State() State { return State(c.state.Load()) }

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
	metrics.ConsumerState.WithLabelValues(c.deps.Feed.Name).Set(float64(s))
	c.log.Debug().Stringer("state", s).Msg("consumer state")
}

// Run returns nil once ctx is done. Transport failures are logged and never
// returned.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.setState(Disconnected)

	for {
		if ctx.Err() != nil {
			return nil
		}
		c.setState(Disconnected)

		stream, err := c.deps.Dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Msg("dial failed")
			continue
		}

		c.setState(Subscribing)
		if err := stream.Send(ctx, c.deps.Feed.Directive); err != nil {
			_ = stream.Close()
			c.disconnected(ctx, err)
			continue
		}
		c.log.Info().Msg("subscribed")

		c.setState(Streaming)
		err = c.stream(ctx, stream)
		_ = stream.Close()
		c.disconnected(ctx, err)
	}
}

func (c *Consumer) disconnected(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	metrics.ConsumerDisconnects.WithLabelValues(c.deps.Feed.Name).Inc()
	c.log.Error().Err(err).Msg("feed disconnected")
}

func (c *Consumer) stream(ctx context.Context, s port.Stream) error {
	for {
		raw, err := s.Receive(ctx)
		if err != nil {
			return err
		}
		c.handle(ctx, raw)
	}
}

// handle decodes one frame. Nothing it meets is fatal to the stream.
func (c *Consumer) handle(ctx context.Context, raw []byte) {
	if c.deps.Feed.Kind == model.KindBook {
		c.applyBook(raw)
		return
	}

	topic, rec, err := c.decode(raw)
	if !c.accepted(raw, err) {
		return
	}

	payload, err := c.deps.Encoder.Encode(rec)
	if err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("encode failed")
		return
	}
	if err := c.deps.Publisher.Publish(ctx, topic, payload); err != nil {
		if ctx.Err() == nil {
			c.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		}
		return
	}
	c.log.Trace().Str("topic", topic).Msg("record published")
}

func (c *Consumer) decode(raw []byte) (string, model.Record, error) {
	d := c.deps.Decoder
	switch c.deps.Feed.Kind {
	case model.KindTicker:
		return widen[model.Ticker](d.DecodeTicker(raw))
	case model.KindSpread:
		return widen[model.Spread](d.DecodeSpread(raw))
	case model.KindOHLC:
		return widen[model.Candle](d.DecodeCandle(raw, c.deps.Feed.Interval))
	case model.KindTrade:
		return widen[model.Trade](d.DecodeTrade(raw))
	default:
		return "", nil, model.ErrNotDataMessage
	}
}

func widen[R model.Record](topic string, rec R, err error) (string, model.Record, error) {
	if err != nil {
		return "", nil, err
	}
	return topic, rec, nil
}

// accepted counts the decode result and reports whether a record came out.
func (c *Consumer) accepted(raw []byte, err error) bool {
	name := c.deps.Feed.Name
	switch {
	case err == nil:
		metrics.FeedMessages.WithLabelValues(name, metrics.ResultRecord).Inc()
		return true
	case errors.Is(err, model.ErrNotDataMessage):
		metrics.FeedMessages.WithLabelValues(name, metrics.ResultControl).Inc()
		c.log.Trace().Bytes("raw", raw).Msg("control frame")
	default:
		metrics.FeedMessages.WithLabelValues(name, metrics.ResultMalformed).Inc()
		c.log.Warn().Err(err).Bytes("raw", raw).Msg("dropping malformed frame")
	}
	return false
}

// applyBook merges a book frame into the store. Book state stays local.
func (c *Consumer) applyBook(raw []byte) {
	u, err := c.deps.Decoder.DecodeBookUpdate(raw)
	if !c.accepted(raw, err) {
		return
	}

	for _, le := range orderbook.LevelErrors(c.deps.Store.Apply(u)) {
		metrics.BookLevelErrors.WithLabelValues(le.Pair).Inc()
		c.log.Warn().Err(le).Str("pair", le.Pair).Msg("skipping book level")
	}

	for _, side := range []model.BookSide{model.Ask, model.Bid} {
		metrics.BookLevels.WithLabelValues(u.Pair, side.String()).Set(float64(c.deps.Store.Len(u.Pair, side)))
	}

	if e := c.log.Debug(); e.Enabled() {
		if bid, ask, ok := c.deps.Store.Top(u.Pair); ok {
			e.Str("pair", u.Pair).Bool("snapshot", u.Snapshot).
				Str("bid", bid.Price).Str("ask", ask.Price).Msg("book updated")
		} else {
			e.Discard()
		}
	}
}
