package svc

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
	"marketrelay/internal/application/relay"
	"marketrelay/internal/application/usecase/ingest"
	"marketrelay/internal/domain/model"
	"marketrelay/internal/domain/orderbook"
	"marketrelay/internal/infrastructure/bus"
	_ "marketrelay/internal/infrastructure/bus/kafka"
	_ "marketrelay/internal/infrastructure/bus/memory"
	_ "marketrelay/internal/infrastructure/bus/redis"
	"marketrelay/internal/infrastructure/codec"
	"marketrelay/internal/infrastructure/config"
	"marketrelay/internal/infrastructure/exchange/kraken"
)

// ServiceContext builds and owns every long-lived component of the relay
// process.
type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	transport port.BusTransport
	relay     *relay.Relay
	store     *orderbook.Store
	decoder   kraken.Decoder
	feeds     []ingest.Feed

	closerChain []func() error
}

func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		closerChain: make([]func() error, 0),
	}
	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents resolves feeds before touching the network so a bad
// subscription fails before any connection is attempted.
func (sc *ServiceContext) initializeComponents() error {
	loc, err := sc.Config.Location()
	if err != nil {
		return err
	}
	sc.decoder = kraken.Decoder{Location: loc}

	feeds, err := BuildFeeds(sc.Config)
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		return ErrNoFeedsEnabled
	}
	sc.feeds = feeds

	transport, err := bus.Open(sc.Config.Bus)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBusInitFailed, err)
	}
	sc.transport = transport
	sc.closerChain = append(sc.closerChain, transport.Close)

	sc.relay = relay.New(transport, sc.Config.Relay.QueueSize)
	sc.store = orderbook.NewStore(sc.Config.Feed.BookDepth)

	log.Info().
		Int("feeds", len(feeds)).
		Str("transport", transport.Name()).
		Str("timezone", loc.String()).
		Msg("components initialized")
	return nil
}

// BuildFeeds expands the feed section into one subscription per kind, with
// one ohlc subscription per interval.
func BuildFeeds(cfg *config.Config) ([]ingest.Feed, error) {
	var feeds []ingest.Feed
	for _, k := range cfg.Feed.Kinds {
		kind := model.Kind(k)
		intervals := []int{0}
		if kind == model.KindOHLC {
			intervals = cfg.Feed.OHLCIntervals
		}
		for _, iv := range intervals {
			sub, err := kraken.NewSubscription(kind, iv, cfg.Feed.Pairs)
			if err != nil {
				return nil, err
			}
			directive, err := sub.Directive()
			if err != nil {
				return nil, err
			}
			feeds = append(feeds, ingest.Feed{
				Name:      sub.Name(),
				Kind:      kind,
				Interval:  sub.Interval,
				Directive: directive,
			})
		}
	}
	return feeds, nil
}

// BuildIngestServiceDeps gives each feed its own websocket dialer.
func (sc *ServiceContext) BuildIngestServiceDeps() ingest.ServiceDeps {
	return ingest.ServiceDeps{
		Feeds: sc.feeds,
		DialerFor: func(f ingest.Feed) port.Dialer {
			return kraken.NewDialer(sc.Config.Feed.WsURL, f.Name)
		},
		Decoder: sc.decoder,
		Encoder: codec.Proto{},
		Sink:    sc.relay,
		Store:   sc.store,
	}
}

func (sc *ServiceContext) Store() *orderbook.Store { return sc.store }

func (sc *ServiceContext) Transport() port.BusTransport { return sc.transport }

// Close releases resources in reverse order of creation.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}

// OpenSubscriber opens the configured bus for reading.
func OpenSubscriber(cfg config.BusConfig) (port.BusSubscriber, func() error, error) {
	transport, err := bus.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrBusInitFailed, err)
	}
	sub, ok := transport.(port.BusSubscriber)
	if !ok {
		_ = transport.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotSubscribable, transport.Name())
	}
	return sub, transport.Close, nil
}
