package bus

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
	"marketrelay/internal/infrastructure/bus/composite"
	"marketrelay/internal/infrastructure/config"
)

// ErrUnknownTransport is returned by Open for names nobody registered.
var ErrUnknownTransport = errors.New("unknown bus transport")

// Factory builds a transport from the bus section of the config.
type Factory func(cfg config.BusConfig) (port.BusTransport, error)

// registry maps transport names to factories. Transport packages fill it from
// their init functions.
var registry = make(map[string]Factory)

func Register(name string, factory Factory) {
	if factory == nil {
		log.Warn().Str("transport", name).Msg("invalid bus transport factory")
		return
	}
	if _, exists := registry[name]; exists {
		log.Warn().Str("transport", name).Msg("bus transport factory already registered, overwriting")
	}
	registry[name] = factory
	log.Debug().Str("transport", name).Msg("bus transport factory registered")
}

func Get(name string) (Factory, bool) {
	factory, ok := registry[name]
	return factory, ok
}

// Names lists registered transports, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Open builds every transport named in cfg.Transports. More than one is
// wrapped in a composite that sends to all of them.
func Open(cfg config.BusConfig) (port.BusTransport, error) {
	var opened []port.BusTransport
	for _, name := range cfg.Transports {
		factory, ok := Get(name)
		if !ok {
			closeAll(opened)
			return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
		}
		t, err := factory(cfg)
		if err != nil {
			closeAll(opened)
			return nil, fmt.Errorf("open %s transport: %w", name, err)
		}
		opened = append(opened, t)
	}

	switch len(opened) {
	case 0:
		return nil, errors.New("no bus transports configured")
	case 1:
		return opened[0], nil
	default:
		return composite.New(opened...), nil
	}
}

func closeAll(ts []port.BusTransport) {
	for _, t := range ts {
		_ = t.Close()
	}
}
