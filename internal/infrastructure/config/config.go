package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"marketrelay/internal/domain/model"
	"marketrelay/internal/domain/orderbook"
	"marketrelay/internal/infrastructure/exchange/kraken"
)

// Transport names accepted in bus.transports.
const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportKafka  = "kafka"
)

// DefaultRedisAddr is used when bus.transports is left empty.
const DefaultRedisAddr = "127.0.0.1:6379"

type Config struct {
	App struct {
		LogLevel  string `toml:"log_level"`
		LogFormat string `toml:"log_format"` // console | json
		Timezone  string `toml:"timezone"`   // Local, UTC or an IANA name
	} `toml:"app"`

	Feed struct {
		WsURL         string   `toml:"ws_url"`
		Pairs         []string `toml:"pairs"`
		Kinds         []string `toml:"kinds"`
		OHLCIntervals []int    `toml:"ohlc_intervals"`
		BookDepth     int      `toml:"book_depth"`
	} `toml:"feed"`

	Relay struct {
		QueueSize int `toml:"queue_size"`
	} `toml:"relay"`

	Bus BusConfig `toml:"bus"`

	Metrics struct {
		Enabled    bool   `toml:"enabled"`
		ListenAddr string `toml:"listen_addr"`
	} `toml:"metrics"`
}

type BusConfig struct {
	Transports []string `toml:"transports"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Kafka struct {
		Brokers []string `toml:"brokers"`
		Topic   string   `toml:"topic"`
		// GroupPrefix starts every subscriber's consumer group name. Each
		// subscriber joins a group of its own.
		GroupPrefix string `toml:"group_prefix"`
	} `toml:"kafka"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Parse is Load for an in-memory document.
func Parse(doc string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(doc, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LogFormat == "" {
		cfg.App.LogFormat = "console"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "Local"
	}
	if strings.TrimSpace(cfg.Feed.WsURL) == "" {
		cfg.Feed.WsURL = kraken.DefaultWsURL
	}
	if len(cfg.Feed.Kinds) == 0 {
		for _, k := range model.Kinds {
			cfg.Feed.Kinds = append(cfg.Feed.Kinds, string(k))
		}
	}
	if len(cfg.Feed.OHLCIntervals) == 0 {
		cfg.Feed.OHLCIntervals = []int{1}
	}
	if cfg.Feed.BookDepth <= 0 {
		cfg.Feed.BookDepth = orderbook.DefaultDepth
	}
	if cfg.Relay.QueueSize <= 0 {
		cfg.Relay.QueueSize = 1024
	}
	if len(cfg.Bus.Transports) == 0 {
		cfg.Bus.Transports = []string{TransportRedis}
		if strings.TrimSpace(cfg.Bus.Redis.Addr) == "" {
			cfg.Bus.Redis.Addr = DefaultRedisAddr
		}
	}
	if cfg.Bus.Kafka.Topic == "" {
		cfg.Bus.Kafka.Topic = "marketrelay"
	}
	if cfg.Bus.Kafka.GroupPrefix == "" {
		cfg.Bus.Kafka.GroupPrefix = "marketsub"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9100"
	}
}

func validate(cfg *Config) error {
	cfg.Feed.Pairs = normalize(cfg.Feed.Pairs, strings.ToUpper)
	if len(cfg.Feed.Pairs) == 0 {
		return errors.New("feed.pairs is empty")
	}

	cfg.Feed.Kinds = normalize(cfg.Feed.Kinds, strings.ToLower)
	for _, k := range cfg.Feed.Kinds {
		if !known(model.Kind(k)) {
			return fmt.Errorf("feed.kinds: unknown kind %q", k)
		}
	}
	for _, iv := range cfg.Feed.OHLCIntervals {
		if _, ok := model.FrequencyForInterval(iv); !ok {
			return fmt.Errorf("feed.ohlc_intervals: %w: %d", kraken.ErrUnsupportedInterval, iv)
		}
	}

	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	switch cfg.App.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("app.log_format: unknown format %q", cfg.App.LogFormat)
	}

	cfg.Bus.Transports = normalize(cfg.Bus.Transports, strings.ToLower)
	for _, t := range cfg.Bus.Transports {
		switch t {
		case TransportMemory:
		case TransportRedis:
			if strings.TrimSpace(cfg.Bus.Redis.Addr) == "" {
				return errors.New("bus.redis.addr is empty but redis enabled")
			}
		case TransportKafka:
			if len(cfg.Bus.Kafka.Brokers) == 0 {
				return errors.New("bus.kafka.brokers is empty but kafka enabled")
			}
		default:
			return fmt.Errorf("bus.transports: unknown transport %q", t)
		}
	}
	return nil
}

// Location resolves app.timezone for timestamp normalization.
func (c *Config) Location() (*time.Location, error) {
	switch c.App.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	default:
		return time.LoadLocation(c.App.Timezone)
	}
}

// InProcessOnly reports whether memory is the only bus transport. Such a bus
// is invisible to any other process.
func (b BusConfig) InProcessOnly() bool {
	return len(b.Transports) == 1 && b.Transports[0] == TransportMemory
}

// HasKind reports whether kind is enabled in feed.kinds.
func (c *Config) HasKind(kind model.Kind) bool {
	for _, k := range c.Feed.Kinds {
		if model.Kind(k) == kind {
			return true
		}
	}
	return false
}

func known(k model.Kind) bool {
	for _, m := range model.Kinds {
		if m == k {
			return true
		}
	}
	return false
}

func normalize(in []string, fold func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := fold(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
