// Command marketsub subscribes to relay topics and logs every decoded record.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
	"marketrelay/internal/domain/model"
	"marketrelay/internal/infrastructure/codec"
	"marketrelay/internal/infrastructure/config"
	"marketrelay/internal/infrastructure/logger"
	"marketrelay/internal/infrastructure/svc"
	"marketrelay/internal/interfaces/console"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	topicsFlag := flag.String("topics", "", "comma separated topics, e.g. \"Trade - XBT/USD,OHLC - XBT/USD - Minute\"; "+
		"defaults to every ticker, spread, trade and configured ohlc topic for the configured pairs")
	pretty := flag.Bool("print", false, "print records as readable blocks on stdout instead of log lines")
	flag.Parse()

	_ = logger.Setup("info", "console")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	if err := logger.Setup(cfg.App.LogLevel, cfg.App.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("logger setup failed")
	}

	if cfg.Bus.InProcessOnly() {
		log.Warn().Msg("bus.transports is memory only; no relay process can reach this subscriber")
	}

	topics := splitTopics(*topicsFlag)
	if len(topics) == 0 {
		topics = defaultTopics(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, closeBus, err := svc.OpenSubscriber(cfg.Bus)
	if err != nil {
		log.Fatal().Err(err).Msg("open bus failed")
	}
	defer closeBus()

	msgs, err := sub.Subscribe(ctx, topics...)
	if err != nil {
		log.Fatal().Err(err).Msg("subscribe failed")
	}
	log.Info().Strs("topics", topics).Msg("marketsub listening")

	var sink port.RecordSink = logSink{}
	if *pretty {
		sink = console.NewSink()
	}

	var dec codec.Proto
	for m := range msgs {
		kind, ok := codec.KindForTopic(m.Topic)
		if !ok {
			log.Warn().Str("topic", m.Topic).Msg("unknown topic")
			continue
		}
		rec, err := dec.Decode(kind, m.Payload)
		if err != nil {
			log.Warn().Err(err).Str("topic", m.Topic).Msg("decode failed")
			continue
		}
		if err := sink.WriteRecord(m.Topic, rec); err != nil {
			log.Warn().Err(err).Str("topic", m.Topic).Msg("write failed")
		}
	}
	log.Info().Msg("marketsub stopped")
}

type logSink struct{}

func (logSink) WriteRecord(topic string, rec model.Record) error {
	log.Info().Str("topic", topic).Interface("record", rec).Msg("record")
	return nil
}

func splitTopics(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func defaultTopics(cfg *config.Config) []string {
	var out []string
	for _, pair := range cfg.Feed.Pairs {
		if cfg.HasKind(model.KindTicker) {
			out = append(out, model.TickerTopic(pair))
		}
		if cfg.HasKind(model.KindSpread) {
			out = append(out, model.SpreadTopic(pair))
		}
		if cfg.HasKind(model.KindTrade) {
			out = append(out, model.TradeTopic(pair))
		}
		if cfg.HasKind(model.KindOHLC) {
			for _, iv := range cfg.Feed.OHLCIntervals {
				if f, ok := model.FrequencyForInterval(iv); ok {
					out = append(out, model.CandleTopic(pair, f))
				}
			}
		}
	}
	return out
}
