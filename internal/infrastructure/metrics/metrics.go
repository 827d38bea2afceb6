package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Feed message results.
const (
	ResultRecord    = "record"
	ResultControl   = "control"
	ResultMalformed = "malformed"
)

var (
	FeedMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketrelay_feed_messages_total",
			Help: "Inbound feed frames by subscription and decode result",
		},
		[]string{"feed", "result"},
	)

	ConsumerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketrelay_consumer_state",
			Help: "Feed consumer state (0 disconnected, 1 subscribing, 2 streaming)",
		},
		[]string{"feed"},
	)

	ConsumerDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketrelay_consumer_disconnects_total",
			Help: "Transport errors that dropped a feed consumer back to disconnected",
		},
		[]string{"feed"},
	)

	BookLevelErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketrelay_book_level_errors_total",
			Help: "Order book records rejected as malformed",
		},
		[]string{"pair"},
	)

	BookLevels = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketrelay_book_levels",
			Help: "Price levels currently held per pair and side",
		},
		[]string{"pair", "side"},
	)

	RelayPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketrelay_relay_published_total",
			Help: "Records handed to the bus transport by result",
		},
		[]string{"result"},
	)

	RelayQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketrelay_relay_queue_depth",
			Help: "Records waiting for the relay writer",
		},
	)
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
