package kraken

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketrelay/internal/domain/model"
)

// ErrUnsupportedInterval rejects ohlc subscriptions outside 1, 60 and 1440.
var ErrUnsupportedInterval = errors.New("unsupported ohlc interval")

// DefaultWsURL is the public market-data endpoint.
const DefaultWsURL = "wss://ws.kraken.com/"

// Subscription is one channel subscription for a set of pairs. Interval is
// only meaningful for ohlc.
type Subscription struct {
	Kind     model.Kind
	Interval int
	Pairs    []string
}

// NewSubscription validates kind and interval and upper-cases the pairs.
func NewSubscription(kind model.Kind, interval int, pairs []string) (Subscription, error) {
	switch kind {
	case model.KindTicker, model.KindSpread, model.KindTrade, model.KindBook:
		interval = 0
	case model.KindOHLC:
		if _, ok := model.FrequencyForInterval(interval); !ok {
			return Subscription{}, fmt.Errorf("%w: %d", ErrUnsupportedInterval, interval)
		}
	default:
		return Subscription{}, fmt.Errorf("unknown channel %q", kind)
	}

	up := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			up = append(up, p)
		}
	}
	if len(up) == 0 {
		return Subscription{}, errors.New("subscription has no pairs")
	}
	return Subscription{Kind: kind, Interval: interval, Pairs: up}, nil
}

// Name identifies the subscription in logs and metrics, e.g. "ohlc-60".
func (s Subscription) Name() string {
	if s.Kind == model.KindOHLC {
		return fmt.Sprintf("%s-%d", s.Kind, s.Interval)
	}
	return string(s.Kind)
}

type subscribeRequest struct {
	Event        string          `json:"event"`
	Subscription subscriptionArg `json:"subscription"`
	Pair         []string        `json:"pair"`
}

type subscriptionArg struct {
	Name     string `json:"name"`
	Interval int    `json:"interval,omitempty"`
}

// Directive is the subscribe message sent once the stream is open.
func (s Subscription) Directive() ([]byte, error) {
	return json.Marshal(subscribeRequest{
		Event:        "subscribe",
		Subscription: subscriptionArg{Name: string(s.Kind), Interval: s.Interval},
		Pair:         s.Pairs,
	})
}
