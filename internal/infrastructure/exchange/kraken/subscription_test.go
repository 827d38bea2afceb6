package kraken

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketrelay/internal/domain/model"
)

func TestSubscriptionDirective(t *testing.T) {
	sub, err := NewSubscription(model.KindSpread, 5, []string{"xbt/usd", " eth/usd "})
	require.NoError(t, err)

	b, err := sub.Directive()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"subscribe","subscription":{"name":"spread"},"pair":["XBT/USD","ETH/USD"]}`, string(b))
	assert.Equal(t, "spread", sub.Name())
}

func TestSubscriptionDirectiveWithInterval(t *testing.T) {
	sub, err := NewSubscription(model.KindOHLC, 60, []string{"XBT/USD"})
	require.NoError(t, err)

	b, err := sub.Directive()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"subscribe","subscription":{"name":"ohlc","interval":60},"pair":["XBT/USD"]}`, string(b))
	assert.Equal(t, "ohlc-60", sub.Name())
}

func TestSubscriptionRejectsUnsupportedInterval(t *testing.T) {
	for _, interval := range []int{0, 5, 15, 30, 240, 10080, 21600} {
		_, err := NewSubscription(model.KindOHLC, interval, []string{"XBT/USD"})
		assert.ErrorIs(t, err, ErrUnsupportedInterval, interval)
	}
}

func TestSubscriptionRejectsEmptyPairsAndUnknownKind(t *testing.T) {
	_, err := NewSubscription(model.KindTrade, 0, []string{" ", ""})
	assert.Error(t, err)

	_, err = NewSubscription(model.Kind("ownTrades"), 0, []string{"XBT/USD"})
	assert.Error(t, err)
}
