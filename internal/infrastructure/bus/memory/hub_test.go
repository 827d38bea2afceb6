package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketrelay/internal/application/port"
)

func recv(t *testing.T, ch <-chan port.Message) port.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok, "channel closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
		return port.Message{}
	}
}

func TestHubDeliversExactTopicsOnly(t *testing.T) {
	h := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trades, err := h.Subscribe(ctx, "Trade - XBT/USD")
	require.NoError(t, err)
	both, err := h.Subscribe(ctx, "Trade - XBT/USD", "Spread - XBT/USD")
	require.NoError(t, err)

	require.NoError(t, h.Send(ctx, "Trade - XBT", []byte("prefix only")))
	require.NoError(t, h.Send(ctx, "Spread - XBT/USD", []byte("s")))
	require.NoError(t, h.Send(ctx, "Trade - XBT/USD", []byte("t")))

	assert.Equal(t, port.Message{Topic: "Trade - XBT/USD", Payload: []byte("t")}, recv(t, trades))
	assert.Equal(t, "s", string(recv(t, both).Payload))
	assert.Equal(t, "t", string(recv(t, both).Payload))
	assert.Empty(t, trades)
}

func TestHubDropsWithoutSubscriber(t *testing.T) {
	h := NewHub(1)
	require.NoError(t, h.Send(context.Background(), "Ticker - XBT/USD", []byte("x")))

	ch, err := h.Subscribe(context.Background(), "Ticker - XBT/USD")
	require.NoError(t, err)
	assert.Empty(t, ch, "earlier publish is not replayed")
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub(1)
	ch, err := h.Subscribe(context.Background(), "a")
	require.NoError(t, err)

	require.NoError(t, h.Send(context.Background(), "a", []byte("1")))
	require.NoError(t, h.Send(context.Background(), "a", []byte("2")))
	assert.Equal(t, "1", string(recv(t, ch).Payload))
	assert.Empty(t, ch)
}

func TestHubUnsubscribesOnCancel(t *testing.T) {
	h := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := h.Subscribe(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(1)
	ch, err := h.Subscribe(context.Background(), "a")
	require.NoError(t, err)
	require.NoError(t, h.Close())

	_, ok := <-ch
	assert.False(t, ok)

	late, err := h.Subscribe(context.Background(), "a")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}
