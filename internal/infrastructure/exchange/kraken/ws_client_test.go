package kraken

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketrelay/internal/application/port"
)

type wsServer struct {
	url      string
	attempts atomic.Int32
}

// newWSServer answers the first reject handshakes with 503 and hands every
// later connection to handle.
func newWSServer(t *testing.T, reject int32, handle func(*websocket.Conn)) *wsServer {
	t.Helper()
	s := &wsServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.attempts.Add(1) <= reject {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var up websocket.Upgrader
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	s.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return s
}

// drain reads until the client goes away so control frames get handled.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestStreamSendReceiveAndPeerClose(t *testing.T) {
	got := make(chan string, 1)
	release := make(chan struct{})
	srv := newWSServer(t, 0, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- string(msg)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"heartbeat"}`))
		<-release
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewDialer(srv.url, "test").Dial(ctx)
	require.NoError(t, err)
	defer s.Close()

	directive := `{"event":"subscribe","subscription":{"name":"trade"},"pair":["XBT/USD"]}`
	require.NoError(t, s.Send(ctx, []byte(directive)))
	select {
	case msg := <-got:
		assert.Equal(t, directive, msg)
	case <-ctx.Done():
		t.Fatal("server never got the directive")
	}

	frame, err := s.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"event":"heartbeat"}`, string(frame))

	close(release)
	_, err = s.Receive(ctx)
	assert.ErrorIs(t, err, port.ErrTransport)
	assert.Contains(t, err.Error(), "closed by peer")

	// the failure is sticky
	_, err = s.Receive(ctx)
	assert.ErrorIs(t, err, port.ErrTransport)
}

func TestDialBacksOffBeforeReconnecting(t *testing.T) {
	srv := newWSServer(t, 0, drain)
	d := NewDialer(srv.url, "test")
	d.InitialBackoff = 150 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	first, err := d.Dial(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), d.InitialBackoff, "first dial does not wait")
	require.NoError(t, first.Close())
	assert.NoError(t, first.Close())

	start = time.Now()
	second, err := d.Dial(ctx)
	require.NoError(t, err)
	defer second.Close()
	assert.GreaterOrEqual(t, time.Since(start), d.InitialBackoff)
	assert.Equal(t, int32(2), srv.attempts.Load())
}

func TestDialRetriesFailedHandshake(t *testing.T) {
	srv := newWSServer(t, 2, drain)
	d := NewDialer(srv.url, "test")
	d.InitialBackoff = 40 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	s, err := d.Dial(ctx)
	require.NoError(t, err)
	defer s.Close()

	// 40ms then 80ms
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
	assert.Equal(t, int32(3), srv.attempts.Load())
}

func TestDialStopsWhenContextEnds(t *testing.T) {
	srv := newWSServer(t, 1<<30, drain)
	d := NewDialer(srv.url, "test")
	d.InitialBackoff = 10 * time.Millisecond
	d.MaxBackoff = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := d.Dial(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, srv.attempts.Load(), int32(1))
}

func TestStreamSendsPings(t *testing.T) {
	pings := make(chan struct{}, 1)
	srv := newWSServer(t, 0, func(conn *websocket.Conn) {
		conn.SetPingHandler(func(string) error {
			select {
			case pings <- struct{}{}:
			default:
			}
			return nil
		})
		drain(conn)
	})
	d := NewDialer(srv.url, "test")
	d.PingInterval = 20 * time.Millisecond

	s, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer s.Close()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping within 2s")
	}
}

func TestReceiveReturnsWhenContextEnds(t *testing.T) {
	srv := newWSServer(t, 0, drain)
	s, err := NewDialer(srv.url, "test").Dial(context.Background())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Receive(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
