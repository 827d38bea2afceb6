package kraken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"marketrelay/internal/application/port"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
	writeTimeout = 5 * time.Second
	dialTimeout  = 10 * time.Second
)

// Dialer opens websocket streams to the feed. It owns reconnect pacing:
// every Dial after the first waits out an exponential backoff, and a failed
// dial is retried until it succeeds or ctx is done.
type Dialer struct {
	wsURL string
	feed  string

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	PingInterval   time.Duration

	mu      sync.Mutex
	backoff time.Duration
	dialed  bool
}

// NewDialer returns a Dialer for wsURL. feed names the caller in logs.
func NewDialer(wsURL, feed string) *Dialer {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultWsURL
	}
	return &Dialer{
		wsURL:          wsURL,
		feed:           feed,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		PingInterval:   pingInterval,
	}
}

func (d *Dialer) Dial(ctx context.Context) (port.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.backoff <= 0 {
		d.backoff = d.InitialBackoff
	}
	wait := d.dialed

	for {
		if wait {
			if err := sleep(ctx, d.backoff); err != nil {
				return nil, err
			}
			d.backoff = minDur(d.backoff*2, d.MaxBackoff)
		}
		wait = true

		log.Warn().Str("feed", d.feed).Str("url", d.wsURL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, _, err := websocket.DefaultDialer.DialContext(cctx, d.wsURL, nil)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error().Str("feed", d.feed).Err(err).Msg("ws dial failed")
			continue
		}

		d.dialed = true
		d.backoff = d.InitialBackoff
		log.Info().Str("feed", d.feed).Msg("ws connected")
		return newStream(conn, d.PingInterval), nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// stream adapts a websocket connection to port.Stream. One goroutine reads
// frames and another sends pings; Send is for a single caller.
type stream struct {
	conn *websocket.Conn

	msgs chan []byte
	errc chan error
	done chan struct{}

	closeOnce sync.Once
}

func newStream(conn *websocket.Conn, ping time.Duration) *stream {
	if ping <= 0 {
		ping = pingInterval
	}
	s := &stream{
		conn: conn,
		msgs: make(chan []byte, 256),
		errc: make(chan error, 1),
		done: make(chan struct{}),
	}

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go s.readLoop()
	go s.pingLoop(ping)
	return s
}

func (s *stream) readLoop() {
	for {
		_, b, err := s.conn.ReadMessage()
		if err != nil {
			s.errc <- err
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		select {
		case s.msgs <- b:
		case <-s.done:
			return
		}
	}
}

func (s *stream) pingLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			_ = s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout))
		}
	}
}

func (s *stream) Send(ctx context.Context, msg []byte) error {
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: send: %v", port.ErrTransport, err)
	}
	return nil
}

func (s *stream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case b := <-s.msgs:
		return b, nil
	case err := <-s.errc:
		s.errc <- err
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			err = errors.New("closed by peer")
		}
		return nil, fmt.Errorf("%w: receive: %v", port.ErrTransport, err)
	}
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
