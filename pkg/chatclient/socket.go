package chatclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// ErrForcedDisconnect is returned by Run when the server closed the session
// with a force_disconnect event.
var ErrForcedDisconnect = errors.New("chatclient: disconnected by server")

// Socket keeps a websocket open to the server and feeds new_message pushes
// into a Hub. Dropped connections are re-dialled with capped exponential
// backoff; OnReconnect fires after every successful re-dial so callers can
// re-fetch what they missed.
type Socket struct {
	url    string
	token  func() string
	hub    *Hub
	dialer *websocket.Dialer

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	mu          sync.Mutex
	onReconnect func()
	onOnline    func([]int64)
}

func NewSocket(url string, token func() string, hub *Hub) *Socket {
	return &Socket{
		url:            url,
		token:          token,
		hub:            hub,
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

func (s *Socket) OnReconnect(fn func()) {
	s.mu.Lock()
	s.onReconnect = fn
	s.mu.Unlock()
}

// OnOnlineUsers receives every online_users broadcast.
func (s *Socket) OnOnlineUsers(fn func([]int64)) {
	s.mu.Lock()
	s.onOnline = fn
	s.mu.Unlock()
}

func (s *Socket) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialBackoff
	b.MaxInterval = s.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run connects and reads until ctx is done, the server rejects the token,
// or the server forces a disconnect.
func (s *Socket) Run(ctx context.Context) error {
	b := s.newBackoff()
	connectedBefore := false

	for {
		conn, resp, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return errors.WithMessage(domain.ErrUnauthorized, "websocket handshake rejected")
			}
			wait := b.NextBackOff()
			jww.DEBUG.Printf("[CLIENT] Dial failed: %v, retrying in %s", err, wait)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		b.Reset()
		if connectedBefore {
			s.mu.Lock()
			fn := s.onReconnect
			s.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
		connectedBefore = true

		err = s.read(ctx, conn)
		if errors.Is(err, ErrForcedDisconnect) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		jww.DEBUG.Printf("[CLIENT] Connection lost: %v", err)
		if !sleep(ctx, b.NextBackOff()) {
			return ctx.Err()
		}
	}
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	if token := s.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return s.dialer.DialContext(ctx, s.url, header)
}

func (s *Socket) read(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		var event domain.ServerMessage
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}

		switch event.Type {
		case domain.EventNewMessage:
			if event.Message != nil {
				s.hub.Dispatch(*event.Message)
			}
		case domain.EventOnlineUsers:
			s.mu.Lock()
			fn := s.onOnline
			s.mu.Unlock()
			if fn != nil {
				fn(event.OnlineUsers)
			}
		case domain.EventDisconnect:
			return errors.WithMessage(ErrForcedDisconnect, event.Error)
		case domain.EventError:
			jww.WARN.Printf("[CLIENT] Server error: %s", event.Error)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
