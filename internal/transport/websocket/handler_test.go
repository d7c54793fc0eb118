package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/internal/service/delivery"
	"github.com/iamasit07/chat-app/backend/internal/service/presence"
	"github.com/iamasit07/chat-app/backend/pkg/auth"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]int64

func (s stubVerifier) Verify(_ context.Context, raw string) (*auth.Claims, error) {
	id, ok := s[raw]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	claims := &auth.Claims{UserID: id}
	claims.ID = raw
	return claims, nil
}

type testServer struct {
	url      string
	registry *presence.Registry
	handler  *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := presence.NewRegistry()
	h := NewHandler(reg, stubVerifier{"alice-token": 1, "bob-token": 2, "bob-laptop-token": 2}, nil, 16)
	h.initTimeout = time.Second

	router := gin.New()
	router.GET("/ws", h.HandleWebSocket)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		registry: reg,
		handler:  h,
	}
}

func (s *testServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if token != "" {
		header.Set("Cookie", "jwt="+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(s.url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg domain.ServerMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readUntil(t *testing.T, conn *websocket.Conn, eventType string) domain.ServerMessage {
	t.Helper()
	for {
		msg := readEvent(t, conn)
		if msg.Type == eventType {
			return msg
		}
	}
}

func TestCookieHandshakeRegistersAndReceivesPushes(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "bob-token")

	connected := readEvent(t, conn)
	require.Equal(t, domain.EventConnected, connected.Type)
	require.Equal(t, int64(2), connected.UserID)

	online := readEvent(t, conn)
	require.Equal(t, domain.EventOnlineUsers, online.Type)
	require.Equal(t, []int64{2}, online.OnlineUsers)
	require.True(t, s.registry.IsOnline(2))

	router := delivery.NewRouter(s.registry)
	require.Equal(t, 1, router.Route(&domain.Message{ID: 5, SenderID: 1, RecipientID: 2, Text: "hey"}))

	pushed := readUntil(t, conn, domain.EventNewMessage)
	require.Equal(t, int64(5), pushed.Message.ID)
	require.Equal(t, "hey", pushed.Message.Text)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !s.registry.IsOnline(2) }, 2*time.Second, 10*time.Millisecond)
}

func TestInvalidTokenIsRejectedBeforeUpgrade(t *testing.T) {
	s := newTestServer(t)
	header := http.Header{}
	header.Set("Cookie", "jwt=forged")

	_, resp, err := websocket.DefaultDialer.Dial(s.url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, s.registry.OnlineUsers())
}

func TestInitFrameHandshake(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "")

	require.NoError(t, conn.WriteJSON(domain.ClientMessage{Type: domain.FrameInit, JWT: "alice-token"}))
	connected := readEvent(t, conn)
	require.Equal(t, domain.EventConnected, connected.Type)
	require.Equal(t, int64(1), connected.UserID)

	require.NoError(t, conn.WriteJSON(domain.ClientMessage{Type: domain.FramePing}))
	readUntil(t, conn, domain.EventPong)

	require.NoError(t, conn.WriteJSON(domain.ClientMessage{Type: domain.FrameGetOnlineUsers}))
	online := readUntil(t, conn, domain.EventOnlineUsers)
	require.Equal(t, []int64{1}, online.OnlineUsers)
}

func TestInitFrameWithBadTokenIsClosed(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t, "")

	require.NoError(t, conn.WriteJSON(domain.ClientMessage{Type: domain.FrameInit, JWT: "forged"}))
	msg := readEvent(t, conn)
	require.Equal(t, domain.EventError, msg.Type)

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Empty(t, s.registry.OnlineUsers())
}

func TestMultipleDevicesAndSessionDisconnect(t *testing.T) {
	s := newTestServer(t)
	phone := s.dial(t, "bob-token")
	laptop := s.dial(t, "bob-laptop-token")
	readUntil(t, phone, domain.EventOnlineUsers)
	readUntil(t, laptop, domain.EventOnlineUsers)
	require.Len(t, s.registry.Lookup(2), 2)

	router := delivery.NewRouter(s.registry)
	require.Equal(t, 2, router.Route(&domain.Message{ID: 9, SenderID: 1, RecipientID: 2, Text: "both"}))
	require.Equal(t, int64(9), readUntil(t, phone, domain.EventNewMessage).Message.ID)
	require.Equal(t, int64(9), readUntil(t, laptop, domain.EventNewMessage).Message.ID)

	require.Zero(t, s.handler.DisconnectSession("", "nothing"))
	require.Zero(t, s.handler.DisconnectSession("unknown", "nothing"))

	require.Equal(t, 1, s.handler.DisconnectSession("bob-token", "Logged out"))
	require.Equal(t, "Logged out", readUntil(t, phone, domain.EventDisconnect).Error)
	require.Eventually(t, func() bool { return len(s.registry.Lookup(2)) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, router.Route(&domain.Message{ID: 10, SenderID: 1, RecipientID: 2, Text: "laptop only"}))
	require.Equal(t, int64(10), readUntil(t, laptop, domain.EventNewMessage).Message.ID)
}

func TestPushAfterCloseIsDropped(t *testing.T) {
	c := &Client{id: "x", send: make(chan domain.ServerMessage, 1), done: make(chan struct{})}
	require.NoError(t, c.Push(domain.ServerMessage{Type: domain.EventPong}))
	require.ErrorIs(t, c.Push(domain.ServerMessage{Type: domain.EventPong}), domain.ErrDeliveryDropped)

	c.Close("bye")
	c.Close("again")
	require.ErrorIs(t, c.Push(domain.ServerMessage{Type: domain.EventPong}), domain.ErrDeliveryDropped)
}

func TestPushRacingCloseIsNeverLost(t *testing.T) {
	for round := 0; round < 50; round++ {
		c := &Client{id: "x", send: make(chan domain.ServerMessage, 64), done: make(chan struct{})}

		var wg sync.WaitGroup
		var accepted int64
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if c.Push(domain.ServerMessage{Type: domain.EventPong}) == nil {
					atomic.AddInt64(&accepted, 1)
				}
			}()
		}
		c.Close("bye")

		queued := len(c.send)
		wg.Wait()
		require.Equal(t, int64(queued), atomic.LoadInt64(&accepted))
		require.ErrorIs(t, c.Push(domain.ServerMessage{Type: domain.EventPong}), domain.ErrDeliveryDropped)
	}
}
