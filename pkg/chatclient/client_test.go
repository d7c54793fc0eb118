package chatclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/internal/service/chat"
	"github.com/iamasit07/chat-app/backend/internal/service/delivery"
	"github.com/iamasit07/chat-app/backend/internal/service/presence"
	ws "github.com/iamasit07/chat-app/backend/internal/transport/websocket"
	"github.com/stretchr/testify/require"
)

type serverUsers struct{}

func (serverUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	if id != 1 && id != 2 {
		return nil, domain.ErrNotFound
	}
	return &domain.User{ID: id, FullName: "user " + strconv.FormatInt(id, 10)}, nil
}

func (serverUsers) ListExcept(context.Context, int64) ([]domain.User, error) {
	return nil, nil
}

type serverMessages struct {
	mu   sync.Mutex
	rows []domain.Message
}

func (s *serverMessages) Append(_ context.Context, m *domain.Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = int64(len(s.rows) + 1)
	m.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, *m)
	return nil
}

func (s *serverMessages) History(_ context.Context, a, b int64) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, 0)
	for _, m := range s.rows {
		if m.Between(a, b) {
			out = append(out, m)
		}
	}
	return out, nil
}

type chatServer struct {
	url       string
	registry  *presence.Registry
	chat      *chat.Service
	accepting atomic.Bool
}

// startFullServer serves the websocket and message endpoints on top of the
// real chat service. Dials are refused with 503 while accepting is false.
func startFullServer(t *testing.T) *chatServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := tokenVerifier{"alice-token": 1, "bob-token": 2}
	s := &chatServer{registry: presence.NewRegistry()}
	s.chat = chat.NewService(serverUsers{}, &serverMessages{}, delivery.NewRouter(s.registry), nil)
	s.accepting.Store(true)
	wsHandler := ws.NewHandler(s.registry, tokens, nil, 16)

	caller := func(c *gin.Context) (int64, bool) {
		id, ok := tokens[strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")]
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - No Token provided"})
		}
		return id, ok
	}

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if !s.accepting.Load() {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		wsHandler.HandleWebSocket(c)
	})
	r.GET("/api/messages/:id", func(c *gin.Context) {
		me, ok := caller(c)
		if !ok {
			return
		}
		peer, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		history, err := s.chat.History(c.Request.Context(), me, peer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, history)
	})
	r.POST("/api/messages/send/:id", func(c *gin.Context) {
		me, ok := caller(c)
		if !ok {
			return
		}
		var req SendRequest
		_ = c.ShouldBindJSON(&req)
		peer, _ := strconv.ParseInt(c.Param("id"), 10, 64)
		msg, err := s.chat.Send(c.Request.Context(), me, peer, chat.SendInput{Text: req.Text, ClientID: req.ClientID})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, msg)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	s.url = srv.URL
	return s
}

func texts(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
}

func TestClientResyncsConversationAfterReconnect(t *testing.T) {
	srv := startFullServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := srv.chat.Send(ctx, 1, 2, chat.SendInput{Text: "first"})
	require.NoError(t, err)

	api, err := NewAPI(srv.url)
	require.NoError(t, err)
	api.SetToken("bob-token")
	bob := NewClient(api, 2)
	bob.Socket.InitialBackoff = 20 * time.Millisecond
	bob.Socket.MaxBackoff = 50 * time.Millisecond

	require.NoError(t, bob.Conversation.SelectPeer(ctx, 1))
	require.Equal(t, []string{"first"}, texts(bob.Conversation.Snapshot().Entries))

	go func() { _ = bob.Run(ctx) }()
	require.Eventually(t, func() bool { return srv.registry.IsOnline(2) }, 2*time.Second, 10*time.Millisecond)

	_, err = srv.chat.Send(ctx, 1, 2, chat.SendInput{Text: "live"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(bob.Conversation.Snapshot().Entries) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// drop the connection and keep bob offline
	srv.accepting.Store(false)
	for _, h := range srv.registry.Lookup(2) {
		h.(*ws.Client).Close("")
	}
	require.Eventually(t, func() bool { return !srv.registry.IsOnline(2) }, 2*time.Second, 10*time.Millisecond)

	_, err = srv.chat.Send(ctx, 1, 2, chat.SendInput{Text: "offline"})
	require.NoError(t, err)
	require.Equal(t, []string{"first", "live"}, texts(bob.Conversation.Snapshot().Entries))

	srv.accepting.Store(true)
	require.Eventually(t, func() bool {
		return len(bob.Conversation.Snapshot().Entries) == 3
	}, 3*time.Second, 10*time.Millisecond)

	snap := bob.Conversation.Snapshot()
	require.Equal(t, Ready, snap.State)
	require.Equal(t, []string{"first", "live", "offline"}, texts(snap.Entries))

	// the subscription survived the reconnect
	_, err = srv.chat.Send(ctx, 1, 2, chat.SendInput{Text: "after"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(bob.Conversation.Snapshot().Entries) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClientSendReachesPeer(t *testing.T) {
	srv := startFullServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	aliceAPI, err := NewAPI(srv.url)
	require.NoError(t, err)
	aliceAPI.SetToken("alice-token")
	alice := NewClient(aliceAPI, 1)

	bobAPI, err := NewAPI(srv.url)
	require.NoError(t, err)
	bobAPI.SetToken("bob-token")
	bob := NewClient(bobAPI, 2)

	require.NoError(t, alice.Conversation.SelectPeer(ctx, 2))
	require.NoError(t, bob.Conversation.SelectPeer(ctx, 1))
	go func() { _ = bob.Run(ctx) }()
	require.Eventually(t, func() bool { return srv.registry.IsOnline(2) }, 2*time.Second, 10*time.Millisecond)

	stored, err := alice.Conversation.Send(ctx, "hello bob", "")
	require.NoError(t, err)
	require.Equal(t, []string{"hello bob"}, texts(alice.Conversation.Snapshot().Entries))

	require.Eventually(t, func() bool {
		entries := bob.Conversation.Snapshot().Entries
		return len(entries) == 1 && entries[0].ID == stored.ID
	}, 2*time.Second, 10*time.Millisecond)
}
