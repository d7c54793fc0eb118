package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/internal/service/presence"
	"github.com/iamasit07/chat-app/backend/pkg/auth"
	"github.com/iamasit07/chat-app/backend/pkg/httputil"
	jww "github.com/spf13/jwalterweatherman"
)

const defaultInitTimeout = 5 * time.Second

// Verifier validates a session token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
}

// Handler upgrades authenticated requests to websocket connections and
// registers them with the presence registry.
type Handler struct {
	registry    *presence.Registry
	auth        Verifier
	upgrader    websocket.Upgrader
	queueSize   int
	initTimeout time.Duration
}

func NewHandler(registry *presence.Registry, verifier Verifier, allowedOrigins []string, queueSize int) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	return &Handler{
		registry:    registry,
		auth:        verifier,
		queueSize:   queueSize,
		initTimeout: defaultInitTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket authenticates with the token carried by the request
// (cookie, bearer header or ?token=). Without one, the first frame must be
// an init frame carrying the token, sent within initTimeout.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()

	token, _ := httputil.GetTokenFromRequest(c.Request)
	var claims *auth.Claims
	if token != "" {
		var err error
		if claims, err = h.auth.Verify(ctx, token); err != nil {
			jww.INFO.Printf("[WS] Rejected handshake: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - Invalid Token"})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		jww.WARN.Printf("[WS] Upgrade error: %v", err)
		return
	}

	if claims == nil {
		if claims, err = h.awaitInit(ctx, conn); err != nil {
			jww.INFO.Printf("[WS] Rejected init: %v", err)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(domain.ServerMessage{Type: domain.EventError, Error: "Invalid token or session expired"})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
				time.Now().Add(writeWait))
			_ = conn.Close()
			return
		}
	}

	h.serve(conn, claims.UserID, claims.ID)
}

func (h *Handler) awaitInit(ctx context.Context, conn *websocket.Conn) (*auth.Claims, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.initTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var frame domain.ClientMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, domain.Invalid("invalid init frame")
	}
	if frame.Type != domain.FrameInit || frame.JWT == "" {
		return nil, domain.Invalid("missing initialization or token")
	}
	return h.auth.Verify(ctx, frame.JWT)
}

func (h *Handler) serve(conn *websocket.Conn, userID int64, sessionID string) {
	client := newClient(conn, userID, sessionID, h.queueSize)
	_ = client.Push(domain.ServerMessage{Type: domain.EventConnected, UserID: userID})
	go client.writePump()

	h.registry.Register(userID, client)
	jww.INFO.Printf("[WS] Connection %s initialized for user %d", client.ID(), userID)
	_ = client.Push(domain.ServerMessage{Type: domain.EventOnlineUsers, OnlineUsers: h.registry.OnlineUsers()})

	defer func() {
		h.registry.Unregister(userID, client)
		client.Close("")
		jww.INFO.Printf("[WS] Connection %s closed for user %d", client.ID(), userID)
	}()

	client.readPump(h.handleFrame)
}

func (h *Handler) handleFrame(c *Client, frame domain.ClientMessage) {
	switch frame.Type {
	case domain.FramePing:
		_ = c.Push(domain.ServerMessage{Type: domain.EventPong})
	case domain.FrameGetOnlineUsers:
		_ = c.Push(domain.ServerMessage{Type: domain.EventOnlineUsers, OnlineUsers: h.registry.OnlineUsers()})
	case domain.FrameInit:
		// already authenticated
	default:
		_ = c.Push(domain.ServerMessage{Type: domain.EventError, Error: "Unknown message type"})
	}
}

// DisconnectSession notifies and closes every connection opened with the
// given session token and returns how many were closed.
func (h *Handler) DisconnectSession(sessionID, reason string) int {
	if sessionID == "" {
		return 0
	}
	closed := 0
	for _, handle := range h.registry.All() {
		client, ok := handle.(*Client)
		if !ok || client.SessionID() != sessionID {
			continue
		}
		evict(client, reason)
		closed++
	}
	if closed > 0 {
		jww.INFO.Printf("[WS] Closed %d connection(s) of session %s: %s", closed, sessionID, reason)
	}
	return closed
}

func evict(c *Client, reason string) {
	_ = c.Push(domain.ServerMessage{Type: domain.EventDisconnect, Error: reason})
	c.Close(reason)
}
