package delivery

import (
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/internal/service/presence"
	jww "github.com/spf13/jwalterweatherman"
)

// Router pushes stored messages to the recipient's live connections.
// Pushing is best-effort: a failed push is logged and dropped, the message
// is already durable and will show up in the next history fetch.
type Router struct {
	registry *presence.Registry
}

func NewRouter(registry *presence.Registry) *Router {
	return &Router{registry: registry}
}

// Route enqueues msg on every handle of the recipient and returns how many
// accepted it. Handle.Push must not block.
func (r *Router) Route(msg *domain.Message) int {
	payload := *msg
	payload.ClientID = ""
	event := domain.ServerMessage{Type: domain.EventNewMessage, Message: &payload}

	handles := r.registry.Lookup(msg.RecipientID)
	if len(handles) == 0 {
		jww.DEBUG.Printf("[DELIVERY] User %d offline, message %d left for history", msg.RecipientID, msg.ID)
		return 0
	}

	delivered := 0
	for _, h := range handles {
		if err := h.Push(event); err != nil {
			jww.WARN.Printf("[DELIVERY] %v: message %d to user %d via %s: %v",
				domain.ErrDeliveryDropped, msg.ID, msg.RecipientID, h.ID(), err)
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastOnlineUsers sends the current online list to every connection.
func (r *Router) BroadcastOnlineUsers() {
	event := domain.ServerMessage{
		Type:        domain.EventOnlineUsers,
		OnlineUsers: r.registry.OnlineUsers(),
	}
	for _, h := range r.registry.All() {
		if err := h.Push(event); err != nil {
			jww.DEBUG.Printf("[DELIVERY] online_users to %s dropped: %v", h.ID(), err)
		}
	}
}
