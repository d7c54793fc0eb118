package chatclient

import (
	"sort"
	"sync"

	"github.com/iamasit07/chat-app/backend/internal/domain"
)

type SubscriptionID uint64

type subscription struct {
	peer int64
	fn   func(domain.Message)
}

// Hub fans pushed messages out to per-peer subscribers.
type Hub struct {
	mu   sync.Mutex
	next SubscriptionID
	subs map[SubscriptionID]subscription
}

func NewHub() *Hub {
	return &Hub{subs: make(map[SubscriptionID]subscription)}
}

// Subscribe registers fn for messages exchanged with peer.
func (h *Hub) Subscribe(peer int64, fn func(domain.Message)) SubscriptionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.subs[h.next] = subscription{peer: peer, fn: fn}
	return h.next
}

// Unsubscribe is a no-op for unknown ids.
func (h *Hub) Unsubscribe(id SubscriptionID) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dispatch calls every subscriber whose peer took part in msg. Callbacks
// run on the caller's goroutine, outside the hub lock, in subscription
// order.
func (h *Hub) Dispatch(msg domain.Message) {
	h.mu.Lock()
	ids := make([]SubscriptionID, 0, len(h.subs))
	for id, sub := range h.subs {
		if sub.peer == msg.SenderID || sub.peer == msg.RecipientID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(domain.Message), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.subs[id].fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(msg)
	}
}
