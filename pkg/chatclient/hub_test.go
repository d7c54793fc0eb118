package chatclient

import (
	"testing"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestHubDispatchMatchesEitherParticipant(t *testing.T) {
	hub := NewHub()
	var got []int64

	hub.Subscribe(2, func(m domain.Message) { got = append(got, m.ID) })
	hub.Subscribe(3, func(m domain.Message) { got = append(got, -m.ID) })

	hub.Dispatch(domain.Message{ID: 10, SenderID: 1, RecipientID: 2})
	hub.Dispatch(domain.Message{ID: 11, SenderID: 2, RecipientID: 1})
	hub.Dispatch(domain.Message{ID: 12, SenderID: 1, RecipientID: 3})

	require.Equal(t, []int64{10, 11, -12}, got)
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	calls := 0
	id := hub.Subscribe(2, func(domain.Message) { calls++ })
	require.Equal(t, 1, hub.Len())

	hub.Unsubscribe(id)
	hub.Unsubscribe(id)
	hub.Unsubscribe(999)
	require.Equal(t, 0, hub.Len())

	hub.Dispatch(domain.Message{ID: 1, SenderID: 2, RecipientID: 1})
	require.Zero(t, calls)
}

func TestHubCallbackMayUnsubscribe(t *testing.T) {
	hub := NewHub()
	var id SubscriptionID
	calls := 0
	id = hub.Subscribe(2, func(domain.Message) {
		calls++
		hub.Unsubscribe(id)
	})

	hub.Dispatch(domain.Message{ID: 1, SenderID: 2, RecipientID: 1})
	hub.Dispatch(domain.Message{ID: 2, SenderID: 2, RecipientID: 1})
	require.Equal(t, 1, calls)
}
