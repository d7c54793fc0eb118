package domain

import (
	"strings"
	"time"
)

// Message is one immutable entry of a two-party conversation.
type Message struct {
	ID          int64     `json:"_id"`
	SenderID    int64     `json:"senderId"`
	RecipientID int64     `json:"recipientId"`
	Text        string    `json:"text,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`

	// ClientID echoes the sender's temporary id back in the send response.
	// It is never persisted.
	ClientID string `json:"clientId,omitempty"`
}

// Validate enforces the text-or-image rule and sane participants.
func (m *Message) Validate() error {
	if m.SenderID <= 0 || m.RecipientID <= 0 {
		return Invalid("sender and recipient are required")
	}
	if m.SenderID == m.RecipientID {
		return Invalid("cannot send a message to yourself")
	}
	if strings.TrimSpace(m.Text) == "" && strings.TrimSpace(m.Image) == "" {
		return Invalid("message must contain text or an image")
	}
	return nil
}

// Peer returns the other participant as seen by me.
func (m *Message) Peer(me int64) int64 {
	if m.SenderID == me {
		return m.RecipientID
	}
	return m.SenderID
}

// Between reports whether the message belongs to the a<->b conversation.
func (m *Message) Between(a, b int64) bool {
	return (m.SenderID == a && m.RecipientID == b) || (m.SenderID == b && m.RecipientID == a)
}

// Before orders messages by creation time, tie-broken by id.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
