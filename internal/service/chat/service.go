package chat

import (
	"context"
	"strings"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	jww "github.com/spf13/jwalterweatherman"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ListExcept(ctx context.Context, id int64) ([]domain.User, error)
}

type MessageStore interface {
	Append(ctx context.Context, m *domain.Message) error
	History(ctx context.Context, a, b int64) ([]domain.Message, error)
}

// Router delivers a stored message to the recipient's live connections.
type Router interface {
	Route(msg *domain.Message) int
}

// ImageStore turns a client image reference into a hosted URL.
type ImageStore interface {
	StoreImage(ctx context.Context, ref string) (string, error)
}

type SendInput struct {
	Text     string
	Image    string
	ClientID string
}

type Service struct {
	users    UserStore
	messages MessageStore
	router   Router
	images   ImageStore
	locks    *pairLocks
}

func NewService(users UserStore, messages MessageStore, router Router, images ImageStore) *Service {
	return &Service{
		users:    users,
		messages: messages,
		router:   router,
		images:   images,
		locks:    newPairLocks(),
	}
}

// Send stores a message from senderID to recipientID and pushes it to the
// recipient's live connections. The returned message carries the stored id
// and timestamp; the caller's ClientID is echoed back.
//
// Append and routing run under a per-conversation lock, so concurrent
// sends between the same two users reach history and live connections in
// one order.
func (s *Service) Send(ctx context.Context, senderID, recipientID int64, in SendInput) (*domain.Message, error) {
	text := strings.TrimSpace(in.Text)
	imageRef := strings.TrimSpace(in.Image)

	if senderID <= 0 || recipientID <= 0 {
		return nil, domain.Invalid("Invalid participants")
	}
	if senderID == recipientID {
		return nil, domain.Invalid("You cannot send a message to yourself")
	}
	if text == "" && imageRef == "" {
		return nil, domain.Invalid("Message must contain text or an image")
	}

	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}

	imageURL := ""
	if imageRef != "" {
		if s.images == nil {
			return nil, domain.Invalid("Image uploads are not enabled")
		}
		url, err := s.images.StoreImage(ctx, imageRef)
		if err != nil {
			return nil, err
		}
		imageURL = url
	}

	msg := &domain.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		Image:       imageURL,
	}

	unlock := s.locks.lock(senderID, recipientID)
	defer unlock()

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, err
	}
	delivered := s.router.Route(msg)
	jww.DEBUG.Printf("[CHAT] Message %d from %d to %d delivered to %d connection(s)",
		msg.ID, senderID, recipientID, delivered)

	msg.ClientID = in.ClientID
	return msg, nil
}

// History returns the conversation between me and peer, oldest first.
func (s *Service) History(ctx context.Context, me, peer int64) ([]domain.Message, error) {
	if me <= 0 || peer <= 0 {
		return nil, domain.Invalid("Invalid participants")
	}
	return s.messages.History(ctx, me, peer)
}

// Contacts lists every other user for the sidebar.
func (s *Service) Contacts(ctx context.Context, me int64) ([]domain.UserResponse, error) {
	users, err := s.users.ListExcept(ctx, me)
	if err != nil {
		return nil, err
	}
	out := make([]domain.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].Response())
	}
	return out, nil
}
