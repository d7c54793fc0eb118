package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/internal/service/delivery"
	"github.com/iamasit07/chat-app/backend/internal/service/presence"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	users map[int64]*domain.User
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) ListExcept(_ context.Context, id int64) ([]domain.User, error) {
	var out []domain.User
	for i := int64(1); i <= int64(len(m.users)); i++ {
		if u, ok := m.users[i]; ok && i != id {
			out = append(out, *u)
		}
	}
	return out, nil
}

type memMessages struct {
	mu     sync.Mutex
	nextID int64
	rows   []domain.Message
}

func (m *memMessages) Append(_ context.Context, msg *domain.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = time.Now().UTC()
	m.rows = append(m.rows, *msg)
	return nil
}

func (m *memMessages) History(_ context.Context, a, b int64) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Message, 0)
	for _, row := range m.rows {
		if row.Between(a, b) {
			out = append(out, row)
		}
	}
	return out, nil
}

type memImages struct {
	err error
}

func (m *memImages) StoreImage(_ context.Context, ref string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "http://cdn/" + ref, nil
}

type inbox struct {
	id string

	mu     sync.Mutex
	events []domain.ServerMessage
}

func (h *inbox) ID() string { return h.id }

func (h *inbox) Push(msg domain.ServerMessage) error {
	h.mu.Lock()
	h.events = append(h.events, msg)
	h.mu.Unlock()
	return nil
}

func (h *inbox) messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.Message
	for _, e := range h.events {
		if e.Type == domain.EventNewMessage {
			out = append(out, *e.Message)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	registry *presence.Registry
	messages *memMessages
	images   *memImages
}

func newFixture() *fixture {
	users := &memUsers{users: map[int64]*domain.User{
		1: {ID: 1, FullName: "Alice", Email: "a@example.com"},
		2: {ID: 2, FullName: "Bob", Email: "b@example.com"},
		3: {ID: 3, FullName: "Carol", Email: "c@example.com"},
	}}
	reg := presence.NewRegistry()
	msgs := &memMessages{}
	imgs := &memImages{}
	return &fixture{
		svc:      NewService(users, msgs, delivery.NewRouter(reg), imgs),
		registry: reg,
		messages: msgs,
		images:   imgs,
	}
}

func TestSendToOnlineRecipientPushesOnce(t *testing.T) {
	f := newFixture()
	bob := &inbox{id: "bob-1"}
	f.registry.Register(2, bob)

	msg, err := f.svc.Send(context.Background(), 1, 2, SendInput{Text: " hello ", ClientID: "tmp-1"})
	require.NoError(t, err)
	require.Equal(t, "hello", msg.Text)
	require.Equal(t, "tmp-1", msg.ClientID)
	require.NotZero(t, msg.ID)

	got := bob.messages()
	require.Len(t, got, 1)
	require.Equal(t, msg.ID, got[0].ID)
	require.Empty(t, got[0].ClientID)

	history, err := f.svc.History(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, msg.ID, history[0].ID)
}

func TestSendToOfflineRecipientLandsInHistory(t *testing.T) {
	f := newFixture()

	msg, err := f.svc.Send(context.Background(), 1, 2, SendInput{Text: "are you there?"})
	require.NoError(t, err)

	bob := &inbox{id: "bob-1"}
	f.registry.Register(2, bob)
	require.Empty(t, bob.messages())

	history, err := f.svc.History(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, msg.ID, history[0].ID)
}

func TestSendReachesEveryDeviceButNotSender(t *testing.T) {
	f := newFixture()
	phone, laptop, alice := &inbox{id: "p"}, &inbox{id: "l"}, &inbox{id: "a"}
	f.registry.Register(2, phone)
	f.registry.Register(2, laptop)
	f.registry.Register(1, alice)

	_, err := f.svc.Send(context.Background(), 1, 2, SendInput{Text: "hi"})
	require.NoError(t, err)
	require.Len(t, phone.messages(), 1)
	require.Len(t, laptop.messages(), 1)
	require.Empty(t, alice.messages())
}

func TestSendValidation(t *testing.T) {
	f := newFixture()
	bob := &inbox{id: "bob-1"}
	f.registry.Register(2, bob)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, 1, 2, SendInput{Text: "   "})
	require.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Send(ctx, 1, 1, SendInput{Text: "me"})
	require.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Send(ctx, 1, 99, SendInput{Text: "ghost"})
	require.True(t, errors.Is(err, domain.ErrNotFound))

	f.images.err = domain.ErrUpload
	_, err = f.svc.Send(ctx, 1, 2, SendInput{Image: "data:image/png;base64,AAAA"})
	require.True(t, errors.Is(err, domain.ErrUpload))

	history, err := f.svc.History(ctx, 1, 2)
	require.NoError(t, err)
	require.Empty(t, history)
	require.Empty(t, bob.messages())
}

func TestSendImageOnly(t *testing.T) {
	f := newFixture()
	msg, err := f.svc.Send(context.Background(), 1, 2, SendInput{Image: "pic.png"})
	require.NoError(t, err)
	require.Equal(t, "http://cdn/pic.png", msg.Image)
	require.Empty(t, msg.Text)
}

func TestConcurrentSendsKeepHistoryAndPushOrderAligned(t *testing.T) {
	f := newFixture()
	bob := &inbox{id: "bob-1"}
	f.registry.Register(2, bob)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Send(ctx, 1, 2, SendInput{Text: fmt.Sprintf("m%d", i)})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := f.svc.History(ctx, 1, 2)
	require.NoError(t, err)
	pushed := bob.messages()
	require.Len(t, pushed, 50)
	require.Len(t, history, 50)
	for i := range history {
		require.Equal(t, history[i].ID, pushed[i].ID)
	}
	require.Zero(t, f.svc.locks.size())
}

func TestContactsExcludesCaller(t *testing.T) {
	f := newFixture()
	contacts, err := f.svc.Contacts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	require.Equal(t, "Alice", contacts[0].FullName)
	require.Equal(t, "Carol", contacts[1].FullName)
}
