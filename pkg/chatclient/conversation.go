package chatclient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

type State int

const (
	Idle State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

type Status int

const (
	Sent Status = iota
	Pending
	Failed
)

// Entry is one line of the conversation view. Pending and failed entries
// have no server id yet and are keyed by ClientID.
type Entry struct {
	domain.Message
	Status Status
}

type Snapshot struct {
	State   State
	Peer    int64
	Entries []Entry
}

var (
	// ErrStale means a newer selection superseded the call.
	ErrStale    = errors.New("chatclient: superseded by a newer selection")
	ErrNotReady = errors.New("chatclient: no conversation is ready")
	ErrUnknown  = errors.New("chatclient: no such pending message")
)

type Backend interface {
	History(ctx context.Context, peer int64) ([]domain.Message, error)
	Send(ctx context.Context, peer int64, req SendRequest) (*domain.Message, error)
}

type Subscriber interface {
	Subscribe(peer int64, fn func(domain.Message)) SubscriptionID
	Unsubscribe(id SubscriptionID)
}

// ConversationStore holds the view of the currently selected conversation.
//
// selection is bumped whenever the selected peer changes; any fetch, push
// or send result tagged with an older selection is dropped. fetch is
// bumped by every history request so only the newest one is applied.
type ConversationStore struct {
	me      int64
	backend Backend
	hub     Subscriber
	now     func() time.Time

	mu         sync.Mutex
	state      State
	peer       int64
	selection  uint64
	fetch      uint64
	sub        SubscriptionID
	subscribed bool
	entries    []Entry
	onChange   func(Snapshot)
}

func NewConversationStore(me int64, backend Backend, hub Subscriber) *ConversationStore {
	return &ConversationStore{me: me, backend: backend, hub: hub, now: time.Now}
}

// OnChange installs a listener called with a fresh snapshot after every
// state change, outside the store lock.
func (s *ConversationStore) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *ConversationStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ConversationStore) snapshotLocked() Snapshot {
	return Snapshot{
		State:   s.state,
		Peer:    s.peer,
		Entries: append([]Entry(nil), s.entries...),
	}
}

// commit releases the lock and notifies the listener.
func (s *ConversationStore) commit() {
	snap := s.snapshotLocked()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (s *ConversationStore) unsubscribeLocked() {
	if s.subscribed {
		s.hub.Unsubscribe(s.sub)
		s.subscribed = false
	}
}

// SelectPeer drops the current conversation, loads the history with peer
// and subscribes to its pushes. If another SelectPeer or Unsubscribe
// happens while the history is loading, the result is discarded and
// ErrStale returned.
func (s *ConversationStore) SelectPeer(ctx context.Context, peer int64) error {
	s.mu.Lock()
	s.unsubscribeLocked()
	s.selection++
	s.fetch++
	selection, fetch := s.selection, s.fetch
	s.peer = peer
	s.state = Loading
	s.entries = nil
	s.commit()

	history, err := s.backend.History(ctx, peer)

	s.mu.Lock()
	if s.selection != selection || s.fetch != fetch {
		s.mu.Unlock()
		jww.DEBUG.Printf("[CLIENT] Dropped stale history for peer %d", peer)
		return ErrStale
	}
	if err != nil {
		s.state = Idle
		s.peer = 0
		s.commit()
		return err
	}

	s.entries = make([]Entry, 0, len(history))
	for _, m := range history {
		s.entries = append(s.entries, Entry{Message: m, Status: Sent})
	}
	s.subscribeLocked(selection)
	s.state = Ready
	s.commit()
	return nil
}

func (s *ConversationStore) subscribeLocked(selection uint64) {
	s.sub = s.hub.Subscribe(s.peer, func(m domain.Message) {
		s.onPush(selection, m)
	})
	s.subscribed = true
}

func (s *ConversationStore) onPush(selection uint64, m domain.Message) {
	s.mu.Lock()
	if s.state != Ready || s.selection != selection || !m.Between(s.me, s.peer) || s.indexOfID(m.ID) >= 0 {
		s.mu.Unlock()
		return
	}
	m.ClientID = ""
	s.entries = append(s.entries, Entry{Message: m, Status: Sent})
	s.settleLocked()
	s.commit()
}

// settleLocked keeps sent entries in creation order, tie-broken by id,
// followed by pending and failed entries in the order they were sent.
func (s *ConversationStore) settleLocked() {
	sent := make([]Entry, 0, len(s.entries))
	var unsent []Entry
	for _, e := range s.entries {
		if e.Status == Sent {
			sent = append(sent, e)
		} else {
			unsent = append(unsent, e)
		}
	}
	sort.SliceStable(sent, func(i, j int) bool {
		return sent[i].Before(&sent[j].Message)
	})
	s.entries = append(sent, unsent...)
}

// Unsubscribe leaves the current conversation. Safe to call repeatedly or
// without a selection.
func (s *ConversationStore) Unsubscribe() {
	s.mu.Lock()
	if !s.subscribed && s.state == Idle {
		s.mu.Unlock()
		return
	}
	s.unsubscribeLocked()
	s.selection++
	s.state = Idle
	s.peer = 0
	s.entries = nil
	s.commit()
}

// Send appends an optimistic entry, posts it and swaps in the stored
// message once the server answers. A failed post leaves the entry marked
// Failed; see Retry.
func (s *ConversationStore) Send(ctx context.Context, text, image string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	image = strings.TrimSpace(image)
	if text == "" && image == "" {
		return nil, domain.Invalid("Message must contain text or an image")
	}

	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	pending := Entry{
		Message: domain.Message{
			SenderID:    s.me,
			RecipientID: s.peer,
			Text:        text,
			Image:       image,
			CreatedAt:   s.now().UTC(),
			ClientID:    uuid.NewString(),
		},
		Status: Pending,
	}
	s.entries = append(s.entries, pending)
	s.commit()

	return s.post(ctx, pending.Message)
}

// Retry re-sends a failed entry.
func (s *ConversationStore) Retry(ctx context.Context, clientID string) (*domain.Message, error) {
	s.mu.Lock()
	i := s.indexOfClientID(clientID)
	if s.state != Ready || i < 0 || s.entries[i].Status != Failed {
		s.mu.Unlock()
		return nil, ErrUnknown
	}
	s.entries[i].Status = Pending
	msg := s.entries[i].Message
	s.commit()

	return s.post(ctx, msg)
}

func (s *ConversationStore) post(ctx context.Context, draft domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	selection := s.selection
	s.mu.Unlock()

	stored, err := s.backend.Send(ctx, draft.RecipientID, SendRequest{
		Text:     draft.Text,
		Image:    draft.Image,
		ClientID: draft.ClientID,
	})

	s.mu.Lock()
	if s.selection != selection {
		s.mu.Unlock()
		return stored, err
	}
	i := s.indexOfClientID(draft.ClientID)
	switch {
	case i < 0:
	case err != nil:
		s.entries[i].Status = Failed
	case s.indexOfID(stored.ID) >= 0:
		// a resync already brought the stored copy in
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	default:
		s.entries[i] = Entry{Message: *stored, Status: Sent}
		s.entries[i].ClientID = draft.ClientID
		s.settleLocked()
	}
	s.commit()
	return stored, err
}

// Resync reloads the selected conversation after the transport
// reconnected. The push subscription stays live during the fetch, so
// pushes that land meanwhile are merged with the fetched history by id.
// Pending and failed entries are kept.
func (s *ConversationStore) Resync(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return nil
	}
	if !s.subscribed {
		s.subscribeLocked(s.selection)
	}
	s.fetch++
	selection, fetch, peer := s.selection, s.fetch, s.peer
	s.mu.Unlock()

	history, err := s.backend.History(ctx, peer)

	s.mu.Lock()
	if s.selection != selection || s.fetch != fetch {
		s.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}

	fetched := make(map[int64]struct{}, len(history))
	merged := make([]Entry, 0, len(history)+len(s.entries))
	for _, m := range history {
		fetched[m.ID] = struct{}{}
		merged = append(merged, Entry{Message: m, Status: Sent})
	}
	for _, e := range s.entries {
		if e.Status == Sent {
			if _, ok := fetched[e.ID]; ok {
				continue
			}
		}
		merged = append(merged, e)
	}
	s.entries = merged
	s.settleLocked()
	s.state = Ready
	s.commit()
	return nil
}

// Attach re-syncs the store every time sock reconnects. It replaces any
// reconnect callback already installed on sock.
func (s *ConversationStore) Attach(ctx context.Context, sock *Socket) {
	sock.OnReconnect(func() {
		if err := s.Resync(ctx); err != nil && !errors.Is(err, ErrStale) {
			jww.WARN.Printf("[CLIENT] Resync after reconnect failed: %v", err)
		}
	})
}

func (s *ConversationStore) indexOfID(id int64) int {
	if id == 0 {
		return -1
	}
	for i := range s.entries {
		if s.entries[i].Status == Sent && s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ConversationStore) indexOfClientID(clientID string) int {
	if clientID == "" {
		return -1
	}
	for i := range s.entries {
		if s.entries[i].ClientID == clientID && s.entries[i].Status != Sent {
			return i
		}
	}
	return -1
}
