package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/stretchr/testify/require"
)

func newMessageFixture(t *testing.T) (*MessageRepo, *domain.User, *domain.User, *domain.User) {
	db := newTestDB(t)
	users := NewUserRepo(db)
	alice := createTestUser(t, users, "Alice")
	bob := createTestUser(t, users, "Bob")
	carol := createTestUser(t, users, "Carol")
	return NewMessageRepo(db), alice, bob, carol
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	repo, alice, bob, _ := newMessageFixture(t)
	ctx := context.Background()

	m := &domain.Message{SenderID: alice.ID, RecipientID: bob.ID, Text: "  hi  "}
	require.NoError(t, repo.Append(ctx, m))
	require.NotZero(t, m.ID)
	require.False(t, m.CreatedAt.IsZero())
	require.Equal(t, "hi", m.Text)

	history, err := repo.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, m.ID, history[0].ID)
	require.Equal(t, "hi", history[0].Text)
	require.True(t, m.CreatedAt.Equal(history[0].CreatedAt))
}

func TestAppendRejectsEmptyMessageAndLeavesStoreUnchanged(t *testing.T) {
	repo, alice, bob, _ := newMessageFixture(t)
	ctx := context.Background()

	err := repo.Append(ctx, &domain.Message{SenderID: alice.ID, RecipientID: bob.ID, Text: "   "})
	require.True(t, errors.Is(err, domain.ErrValidation))

	history, err := repo.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestHistoryIsOrderedAndScopedToPair(t *testing.T) {
	repo, alice, bob, carol := newMessageFixture(t)
	repo.now = steppingClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.Second)
	ctx := context.Background()

	sends := []domain.Message{
		{SenderID: alice.ID, RecipientID: bob.ID, Text: "1"},
		{SenderID: bob.ID, RecipientID: alice.ID, Text: "2"},
		{SenderID: alice.ID, RecipientID: carol.ID, Text: "not for bob"},
		{SenderID: alice.ID, RecipientID: bob.ID, Image: "http://img/3.png"},
	}
	for i := range sends {
		require.NoError(t, repo.Append(ctx, &sends[i]))
	}

	ab, err := repo.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	ba, err := repo.History(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Equal(t, ab, ba)

	require.Len(t, ab, 3)
	require.Equal(t, "1", ab[0].Text)
	require.Equal(t, "2", ab[1].Text)
	require.Equal(t, "http://img/3.png", ab[2].Image)
	for i := 1; i < len(ab); i++ {
		require.True(t, ab[i-1].Before(&ab[i]))
	}
}

func TestHistoryTieBreaksOnID(t *testing.T) {
	repo, alice, bob, _ := newMessageFixture(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	ctx := context.Background()

	first := &domain.Message{SenderID: alice.ID, RecipientID: bob.ID, Text: "a"}
	second := &domain.Message{SenderID: bob.ID, RecipientID: alice.ID, Text: "b"}
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	history, err := repo.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, first.ID, history[0].ID)
	require.Equal(t, second.ID, history[1].ID)
}
