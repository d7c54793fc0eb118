package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/pkg/errors"
)

// MessageRepo is the append-only message log.
type MessageRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{DB: db, now: time.Now}
}

// Append validates m, stamps its creation time and persists it. When Append
// returns nil the row is committed and m carries its id.
func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	m.Text = strings.TrimSpace(m.Text)
	m.Image = strings.TrimSpace(m.Image)
	if err := m.Validate(); err != nil {
		return err
	}

	// postgres keeps microseconds; truncate so the returned value equals
	// what history reads back
	createdAt := r.now().UTC().Truncate(time.Microsecond)

	query := `
	INSERT INTO messages (sender_id, recipient_id, text, image, created_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id;
	`
	err := r.DB.QueryRowContext(ctx, query, m.SenderID, m.RecipientID, m.Text, m.Image, createdAt).Scan(&m.ID)
	if err != nil {
		return errors.Wrap(err, "failed to append message")
	}
	m.CreatedAt = createdAt
	return nil
}

// History returns every message exchanged between a and b, oldest first,
// ties broken by id.
func (r *MessageRepo) History(ctx context.Context, a, b int64) ([]domain.Message, error) {
	query := `
	SELECT id, sender_id, recipient_id, text, image, created_at
	FROM messages
	WHERE (sender_id = $1 AND recipient_id = $2)
	   OR (sender_id = $2 AND recipient_id = $1)
	ORDER BY created_at ASC, id ASC;
	`
	rows, err := r.DB.QueryContext(ctx, query, a, b)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	messages := make([]domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Text, &m.Image, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan message row")
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate message rows")
	}
	return messages, nil
}
