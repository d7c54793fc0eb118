package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/pkg/errors"
)

// SessionRepo stores one row per issued session token (login history).
// Token validity never depends on it.
type SessionRepo struct {
	DB *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

// CreateSession creates a new session in the database
func (r *SessionRepo) CreateSession(ctx context.Context, s *domain.UserSession) error {
	query := `
	INSERT INTO user_sessions (session_id, user_id, device_info, ip_address, created_at, expires_at, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE);
	`
	_, err := r.DB.ExecContext(ctx, query, s.SessionID, s.UserID, s.DeviceInfo, s.IPAddress, s.CreatedAt.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		return errors.Wrap(err, "failed to create session")
	}
	s.IsActive = true
	return nil
}

// DeactivateSession marks a specific session as inactive
func (r *SessionRepo) DeactivateSession(ctx context.Context, sessionID string) error {
	query := `UPDATE user_sessions SET is_active = FALSE WHERE session_id = $1;`
	if _, err := r.DB.ExecContext(ctx, query, sessionID); err != nil {
		return errors.Wrap(err, "failed to deactivate session")
	}
	return nil
}

// GetUserSessionHistory retrieves recent login sessions for a user
func (r *SessionRepo) GetUserSessionHistory(ctx context.Context, userID int64, limit int) ([]domain.UserSession, error) {
	query := `
	SELECT session_id, user_id, device_info, ip_address, created_at, expires_at, is_active
	FROM user_sessions
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query session history")
	}
	defer rows.Close()

	sessions := make([]domain.UserSession, 0)
	for rows.Next() {
		var s domain.UserSession
		if err := rows.Scan(
			&s.SessionID,
			&s.UserID,
			&s.DeviceInfo,
			&s.IPAddress,
			&s.CreatedAt,
			&s.ExpiresAt,
			&s.IsActive,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan session row")
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate session rows")
	}
	return sessions, nil
}

// CleanupOldSessions deletes expired sessions and inactive ones created
// before the retention cutoff.
func (r *SessionRepo) CleanupOldSessions(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	query := `
	DELETE FROM user_sessions
	WHERE expires_at < $1
	   OR (is_active = FALSE AND created_at < $2);
	`
	result, err := r.DB.ExecContext(ctx, query, now.UTC(), now.Add(-retention).UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old sessions")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return rowsAffected, nil
}
