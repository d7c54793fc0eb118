package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// sqlite rendition of migrations/schema.sql; the repositories only use SQL
// both engines accept.
const sqliteSchema = `
CREATE TABLE users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    full_name     TEXT      NOT NULL,
    email         TEXT      NOT NULL UNIQUE,
    password_hash TEXT      NOT NULL,
    profile_pic   TEXT      NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);
CREATE TABLE messages (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    sender_id    INTEGER   NOT NULL REFERENCES users(id),
    recipient_id INTEGER   NOT NULL REFERENCES users(id),
    text         TEXT      NOT NULL DEFAULT '',
    image        TEXT      NOT NULL DEFAULT '',
    created_at   TIMESTAMP NOT NULL
);
CREATE TABLE user_sessions (
    session_id  TEXT PRIMARY KEY,
    user_id     INTEGER   NOT NULL REFERENCES users(id),
    device_info TEXT      NOT NULL DEFAULT '',
    ip_address  TEXT      NOT NULL DEFAULT '',
    created_at  TIMESTAMP NOT NULL,
    expires_at  TIMESTAMP NOT NULL,
    is_active   BOOLEAN   NOT NULL DEFAULT TRUE
);
`

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func createTestUser(t *testing.T, repo *UserRepo, name string) *domain.User {
	t.Helper()
	u := &domain.User{
		FullName:     name,
		Email:        strings.ToLower(name) + "@example.com",
		PasswordHash: "hash",
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

// steppingClock returns a clock that advances by step on every call.
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}
