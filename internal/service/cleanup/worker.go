package cleanup

import (
	"context"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

const defaultInterval = time.Hour

// SessionPruner deletes stale login-session rows.
type SessionPruner interface {
	CleanupOldSessions(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

type Worker struct {
	Sessions  SessionPruner
	Retention time.Duration
	Interval  time.Duration
	now       func() time.Time
}

func NewWorker(sessions SessionPruner, retention time.Duration) *Worker {
	return &Worker{
		Sessions:  sessions,
		Retention: retention,
		Interval:  defaultInterval,
		now:       time.Now,
	}
}

// Start runs one cleanup immediately and then every Interval until ctx is
// cancelled. It blocks; run it in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	jww.INFO.Println("[CLEANUP] Background worker started")
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			jww.INFO.Println("[CLEANUP] Background worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cleanup pass and returns the number of rows
// removed.
func (w *Worker) RunOnce(ctx context.Context) int64 {
	jww.DEBUG.Println("[CLEANUP] Starting scheduled cleanup task...")

	deleted, err := w.Sessions.CleanupOldSessions(ctx, w.now(), w.Retention)
	if err != nil {
		jww.ERROR.Printf("[CLEANUP] Error cleaning up DB sessions: %v", err)
		return 0
	}
	if deleted > 0 {
		jww.INFO.Printf("[CLEANUP] Removed %d expired sessions from database", deleted)
	}
	return deleted
}
