package session

import (
	"context"
	"time"

	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/pkg/auth"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const defaultHistoryLimit = 20

type SessionRepository interface {
	CreateSession(ctx context.Context, s *domain.UserSession) error
	DeactivateSession(ctx context.Context, sessionID string) error
	GetUserSessionHistory(ctx context.Context, userID int64, limit int) ([]domain.UserSession, error)
}

// RevocationStore remembers logged-out token ids. Optional.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// AuthService issues and verifies session tokens. Verification is
// stateless apart from the optional revocation lookup, so the database
// is never on the hot path of a websocket handshake.
type AuthService struct {
	issuer  *auth.Issuer
	repo    SessionRepository
	revoked RevocationStore
	now     func() time.Time
}

// NewAuthService builds the service. repo and revoked may be nil.
func NewAuthService(issuer *auth.Issuer, repo SessionRepository, revoked RevocationStore) *AuthService {
	return &AuthService{issuer: issuer, repo: repo, revoked: revoked, now: time.Now}
}

func (s *AuthService) TTL() time.Duration {
	return s.issuer.TTL()
}

// IssueSession mints a token for userID and records the login. A failed
// history write is logged, the token is still returned.
func (s *AuthService) IssueSession(ctx context.Context, userID int64, deviceInfo, ipAddress string) (*auth.Token, error) {
	token, err := s.issuer.Issue(userID)
	if err != nil {
		return nil, err
	}

	if s.repo != nil {
		row := &domain.UserSession{
			SessionID:  token.ID,
			UserID:     userID,
			DeviceInfo: deviceInfo,
			IPAddress:  ipAddress,
			CreatedAt:  token.IssuedAt,
			ExpiresAt:  token.ExpiresAt,
		}
		if err := s.repo.CreateSession(ctx, row); err != nil {
			jww.WARN.Printf("[SESSION] Failed to record session for user %d: %v", userID, err)
		}
	}

	jww.INFO.Printf("[SESSION] Issued session %s for user %d", token.ID, userID)
	return token, nil
}

// Verify checks signature, expiry and revocation. When the revocation
// store is unreachable the token is accepted.
func (s *AuthService) Verify(ctx context.Context, raw string) (*auth.Claims, error) {
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return nil, err
	}
	if s.revoked == nil {
		return claims, nil
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		jww.WARN.Printf("[SESSION] Revocation check failed for %s: %v", claims.ID, err)
		return claims, nil
	}
	if revoked {
		return nil, errors.WithMessage(domain.ErrUnauthorized, "session has been revoked")
	}
	return claims, nil
}

// Revoke invalidates the token behind claims for the rest of its lifetime
// and marks its history row inactive.
func (s *AuthService) Revoke(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return nil
	}

	if s.revoked != nil && claims.ExpiresAt != nil {
		ttl := claims.ExpiresAt.Time.Sub(s.now())
		if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
			return err
		}
	}

	if s.repo != nil && claims.ID != "" {
		if err := s.repo.DeactivateSession(ctx, claims.ID); err != nil {
			jww.WARN.Printf("[SESSION] Failed to deactivate session %s: %v", claims.ID, err)
		}
	}
	jww.INFO.Printf("[SESSION] Revoked session %s for user %d", claims.ID, claims.UserID)
	return nil
}

// SessionHistory lists the user's most recent logins, newest first.
func (s *AuthService) SessionHistory(ctx context.Context, userID int64, limit int) ([]domain.UserSession, error) {
	if s.repo == nil {
		return []domain.UserSession{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	return s.repo.GetUserSessionHistory(ctx, userID, limit)
}
