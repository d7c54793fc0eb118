package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const revokedPrefix = "revoked:"

// RevocationStore remembers logged-out token ids until the tokens would
// have expired anyway.
type RevocationStore struct {
	cache *RedisCache
}

func NewRevocationStore(cache *RedisCache) *RevocationStore {
	return &RevocationStore{cache: cache}
}

// Revoke marks jti as revoked for ttl. A non-positive ttl is a no-op since
// the token is already expired.
func (s *RevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, revokedPrefix+jti, "1", ttl); err != nil {
		return errors.Wrap(err, "failed to revoke token")
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	revoked, err := s.cache.Exists(ctx, revokedPrefix+jti)
	if err != nil {
		return false, errors.Wrap(err, "failed to check token revocation")
	}
	return revoked, nil
}
