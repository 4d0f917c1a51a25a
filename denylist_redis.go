package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// DefaultDenylistPrefix namespaces denylist keys in redis.
const DefaultDenylistPrefix = "auth:refresh:revoked:"

// RedisDenylist stores revoked refresh token ids in redis with a TTL matching
// the token's remaining lifetime, so entries clean themselves up.
type RedisDenylist struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ RefreshDenylist = (*RedisDenylist)(nil)

// NewRedisDenylist creates a RedisDenylist. An empty prefix uses DefaultDenylistPrefix.
func NewRedisDenylist(client redis.UniversalClient, prefix string) *RedisDenylist {
	if prefix == "" {
		prefix = DefaultDenylistPrefix
	}
	return &RedisDenylist{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (d *RedisDenylist) key(tokenID string) string {
	return fmt.Sprintf("%s%s", d.prefix, tokenID)
}

// Revoke implements RefreshDenylist.
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, d.key(tokenID), "1", ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke refresh token")
	}
	return nil
}

// Claim implements RefreshDenylist with SET NX, so concurrent callers across
// processes agree on a single first use.
func (d *RedisDenylist) Claim(ctx context.Context, tokenID string, until time.Time) (bool, error) {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return true, nil
	}

	ok, err := d.client.SetNX(ctx, d.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to claim refresh token")
	}
	return ok, nil
}

// IsRevoked reports whether tokenID is currently denied.
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(tokenID)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to check refresh denylist")
	}
	return n > 0, nil
}
