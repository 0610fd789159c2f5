package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blocklist records revoked token ids. Entries expire on their own
// once the underlying token would have expired anyway, so no cleanup
// job is needed.
type Blocklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// BlocklistRepo keeps revoked jtis in Redis under blocklist:{jti} with
// a TTL equal to the token's remaining validity.
type BlocklistRepo struct{ client *redis.Client }

func NewBlocklistRepo(client *redis.Client) *BlocklistRepo {
	return &BlocklistRepo{client: client}
}

func blocklistKey(jti string) string { return "blocklist:" + jti }

// Revoke inserts the jti. A non-positive ttl means the token is
// already expired and there is nothing to record.
func (r *BlocklistRepo) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, blocklistKey(jti), "1", ttl).Err()
}

func (r *BlocklistRepo) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, blocklistKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
