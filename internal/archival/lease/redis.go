package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	dErrors "verikeep/pkg/domain-errors"
)

const leaseKey = "verikeep:archival:lease"

// releaseScript deletes the lease only when the stored token is ours, so a
// replica cannot release a lease that expired and was re-acquired elsewhere.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLease is a cross-replica guard using SETNX with a TTL. The TTL bounds
// the damage of a crashed holder: the lease self-expires and the next run
// proceeds.
type RedisLease struct {
	client redis.Cmdable
	ttl    time.Duration
	token  string
}

func NewRedisLease(client redis.Cmdable, ttl time.Duration) (*RedisLease, error) {
	if client == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "redis client is required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "lease ttl must be positive")
	}
	return &RedisLease{client: client, ttl: ttl}, nil
}

func (l *RedisLease) TryAcquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to acquire archival lease")
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{leaseKey}, l.token).Err(); err != nil && err != redis.Nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to release archival lease")
	}
	l.token = ""
	return nil
}
