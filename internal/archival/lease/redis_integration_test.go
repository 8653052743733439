//go:build integration

package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verikeep/internal/archival/lease"
	"verikeep/pkg/testutil/containers"
)

type RedisLeaseSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLeaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLeaseSuite))
}

func (s *RedisLeaseSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisLeaseSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLeaseSuite) TestAcquireRelease() {
	ctx := context.Background()

	a, err := lease.NewRedisLease(s.redis.Client, time.Minute)
	s.Require().NoError(err)
	b, err := lease.NewRedisLease(s.redis.Client, time.Minute)
	s.Require().NoError(err)

	ok, err := a.TryAcquire(ctx)
	s.Require().NoError(err)
	s.True(ok)

	// A second replica cannot acquire while the lease is held.
	ok, err = b.TryAcquire(ctx)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(a.Release(ctx))

	ok, err = b.TryAcquire(ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Require().NoError(b.Release(ctx))
}

func (s *RedisLeaseSuite) TestReleaseWithoutAcquireIsNoop() {
	ctx := context.Background()

	a, err := lease.NewRedisLease(s.redis.Client, time.Minute)
	s.Require().NoError(err)
	s.NoError(a.Release(ctx))
}

// TestHolderCrashExpires covers the crash path: a lease that is never
// released frees itself after the TTL.
func (s *RedisLeaseSuite) TestHolderCrashExpires() {
	ctx := context.Background()

	crashed, err := lease.NewRedisLease(s.redis.Client, 200*time.Millisecond)
	s.Require().NoError(err)
	ok, err := crashed.TryAcquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	next, err := lease.NewRedisLease(s.redis.Client, time.Minute)
	s.Require().NoError(err)

	s.Eventually(func() bool {
		ok, err := next.TryAcquire(ctx)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)
	s.Require().NoError(next.Release(ctx))
}

// TestStaleReleaseDoesNotStealLease: a holder whose lease expired and was
// re-acquired elsewhere must not delete the new holder's lease on release.
func (s *RedisLeaseSuite) TestStaleReleaseDoesNotStealLease() {
	ctx := context.Background()

	stale, err := lease.NewRedisLease(s.redis.Client, 200*time.Millisecond)
	s.Require().NoError(err)
	ok, err := stale.TryAcquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	time.Sleep(400 * time.Millisecond)

	current, err := lease.NewRedisLease(s.redis.Client, time.Minute)
	s.Require().NoError(err)
	ok, err = current.TryAcquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().NoError(stale.Release(ctx))

	// The current holder's lease must still stand.
	third, err := lease.NewRedisLease(s.redis.Client, time.Minute)
	s.Require().NoError(err)
	ok, err = third.TryAcquire(ctx)
	s.Require().NoError(err)
	s.False(ok)
}
