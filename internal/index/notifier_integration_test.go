//go:build integration

package index_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"wastetrack/internal/index"
	"wastetrack/internal/platform/redis"
	"wastetrack/pkg/testutil/containers"
)

type RedisNotifierSuite struct {
	suite.Suite

	redis  *containers.RedisContainer
	client *redis.Client
}

func (s *RedisNotifierSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())

	client, err := redis.New(s.redis.URL)
	require.NoError(s.T(), err)
	s.client = client
}

func (s *RedisNotifierSuite) SetupTest() {
	require.NoError(s.T(), s.redis.FlushAll(context.Background()))
}

func TestRedisNotifierSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisNotifierSuite))
}

func (s *RedisNotifierSuite) TestNotifyChangedEnqueues() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := index.NewRedis(s.client, "bsd:index:test", index.WithLogger(logger))

	n.NotifyChanged(ctx, "BSD-20260314-AAAA")
	n.NotifyChanged(ctx, "BSD-20260314-BBBB")
	n.NotifyChanged(ctx, "BSD-20260314-AAAA")

	// LPush prepends, so the drain order is newest first.
	got, err := s.redis.Client.LRange(ctx, "bsd:index:test", 0, -1).Result()
	require.NoError(s.T(), err)
	s.Equal([]string{"BSD-20260314-AAAA", "BSD-20260314-BBBB", "BSD-20260314-AAAA"}, got)
}

func (s *RedisNotifierSuite) TestEnqueueFailureIsSwallowed() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := index.NewRedis(s.client, "bsd:index:test", index.WithLogger(logger))

	// A wrong-type key makes LPush fail; the notifier must not panic or
	// surface the error.
	require.NoError(s.T(), s.redis.Client.Set(ctx, "bsd:index:test", "not-a-list", 0).Err())
	n.NotifyChanged(ctx, "BSD-20260314-CCCC")
}
