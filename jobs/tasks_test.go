package jobs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/aclstore"
	"github.com/gatewarden/gatewarden/internal/observability"

	_ "github.com/gatewarden/gatewarden/testing"
)

type stubResolver struct {
	queries []acl.Query
	err     error
}

func (s *stubResolver) Resolve(ctx context.Context, q acl.Query) (acl.Resolution, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return acl.Resolution{}, s.err
	}
	return acl.Resolution{Identity: q.Identity}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCacheInvalidateHandlerBumpsVersion(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := aclstore.NewCache(client, time.Minute)

	ctx := context.Background()
	before, err := cache.Version(ctx)
	require.NoError(t, err)

	handler := NewCacheInvalidateHandler(cache, testLogger(), observability.NewMetrics())
	task, err := NewCacheInvalidateTask(CacheInvalidatePayload{Reason: "entries changed"})
	require.NoError(t, err)
	require.NoError(t, handler(ctx, task))

	after, err := cache.Version(ctx)
	require.NoError(t, err)
	require.Greater(t, after, before)
}

func TestCacheInvalidateHandlerSkipsBadPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := aclstore.NewCache(client, time.Minute)

	handler := NewCacheInvalidateHandler(cache, testLogger(), observability.NewMetrics())
	err := handler(context.Background(), asynq.NewTask(TaskCacheInvalidate, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestCacheWarmHandlerResolvesEveryPair(t *testing.T) {
	resolver := &stubResolver{}
	handler := NewCacheWarmHandler(resolver, testLogger(), observability.NewMetrics())

	payload := CacheWarmPayload{
		Identities: []string{"user:alice", "role:EDITOR"},
		Classes:    []string{"Document", "Invoice"},
	}
	task, err := NewCacheWarmTask(payload)
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	require.Len(t, resolver.queries, 4)
	require.Equal(t, acl.UserIdentity("alice"), resolver.queries[0].Identity)
	require.Equal(t, "Document", resolver.queries[0].Class)
}

func TestCacheWarmHandlerSkipsBadIdentities(t *testing.T) {
	resolver := &stubResolver{}
	handler := NewCacheWarmHandler(resolver, testLogger(), observability.NewMetrics())

	data, err := json.Marshal(CacheWarmPayload{
		Identities: []string{"not-an-identity", "user:alice"},
		Classes:    []string{"Document"},
	})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), asynq.NewTask(TaskCacheWarm, data)))

	require.Len(t, resolver.queries, 1)
	require.Equal(t, acl.UserIdentity("alice"), resolver.queries[0].Identity)
}
