package aclstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/aclstore"
	_ "github.com/gatewarden/gatewarden/testing"
)

func newCache(t *testing.T) *aclstore.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return aclstore.NewCache(client, time.Minute)
}

func TestCacheVersionInitialises(t *testing.T) {
	cache := newCache(t)
	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	// Stable across calls.
	again, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, ver, again)
}

func TestCacheFetchJSONPopulatesOnce(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "acl", "mask", "user:alice", "Document", "", "")
	require.NoError(t, err)

	loads := 0
	loader := func(context.Context) (interface{}, error) {
		loads++
		return acl.MaskOf(acl.View, acl.Edit), nil
	}

	var mask acl.Mask
	require.NoError(t, cache.FetchJSON(ctx, key, &mask, loader))
	require.Equal(t, []string{"VIEW", "EDIT"}, mask.Names())

	mask = 0
	require.NoError(t, cache.FetchJSON(ctx, key, &mask, loader))
	require.Equal(t, []string{"VIEW", "EDIT"}, mask.Names())
	require.Equal(t, 1, loads)
}

func TestCacheBumpAddressesFreshKeys(t *testing.T) {
	cache := newCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "acl", "groups", "alice")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "acl", "groups", "alice")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilCacheDelegatesToLoader(t *testing.T) {
	var cache *aclstore.Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "acl", "mask", "x")
	require.NoError(t, err)

	loads := 0
	var groups []string
	loader := func(context.Context) (interface{}, error) {
		loads++
		return []string{"editors"}, nil
	}
	require.NoError(t, cache.FetchJSON(ctx, key, &groups, loader))
	require.NoError(t, cache.FetchJSON(ctx, key, &groups, loader))
	require.Equal(t, []string{"editors"}, groups)
	require.Equal(t, 2, loads)
	require.NoError(t, cache.Bump(ctx))
}
