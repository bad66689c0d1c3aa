package aclstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatewarden/gatewarden/internal/acl"
)

const (
	cacheVersionKey = "acl:version"
	bumpChannel     = "acl.bump"
)

// Cache wraps Redis based caching of ACL lookups with versioning controls.
// Invalidation bumps a global version key so stale entries simply stop
// being addressed; they expire through their TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("aclstore: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the cache by incrementing the global version and
// publishing the new version for other processes.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bump notifications so this
// process adopts versions bumped elsewhere.
func (c *Cache) ListenForInvalidation(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, bumpChannel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
					_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
				}
			}
		}
	}()
	return nil
}

// CachedStore decorates a Store with cached mask and group lookups.
// Reads flow through the versioned cache; writes go straight to the store
// and bump the version.
type CachedStore struct {
	*Store
	cache *Cache
}

// NewCachedStore wraps the store with the cache.
func NewCachedStore(store *Store, cache *Cache) *CachedStore {
	return &CachedStore{Store: store, cache: cache}
}

// LoadMask serves stored masks through the cache.
func (s *CachedStore) LoadMask(ctx context.Context, id acl.Identity, domain acl.Domain) (acl.Mask, error) {
	class, objectID, field := domainParts(domain)
	key, err := s.cache.BuildKey(ctx, "acl", "mask", id.String(), class, objectID, field)
	if err != nil {
		return 0, err
	}
	var mask acl.Mask
	err = s.cache.FetchJSON(ctx, key, &mask, func(ctx context.Context) (interface{}, error) {
		return s.Store.LoadMask(ctx, id, domain)
	})
	return mask, err
}

// GroupsOf serves group membership through the cache.
func (s *CachedStore) GroupsOf(ctx context.Context, principal string) ([]string, error) {
	key, err := s.cache.BuildKey(ctx, "acl", "groups", principal)
	if err != nil {
		return nil, err
	}
	var groups []string
	err = s.cache.FetchJSON(ctx, key, &groups, func(ctx context.Context) (interface{}, error) {
		return s.Store.GroupsOf(ctx, principal)
	})
	return groups, err
}

// Grant writes through to the store and invalidates cached reads.
func (s *CachedStore) Grant(ctx context.Context, id acl.Identity, class, objectID, field string, mask acl.Mask) error {
	if err := s.Store.Grant(ctx, id, class, objectID, field, mask); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

// Revoke writes through to the store and invalidates cached reads.
func (s *CachedStore) Revoke(ctx context.Context, id acl.Identity, class, objectID, field string) error {
	if err := s.Store.Revoke(ctx, id, class, objectID, field); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}

// SetFields writes through to the store and invalidates cached reads.
func (s *CachedStore) SetFields(ctx context.Context, class string, fields []string) error {
	if err := s.Store.SetFields(ctx, class, fields); err != nil {
		return err
	}
	return s.cache.Bump(ctx)
}
