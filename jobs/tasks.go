package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gatewarden/gatewarden/internal/acl"
	"github.com/gatewarden/gatewarden/internal/aclstore"
	"github.com/gatewarden/gatewarden/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheInvalidate bumps the cache version so every cached
	// mask and group lookup is re-read from the store.
	TaskCacheInvalidate = "acl:cache:invalidate"
	// TaskCacheWarm pre-resolves permissions for configured identities
	// so their first live request hits a warm cache.
	TaskCacheWarm = "acl:cache:warm"
)

// CacheInvalidatePayload carries the reason a bump was requested.
type CacheInvalidatePayload struct {
	Reason string `json:"reason"`
}

// CacheWarmPayload names the identity/class pairs to pre-resolve.
type CacheWarmPayload struct {
	Identities []string `json:"identities"`
	Classes    []string `json:"classes"`
}

// NewCacheInvalidateTask constructs an Asynq task.
func NewCacheInvalidateTask(payload CacheInvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheInvalidate, data), nil
}

// NewCacheWarmTask constructs an Asynq task.
func NewCacheWarmTask(payload CacheWarmPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarm, data), nil
}

// Resolver is the slice of the permission engine the warm task uses.
type Resolver interface {
	Resolve(ctx context.Context, q acl.Query) (acl.Resolution, error)
}

// NewCacheInvalidateHandler processes TaskCacheInvalidate tasks.
func NewCacheInvalidateHandler(cache *aclstore.Cache, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CacheInvalidatePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := cache.Bump(ctx); err != nil {
			metrics.RecordJob(TaskCacheInvalidate, "error")
			return err
		}
		logger.Info("acl cache invalidated", slog.String("reason", payload.Reason))
		metrics.RecordJob(TaskCacheInvalidate, "ok")
		return nil
	}
}

// NewCacheWarmHandler processes TaskCacheWarm tasks. Resolution failures
// for individual pairs are logged and skipped so one dangling identity
// does not starve the rest of the warm set.
func NewCacheWarmHandler(resolver Resolver, logger *slog.Logger, metrics *observability.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CacheWarmPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		warmed := 0
		for _, raw := range payload.Identities {
			id, err := acl.ParseIdentity(raw)
			if err != nil {
				logger.Warn("skip warm identity", slog.String("identity", raw), slog.Any("error", err))
				continue
			}
			for _, class := range payload.Classes {
				if _, err := resolver.Resolve(ctx, acl.Query{Identity: id, Class: class}); err != nil {
					logger.Warn("warm resolve failed",
						slog.String("identity", raw),
						slog.String("class", class),
						slog.Any("error", err))
					continue
				}
				warmed++
			}
		}
		logger.Info("acl cache warmed", slog.Int("entries", warmed))
		metrics.RecordJob(TaskCacheWarm, "ok")
		return nil
	}
}
