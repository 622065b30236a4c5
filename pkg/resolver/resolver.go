// Package resolver turns image references into display URLs.
//
// Passthrough references are returned as-is. Legacy identifiers map to the static-file
// endpoint when enabled. Everything else goes through a metadata lookup followed by a
// signed URL request. Successful results are cached; concurrent misses for the same
// reference share one computation. Failures degrade to "" (or the legacy URL) per
// reference and never fail a batch.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tripsnap/api/pkg/cache"
	"github.com/tripsnap/api/pkg/filemeta"
	"github.com/tripsnap/api/pkg/imageref"
	"github.com/tripsnap/api/pkg/logging"
	"github.com/tripsnap/api/pkg/metrics"
)

// DefaultSignTTL is the lifetime requested for signed URLs
const DefaultSignTTL = 3600 * time.Second

const cacheKeyPrefix = "image:"

// Backend is the part of the files API the resolver depends on
type Backend interface {
	LookupFile(ctx context.Context, fileID string) (*filemeta.FileMetadata, error)
	SignURL(ctx context.Context, subject, object string, ttl time.Duration) (string, error)
	LegacyURL(fileID string) string
}

// Options tunes a Resolver
type Options struct {
	LegacyEnabled bool          // Resolve legacy ids to the static-file URL instead of a placeholder
	SignTTL       time.Duration // Defaults to DefaultSignTTL
	CacheTTL      time.Duration // 0 keeps resolved URLs for the cache's lifetime
	DebugIDs      []string      // References logged verbosely
}

// Resolver resolves image references to display URLs
type Resolver struct {
	backend       Backend
	cache         cache.Cache
	group         singleflight.Group
	legacyEnabled bool
	signTTL       time.Duration
	cacheTTL      time.Duration
	debugIDs      map[string]struct{}
	logger        *zap.Logger
}

// cachedImage is the value stored per reference
type cachedImage struct {
	URL        string    `json:"url"`
	Kind       string    `json:"kind"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// New creates a resolver that owns no state beyond the given cache
func New(backend Backend, c cache.Cache, opts Options) *Resolver {
	signTTL := opts.SignTTL
	if signTTL <= 0 {
		signTTL = DefaultSignTTL
	}
	debugIDs := make(map[string]struct{}, len(opts.DebugIDs))
	for _, id := range opts.DebugIDs {
		debugIDs[id] = struct{}{}
	}
	return &Resolver{
		backend:       backend,
		cache:         c,
		legacyEnabled: opts.LegacyEnabled,
		signTTL:       signTTL,
		cacheTTL:      opts.CacheTTL,
		debugIDs:      debugIDs,
		logger:        logging.Named("resolver"),
	}
}

// Resolve resolves every reference concurrently. The result has the same length and
// order as ids; unresolvable entries are "".
func (r *Resolver) Resolve(ctx context.Context, ids []string, viewer string) []string {
	start := time.Now()
	urls := make([]string, len(ids))

	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			urls[i] = r.ResolveOne(ctx, id, viewer)
			return nil
		})
	}
	_ = g.Wait()

	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	r.logger.Debug("Resolved batch",
		zap.Int("count", len(ids)),
		zap.String("viewer", viewer),
		zap.Duration("took", time.Since(start)))

	return urls
}

// ResolveOne resolves a single reference. It returns "" when the reference cannot be
// resolved or ctx ends while waiting.
func (r *Resolver) ResolveOne(ctx context.Context, id, viewer string) string {
	kind := imageref.Classify(id)
	if kind == imageref.Passthrough {
		metrics.ResolutionsTotal.WithLabelValues(kind.String(), "passthrough").Inc()
		return id
	}

	if url, ok := r.cached(ctx, id); ok {
		metrics.CacheHitsTotal.Inc()
		metrics.ResolutionsTotal.WithLabelValues(kind.String(), "cached").Inc()
		r.trace(id, "Served from cache", zap.String("url", url))
		return url
	}

	// The shared computation outlives any single caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(id, func() (interface{}, error) {
		// A caller that finished between our miss and joining the group has already stored the result.
		if url, ok := r.cached(shared, id); ok {
			metrics.CacheHitsTotal.Inc()
			return url, nil
		}
		return r.compute(shared, id, kind, viewer), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.SharedResolutionsTotal.Inc()
		}
		url, _ := res.Val.(string)
		return url
	case <-ctx.Done():
		r.logger.Debug("Stopped waiting for resolution",
			zap.String("id", id),
			zap.Error(ctx.Err()))
		return ""
	}
}

// Forget drops a cached resolution so the next request recomputes it
func (r *Resolver) Forget(ctx context.Context, id string) error {
	r.group.Forget(id)
	if err := r.cache.Delete(ctx, cacheKey(id)); err != nil {
		return fmt.Errorf("failed to forget %s: %w", id, err)
	}
	return nil
}

func (r *Resolver) cached(ctx context.Context, id string) (string, bool) {
	var entry cachedImage
	if err := r.cache.Get(ctx, cacheKey(id), &entry); err != nil {
		if !errors.Is(err, cache.ErrCacheNotFound) && !errors.Is(err, cache.ErrCacheExpired) {
			r.logger.Warn("Cache read failed", zap.String("id", id), zap.Error(err))
		}
		return "", false
	}
	if entry.URL == "" {
		return "", false
	}
	return entry.URL, true
}

// compute resolves a cache miss and stores non-empty results
func (r *Resolver) compute(ctx context.Context, id string, kind imageref.Kind, viewer string) string {
	url, err := r.fetch(ctx, id, kind, viewer)
	if err != nil {
		if kind == imageref.Legacy {
			url = r.legacyFallback(id)
			metrics.ResolutionsTotal.WithLabelValues(kind.String(), "fallback").Inc()
		} else {
			metrics.ResolutionsTotal.WithLabelValues(kind.String(), "error").Inc()
		}
		r.logger.Warn("Image resolution failed",
			zap.String("id", id),
			zap.String("kind", kind.String()),
			zap.Bool("fallback", url != ""),
			zap.Error(err))
		return url
	}

	if url == "" {
		metrics.ResolutionsTotal.WithLabelValues(kind.String(), "empty").Inc()
		r.trace(id, "Resolved to placeholder")
		return ""
	}

	entry := cachedImage{URL: url, Kind: kind.String(), ResolvedAt: time.Now().UTC()}
	if err := r.cache.Set(ctx, cacheKey(id), entry, r.cacheTTL); err != nil {
		r.logger.Warn("Cache write failed", zap.String("id", id), zap.Error(err))
	}
	metrics.ResolutionsTotal.WithLabelValues(kind.String(), "resolved").Inc()
	r.trace(id, "Resolved", zap.String("url", url))
	return url
}

// fetch performs the lookup and signing steps. Panics from the backend surface as errors.
func (r *Resolver) fetch(ctx context.Context, id string, kind imageref.Kind, viewer string) (url string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic resolving %s: %v", id, rec)
		}
	}()

	if kind == imageref.Legacy {
		if !r.legacyEnabled {
			return "", nil
		}
		return r.backend.LegacyURL(id), nil
	}

	meta, err := r.backend.LookupFile(ctx, id)
	if err != nil {
		return "", fmt.Errorf("lookup failed: %w", err)
	}

	subject := viewer
	var object string
	if meta != nil {
		object = meta.Object
		if meta.Owner != "" {
			subject = meta.Owner
		}
	}
	r.trace(id, "Looked up file",
		zap.Bool("found", meta != nil),
		zap.String("object", object),
		zap.String("subject", subject))

	if object == "" || subject == "" {
		return "", nil
	}

	url, err = r.backend.SignURL(ctx, subject, object, r.signTTL)
	if err != nil {
		return "", fmt.Errorf("sign failed: %w", err)
	}
	return url, nil
}

// legacyFallback is the static-file URL for a legacy id, or "" if building it panics
func (r *Resolver) legacyFallback(id string) (url string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Legacy fallback panicked", zap.String("id", id), zap.Any("panic", rec))
			url = ""
		}
	}()
	return r.backend.LegacyURL(id)
}

// trace logs at info level for references on the debug allow-list
func (r *Resolver) trace(id, msg string, fields ...zap.Field) {
	if _, ok := r.debugIDs[id]; !ok {
		return
	}
	r.logger.Info(msg, append([]zap.Field{zap.String("id", id)}, fields...)...)
}

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}
