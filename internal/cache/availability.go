package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"courtbook/internal/middleware"
	"courtbook/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	AvailabilityKeyPrefix = "availability:venue:%d"
	// GenerationKeyPrefix counts invalidations per venue. A fill only lands
	// while the generation it read before loading is still current.
	GenerationKeyPrefix = "availability:venue:%d:gen"
	// allDatesField stores the listing requested without a date filter.
	allDatesField = "*"
)

// DefaultAvailabilityTTL applies when no TTL is configured.
const DefaultAvailabilityTTL = time.Minute

// generationTTL outlives any in-flight fill by a wide margin.
const generationTTL = 24 * time.Hour

func AvailabilityKey(venueID uint) string {
	return fmt.Sprintf(AvailabilityKeyPrefix, venueID)
}

func GenerationKey(venueID uint) string {
	return fmt.Sprintf(GenerationKeyPrefix, venueID)
}

// storeIfCurrent writes the listing only when the venue generation still
// matches. The hash TTL is set when the hash is created and never extended.
var storeIfCurrent = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
if redis.call('TTL', KEYS[1]) < 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

// Availability caches venue availability listings in one Redis hash per
// venue, keyed by date. A nil client turns every call into a no-op.
type Availability struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailability returns an availability cache. Pass a nil client to disable caching.
func NewAvailability(client *redis.Client, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	return &Availability{client: client, ttl: ttl}
}

func field(date string) string {
	if date == "" {
		return allDatesField
	}
	return date
}

// Fetch decodes the cached listing into dst and reports whether it was found.
func (a *Availability) Fetch(ctx context.Context, venueID uint, date string, dst interface{}) bool {
	if a == nil || a.client == nil {
		return false
	}
	ctx, span := observability.TraceRedisOperation(ctx, "hget")
	defer span.End()

	raw, err := a.client.HGet(ctx, AvailabilityKey(venueID), field(date)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "availability cache read failed",
				slog.Uint64("venue_id", uint64(venueID)),
				slog.String("error", err.Error()),
			)
		}
		observability.AvailabilityCacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		observability.AvailabilityCacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	observability.AvailabilityCacheLookups.WithLabelValues("hit").Inc()
	return true
}

// Generation returns the venue's invalidation counter. Read it before
// loading a listing and hand it to Store. ok is false when the cache is
// disabled or unreachable, in which case the listing must not be stored.
func (a *Availability) Generation(ctx context.Context, venueID uint) (int64, bool) {
	if a == nil || a.client == nil {
		return 0, false
	}
	ctx, span := observability.TraceRedisOperation(ctx, "get")
	defer span.End()

	gen, err := a.client.Get(ctx, GenerationKey(venueID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, true
	case err != nil:
		middleware.Logger.WarnContext(ctx, "availability generation read failed",
			slog.Uint64("venue_id", uint64(venueID)),
			slog.String("error", err.Error()),
		)
		return 0, false
	}
	return gen, true
}

// Store caches v for the venue and date unless the venue was invalidated
// after gen was read. It reports whether the listing was written.
func (a *Availability) Store(ctx context.Context, venueID uint, date string, gen int64, v interface{}) bool {
	if a == nil || a.client == nil {
		return false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	ctx, span := observability.TraceRedisOperation(ctx, "hset")
	defer span.End()

	ttl := int64(a.ttl / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	keys := []string{AvailabilityKey(venueID), GenerationKey(venueID)}
	stored, err := storeIfCurrent.Run(ctx, a.client, keys, strconv.FormatInt(gen, 10), field(date), raw, ttl).Int()
	if err != nil {
		middleware.Logger.WarnContext(ctx, "availability cache write failed",
			slog.Uint64("venue_id", uint64(venueID)),
			slog.String("error", err.Error()),
		)
		return false
	}
	if stored == 0 {
		observability.AvailabilityCacheLookups.WithLabelValues("stale_fill").Inc()
	}
	return stored == 1
}

// InvalidateVenues drops every cached listing for the given venues and bumps
// their generations so fills that started earlier are discarded.
func (a *Availability) InvalidateVenues(ctx context.Context, venueIDs ...uint) {
	if a == nil || a.client == nil || len(venueIDs) == 0 {
		return
	}
	ctx, span := observability.TraceRedisOperation(ctx, "del")
	defer span.End()

	pipe := a.client.TxPipeline()
	for _, id := range venueIDs {
		pipe.Incr(ctx, GenerationKey(id))
		pipe.Expire(ctx, GenerationKey(id), generationTTL)
		pipe.Del(ctx, AvailabilityKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		middleware.Logger.WarnContext(ctx, "availability cache invalidation failed",
			slog.Any("venue_ids", venueIDs),
			slog.String("error", err.Error()),
		)
	}
}
