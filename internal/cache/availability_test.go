package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	VenueID uint     `json:"venue_id"`
	Slots   []string `json:"slots"`
}

func setupAvailability(t *testing.T) (*miniredis.Miniredis, *Availability) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewAvailability(rdb, 30*time.Second)
}

func TestAvailability_StoreFetch(t *testing.T) {
	mr, av := setupAvailability(t)
	ctx := context.Background()

	var got listing
	assert.False(t, av.Fetch(ctx, 1, "2025-06-01", &got))

	gen, ok := av.Generation(ctx, 1)
	require.True(t, ok)
	require.True(t, av.Store(ctx, 1, "2025-06-01", gen, listing{VenueID: 1, Slots: []string{"10:00"}}))
	require.True(t, av.Fetch(ctx, 1, "2025-06-01", &got))
	assert.Equal(t, []string{"10:00"}, got.Slots)

	assert.False(t, av.Fetch(ctx, 1, "", &got), "undated listing is a separate field")

	assert.True(t, mr.Exists(AvailabilityKey(1)))
	assert.Equal(t, 30*time.Second, mr.TTL(AvailabilityKey(1)))
}

func TestAvailability_InvalidateVenues(t *testing.T) {
	_, av := setupAvailability(t)
	ctx := context.Background()

	require.True(t, av.Store(ctx, 1, "", 0, listing{VenueID: 1}))
	require.True(t, av.Store(ctx, 1, "2025-06-01", 0, listing{VenueID: 1}))
	require.True(t, av.Store(ctx, 2, "", 0, listing{VenueID: 2}))

	av.InvalidateVenues(ctx, 1)

	var got listing
	assert.False(t, av.Fetch(ctx, 1, "", &got))
	assert.False(t, av.Fetch(ctx, 1, "2025-06-01", &got))
	assert.True(t, av.Fetch(ctx, 2, "", &got))

	gen, ok := av.Generation(ctx, 1)
	require.True(t, ok)
	assert.EqualValues(t, 1, gen)
	gen, _ = av.Generation(ctx, 2)
	assert.Zero(t, gen)
}

func TestAvailability_StoreAfterInvalidationIsDropped(t *testing.T) {
	mr, av := setupAvailability(t)
	ctx := context.Background()

	// A reader takes the generation, then a commit invalidates the venue
	// before the reader's listing is written.
	gen, ok := av.Generation(ctx, 1)
	require.True(t, ok)
	av.InvalidateVenues(ctx, 1)

	assert.False(t, av.Store(ctx, 1, "2025-06-01", gen, listing{VenueID: 1, Slots: []string{"stale"}}))
	assert.False(t, mr.Exists(AvailabilityKey(1)))

	var got listing
	assert.False(t, av.Fetch(ctx, 1, "2025-06-01", &got))

	// A reader that started after the invalidation fills normally.
	gen, _ = av.Generation(ctx, 1)
	assert.True(t, av.Store(ctx, 1, "2025-06-01", gen, listing{VenueID: 1, Slots: []string{"fresh"}}))
	require.True(t, av.Fetch(ctx, 1, "2025-06-01", &got))
	assert.Equal(t, []string{"fresh"}, got.Slots)
}

func TestAvailability_StoreDoesNotExtendTTL(t *testing.T) {
	mr, av := setupAvailability(t)
	ctx := context.Background()

	require.True(t, av.Store(ctx, 4, "2025-06-01", 0, listing{VenueID: 4}))
	mr.FastForward(20 * time.Second)
	require.True(t, av.Store(ctx, 4, "2025-06-02", 0, listing{VenueID: 4}))

	assert.Equal(t, 10*time.Second, mr.TTL(AvailabilityKey(4)))

	mr.FastForward(11 * time.Second)
	var got listing
	assert.False(t, av.Fetch(ctx, 4, "2025-06-02", &got))
}

func TestAvailability_Expiry(t *testing.T) {
	mr, av := setupAvailability(t)
	ctx := context.Background()

	require.True(t, av.Store(ctx, 3, "", 0, listing{VenueID: 3}))
	mr.FastForward(time.Minute)

	var got listing
	assert.False(t, av.Fetch(ctx, 3, "", &got))
}

func TestAvailability_NilClientIsNoop(t *testing.T) {
	av := NewAvailability(nil, 0)
	ctx := context.Background()

	assert.False(t, av.Store(ctx, 1, "", 0, listing{}))
	av.InvalidateVenues(ctx, 1)
	_, ok := av.Generation(ctx, 1)
	assert.False(t, ok)

	var got listing
	assert.False(t, av.Fetch(ctx, 1, "", &got))

	var nilCache *Availability
	assert.False(t, nilCache.Fetch(ctx, 1, "", &got))
}
