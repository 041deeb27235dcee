package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkademy/booking-api/internal/model"
)

func TestCacheConfirmAndLookup(t *testing.T) {
	cache := NewReservationCache()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	key := MakeKey(1, start)

	assert.False(t, cache.HasConfirmed(key))
	cache.Confirm(key, 42, start)
	assert.True(t, cache.HasConfirmed(key))

	entry, ok := cache.FindByReservationID(42)
	require.True(t, ok)
	assert.Equal(t, key, entry.Key)
	assert.Equal(t, start, entry.SessionStart)
}

func TestCacheMarkCancelled(t *testing.T) {
	cache := NewReservationCache()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	key := MakeKey(1, start)
	cache.Confirm(key, 42, start)

	cache.MarkCancelled(42)
	assert.False(t, cache.HasConfirmed(key))

	entry, ok := cache.FindByReservationID(42)
	require.True(t, ok)
	assert.Equal(t, model.ReservationCancelled, entry.Status)

	// Re-applying the same transition is idempotent.
	cache.MarkCancelled(42)
	assert.False(t, cache.HasConfirmed(key))
}

func TestCacheMarkCancelledUnknownIsNoOp(t *testing.T) {
	cache := NewReservationCache()
	cache.MarkCancelled(999)
	assert.Empty(t, cache.Confirmed())
}

func TestCacheReplaceAllPrefersConfirmed(t *testing.T) {
	cache := NewReservationCache()
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	key := MakeKey(1, start)

	// A cancelled reservation followed by a rebooking of the same session.
	cache.ReplaceAll([]ReservationEntry{
		{ReservationID: 10, Key: key, Status: model.ReservationConfirmed, SessionStart: start},
		{ReservationID: 5, Key: key, Status: model.ReservationCancelled, SessionStart: start},
	})
	assert.True(t, cache.HasConfirmed(key))

	// Same pair in the opposite order gives the same answer.
	cache.ReplaceAll([]ReservationEntry{
		{ReservationID: 5, Key: key, Status: model.ReservationCancelled, SessionStart: start},
		{ReservationID: 10, Key: key, Status: model.ReservationConfirmed, SessionStart: start},
	})
	assert.True(t, cache.HasConfirmed(key))
}

func TestCacheRebuildMatchesIncrementalState(t *testing.T) {
	start1 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	start2 := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	key1 := MakeKey(1, start1)
	key2 := MakeKey(2, start2)

	// Incremental path: confirm two, cancel one.
	incremental := NewReservationCache()
	incremental.Confirm(key1, 1, start1)
	incremental.Confirm(key2, 2, start2)
	incremental.MarkCancelled(2)

	// Rebuild path: the store reports the same final state.
	rebuilt := NewReservationCache()
	rebuilt.ReplaceAll([]ReservationEntry{
		{ReservationID: 1, Key: key1, Status: model.ReservationConfirmed, SessionStart: start1},
		{ReservationID: 2, Key: key2, Status: model.ReservationCancelled, SessionStart: start2},
	})

	assert.Equal(t, incremental.HasConfirmed(key1), rebuilt.HasConfirmed(key1))
	assert.Equal(t, incremental.HasConfirmed(key2), rebuilt.HasConfirmed(key2))
	assert.ElementsMatch(t, incremental.Confirmed(), rebuilt.Confirmed())
}
