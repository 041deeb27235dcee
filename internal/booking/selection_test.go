package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionAddOnlyAvailable(t *testing.T) {
	set := NewSelectionSet()
	s := testSession(1, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 3)

	require.NoError(t, set.Add(s, StatusAvailable))
	assert.Equal(t, 1, set.Len())

	for _, status := range []Status{StatusFull, StatusLocked, StatusCancelled, StatusAlreadyBooked} {
		other := testSession(2, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), 8, 3)
		err := set.Add(other, status)
		assert.ErrorIs(t, err, ErrNotSelectable)
	}
	assert.Equal(t, 1, set.Len())
}

func TestSelectionDuplicateAddIsNoOp(t *testing.T) {
	set := NewSelectionSet()
	s := testSession(1, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 3)

	require.NoError(t, set.Add(s, StatusAvailable))
	require.NoError(t, set.Add(s, StatusAvailable))
	assert.Equal(t, 1, set.Len())
}

func TestSelectionToggleRoundTrip(t *testing.T) {
	set := NewSelectionSet()
	s := testSession(1, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 3)

	selected, err := set.Toggle(s, StatusAvailable)
	require.NoError(t, err)
	assert.True(t, selected)
	assert.True(t, set.Contains(KeyOf(s)))

	selected, err = set.Toggle(s, StatusAvailable)
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Equal(t, 0, set.Len())
}

func TestSelectionToggleRemovesEvenWhenNoLongerAvailable(t *testing.T) {
	set := NewSelectionSet()
	s := testSession(1, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 3)
	require.NoError(t, set.Add(s, StatusAvailable))

	// Session went FULL since selection; removal must still work.
	selected, err := set.Toggle(s, StatusFull)
	require.NoError(t, err)
	assert.False(t, selected)
}

func TestSelectionInsertionOrderPreserved(t *testing.T) {
	set := NewSelectionSet()
	first := testSession(3, time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC), 8, 0)
	second := testSession(1, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 0)
	third := testSession(2, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), 8, 0)

	require.NoError(t, set.Add(first, StatusAvailable))
	require.NoError(t, set.Add(second, StatusAvailable))
	require.NoError(t, set.Add(third, StatusAvailable))

	entries := set.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, KeyOf(first), entries[0].Key)
	assert.Equal(t, KeyOf(second), entries[1].Key)
	assert.Equal(t, KeyOf(third), entries[2].Key)
}

func TestSelectionGroupedByDate(t *testing.T) {
	set := NewSelectionSet()
	mar10Late := testSession(1, time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), 8, 0)
	mar10Early := testSession(2, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 0)
	mar9 := testSession(3, time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC), 8, 0)

	require.NoError(t, set.Add(mar10Late, StatusAvailable))
	require.NoError(t, set.Add(mar10Early, StatusAvailable))
	require.NoError(t, set.Add(mar9, StatusAvailable))

	groups := set.Grouped()
	require.Len(t, groups, 2)
	assert.Equal(t, "2026-03-09", groups[0].Date)
	assert.Equal(t, "2026-03-10", groups[1].Date)
	// Within the day, start time ascending.
	require.Len(t, groups[1].Sessions, 2)
	assert.Equal(t, KeyOf(mar10Early), groups[1].Sessions[0].Key)
	assert.Equal(t, KeyOf(mar10Late), groups[1].Sessions[1].Key)
}

func TestSelectionRemoveAndClear(t *testing.T) {
	set := NewSelectionSet()
	a := testSession(1, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 0)
	b := testSession(2, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), 8, 0)
	require.NoError(t, set.Add(a, StatusAvailable))
	require.NoError(t, set.Add(b, StatusAvailable))

	set.Remove(KeyOf(a))
	assert.False(t, set.Contains(KeyOf(a)))
	assert.True(t, set.Contains(KeyOf(b)))

	// Removing an absent key is harmless.
	set.Remove(KeyOf(a))
	assert.Equal(t, 1, set.Len())

	set.Clear()
	assert.Equal(t, 0, set.Len())
}

func TestSelectionEntriesIsACopy(t *testing.T) {
	set := NewSelectionSet()
	a := testSession(1, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 8, 0)
	require.NoError(t, set.Add(a, StatusAvailable))

	entries := set.Entries()
	entries[0].Key = "tampered"
	assert.True(t, set.Contains(KeyOf(a)))
}
