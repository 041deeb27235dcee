package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkademy/booking-api/internal/model"
)

func testSession(courseID uint64, start time.Time, capacity, enrolled int) model.ClassSession {
	return model.ClassSession{
		DisplayID:    courseID * 100,
		CourseID:     courseID,
		CourseTitle:  "Business English",
		LessonNumber: 1,
		LessonTitle:  "Introductions",
		Instructor:   "Sato",
		StartsAt:     start,
		EndsAt:       start.Add(50 * time.Minute),
		Capacity:     capacity,
		Enrolled:     enrolled,
		Status:       model.SessionScheduled,
	}
}

func TestClassifyAvailable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(72*time.Hour), 8, 3)

	status, reason := DefaultRules().Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusAvailable, status)
	assert.Empty(t, reason)
}

func TestClassifyFull(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(72*time.Hour), 8, 8)

	status, _ := DefaultRules().Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusFull, status)
}

func TestClassifyUnlimitedCapacityNeverFull(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(72*time.Hour), 0, 500)

	status, _ := DefaultRules().Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusAvailable, status)
}

func TestClassifyLockedInsideLeadTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(23*time.Hour), 8, 3)

	status, reason := DefaultRules().Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusLocked, status)
	assert.Contains(t, reason, "24 hours")
}

func TestClassifyLockedByPassageOfTime(t *testing.T) {
	start := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	s := testSession(1, start, 8, 3)
	rules := DefaultRules()

	status, _ := rules.Classify(s, NewReservationCache(), start.Add(-30*time.Hour))
	assert.Equal(t, StatusAvailable, status)

	// Same session, same catalog data; only the clock moved.
	status, _ = rules.Classify(s, NewReservationCache(), start.Add(-20*time.Hour))
	assert.Equal(t, StatusLocked, status)
}

func TestClassifyCancelledSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(72*time.Hour), 8, 3)
	s.Status = model.SessionCancelled

	status, _ := DefaultRules().Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusCancelled, status)
}

func TestClassifyAlreadyBookedWinsOverEverything(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	// Cancelled, inside lead time and full all at once.
	s := testSession(1, now.Add(1*time.Hour), 4, 4)
	s.Status = model.SessionCancelled

	cache := NewReservationCache()
	cache.Confirm(KeyOf(s), 77, s.StartsAt)

	status, _ := DefaultRules().Classify(s, cache, now)
	assert.Equal(t, StatusAlreadyBooked, status)
}

func TestClassifyCancelledWinsOverLockedAndFull(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(1*time.Hour), 4, 4)
	s.Status = model.SessionCancelled

	status, _ := DefaultRules().Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusCancelled, status)
}

func TestClassifyLockedWinsOverFull(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(1*time.Hour), 4, 4)

	status, _ := DefaultRules().Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusLocked, status)
}

func TestClassifyIsPure(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(72*time.Hour), 8, 3)
	cache := NewReservationCache()
	rules := DefaultRules()

	first, firstReason := rules.Classify(s, cache, now)
	for i := 0; i < 10; i++ {
		status, reason := rules.Classify(s, cache, now)
		require.Equal(t, first, status)
		require.Equal(t, firstReason, reason)
	}
}

func TestClassifyCustomLeadTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := testSession(1, now.Add(36*time.Hour), 8, 3)
	rules := Rules{LeadTime: 48 * time.Hour}

	status, _ := rules.Classify(s, NewReservationCache(), now)
	assert.Equal(t, StatusLocked, status)
}
