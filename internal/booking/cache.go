package booking

import (
	"time"

	"github.com/talkademy/booking-api/internal/model"
)

// ReservationEntry is the cache's unit of state: one reservation the
// viewer holds, as a flat {sessionKey, reservationId, status} tuple plus
// the session start needed for the cancellation window check.  The store
// returns the same shape from ListViewerReservations so the cache can be
// discarded and rebuilt at any time.
type ReservationEntry struct {
	ReservationID uint64
	Key           SessionKey
	Status        string // CONFIRMED | CANCELLED
	SessionStart  time.Time
}

// ReservationCache is the in-process mirror of "which sessions does this
// viewer hold".  The backing store stays the system of record: the cache
// is rebuilt from it on load and patched after each confirmed mutation,
// never mutated on ambiguous outcomes.  Entry transitions are monotonic
// (created, then CONFIRMED -> CANCELLED) and idempotent to re-apply, so
// last-write-wins between the transactor and the enforcer is safe.
// Not safe for concurrent use; the owning Service serializes access.
type ReservationCache struct {
	byKey map[SessionKey]ReservationEntry
}

// NewReservationCache returns an empty cache.
func NewReservationCache() *ReservationCache {
	return &ReservationCache{byKey: make(map[SessionKey]ReservationEntry)}
}

// ReplaceAll discards the cache contents and installs the store's view.
func (c *ReservationCache) ReplaceAll(entries []ReservationEntry) {
	c.byKey = make(map[SessionKey]ReservationEntry, len(entries))
	for _, e := range entries {
		// Keep a CONFIRMED entry over a CANCELLED one for the same key so a
		// rebooked session is reported as held.
		if cur, ok := c.byKey[e.Key]; ok && cur.Status == model.ReservationConfirmed {
			continue
		}
		c.byKey[e.Key] = e
	}
}

// Confirm records a freshly created reservation.  Called by the batch
// transactor for every per-item success, before any catalog reload, so
// the session reads ALREADY_BOOKED on the very next render.
func (c *ReservationCache) Confirm(key SessionKey, reservationID uint64, start time.Time) {
	c.byKey[key] = ReservationEntry{
		ReservationID: reservationID,
		Key:           key,
		Status:        model.ReservationConfirmed,
		SessionStart:  start,
	}
}

// MarkCancelled flips the entry for the reservation to CANCELLED.  It is
// a no-op when the reservation is not in the cache.
func (c *ReservationCache) MarkCancelled(reservationID uint64) {
	for key, e := range c.byKey {
		if e.ReservationID == reservationID {
			e.Status = model.ReservationCancelled
			c.byKey[key] = e
			return
		}
	}
}

// HasConfirmed reports whether the viewer holds a confirmed reservation
// for the session key.  Satisfies ReservationLookup for the classifier.
func (c *ReservationCache) HasConfirmed(key SessionKey) bool {
	e, ok := c.byKey[key]
	return ok && e.Status == model.ReservationConfirmed
}

// FindByReservationID returns the entry holding the reservation id.
func (c *ReservationCache) FindByReservationID(reservationID uint64) (ReservationEntry, bool) {
	for _, e := range c.byKey {
		if e.ReservationID == reservationID {
			return e, true
		}
	}
	return ReservationEntry{}, false
}

// Confirmed returns the keys of all confirmed reservations.
func (c *ReservationCache) Confirmed() []SessionKey {
	keys := make([]SessionKey, 0, len(c.byKey))
	for key, e := range c.byKey {
		if e.Status == model.ReservationConfirmed {
			keys = append(keys, key)
		}
	}
	return keys
}
