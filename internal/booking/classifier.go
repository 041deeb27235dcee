package booking

import (
	"fmt"
	"time"

	"github.com/talkademy/booking-api/internal/model"
)

// Status is the viewer-specific booking status of a session.  It is
// derived, never stored: exactly one value exists per (session, viewer,
// timestamp) triple and it is recomputed on every render.
type Status string

const (
	StatusAvailable     Status = "AVAILABLE"
	StatusFull          Status = "FULL"
	StatusLocked        Status = "LOCKED"
	StatusCancelled     Status = "CANCELLED"
	StatusAlreadyBooked Status = "ALREADY_BOOKED"
)

// DefaultLeadTime is the lead-time rule shared by classification and
// cancellation: a session within this window of its start can neither be
// booked nor cancelled.  It is configurable through Rules; both checks
// must always read the same value.
const DefaultLeadTime = 24 * time.Hour

// Rules carries the policy constants for classification and the
// cancellation window.
type Rules struct {
	LeadTime time.Duration
}

// DefaultRules returns the production policy.
func DefaultRules() Rules { return Rules{LeadTime: DefaultLeadTime} }

// ReservationLookup answers whether the viewer currently holds a
// confirmed reservation for a session key.  *ReservationCache implements
// it.
type ReservationLookup interface {
	HasConfirmed(key SessionKey) bool
}

// Classify derives the booking status of a session for one viewer at one
// instant.  It is a pure function and performs no I/O, so it is cheap
// enough to run for a whole visible calendar range on every render.
//
// The decision order encodes the product's priority policy and must not
// be reordered:
//
//  1. viewer already holds a confirmed reservation  -> ALREADY_BOOKED
//  2. session lifecycle is CANCELLED                -> CANCELLED
//  3. start is within the lead-time window          -> LOCKED
//  4. capacity set and enrollment reached it        -> FULL
//  5. otherwise                                     -> AVAILABLE
//
// The lead-time check uses now, not catalog-load time, so a session can
// move from AVAILABLE to LOCKED purely by the passage of time.
func (r Rules) Classify(s model.ClassSession, held ReservationLookup, now time.Time) (Status, string) {
	if held != nil && held.HasConfirmed(KeyOf(s)) {
		return StatusAlreadyBooked, "you already booked this session"
	}
	if s.Status == model.SessionCancelled {
		return StatusCancelled, "this session was cancelled"
	}
	if s.StartsAt.Sub(now) <= r.LeadTime {
		return StatusLocked, fmt.Sprintf("less than %d hours before start", int(r.LeadTime.Hours()))
	}
	if s.Capacity > 0 && s.Enrolled >= s.Capacity {
		return StatusFull, "this session is full"
	}
	return StatusAvailable, ""
}
