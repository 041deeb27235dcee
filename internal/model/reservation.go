package model

import "time"

// Lifecycle states for a reservation.  Reservations are never deleted;
// cancellation flips the status so the audit trail survives.
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
)

// Reservation links a member to a class session once booked.  At most
// one CONFIRMED reservation may exist per (member, session) pair; the
// store enforces this during batch submission.
//
// Fields:
//  ID        – primary key identifier, assigned by the store.
//  MemberID  – member who holds the reservation.
//  SessionID – class session being reserved (surrogate row id).
//  Status    – CONFIRMED or CANCELLED.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64    // reservations.id
	MemberID  uint64    // reservations.member_id
	SessionID uint64    // reservations.session_id
	Status    string    // reservations.status
	CreatedAt time.Time // reservations.created_at
	UpdatedAt time.Time // reservations.updated_at
}
