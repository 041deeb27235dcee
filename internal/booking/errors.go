package booking

import "errors"

// Sentinel errors returned across the package boundary.  Handlers
// translate these into HTTP status codes; per-item batch failures are
// never errors, they travel inside BatchResult.
var (
	// ErrNotSelectable is returned when a session that is not currently
	// AVAILABLE is added to the selection set.
	ErrNotSelectable = errors.New("session is not available for selection")

	// ErrSessionUnknown is returned when a session key does not match any
	// session in the projected catalog.
	ErrSessionUnknown = errors.New("unknown session")

	// ErrEmptySelection is returned when a batch is submitted with no
	// entries in the selection set.
	ErrEmptySelection = errors.New("selection is empty")

	// ErrMembershipRequired is returned before submission when the viewer
	// has no active membership.  Nothing is submitted in that case.
	ErrMembershipRequired = errors.New("active membership required")

	// ErrSubmissionInFlight is returned when a second batch submission is
	// attempted while one is still outstanding for the same viewer.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")

	// ErrCancelWindowClosed is returned when a cancellation is requested
	// with less than the lead time remaining before the session starts.
	// The check is local; the store is not contacted.
	ErrCancelWindowClosed = errors.New("cancellation window has closed")

	// ErrReservationNotFound is returned when the reservation does not
	// exist, is not confirmed, or belongs to another viewer.
	ErrReservationNotFound = errors.New("reservation not found")
)
