package booking

import (
	"fmt"
	"strings"
	"time"
)

// FailureReason is the closed set of per-item failure codes the store
// may report for a batch submission.  These are expected, recoverable
// outcomes for the viewer, never errors.
type FailureReason string

const (
	// ReasonFull: capacity was reached between selection and submission.
	ReasonFull FailureReason = "FULL"
	// ReasonWithinLeadTime: the lead-time rule tripped between selection
	// and submission.
	ReasonWithinLeadTime FailureReason = "WITHIN_24H"
	// ReasonMembershipExpired: the viewer's membership does not cover the
	// booking.  The store's verdict is authoritative over the advisory
	// pre-check.
	ReasonMembershipExpired FailureReason = "MEMBERSHIP_EXPIRED"
	// ReasonAlreadyBooked: a confirmed reservation already exists for this
	// (viewer, session) pair, e.g. the same item was resubmitted.
	ReasonAlreadyBooked FailureReason = "ALREADY_BOOKED"
	// ReasonSessionCancelled: the session was withdrawn between selection
	// and submission.
	ReasonSessionCancelled FailureReason = "SESSION_CANCELLED"
)

// reasonText maps a failure code to the human-readable wording used in
// the batch summary.  The lead-time wording is derived from the
// configured window, never hardcoded, so a non-default window does not
// produce lying copy.
func reasonText(r FailureReason, window time.Duration) string {
	switch r {
	case ReasonFull:
		return "the session is full"
	case ReasonWithinLeadTime:
		return fmt.Sprintf("bookings close %d hours before start", int(window.Hours()))
	case ReasonMembershipExpired:
		return "your membership has expired"
	case ReasonAlreadyBooked:
		return "you already booked this session"
	case ReasonSessionCancelled:
		return "the session was cancelled"
	default:
		return "the booking could not be completed"
	}
}

// StoreItemOutcome is the store's verdict on one submitted item.
type StoreItemOutcome struct {
	Key           SessionKey
	ReservationID uint64        // set on success
	Reason        FailureReason // set on failure
}

// StoreBatchResult is the raw per-item outcome list returned by the
// backing store.  The whole batch is one request; each item succeeds or
// fails independently.
type StoreBatchResult struct {
	Successes []StoreItemOutcome
	Failures  []StoreItemOutcome
}

// BatchOutcome is one submitted item's result enriched with session
// display data for the presentation layer.
type BatchOutcome struct {
	Key           SessionKey    `json:"session_key"`
	Title         string        `json:"title"`
	Date          string        `json:"date"`
	ReservationID uint64        `json:"reservation_id,omitempty"`
	Reason        FailureReason `json:"reason,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// BatchResult is what a batch submission returns to the caller: every
// item accounted for, plus a single combined summary so the sessions
// that were booked are never lost from the viewer's attention next to
// the ones that failed.
type BatchResult struct {
	Successes []BatchOutcome `json:"successes"`
	Failures  []BatchOutcome `json:"failures"`
	Summary   string         `json:"summary"`
}

// buildSummary renders the combined human-readable summary.
func buildSummary(res *BatchResult) string {
	total := len(res.Successes) + len(res.Failures)
	var b strings.Builder
	fmt.Fprintf(&b, "Booked %d of %d sessions.", len(res.Successes), total)
	for _, o := range res.Successes {
		fmt.Fprintf(&b, "\nBooked: %s on %s.", o.Title, o.Date)
	}
	for _, o := range res.Failures {
		fmt.Fprintf(&b, "\nNot booked: %s on %s (%s).", o.Title, o.Date, o.Message)
	}
	return b.String()
}
