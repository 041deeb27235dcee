// Package queue defines message payloads exchanged over the message broker.
package queue

// BookedSessionItem describes one successfully booked session inside a
// BookingCompletedEvent.
type BookedSessionItem struct {
	ReservationID uint64 `json:"reservation_id"`
	SessionKey    string `json:"session_key"`
	CourseTitle   string `json:"course_title"`
	Date          string `json:"date"`
}

// FailedSessionItem describes one session that could not be booked in a
// batch submission, with the store's reason code.
type FailedSessionItem struct {
	SessionKey string `json:"session_key"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

// BookingCompletedEvent is published after a batch submission finishes.
// A batch with partial failures still completes, so the event carries
// both lists plus the summary shown to the member.
type BookingCompletedEvent struct {
	MemberID    uint64              `json:"member_id"`
	Booked      []BookedSessionItem `json:"booked"`
	Failed      []FailedSessionItem `json:"failed"`
	Summary     string              `json:"summary"`
	CompletedAt string              `json:"completed_at"`
}

// ReservationCancelledEvent is published when a member cancels a
// confirmed reservation inside the allowed window.
type ReservationCancelledEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	MemberID      uint64 `json:"member_id"`
	SessionKey    string `json:"session_key"`
	SessionStart  string `json:"session_start"`
	CancelledAt   string `json:"cancelled_at"`
}
