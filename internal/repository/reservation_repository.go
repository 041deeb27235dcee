package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/talkademy/booking-api/internal/booking"
	"github.com/talkademy/booking-api/internal/model"
)

// ReservationRepo is the authoritative reservation store.  It
// implements booking.ReservationStore: the per-item verdicts it returns
// for a batch always win over whatever the client classified earlier,
// because capacity and lead time can change between selection and
// submission.  All timestamps are UTC.
type ReservationRepo struct {
	db       *sql.DB
	leadTime time.Duration
	now      func() time.Time
}

// NewReservationRepo returns a ReservationRepo.  leadTime is the shared
// booking/cancellation window (the same value the classifier uses).
func NewReservationRepo(db *sql.DB, leadTime time.Duration) *ReservationRepo {
	return &ReservationRepo{db: db, leadTime: leadTime, now: func() time.Time { return time.Now().UTC() }}
}

// SubmitBatchBooking evaluates every submitted item independently and
// returns one outcome per item; partial success is the expected shape,
// not an error.  Each item runs in its own transaction: the session row
// is locked FOR UPDATE so the capacity count cannot be raced by another
// submission, then membership, duplicates, the lead-time rule and
// capacity are checked in turn.  A transaction-level failure aborts the
// whole call and no outcome is reported for the remaining items.
func (r *ReservationRepo) SubmitBatchBooking(ctx context.Context, viewerID uint64, keys []booking.SessionKey) (booking.StoreBatchResult, error) {
	var result booking.StoreBatchResult
	for _, key := range keys {
		outcome, err := r.bookOne(ctx, viewerID, key)
		if err != nil {
			return booking.StoreBatchResult{}, err
		}
		if outcome.ReservationID != 0 {
			result.Successes = append(result.Successes, outcome)
		} else {
			result.Failures = append(result.Failures, outcome)
		}
	}
	return result, nil
}

// bookOne attempts a single reservation inside its own transaction.  A
// business rejection comes back as an outcome with a Reason; only
// infrastructure failures return an error.
func (r *ReservationRepo) bookOne(ctx context.Context, viewerID uint64, key booking.SessionKey) (booking.StoreItemOutcome, error) {
	fail := func(reason booking.FailureReason) booking.StoreItemOutcome {
		return booking.StoreItemOutcome{Key: key, Reason: reason}
	}

	courseID, start, err := key.Parse()
	if err != nil {
		// An unresolvable key behaves like a session that no longer exists.
		return fail(booking.ReasonSessionCancelled), nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return booking.StoreItemOutcome{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the session row; concurrent submissions for the same session
	// serialize here, so the capacity count below cannot be stale.
	const sessQ = `SELECT id, starts_at, status, capacity FROM class_sessions
                   WHERE course_id = ? AND starts_at = ? FOR UPDATE`
	var (
		sessionID uint64
		startsAt  time.Time
		status    string
		capacity  int
	)
	err = tx.QueryRowContext(ctx, sessQ, courseID, start.Format("2006-01-02 15:04:05")).
		Scan(&sessionID, &startsAt, &status, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return fail(booking.ReasonSessionCancelled), nil
	}
	if err != nil {
		return booking.StoreItemOutcome{}, err
	}
	if status != model.SessionScheduled {
		return fail(booking.ReasonSessionCancelled), nil
	}

	now := r.now()

	// Membership is re-checked here authoritatively; the client-side
	// check is advisory only.
	var expires sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT membership_expires_at FROM members WHERE id = ?`, viewerID).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return fail(booking.ReasonMembershipExpired), nil
	}
	if err != nil {
		return booking.StoreItemOutcome{}, err
	}
	if !expires.Valid || !expires.Time.After(now) {
		return fail(booking.ReasonMembershipExpired), nil
	}

	// At most one CONFIRMED reservation per (member, session): a repeat
	// submission is reported as a duplicate, never silently re-booked.
	var dup bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM reservations
                  WHERE member_id = ? AND session_id = ? AND status = 'CONFIRMED')`,
		viewerID, sessionID).Scan(&dup)
	if err != nil {
		return booking.StoreItemOutcome{}, err
	}
	if dup {
		return fail(booking.ReasonAlreadyBooked), nil
	}

	if startsAt.UTC().Sub(now) <= r.leadTime {
		return fail(booking.ReasonWithinLeadTime), nil
	}

	if capacity > 0 {
		var confirmed int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reservations WHERE session_id = ? AND status = 'CONFIRMED'`,
			sessionID).Scan(&confirmed)
		if err != nil {
			return booking.StoreItemOutcome{}, err
		}
		if confirmed >= capacity {
			return fail(booking.ReasonFull), nil
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (member_id, session_id, status) VALUES (?, ?, 'CONFIRMED')`,
		viewerID, sessionID)
	if err != nil {
		return booking.StoreItemOutcome{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return booking.StoreItemOutcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return booking.StoreItemOutcome{}, err
	}
	committed = true
	return booking.StoreItemOutcome{Key: key, ReservationID: uint64(id)}, nil
}

// CancelReservation transitions a reservation to CANCELLED.  The row is
// never deleted (audit trail).  booking.ErrReservationNotFound is
// returned when the reservation does not exist, is already cancelled,
// or belongs to another member.
func (r *ReservationRepo) CancelReservation(ctx context.Context, viewerID, reservationID uint64) error {
	const q = `UPDATE reservations SET status = 'CANCELLED'
               WHERE id = ? AND member_id = ? AND status = 'CONFIRMED'`
	res, err := r.db.ExecContext(ctx, q, reservationID, viewerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return booking.ErrReservationNotFound
	}
	return nil
}

// ListViewerReservations returns the flat reservation tuples the booking
// cache rebuilds itself from.
func (r *ReservationRepo) ListViewerReservations(ctx context.Context, viewerID uint64) ([]booking.ReservationEntry, error) {
	const q = `SELECT r.id, s.course_id, s.starts_at, r.status
               FROM reservations r
               JOIN class_sessions s ON s.id = r.session_id
               WHERE r.member_id = ?
               ORDER BY r.created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]booking.ReservationEntry, 0)
	for rows.Next() {
		var (
			id       uint64
			courseID uint64
			startsAt time.Time
			status   string
		)
		if err := rows.Scan(&id, &courseID, &startsAt, &status); err != nil {
			return nil, err
		}
		entries = append(entries, booking.ReservationEntry{
			ReservationID: id,
			Key:           booking.MakeKey(courseID, startsAt.UTC()),
			Status:        status,
			SessionStart:  startsAt.UTC(),
		})
	}
	return entries, rows.Err()
}

// ReservationDetail is a reservation joined with its session and course
// for the member's history view.
type ReservationDetail struct {
	ID           uint64    `json:"id"`
	SessionKey   string    `json:"session_key"`
	Status       string    `json:"status"`
	CourseTitle  string    `json:"course_title"`
	LessonNumber int       `json:"lesson_number"`
	LessonTitle  string    `json:"lesson_title"`
	Instructor   string    `json:"instructor"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListDetailsByMember returns the member's reservations, newest first,
// with session and course detail for display.
func (r *ReservationRepo) ListDetailsByMember(ctx context.Context, memberID uint64) ([]ReservationDetail, error) {
	const q = `SELECT r.id, r.status, s.course_id, c.title, s.lesson_number, s.lesson_title,
                      s.instructor, s.starts_at, s.ends_at, r.created_at
               FROM reservations r
               JOIN class_sessions s ON s.id = r.session_id
               JOIN courses c ON c.id = s.course_id
               WHERE r.member_id = ?
               ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var (
			d        ReservationDetail
			courseID uint64
		)
		if err := rows.Scan(&d.ID, &d.Status, &courseID, &d.CourseTitle, &d.LessonNumber,
			&d.LessonTitle, &d.Instructor, &d.StartsAt, &d.EndsAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.StartsAt = d.StartsAt.UTC()
		d.EndsAt = d.EndsAt.UTC()
		d.SessionKey = string(booking.MakeKey(courseID, d.StartsAt))
		details = append(details, d)
	}
	return details, rows.Err()
}
