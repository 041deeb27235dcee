package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/talkademy/booking-api/internal/booking"
	"github.com/talkademy/booking-api/internal/model"
)

// ScheduleRepo manages courses and their dated class sessions and
// serves the published schedule to the booking core.  It implements
// booking.ScheduleSource.  All timestamps are stored in UTC.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// DB exposes the underlying handle for callers that need to span
// repositories in one transaction.
func (r *ScheduleRepo) DB() *sql.DB { return r.db }

// ListSchedules returns published schedule rows (course template joined
// with its dated sessions and confirmed enrollment counts) for the
// booking projector.  Filters are optional; zero values select the
// whole catalog.  Rows are ordered by start time ascending.
func (r *ScheduleRepo) ListSchedules(ctx context.Context, filter booking.ScheduleFilter) ([]booking.RawSchedule, error) {
	q := `SELECT s.id, s.course_id, c.title, s.lesson_number, s.lesson_title, s.instructor,
                 DATE_FORMAT(s.starts_at, '%Y-%m-%d'),
                 DATE_FORMAT(s.starts_at, '%H:%i'),
                 DATE_FORMAT(s.ends_at, '%H:%i'),
                 s.capacity, s.status,
                 (SELECT COUNT(*) FROM reservations r
                   WHERE r.session_id = s.id AND r.status = 'CONFIRMED')
          FROM class_sessions s
          JOIN courses c ON c.id = s.course_id`
	var conds []string
	var args []interface{}
	if !filter.From.IsZero() {
		conds = append(conds, "s.starts_at >= ?")
		args = append(args, filter.From.UTC().Format("2006-01-02 15:04:05"))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "s.starts_at < ?")
		args = append(args, filter.To.UTC().AddDate(0, 0, 1).Format("2006-01-02 15:04:05"))
	}
	if filter.CourseID != 0 {
		conds = append(conds, "s.course_id = ?")
		args = append(args, filter.CourseID)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY s.starts_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]booking.RawSchedule, 0)
	for rows.Next() {
		var raw booking.RawSchedule
		if err := rows.Scan(
			&raw.SessionID, &raw.CourseID, &raw.CourseTitle, &raw.LessonNumber,
			&raw.LessonTitle, &raw.Instructor,
			&raw.Date, &raw.StartTime, &raw.EndTime,
			&raw.Capacity, &raw.Status, &raw.Enrolled,
		); err != nil {
			return nil, err
		}
		result = append(result, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateCourse inserts a course and populates the generated id and
// timestamps on the given model.
func (r *ScheduleRepo) CreateCourse(ctx context.Context, course *model.Course) error {
	const q = `INSERT INTO courses (title, category, instructor, capacity) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, course.Title, course.Category, course.Instructor, course.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	course.ID = uint64(id)
	const sel = `SELECT created_at, updated_at FROM courses WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, course.ID).Scan(&course.CreatedAt, &course.UpdatedAt)
}

// UpdateCourse updates a course's editable fields.  It returns
// ErrCourseNotFound when the id does not exist.
func (r *ScheduleRepo) UpdateCourse(ctx context.Context, course *model.Course) error {
	const q = `UPDATE courses SET title = ?, category = ?, instructor = ?, capacity = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, course.Title, course.Category, course.Instructor, course.Capacity, course.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM courses WHERE id = ?)`, course.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrCourseNotFound
		}
	}
	return nil
}

// ListCourses returns all courses ordered by title.
func (r *ScheduleRepo) ListCourses(ctx context.Context) ([]model.Course, error) {
	const q = `SELECT id, title, category, instructor, capacity, created_at, updated_at
               FROM courses ORDER BY title ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	courses := make([]model.Course, 0)
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Category, &c.Instructor, &c.Capacity, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// SessionInput describes a class session to schedule.  Times are UTC
// DB-format strings ("2006-01-02 15:04:05") as in the rest of the
// schema.
type SessionInput struct {
	CourseID     uint64
	LessonNumber int
	LessonTitle  string
	Instructor   string
	StartsAt     string
	EndsAt       string
	Capacity     int
}

// CreateSession schedules a session occurrence for a course.  The
// (course_id, starts_at) pair is unique; a collision returns
// ErrSessionExists.  A missing course returns ErrCourseNotFound.
func (r *ScheduleRepo) CreateSession(ctx context.Context, in SessionInput) (uint64, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM courses WHERE id = ?)`, in.CourseID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrCourseNotFound
	}
	const q = `INSERT INTO class_sessions
               (course_id, lesson_number, lesson_title, instructor, starts_at, ends_at, capacity)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		in.CourseID, in.LessonNumber, in.LessonTitle, in.Instructor, in.StartsAt, in.EndsAt, in.Capacity)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrSessionExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CancelSession marks a session CANCELLED.  Existing reservations are
// kept; the booking classifier reports the session as CANCELLED on the
// next projection.  Returns ErrSessionNotFound for an unknown id.
func (r *ScheduleRepo) CancelSession(ctx context.Context, sessionID uint64) error {
	const q = `UPDATE class_sessions SET status = 'CANCELLED' WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, sessionID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM class_sessions WHERE id = ?)`, sessionID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrSessionNotFound
		}
	}
	return nil
}

// isDuplicate reports whether err is a MySQL duplicate-key violation
// (error 1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
