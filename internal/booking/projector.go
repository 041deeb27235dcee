package booking

import (
	"time"

	"go.uber.org/zap"

	"github.com/talkademy/booking-api/internal/model"
)

// RawSchedule is one row of published schedule data as delivered by the
// catalog source: a course template joined with a dated occurrence and
// its current enrollment count.  Dates and times are strings in the
// source's wire format; the projector parses and validates them.
type RawSchedule struct {
	SessionID    uint64 `json:"session_id"` // surrogate row id, display only
	CourseID     uint64 `json:"course_id"`
	CourseTitle  string `json:"course_title"`
	LessonNumber int    `json:"lesson_number"`
	LessonTitle  string `json:"lesson_title"`
	Instructor   string `json:"instructor"`
	Date         string `json:"date"`       // "2006-01-02" (UTC)
	StartTime    string `json:"start_time"` // "15:04"
	EndTime      string `json:"end_time"`   // "15:04"
	Capacity     int    `json:"capacity"`   // 0 means unlimited
	Enrolled     int    `json:"enrolled"`
	Status       string `json:"status"` // SCHEDULED | CANCELLED
}

// Project converts raw schedule rows into booking-ready sessions.  It is
// a pure transformation: it consults neither the viewer nor the clock.
// A malformed row is logged as a data-quality warning and skipped; one
// bad record never blocks the rest of the catalog.  Keys derived here
// are stable, so re-projection after a refresh preserves identity for
// sessions that did not change.
func Project(rows []RawSchedule, log *zap.Logger) []model.ClassSession {
	sessions := make([]model.ClassSession, 0, len(rows))
	for _, row := range rows {
		s, err := projectOne(row)
		if err != nil {
			log.Warn("skipping malformed schedule row",
				zap.Uint64("session_id", row.SessionID),
				zap.Uint64("course_id", row.CourseID),
				zap.Error(err))
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

func projectOne(row RawSchedule) (model.ClassSession, error) {
	var zero model.ClassSession
	if row.CourseID == 0 {
		return zero, errMissing("course_id")
	}
	if row.CourseTitle == "" {
		return zero, errMissing("course title")
	}
	startsAt, err := time.Parse("2006-01-02 15:04", row.Date+" "+row.StartTime)
	if err != nil {
		return zero, err
	}
	endsAt, err := time.Parse("2006-01-02 15:04", row.Date+" "+row.EndTime)
	if err != nil {
		return zero, err
	}
	if !endsAt.After(startsAt) {
		return zero, errInvalid("end time not after start time")
	}
	if row.Capacity < 0 {
		return zero, errInvalid("negative capacity")
	}
	if row.Enrolled < 0 {
		return zero, errInvalid("negative enrollment")
	}
	if row.Capacity > 0 && row.Enrolled > row.Capacity {
		return zero, errInvalid("enrollment exceeds capacity")
	}
	switch row.Status {
	case model.SessionScheduled, model.SessionCancelled:
	default:
		return zero, errInvalid("unknown status " + row.Status)
	}
	return model.ClassSession{
		DisplayID:    row.SessionID,
		CourseID:     row.CourseID,
		CourseTitle:  row.CourseTitle,
		LessonNumber: row.LessonNumber,
		LessonTitle:  row.LessonTitle,
		Instructor:   row.Instructor,
		StartsAt:     startsAt.UTC(),
		EndsAt:       endsAt.UTC(),
		Capacity:     row.Capacity,
		Enrolled:     row.Enrolled,
		Status:       row.Status,
	}, nil
}

type projectionError string

func (e projectionError) Error() string { return string(e) }

func errMissing(field string) error { return projectionError("missing " + field) }
func errInvalid(msg string) error   { return projectionError(msg) }
