package model

import "time"

// Lifecycle states for a class session.  A CANCELLED session stays in
// the catalog so viewers see it was withdrawn; it is never bookable.
const (
	SessionScheduled = "SCHEDULED"
	SessionCancelled = "CANCELLED"
)

// ClassSession is one bookable occurrence of a course on a specific
// date and time.  Its canonical identity is the composite of course,
// date and start time (see booking.KeyOf); DisplayID is the numeric
// row id and is carried for display only.
//
// Fields:
//  DisplayID    – class_sessions.id, surrogate shown in URLs/UI.
//  CourseID     – course this occurrence belongs to.
//  CourseTitle  – denormalized course title.
//  LessonNumber – sequence number within the course.
//  LessonTitle  – title of this lesson.
//  Instructor   – instructor name for this occurrence.
//  StartsAt     – start of the session (UTC).
//  EndsAt       – end of the session (UTC, after StartsAt).
//  Capacity     – maximum confirmed reservations; 0 means unlimited.
//  Enrolled     – current count of confirmed reservations.
//  Status       – SCHEDULED or CANCELLED.
type ClassSession struct {
	DisplayID    uint64    // class_sessions.id
	CourseID     uint64    // class_sessions.course_id
	CourseTitle  string    // courses.title
	LessonNumber int       // class_sessions.lesson_number
	LessonTitle  string    // class_sessions.lesson_title
	Instructor   string    // class_sessions.instructor
	StartsAt     time.Time // class_sessions.starts_at
	EndsAt       time.Time // class_sessions.ends_at
	Capacity     int       // class_sessions.capacity
	Enrolled     int       // derived: confirmed reservation count
	Status       string    // class_sessions.status
}

// Date returns the session's calendar date in UTC as YYYY-MM-DD.
func (s ClassSession) Date() string {
	return s.StartsAt.UTC().Format("2006-01-02")
}

// Title returns the display title: course title plus lesson title when
// the lesson has one of its own.
func (s ClassSession) Title() string {
	if s.LessonTitle == "" {
		return s.CourseTitle
	}
	return s.CourseTitle + " - " + s.LessonTitle
}
