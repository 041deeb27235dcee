// Package booking implements the session availability and batch booking
// core: projecting raw schedule rows into bookable sessions, classifying
// per-viewer availability, managing the in-progress selection set,
// submitting it as a batch and enforcing the cancellation window.  The
// package talks to the backing store only through the interfaces in
// service.go so it can sit in front of a database or a remote API.
package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/talkademy/booking-api/internal/model"
)

// SessionKey is the canonical identity of a class session: the course id,
// calendar date and start time joined as "course|YYYY-MM-DD|HH:MM".  It is
// stable across catalog reloads and replaces the numeric row id everywhere
// except display.  The parts are pipe-joined rather than hashed so two
// distinct sessions can never collide.
type SessionKey string

// MakeKey builds a SessionKey from its composite parts.  start must be the
// session start in UTC.
func MakeKey(courseID uint64, start time.Time) SessionKey {
	start = start.UTC()
	return SessionKey(fmt.Sprintf("%d|%s|%s",
		courseID, start.Format("2006-01-02"), start.Format("15:04")))
}

// KeyOf derives the stable key for a projected session.
func KeyOf(s model.ClassSession) SessionKey {
	return MakeKey(s.CourseID, s.StartsAt)
}

// Parse splits the key back into course id and start time (UTC).  It
// returns an error when the key was not produced by MakeKey.
func (k SessionKey) Parse() (courseID uint64, start time.Time, err error) {
	parts := strings.Split(string(k), "|")
	if len(parts) != 3 {
		return 0, time.Time{}, fmt.Errorf("malformed session key %q", k)
	}
	courseID, err = strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed session key %q: %w", k, err)
	}
	start, err = time.Parse("2006-01-02 15:04", parts[1]+" "+parts[2])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("malformed session key %q: %w", k, err)
	}
	return courseID, start.UTC(), nil
}
