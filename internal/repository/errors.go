// Package repository implements the MySQL backing store: members and
// their memberships, courses, class sessions, reservations and refresh
// tokens.  Sentinel errors defined here let handlers distinguish
// failure scenarios without inspecting driver errors; booking-domain
// sentinels (reservation not found, etc.) live in the booking package
// because the store implements its interfaces.
package repository

import "errors"

// ErrEmailExists is returned when registering with an email that is
// already taken.  Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrCourseNotFound is returned when a course id does not exist.
var ErrCourseNotFound = errors.New("course not found")

// ErrSessionNotFound is returned when a class session id does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionExists is returned when scheduling a session that collides
// with an existing one for the same course and start time.
var ErrSessionExists = errors.New("session already scheduled at this time")

// ErrMemberNotFound is returned when a member id does not exist.
var ErrMemberNotFound = errors.New("member not found")
