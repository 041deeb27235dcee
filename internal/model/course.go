package model

import "time"

// Course is a template for a series of class sessions: a published
// curriculum with a title, an instructor and a default capacity.
// Individual occurrences live in class_sessions and are projected
// into ClassSession values for booking.
//
// Fields:
//  ID         – primary key identifier.
//  Title      – course title shown in the catalog.
//  Category   – free-form category used to scope catalog filters.
//  Instructor – default instructor name for sessions of this course.
//  Capacity   – default per-session capacity; 0 means unlimited.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Course struct {
	ID         uint64    // courses.id
	Title      string    // courses.title
	Category   string    // courses.category
	Instructor string    // courses.instructor
	Capacity   int       // courses.capacity
	CreatedAt  time.Time // courses.created_at
	UpdatedAt  time.Time // courses.updated_at
}
