package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/talkademy/booking-api/internal/booking"
	"github.com/talkademy/booking-api/internal/model"
	"github.com/talkademy/booking-api/internal/repository"
)

// AdminHandler manages the course catalog, session schedule and member
// entitlements.  All routes require the ADMIN role.
type AdminHandler struct {
	Schedules *repository.ScheduleRepo
	Members   *repository.MemberRepo
}

func NewAdminHandler(s *repository.ScheduleRepo, m *repository.MemberRepo) *AdminHandler {
	return &AdminHandler{Schedules: s, Members: m}
}

// ----- DTOs -----

type courseReq struct {
	Title      string `json:"title"`
	Category   string `json:"category"`
	Instructor string `json:"instructor"`
	Capacity   int    `json:"capacity"` // 0 = unlimited
}

type sessionReq struct {
	CourseID     uint64 `json:"course_id"`
	LessonNumber int    `json:"lesson_number"`
	LessonTitle  string `json:"lesson_title"`
	Instructor   string `json:"instructor"`
	StartsAt     string `json:"starts_at"` // RFC3339, UTC
	EndsAt       string `json:"ends_at"`
	Capacity     int    `json:"capacity"`
}

type membershipReq struct {
	ExpiresAt *string `json:"expires_at"` // RFC3339; null clears the expiry
}

// CreateCourse adds a course template.
func (h *AdminHandler) CreateCourse(c echo.Context) error {
	var req courseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.Capacity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be >= 0"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	course := model.Course{
		Title:      req.Title,
		Category:   strings.TrimSpace(req.Category),
		Instructor: strings.TrimSpace(req.Instructor),
		Capacity:   req.Capacity,
	}
	if err := h.Schedules.CreateCourse(ctx, &course); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create course failed"})
	}
	return c.JSON(http.StatusCreated, course)
}

// UpdateCourse edits a course template.
func (h *AdminHandler) UpdateCourse(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course id"})
	}
	var req courseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.Capacity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be >= 0"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	course := model.Course{
		ID:         id,
		Title:      req.Title,
		Category:   strings.TrimSpace(req.Category),
		Instructor: strings.TrimSpace(req.Instructor),
		Capacity:   req.Capacity,
	}
	if err := h.Schedules.UpdateCourse(ctx, &course); err != nil {
		if err == repository.ErrCourseNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update course failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": true})
}

// ListCourses returns all course templates.
func (h *AdminHandler) ListCourses(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	courses, err := h.Schedules.ListCourses(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list courses failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"courses": courses})
}

// CreateSession schedules a dated session occurrence for a course.
func (h *AdminHandler) CreateSession(c echo.Context) error {
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.CourseID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "course_id required"})
	}
	starts, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at"})
	}
	ends, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ends_at"})
	}
	if !ends.After(starts) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	if req.Capacity < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be >= 0"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Schedules.CreateSession(ctx, repository.SessionInput{
		CourseID:     req.CourseID,
		LessonNumber: req.LessonNumber,
		LessonTitle:  strings.TrimSpace(req.LessonTitle),
		Instructor:   strings.TrimSpace(req.Instructor),
		StartsAt:     starts.UTC().Format("2006-01-02 15:04:05"),
		EndsAt:       ends.UTC().Format("2006-01-02 15:04:05"),
		Capacity:     req.Capacity,
	})
	if err != nil {
		switch err {
		case repository.ErrCourseNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": "course not found"})
		case repository.ErrSessionExists:
			return c.JSON(http.StatusConflict, echo.Map{"error": "session already scheduled at this time"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// ListSessions returns the raw schedule rows, enrollment counts
// included, for the whole catalog or an optional date range.
func (h *AdminHandler) ListSessions(c echo.Context) error {
	var filter booking.ScheduleFilter
	if s := c.QueryParam("from"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
		}
		filter.From = t
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date"})
		}
		filter.To = t
	}
	if s := c.QueryParam("course_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course_id"})
		}
		filter.CourseID = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Schedules.ListSchedules(ctx, filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list sessions failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": rows})
}

// CancelSession withdraws a scheduled session.  Existing reservations
// are kept; the session classifies as CANCELLED from the next catalog
// projection.
func (h *AdminHandler) CancelSession(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Schedules.CancelSession(ctx, id); err != nil {
		if err == repository.ErrSessionNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel session failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// SetMembership sets or clears a member's membership expiry date.
func (h *AdminHandler) SetMembership(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	var req membershipReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	var expires *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid expires_at"})
		}
		u := t.UTC()
		expires = &u
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Members.SetMembershipExpiry(ctx, id, expires); err != nil {
		if err == repository.ErrMemberNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "member not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update membership failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": true})
}
