package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/talkademy/booking-api/internal/booking"
	"github.com/talkademy/booking-api/internal/queue"
	"github.com/talkademy/booking-api/internal/repository"
)

// MemberHandler exposes the member-facing booking surface: the session
// calendar, the selection set, batch submission and cancellation.
type MemberHandler struct {
	Svc          *booking.Service
	Reservations *repository.ReservationRepo
	Log          *zap.Logger
}

func NewMemberHandler(svc *booking.Service, res *repository.ReservationRepo, log *zap.Logger) *MemberHandler {
	return &MemberHandler{Svc: svc, Reservations: res, Log: log}
}

// viewerID extracts the authenticated member id stored by the JWT
// middleware.  Numeric claims arrive as float64 from the JSON decoder.
func viewerID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		return uint64(v), true
	case uint64:
		return v, true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Sessions lists the visible calendar with per-session status for the
// viewer.  Optional query params: from, to (YYYY-MM-DD, inclusive) and
// course_id.
func (h *MemberHandler) Sessions(c echo.Context) error {
	uid, ok := viewerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var from, to time.Time
	if s := c.QueryParam("from"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
		}
		from = t
	}
	if s := c.QueryParam("to"); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date"})
		}
		to = t
	}
	var courseID uint64
	if s := c.QueryParam("course_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid course_id"})
		}
		courseID = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	views, err := h.Svc.VisibleSessions(ctx, uid, from, to, courseID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load sessions failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": views})
}

type toggleReq struct {
	SessionKey string `json:"session_key"`
}

// ToggleSelection adds an available session to the selection or removes
// it when already selected.  The response reports the resulting state.
func (h *MemberHandler) ToggleSelection(c echo.Context) error {
	uid, ok := viewerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req toggleReq
	if err := c.Bind(&req); err != nil || req.SessionKey == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_key required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	selected, err := h.Svc.ToggleSelection(ctx, uid, booking.SessionKey(req.SessionKey))
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSessionUnknown):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown session"})
		case errors.Is(err, booking.ErrNotSelectable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "session is not available"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "toggle failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"session_key": req.SessionKey, "selected": selected})
}

// GetSelection returns the in-progress selection grouped by date.
func (h *MemberHandler) GetSelection(c echo.Context) error {
	uid, ok := viewerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	groups, err := h.Svc.Selection(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load selection failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"selection": groups})
}

// SubmitSelection submits the whole selection as one batch.  Partial
// failure is a normal outcome and returns 200 with per-item results;
// only precondition violations fail the call as a whole.
func (h *MemberHandler) SubmitSelection(c echo.Context) error {
	uid, ok := viewerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	result, err := h.Svc.SubmitSelection(ctx, uid)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrEmptySelection):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "selection is empty"})
		case errors.Is(err, booking.ErrMembershipRequired):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "membership expired"})
		case errors.Is(err, booking.ErrSubmissionInFlight):
			return c.JSON(http.StatusConflict, echo.Map{"error": "submission already in progress"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "submission failed"})
		}
	}

	// Event publishing stays off the request path; broker outages only log.
	go h.publishBookingCompleted(uid, result)

	return c.JSON(http.StatusOK, result)
}

func (h *MemberHandler) publishBookingCompleted(uid uint64, result *booking.BatchResult) {
	ev := queue.BookingCompletedEvent{
		MemberID:    uid,
		Summary:     result.Summary,
		CompletedAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, o := range result.Successes {
		ev.Booked = append(ev.Booked, queue.BookedSessionItem{
			ReservationID: o.ReservationID,
			SessionKey:    string(o.Key),
			CourseTitle:   o.Title,
			Date:          o.Date,
		})
	}
	for _, o := range result.Failures {
		ev.Failed = append(ev.Failed, queue.FailedSessionItem{
			SessionKey: string(o.Key),
			Reason:     string(o.Reason),
			Message:    o.Message,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := queue.PublishBookingCompleted(ctx, ev); err != nil {
		h.Log.Warn("publish booking.completed failed", zap.Error(err))
	}
}

// Cancel cancels one confirmed reservation.  The lead-time window is
// checked before the store is contacted.
func (h *MemberHandler) Cancel(c echo.Context) error {
	uid, ok := viewerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || reservationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.RequestCancellation(ctx, uid, reservationID); err != nil {
		switch {
		case errors.Is(err, booking.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, booking.ErrCancelWindowClosed):
			hours := int(h.Svc.Rules().LeadTime.Hours())
			return c.JSON(http.StatusConflict, echo.Map{
				"error": fmt.Sprintf("cancellation closes %d hours before start", hours),
			})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
		}
	}

	go h.publishReservationCancelled(uid, reservationID)

	return c.NoContent(http.StatusNoContent)
}

func (h *MemberHandler) publishReservationCancelled(uid, reservationID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ev := queue.ReservationCancelledEvent{
		ReservationID: reservationID,
		MemberID:      uid,
		CancelledAt:   time.Now().UTC().Format(time.RFC3339),
	}
	// Best-effort enrichment with session detail for consumers.
	if details, err := h.Reservations.ListDetailsByMember(ctx, uid); err == nil {
		for _, d := range details {
			if d.ID == reservationID {
				ev.SessionKey = d.SessionKey
				ev.SessionStart = d.StartsAt.Format(time.RFC3339)
				break
			}
		}
	}
	if err := queue.PublishReservationCancelled(ctx, ev); err != nil {
		h.Log.Warn("publish reservation.cancelled failed", zap.Error(err))
	}
}

// RefreshCatalog re-projects the catalog and rebuilds the viewer's
// reservation cache from the store.
func (h *MemberHandler) RefreshCatalog(c echo.Context) error {
	uid, ok := viewerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Svc.Refresh(ctx, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"refreshed": true})
}

// MyReservations lists the viewer's reservations with session detail,
// newest first.
func (h *MemberHandler) MyReservations(c echo.Context) error {
	uid, ok := viewerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	details, err := h.Reservations.ListDetailsByMember(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load reservations failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": details})
}
