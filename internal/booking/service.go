package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talkademy/booking-api/internal/model"
)

// ScheduleFilter scopes a catalog load.  Zero values mean "no filter".
type ScheduleFilter struct {
	From     time.Time // first calendar day, inclusive
	To       time.Time // last calendar day, inclusive
	CourseID uint64
}

// ScheduleSource delivers published schedule rows.  The MySQL
// ScheduleRepo implements it.
type ScheduleSource interface {
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]RawSchedule, error)
}

// ReservationStore is the backing store for reservations.  Its per-item
// batch verdicts are always authoritative: the client-side classification
// is an optimization, never the sole enforcement.
type ReservationStore interface {
	SubmitBatchBooking(ctx context.Context, viewerID uint64, keys []SessionKey) (StoreBatchResult, error)
	CancelReservation(ctx context.Context, viewerID, reservationID uint64) error
	ListViewerReservations(ctx context.Context, viewerID uint64) ([]ReservationEntry, error)
}

// MembershipSource answers the advisory entitlement check performed
// before a batch is submitted.
type MembershipSource interface {
	MembershipActive(ctx context.Context, viewerID uint64, at time.Time) (bool, error)
}

// SessionView pairs a catalog session with its viewer-specific status
// for the presentation layer.
type SessionView struct {
	Key     SessionKey         `json:"session_key"`
	Session model.ClassSession `json:"session"`
	Status  Status             `json:"status"`
	Reason  string             `json:"reason,omitempty"`
}

// viewerState is the per-viewer mutable state: the reservation mirror,
// the in-progress selection and the single-in-flight submission guard.
type viewerState struct {
	cache      *ReservationCache
	selection  *SelectionSet
	cacheReady bool
	inFlight   bool
}

// Service wires the projector, classifier, selection sets and caches to
// the backing store.  All viewer-facing operations go through it.  The
// mutex serializes access to the catalog and the
// per-viewer state; the store call during submission runs outside the
// lock with the in-flight flag keeping a second submission out.
type Service struct {
	schedules ScheduleSource
	store     ReservationStore
	members   MembershipSource
	rules     Rules
	log       *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	catalog map[SessionKey]model.ClassSession
	order   []SessionKey // catalog iteration order, by start time
	viewers map[uint64]*viewerState
}

// NewService constructs a booking service.  log must be non-nil; pass
// zap.NewNop() in tests.
func NewService(schedules ScheduleSource, store ReservationStore, members MembershipSource, rules Rules, log *zap.Logger) *Service {
	return &Service{
		schedules: schedules,
		store:     store,
		members:   members,
		rules:     rules,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		viewers:   make(map[uint64]*viewerState),
	}
}

// Rules returns the policy the service classifies and cancels with, so
// callers can word window messages from the same configured value.
func (s *Service) Rules() Rules { return s.rules }

// VisibleSessions returns the catalog slice for [from, to] (inclusive
// calendar days, UTC) with each session's status for the viewer,
// ordered by start time.  Statuses are recomputed on every call.
func (s *Service) VisibleSessions(ctx context.Context, viewerID uint64, from, to time.Time, courseID uint64) ([]SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureCatalog(ctx); err != nil {
		return nil, err
	}
	st, err := s.ensureViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]SessionView, 0, len(s.order))
	for _, key := range s.order {
		sess := s.catalog[key]
		if courseID != 0 && sess.CourseID != courseID {
			continue
		}
		if !from.IsZero() && sess.StartsAt.Before(from) {
			continue
		}
		if !to.IsZero() && !sess.StartsAt.Before(to.AddDate(0, 0, 1)) {
			continue
		}
		status, reason := s.rules.Classify(sess, st.cache, now)
		views = append(views, SessionView{Key: key, Session: sess, Status: status, Reason: reason})
	}
	return views, nil
}

// ToggleSelection adds the session to the viewer's selection when absent
// (and currently AVAILABLE), removes it when present.  It reports the
// resulting membership so repeated identical calls are idempotent in
// effect.
func (s *Service) ToggleSelection(ctx context.Context, viewerID uint64, key SessionKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureCatalog(ctx); err != nil {
		return false, err
	}
	st, err := s.ensureViewer(ctx, viewerID)
	if err != nil {
		return false, err
	}
	sess, ok := s.catalog[key]
	if !ok {
		return false, ErrSessionUnknown
	}
	status, _ := s.rules.Classify(sess, st.cache, s.now())
	return st.selection.Toggle(sess, status)
}

// Selection returns the viewer's in-progress selection grouped by date.
func (s *Service) Selection(ctx context.Context, viewerID uint64) ([]DateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.ensureViewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return st.selection.Grouped(), nil
}

// SubmitSelection submits the viewer's whole selection set as one batch.
// Preconditions (checked before any store call): non-empty selection, no
// submission already in flight, and an advisory membership check; a
// violation fails the whole call with nothing submitted.  The store then
// evaluates each item independently.  For every success the reservation
// is appended to the cache and the entry cleared from the selection; a
// failed entry stays addressable by its key so the viewer can retry or
// remove it.
func (s *Service) SubmitSelection(ctx context.Context, viewerID uint64) (*BatchResult, error) {
	s.mu.Lock()
	st, err := s.ensureViewer(ctx, viewerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if st.inFlight {
		s.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	entries := st.selection.Entries()
	if len(entries) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptySelection
	}
	st.inFlight = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		st.inFlight = false
		s.mu.Unlock()
	}()

	ok, err := s.members.MembershipActive(ctx, viewerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return nil, ErrMembershipRequired
	}

	keys := make([]SessionKey, 0, len(entries))
	byKey := make(map[SessionKey]SelectionEntry, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
		byKey[e.Key] = e
	}

	// The only unbounded call in the subsystem.  On error the cache and
	// the selection are left untouched; the next Refresh reconciles.
	raw, err := s.store.SubmitBatchBooking(ctx, viewerID, keys)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	result := &BatchResult{}
	for _, o := range raw.Successes {
		e, ok := byKey[o.Key]
		if !ok {
			continue
		}
		st.cache.Confirm(o.Key, o.ReservationID, e.Session.StartsAt)
		st.selection.Remove(o.Key)
		result.Successes = append(result.Successes, BatchOutcome{
			Key:           o.Key,
			Title:         e.Session.Title(),
			Date:          e.Session.Date(),
			ReservationID: o.ReservationID,
		})
	}
	for _, o := range raw.Failures {
		e, ok := byKey[o.Key]
		if !ok {
			continue
		}
		result.Failures = append(result.Failures, BatchOutcome{
			Key:     o.Key,
			Title:   e.Session.Title(),
			Date:    e.Session.Date(),
			Reason:  o.Reason,
			Message: reasonText(o.Reason, s.rules.LeadTime),
		})
	}
	result.Summary = buildSummary(result)

	s.log.Info("batch submission completed",
		zap.Uint64("viewer_id", viewerID),
		zap.Int("submitted", len(keys)),
		zap.Int("booked", len(result.Successes)),
		zap.Int("failed", len(result.Failures)))
	return result, nil
}

// RequestCancellation cancels one reservation under the lead-time rule.
// The window check runs locally against the cached session start; when
// it fails the store is not contacted.  The cache is mutated only after
// the store confirms, so the next classification pass stops reporting
// ALREADY_BOOKED; on any store-reported failure the cache stays as it
// was and the specific reason is surfaced.
func (s *Service) RequestCancellation(ctx context.Context, viewerID, reservationID uint64) error {
	s.mu.Lock()
	st, err := s.ensureViewer(ctx, viewerID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	entry, ok := st.cache.FindByReservationID(reservationID)
	if !ok || entry.Status != model.ReservationConfirmed {
		s.mu.Unlock()
		return ErrReservationNotFound
	}
	if entry.SessionStart.Sub(s.now()) <= s.rules.LeadTime {
		s.mu.Unlock()
		return ErrCancelWindowClosed
	}
	s.mu.Unlock()

	if err := s.store.CancelReservation(ctx, viewerID, reservationID); err != nil {
		return err
	}

	s.mu.Lock()
	st.cache.MarkCancelled(reservationID)
	s.mu.Unlock()

	s.log.Info("reservation cancelled",
		zap.Uint64("viewer_id", viewerID),
		zap.Uint64("reservation_id", reservationID))
	return nil
}

// Refresh re-projects the catalog from the schedule source and rebuilds
// the viewer's reservation cache from the store.  The presentation layer
// calls it explicitly (on regaining focus, after a mutation, on demand);
// the subsystem itself subscribes to no event mechanism.
func (s *Service) Refresh(ctx context.Context, viewerID uint64) error {
	rows, err := s.schedules.ListSchedules(ctx, ScheduleFilter{})
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}
	entries, err := s.store.ListViewerReservations(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.installCatalog(Project(rows, s.log))
	st := s.viewer(viewerID)
	st.cache.ReplaceAll(entries)
	st.cacheReady = true
	return nil
}

// ---- internals ----

// ensureCatalog lazily loads the catalog on first use.  Caller holds mu.
func (s *Service) ensureCatalog(ctx context.Context) error {
	if s.catalog != nil {
		return nil
	}
	rows, err := s.schedules.ListSchedules(ctx, ScheduleFilter{})
	if err != nil {
		return fmt.Errorf("list schedules: %w", err)
	}
	s.installCatalog(Project(rows, s.log))
	return nil
}

// installCatalog replaces the projected catalog.  Caller holds mu.
func (s *Service) installCatalog(sessions []model.ClassSession) {
	catalog := make(map[SessionKey]model.ClassSession, len(sessions))
	order := make([]SessionKey, 0, len(sessions))
	for _, sess := range sessions {
		key := KeyOf(sess)
		if _, dup := catalog[key]; !dup {
			order = append(order, key)
		}
		catalog[key] = sess
	}
	sort.Slice(order, func(i, j int) bool {
		return catalog[order[i]].StartsAt.Before(catalog[order[j]].StartsAt)
	})
	s.catalog = catalog
	s.order = order
}

// viewer returns the state for a viewer, creating it if needed.  Caller
// holds mu.
func (s *Service) viewer(viewerID uint64) *viewerState {
	st, ok := s.viewers[viewerID]
	if !ok {
		st = &viewerState{cache: NewReservationCache(), selection: NewSelectionSet()}
		s.viewers[viewerID] = st
	}
	return st
}

// ensureViewer returns the viewer state with the cache rebuilt from the
// store on first use.  Caller holds mu.
func (s *Service) ensureViewer(ctx context.Context, viewerID uint64) (*viewerState, error) {
	st := s.viewer(viewerID)
	if !st.cacheReady {
		entries, err := s.store.ListViewerReservations(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("list reservations: %w", err)
		}
		st.cache.ReplaceAll(entries)
		st.cacheReady = true
	}
	return st, nil
}
