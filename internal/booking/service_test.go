package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talkademy/booking-api/internal/model"
)

// ---- fakes ----

type fakeSchedules struct {
	rows  []RawSchedule
	err   error
	calls int
}

func (f *fakeSchedules) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]RawSchedule, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

type fakeStore struct {
	mu           sync.Mutex
	failures     map[SessionKey]FailureReason // keys absent here succeed
	nextID       uint64
	entries      []ReservationEntry
	submitErr    error
	cancelErr    error
	submitCalls  int
	cancelCalls  []uint64
	blockSubmit  chan struct{} // when non-nil, SubmitBatchBooking waits on it
	submitActive chan struct{} // signalled when a submission enters the store
}

func newFakeStore() *fakeStore {
	return &fakeStore{failures: make(map[SessionKey]FailureReason), nextID: 100}
}

func (f *fakeStore) SubmitBatchBooking(ctx context.Context, viewerID uint64, keys []SessionKey) (StoreBatchResult, error) {
	f.mu.Lock()
	f.submitCalls++
	active := f.submitActive
	block := f.blockSubmit
	f.mu.Unlock()
	if active != nil {
		close(active)
	}
	if block != nil {
		<-block
	}
	if f.submitErr != nil {
		return StoreBatchResult{}, f.submitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var res StoreBatchResult
	for _, key := range keys {
		if reason, ok := f.failures[key]; ok {
			res.Failures = append(res.Failures, StoreItemOutcome{Key: key, Reason: reason})
			continue
		}
		f.nextID++
		res.Successes = append(res.Successes, StoreItemOutcome{Key: key, ReservationID: f.nextID})
	}
	return res, nil
}

func (f *fakeStore) CancelReservation(ctx context.Context, viewerID, reservationID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, reservationID)
	return f.cancelErr
}

func (f *fakeStore) ListViewerReservations(ctx context.Context, viewerID uint64) ([]ReservationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ReservationEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

type fakeMembers struct {
	active bool
	err    error
}

func (f *fakeMembers) MembershipActive(ctx context.Context, viewerID uint64, at time.Time) (bool, error) {
	return f.active, f.err
}

// ---- fixtures ----

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fiveSessionCatalog returns five SCHEDULED sessions on consecutive days
// starting four days out, all comfortably outside the lead-time window.
func fiveSessionCatalog() []RawSchedule {
	rows := make([]RawSchedule, 0, 5)
	for i := 0; i < 5; i++ {
		day := testNow.AddDate(0, 0, 4+i)
		rows = append(rows, rawRow(uint64(10+i), uint64(1+i), day.Format("2006-01-02"), "09:00", "09:50"))
	}
	return rows
}

func newTestService(rows []RawSchedule, store *fakeStore, members *fakeMembers) *Service {
	svc := NewService(&fakeSchedules{rows: rows}, store, members, DefaultRules(), zap.NewNop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func selectAll(t *testing.T, svc *Service, viewerID uint64, rows []RawSchedule) []SessionKey {
	t.Helper()
	keys := make([]SessionKey, 0, len(rows))
	for _, row := range rows {
		sessions := Project([]RawSchedule{row}, zap.NewNop())
		require.Len(t, sessions, 1)
		key := KeyOf(sessions[0])
		selected, err := svc.ToggleSelection(context.Background(), viewerID, key)
		require.NoError(t, err)
		require.True(t, selected)
		keys = append(keys, key)
	}
	return keys
}

// ---- tests ----

func TestVisibleSessionsClassifiesAndOrders(t *testing.T) {
	rows := fiveSessionCatalog()
	// One session inside the lead-time window, one full.
	rows = append(rows,
		rawRow(20, 9, testNow.Format("2006-01-02"), "20:00", "20:50"))
	full := rawRow(21, 8, testNow.AddDate(0, 0, 6).Format("2006-01-02"), "11:00", "11:50")
	full.Enrolled = full.Capacity
	rows = append(rows, full)

	svc := newTestService(rows, newFakeStore(), &fakeMembers{active: true})

	views, err := svc.VisibleSessions(context.Background(), 1, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, views, 7)

	// Ordered by start time: the near-term locked session comes first.
	assert.Equal(t, StatusLocked, views[0].Status)

	byCourse := make(map[uint64]Status)
	for _, v := range views {
		byCourse[v.Session.CourseID] = v.Status
	}
	assert.Equal(t, StatusFull, byCourse[8])
	assert.Equal(t, StatusAvailable, byCourse[1])
}

func TestVisibleSessionsDateRangeInclusive(t *testing.T) {
	rows := fiveSessionCatalog()
	svc := newTestService(rows, newFakeStore(), &fakeMembers{active: true})

	from := testNow.AddDate(0, 0, 5)
	to := testNow.AddDate(0, 0, 6)
	views, err := svc.VisibleSessions(context.Background(), 1,
		time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC),
		time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC), 0)
	require.NoError(t, err)
	// Days 5 and 6 out of 4..8.
	assert.Len(t, views, 2)
}

func TestVisibleSessionsCourseFilter(t *testing.T) {
	svc := newTestService(fiveSessionCatalog(), newFakeStore(), &fakeMembers{active: true})

	views, err := svc.VisibleSessions(context.Background(), 1, time.Time{}, time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, uint64(3), views[0].Session.CourseID)
}

func TestToggleUnknownSession(t *testing.T) {
	svc := newTestService(fiveSessionCatalog(), newFakeStore(), &fakeMembers{active: true})

	_, err := svc.ToggleSelection(context.Background(), 1, SessionKey("9999|2026-05-01|09:00"))
	assert.ErrorIs(t, err, ErrSessionUnknown)
}

func TestToggleRejectsBookedSession(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	sessions := Project(rows[:1], zap.NewNop())
	key := KeyOf(sessions[0])
	store.entries = []ReservationEntry{{
		ReservationID: 7, Key: key,
		Status: model.ReservationConfirmed, SessionStart: sessions[0].StartsAt,
	}}
	svc := newTestService(rows, store, &fakeMembers{active: true})

	_, err := svc.ToggleSelection(context.Background(), 1, key)
	assert.ErrorIs(t, err, ErrNotSelectable)
}

func TestSubmitEmptySelection(t *testing.T) {
	svc := newTestService(fiveSessionCatalog(), newFakeStore(), &fakeMembers{active: true})

	_, err := svc.SubmitSelection(context.Background(), 1)
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestSubmitMembershipRequired(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := newTestService(rows, store, &fakeMembers{active: false})
	selectAll(t, svc, 1, rows[:1])

	_, err := svc.SubmitSelection(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMembershipRequired)
	assert.Equal(t, 0, store.submitCalls)
}

func TestSubmitPartialSuccess(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := newTestService(rows, store, &fakeMembers{active: true})
	keys := selectAll(t, svc, 1, rows)

	// Two of five fail at the store: one filled up, one fell inside the
	// window between selection and submission.
	store.failures[keys[1]] = ReasonFull
	store.failures[keys[3]] = ReasonWithinLeadTime

	result, err := svc.SubmitSelection(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, result.Successes, 3)
	require.Len(t, result.Failures, 2)

	// Every outcome carries display data and, for failures, a reason.
	for _, o := range result.Successes {
		assert.NotZero(t, o.ReservationID)
		assert.NotEmpty(t, o.Title)
		assert.NotEmpty(t, o.Date)
	}
	for _, o := range result.Failures {
		assert.Zero(t, o.ReservationID)
		assert.NotEmpty(t, o.Message)
	}
	assert.Equal(t, FailureReason("FULL"), result.Failures[0].Reason)
	assert.Equal(t, FailureReason("WITHIN_24H"), result.Failures[1].Reason)

	// The summary names both what succeeded and what failed.
	assert.Contains(t, result.Summary, "Booked 3 of 5 sessions.")
	assert.Contains(t, result.Summary, "Booked:")
	assert.Contains(t, result.Summary, "Not booked:")

	// Successes landed in the cache; failures stayed in the selection.
	groups, err := svc.Selection(context.Background(), 1)
	require.NoError(t, err)
	remaining := 0
	for _, g := range groups {
		remaining += len(g.Sessions)
	}
	assert.Equal(t, 2, remaining)

	views, err := svc.VisibleSessions(context.Background(), 1, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	booked := 0
	for _, v := range views {
		if v.Status == StatusAlreadyBooked {
			booked++
		}
	}
	assert.Equal(t, 3, booked)
}

func TestSubmitStoreErrorLeavesStateUntouched(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	store.submitErr = errors.New("connection reset")
	svc := newTestService(rows, store, &fakeMembers{active: true})
	selectAll(t, svc, 1, rows[:2])

	_, err := svc.SubmitSelection(context.Background(), 1)
	require.Error(t, err)

	groups, err := svc.Selection(context.Background(), 1)
	require.NoError(t, err)
	remaining := 0
	for _, g := range groups {
		remaining += len(g.Sessions)
	}
	assert.Equal(t, 2, remaining)

	views, err := svc.VisibleSessions(context.Background(), 1, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	for _, v := range views {
		assert.NotEqual(t, StatusAlreadyBooked, v.Status)
	}
}

func TestSubmitSecondCallWhileInFlight(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	store.blockSubmit = make(chan struct{})
	store.submitActive = make(chan struct{})
	svc := newTestService(rows, store, &fakeMembers{active: true})
	selectAll(t, svc, 1, rows[:1])

	done := make(chan error, 1)
	go func() {
		_, err := svc.SubmitSelection(context.Background(), 1)
		done <- err
	}()
	<-store.submitActive

	_, err := svc.SubmitSelection(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSubmissionInFlight)

	close(store.blockSubmit)
	require.NoError(t, <-done)

	// Flag is released once the first submission completes.
	_, err = svc.SubmitSelection(context.Background(), 1)
	assert.ErrorIs(t, err, ErrEmptySelection)
}

func TestBatchFailureMessageUsesConfiguredWindow(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := NewService(&fakeSchedules{rows: rows}, store, &fakeMembers{active: true},
		Rules{LeadTime: 48 * time.Hour}, zap.NewNop())
	svc.now = func() time.Time { return testNow }
	require.Equal(t, 48*time.Hour, svc.Rules().LeadTime)

	// Sessions start four days out, so a 48h window still classifies
	// them AVAILABLE at selection time.
	keys := selectAll(t, svc, 1, rows[:1])
	store.failures[keys[0]] = ReasonWithinLeadTime

	result, err := svc.SubmitSelection(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Message, "48 hours")
	assert.NotContains(t, result.Failures[0].Message, "24 hours")
	assert.Contains(t, result.Summary, "48 hours")
}

func TestResubmissionOfBookedSessionFailsPerItem(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := newTestService(rows, store, &fakeMembers{active: true})
	keys := selectAll(t, svc, 1, rows[:1])

	result, err := svc.SubmitSelection(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, result.Successes, 1)

	// The store now reports the session as already booked; a retried
	// submission surfaces that per item instead of double-booking.
	store.failures[keys[0]] = ReasonAlreadyBooked
	// Session is ALREADY_BOOKED locally, so it cannot re-enter the
	// selection either.
	_, err = svc.ToggleSelection(context.Background(), 1, keys[0])
	assert.ErrorIs(t, err, ErrNotSelectable)
}

func TestCancellationOutsideWindow(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := newTestService(rows, store, &fakeMembers{active: true})
	selectAll(t, svc, 1, rows[:1])

	result, err := svc.SubmitSelection(context.Background(), 1)
	require.NoError(t, err)
	reservationID := result.Successes[0].ReservationID

	// Session starts four days out; the window is open.
	require.NoError(t, svc.RequestCancellation(context.Background(), 1, reservationID))
	assert.Equal(t, []uint64{reservationID}, store.cancelCalls)

	// The session classifies as bookable again on the next render.
	views, err := svc.VisibleSessions(context.Background(), 1, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	for _, v := range views {
		assert.NotEqual(t, StatusAlreadyBooked, v.Status)
	}
}

func TestCancellationInsideWindowFailsLocally(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := newTestService(rows, store, &fakeMembers{active: true})
	selectAll(t, svc, 1, rows[:1])

	result, err := svc.SubmitSelection(context.Background(), 1)
	require.NoError(t, err)
	reservationID := result.Successes[0].ReservationID

	// Move the clock to 23h before the session start.
	start := result.Successes[0].Date
	startAt, perr := time.Parse("2006-01-02", start)
	require.NoError(t, perr)
	sessionStart := startAt.Add(9 * time.Hour) // 09:00 start
	svc.now = func() time.Time { return sessionStart.Add(-23 * time.Hour) }

	err = svc.RequestCancellation(context.Background(), 1, reservationID)
	assert.ErrorIs(t, err, ErrCancelWindowClosed)
	// The store was never contacted.
	assert.Empty(t, store.cancelCalls)

	// At 25h before start the same request goes through.
	svc.now = func() time.Time { return sessionStart.Add(-25 * time.Hour) }
	require.NoError(t, svc.RequestCancellation(context.Background(), 1, reservationID))
}

func TestCancellationUnknownReservation(t *testing.T) {
	svc := newTestService(fiveSessionCatalog(), newFakeStore(), &fakeMembers{active: true})

	err := svc.RequestCancellation(context.Background(), 1, 424242)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestCancellationStoreFailureKeepsCache(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := newTestService(rows, store, &fakeMembers{active: true})
	selectAll(t, svc, 1, rows[:1])

	result, err := svc.SubmitSelection(context.Background(), 1)
	require.NoError(t, err)
	reservationID := result.Successes[0].ReservationID

	store.cancelErr = errors.New("timeout")
	err = svc.RequestCancellation(context.Background(), 1, reservationID)
	require.Error(t, err)

	// Ambiguous outcome: the cache still reports the reservation as held.
	views, err := svc.VisibleSessions(context.Background(), 1, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	booked := 0
	for _, v := range views {
		if v.Status == StatusAlreadyBooked {
			booked++
		}
	}
	assert.Equal(t, 1, booked)
}

func TestRefreshRebuildsCacheFromStore(t *testing.T) {
	rows := fiveSessionCatalog()
	store := newFakeStore()
	svc := newTestService(rows, store, &fakeMembers{active: true})

	sessions := Project(rows[:1], zap.NewNop())
	key := KeyOf(sessions[0])

	// The store learns about a reservation made elsewhere.
	store.mu.Lock()
	store.entries = []ReservationEntry{{
		ReservationID: 55, Key: key,
		Status: model.ReservationConfirmed, SessionStart: sessions[0].StartsAt,
	}}
	store.mu.Unlock()

	require.NoError(t, svc.Refresh(context.Background(), 1))

	views, err := svc.VisibleSessions(context.Background(), 1, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	var found bool
	for _, v := range views {
		if v.Key == key {
			found = true
			assert.Equal(t, StatusAlreadyBooked, v.Status)
		}
	}
	assert.True(t, found)
}

func TestViewerStatesAreIsolated(t *testing.T) {
	rows := fiveSessionCatalog()
	svc := newTestService(rows, newFakeStore(), &fakeMembers{active: true})
	keys := selectAll(t, svc, 1, rows[:2])

	groups, err := svc.Selection(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, groups)

	selected, err := svc.ToggleSelection(context.Background(), 2, keys[0])
	require.NoError(t, err)
	assert.True(t, selected)
}
