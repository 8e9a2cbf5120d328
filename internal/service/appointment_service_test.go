package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/domain/appointment"
	"github.com/caredesk/scheduling/internal/notifier"
	"github.com/caredesk/scheduling/pkg/clock"
)

var testNow = time.Date(2026, time.September, 7, 8, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *memRepo
	notifier *fakeNotifier
	events   *EventService
	svc      *AppointmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	n := &fakeNotifier{}
	events := newTestEvents(n)
	t.Cleanup(events.Shutdown)
	return &fixture{
		repo:     repo,
		notifier: n,
		events:   events,
		svc:      NewAppointmentService(repo, events, clock.Fixed(testNow), zap.NewNop()),
	}
}

func (f *fixture) seed(t *testing.T, status appointment.Status) *appointment.Appointment {
	t.Helper()
	a := &appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		ProviderID:   uuid.New(),
		StartTime:    testNow.Add(2 * time.Hour),
		DurationMins: 30,
		Status:       status,
	}
	f.repo.mu.Lock()
	f.repo.byID[a.ID] = f.repo.snapshot(a)
	f.repo.mu.Unlock()
	return a
}

func (f *fixture) awaitEvent(t *testing.T, want notifier.EventType) notifier.Event {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, e := range f.notifier.published() {
			if e.Type == want {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "expected %s event", want)
	for _, e := range f.notifier.published() {
		if e.Type == want {
			return e
		}
	}
	return notifier.Event{}
}

func TestCreateDefaultsToPending(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Create(context.Background(), &appointment.CreateCommand{
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		StartTime:  testNow.Add(2 * time.Hour),
		Reason:     "checkup",
	})
	require.NoError(t, err)

	assert.Equal(t, appointment.StatusPending, a.Status)
	assert.Equal(t, appointment.DefaultDurationMins, a.DurationMins)
	assert.NotEqual(t, uuid.Nil, a.ID)

	event := f.awaitEvent(t, notifier.EventCreated)
	assert.Equal(t, a.ID, event.AppointmentID)
	assert.Equal(t, appointment.StatusPending, event.Status)
}

func TestCreateRejectsNegativeDuration(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &appointment.CreateCommand{
		PatientID:    uuid.New(),
		ProviderID:   uuid.New(),
		StartTime:    testNow.Add(2 * time.Hour),
		DurationMins: -15,
	})
	assert.ErrorIs(t, err, appointment.ErrInvalidDuration)
}

func TestCreateOverlapConflicts(t *testing.T) {
	f := newFixture(t)
	existing := f.seed(t, appointment.StatusScheduled)

	_, err := f.svc.Create(context.Background(), &appointment.CreateCommand{
		PatientID:  uuid.New(),
		ProviderID: existing.ProviderID,
		StartTime:  existing.StartTime.Add(15 * time.Minute),
	})
	assert.ErrorIs(t, err, appointment.ErrConflict)
}

func TestCreateIgnoresCancelledOverlap(t *testing.T) {
	f := newFixture(t)
	existing := f.seed(t, appointment.StatusCancelled)

	_, err := f.svc.Create(context.Background(), &appointment.CreateCommand{
		PatientID:  uuid.New(),
		ProviderID: existing.ProviderID,
		StartTime:  existing.StartTime,
	})
	assert.NoError(t, err)
}

func TestConcurrentCreatesOneWins(t *testing.T) {
	f := newFixture(t)
	providerID := uuid.New()
	start := testNow.Add(2 * time.Hour)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(context.Background(), &appointment.CreateCommand{
				PatientID:  uuid.New(),
				ProviderID: providerID,
				StartTime:  start,
			})
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, appointment.ErrConflict):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, callers-1, lost)
}

func TestApproveMovesPendingToScheduled(t *testing.T) {
	f := newFixture(t)
	pending := f.seed(t, appointment.StatusPending)

	a, err := f.svc.Approve(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, a.Status)

	stored, err := f.repo.GetByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, stored.Status)

	f.awaitEvent(t, notifier.EventApproved)
}

func TestApproveRequiresPending(t *testing.T) {
	f := newFixture(t)
	scheduled := f.seed(t, appointment.StatusScheduled)

	_, err := f.svc.Approve(context.Background(), scheduled.ID)
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
}

func TestApproveUnknownAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, appointment.ErrNotFound)
}

func TestRejectRecordsReason(t *testing.T) {
	f := newFixture(t)
	pending := f.seed(t, appointment.StatusPending)

	a, err := f.svc.Reject(context.Background(), pending.ID, "provider unavailable")
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusRejected, a.Status)
	assert.Equal(t, "Rejection reason: provider unavailable", a.Notes)

	f.awaitEvent(t, notifier.EventRejected)
}

func TestRejectAppendsToExistingNotes(t *testing.T) {
	f := newFixture(t)
	pending := f.seed(t, appointment.StatusPending)
	f.repo.mu.Lock()
	f.repo.byID[pending.ID].Notes = "called patient twice"
	f.repo.mu.Unlock()

	a, err := f.svc.Reject(context.Background(), pending.ID, "no response")
	require.NoError(t, err)
	assert.Equal(t, "called patient twice\nRejection reason: no response", a.Notes)
}

func TestRejectRequiresPending(t *testing.T) {
	f := newFixture(t)
	scheduled := f.seed(t, appointment.StatusScheduled)

	_, err := f.svc.Reject(context.Background(), scheduled.ID, "too late")
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
}

func TestRescheduleResetsToScheduled(t *testing.T) {
	f := newFixture(t)
	confirmed := f.seed(t, appointment.StatusConfirmed)
	newStart := testNow.Add(24 * time.Hour)

	a, err := f.svc.Reschedule(context.Background(), confirmed.ID, &appointment.RescheduleCommand{
		NewStartTime: newStart,
	})
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, a.Status)
	assert.True(t, a.StartTime.Equal(newStart))

	f.awaitEvent(t, notifier.EventRescheduled)
}

func TestRescheduleIntoPastFails(t *testing.T) {
	f := newFixture(t)
	scheduled := f.seed(t, appointment.StatusScheduled)

	for _, newStart := range []time.Time{testNow.Add(-time.Hour), testNow} {
		_, err := f.svc.Reschedule(context.Background(), scheduled.ID, &appointment.RescheduleCommand{
			NewStartTime: newStart,
		})
		assert.ErrorIs(t, err, appointment.ErrScheduledInPast)
	}

	stored, err := f.repo.GetByID(context.Background(), scheduled.ID)
	require.NoError(t, err)
	assert.True(t, stored.StartTime.Equal(scheduled.StartTime))
	assert.Equal(t, appointment.StatusScheduled, stored.Status)
}

func TestRescheduleFromTerminalStateFails(t *testing.T) {
	f := newFixture(t)

	for _, status := range []appointment.Status{
		appointment.StatusCancelled,
		appointment.StatusCompleted,
		appointment.StatusRejected,
		appointment.StatusNoShow,
	} {
		terminal := f.seed(t, status)
		_, err := f.svc.Reschedule(context.Background(), terminal.ID, &appointment.RescheduleCommand{
			NewStartTime: testNow.Add(24 * time.Hour),
		})
		assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition, "from %s", status)
	}
}

func TestRescheduleIntoTakenSlotConflicts(t *testing.T) {
	f := newFixture(t)
	blocker := f.seed(t, appointment.StatusScheduled)

	moving := f.seed(t, appointment.StatusScheduled)
	f.repo.mu.Lock()
	f.repo.byID[moving.ID].ProviderID = blocker.ProviderID
	f.repo.byID[moving.ID].StartTime = testNow.Add(5 * time.Hour)
	f.repo.mu.Unlock()

	_, err := f.svc.Reschedule(context.Background(), moving.ID, &appointment.RescheduleCommand{
		NewStartTime: blocker.StartTime,
	})
	assert.ErrorIs(t, err, appointment.ErrConflict)
}

func TestTerminalStatesRefuseTransitions(t *testing.T) {
	f := newFixture(t)

	for _, status := range []appointment.Status{
		appointment.StatusCompleted,
		appointment.StatusCancelled,
		appointment.StatusRejected,
		appointment.StatusNoShow,
	} {
		terminal := f.seed(t, status)

		_, err := f.svc.Cancel(context.Background(), terminal.ID, staff)
		assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition, "cancel from %s", status)

		_, err = f.svc.MarkCompleted(context.Background(), terminal.ID)
		assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition, "complete from %s", status)

		_, err = f.svc.MarkNoShow(context.Background(), terminal.ID)
		assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition, "no-show from %s", status)

		_, err = f.svc.MarkInProgress(context.Background(), terminal.ID)
		assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition, "in-progress from %s", status)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, &appointment.CreateCommand{
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		StartTime:  testNow.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkInProgress(ctx, a.ID)
	require.NoError(t, err)

	done, err := f.svc.MarkCompleted(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, done.Status)

	f.awaitEvent(t, notifier.EventCompleted)
}

func TestCancelScopedToOwnPatient(t *testing.T) {
	f := newFixture(t)
	scheduled := f.seed(t, appointment.StatusScheduled)

	other := uuid.New()
	_, err := f.svc.Cancel(context.Background(), scheduled.ID, Caller{Role: "patient", PatientID: &other})
	assert.ErrorIs(t, err, ErrForbidden)

	owner := scheduled.PatientID
	a, err := f.svc.Cancel(context.Background(), scheduled.ID, Caller{Role: "patient", PatientID: &owner})
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, a.Status)
}

func TestGetScopedToOwnPatient(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, appointment.StatusScheduled)

	other := uuid.New()
	_, err := f.svc.Get(context.Background(), a.ID, Caller{Role: "patient", PatientID: &other})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Get(context.Background(), a.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestUpdateStatusGoesThroughMatrix(t *testing.T) {
	f := newFixture(t)
	completed := f.seed(t, appointment.StatusCompleted)

	scheduled := appointment.StatusScheduled
	_, err := f.svc.Update(context.Background(), completed.ID, &appointment.UpdateCommand{Status: &scheduled})
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)

	pending := f.seed(t, appointment.StatusPending)
	a, err := f.svc.Update(context.Background(), pending.ID, &appointment.UpdateCommand{Status: &scheduled})
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, a.Status)
}

func TestNotifierFailureDoesNotFailWrites(t *testing.T) {
	repo := newMemRepo()
	n := &fakeNotifier{err: errors.New("broker down")}
	events := newTestEvents(n)
	t.Cleanup(events.Shutdown)
	svc := NewAppointmentService(repo, events, clock.Fixed(testNow), zap.NewNop())

	a, err := svc.Create(context.Background(), &appointment.CreateCommand{
		PatientID:  uuid.New(),
		ProviderID: uuid.New(),
		StartTime:  testNow.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), a.ID)
	assert.NoError(t, err)
}

func TestListByStatusValidatesStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListByStatus(context.Background(), appointment.Status("DOUBLE_BOOKED"))
	assert.ErrorIs(t, err, appointment.ErrInvalidStatus)

	f.seed(t, appointment.StatusPending)
	f.seed(t, appointment.StatusScheduled)
	got, err := f.svc.ListByStatus(context.Background(), appointment.StatusPending)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestListScopesPatients(t *testing.T) {
	f := newFixture(t)
	mine := f.seed(t, appointment.StatusScheduled)
	f.seed(t, appointment.StatusScheduled)

	owner := mine.PatientID
	page, err := f.svc.List(context.Background(), &appointment.ListQuery{}, Caller{Role: "patient", PatientID: &owner})
	require.NoError(t, err)
	require.Len(t, page.Appointments, 1)
	assert.Equal(t, mine.ID, page.Appointments[0].ID)
	assert.Equal(t, int64(1), page.TotalCount)
}

// cancelRacingRepo lands a concurrent cancellation between a caller's read
// and its subsequent conditional write.
type cancelRacingRepo struct {
	*memRepo
	once sync.Once
}

func (r *cancelRacingRepo) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := r.memRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.once.Do(func() {
		r.mu.Lock()
		r.byID[id].Status = appointment.StatusCancelled
		r.mu.Unlock()
	})
	return a, nil
}

func newRacingFixture(t *testing.T) (*cancelRacingRepo, *AppointmentService, *appointment.Appointment) {
	t.Helper()
	repo := &cancelRacingRepo{memRepo: newMemRepo()}
	events := newTestEvents(&fakeNotifier{})
	t.Cleanup(events.Shutdown)
	svc := NewAppointmentService(repo, events, clock.Fixed(testNow), zap.NewNop())

	scheduled := &appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    uuid.New(),
		ProviderID:   uuid.New(),
		StartTime:    testNow.Add(2 * time.Hour),
		DurationMins: 30,
		Status:       appointment.StatusScheduled,
	}
	repo.mu.Lock()
	repo.byID[scheduled.ID] = repo.snapshot(scheduled)
	repo.mu.Unlock()
	return repo, svc, scheduled
}

func TestRescheduleLosesRaceToCancellation(t *testing.T) {
	repo, svc, scheduled := newRacingFixture(t)

	_, err := svc.Reschedule(context.Background(), scheduled.ID, &appointment.RescheduleCommand{
		NewStartTime: testNow.Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, appointment.ErrStatusRace)

	// The cancellation that won must survive untouched.
	stored, err := repo.memRepo.GetByID(context.Background(), scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, stored.Status)
	assert.True(t, stored.StartTime.Equal(scheduled.StartTime))
}

func TestUpdateLosesRaceToCancellation(t *testing.T) {
	repo, svc, scheduled := newRacingFixture(t)

	newStart := testNow.Add(24 * time.Hour)
	_, err := svc.Update(context.Background(), scheduled.ID, &appointment.UpdateCommand{StartTime: &newStart})
	assert.ErrorIs(t, err, appointment.ErrStatusRace)

	stored, err := repo.memRepo.GetByID(context.Background(), scheduled.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, stored.Status)
	assert.True(t, stored.StartTime.Equal(scheduled.StartTime))
}

func TestUpdateIntoTakenSlotConflicts(t *testing.T) {
	f := newFixture(t)
	blocker := f.seed(t, appointment.StatusScheduled)

	moving := f.seed(t, appointment.StatusScheduled)
	f.repo.mu.Lock()
	f.repo.byID[moving.ID].ProviderID = blocker.ProviderID
	f.repo.byID[moving.ID].StartTime = testNow.Add(5 * time.Hour)
	f.repo.mu.Unlock()

	_, err := f.svc.Update(context.Background(), moving.ID, &appointment.UpdateCommand{StartTime: &blocker.StartTime})
	assert.ErrorIs(t, err, appointment.ErrConflict)
}
