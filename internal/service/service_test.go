package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/directory"
	"github.com/caredesk/scheduling/internal/domain/appointment"
	"github.com/caredesk/scheduling/internal/notifier"
	"github.com/caredesk/scheduling/pkg/metrics"
)

// One collector per test binary; promauto registers globally.
var testMetrics = metrics.NewCollector("test")

var staff = Caller{Role: "staff"}

// memRepo is an in-memory appointment.Repository that honors the same
// atomicity contract as the Postgres implementation: the overlap check and
// the insert happen under one lock, and status updates are conditional.
type memRepo struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*appointment.Appointment
}

func newMemRepo() *memRepo {
	return &memRepo{byID: make(map[uuid.UUID]*appointment.Appointment)}
}

var _ appointment.Repository = (*memRepo)(nil)

func (r *memRepo) snapshot(a *appointment.Appointment) *appointment.Appointment {
	cp := *a
	return &cp
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	return r.snapshot(a), nil
}

func (r *memRepo) List(_ context.Context, q *appointment.ListQuery) (*appointment.PagedAppointments, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*appointment.Appointment
	for _, a := range r.byID {
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.ProviderID != nil && a.ProviderID != *q.ProviderID {
			continue
		}
		if q.Status != nil && a.Status != *q.Status {
			continue
		}
		out = append(out, r.snapshot(a))
	}
	return &appointment.PagedAppointments{
		Appointments: out,
		TotalCount:   int64(len(out)),
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   int(math.Ceil(float64(len(out)) / float64(q.PageSize))),
	}, nil
}

func (r *memRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*appointment.Appointment, error) {
	return r.listWhere(func(a *appointment.Appointment) bool { return a.PatientID == patientID })
}

func (r *memRepo) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*appointment.Appointment, error) {
	return r.listWhere(func(a *appointment.Appointment) bool { return a.ProviderID == providerID })
}

func (r *memRepo) ListByStatus(ctx context.Context, status appointment.Status) ([]*appointment.Appointment, error) {
	return r.listWhere(func(a *appointment.Appointment) bool { return a.Status == status })
}

func (r *memRepo) listWhere(match func(*appointment.Appointment) bool) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*appointment.Appointment
	for _, a := range r.byID {
		if match(a) {
			out = append(out, r.snapshot(a))
		}
	}
	return out, nil
}

func (r *memRepo) FindByProviderAndDateRange(_ context.Context, providerID uuid.UUID, from, to time.Time) ([]*appointment.Appointment, error) {
	return r.listWhere(func(a *appointment.Appointment) bool {
		return a.ProviderID == providerID && !a.StartTime.Before(from) && !a.StartTime.After(to)
	})
}

func (r *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return appointment.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *memRepo) overlapsLocked(candidate *appointment.Appointment) bool {
	for _, existing := range r.byID {
		if existing.ID == candidate.ID {
			continue
		}
		if existing.ProviderID != candidate.ProviderID {
			continue
		}
		if existing.Status == appointment.StatusCancelled {
			continue
		}
		if candidate.StartTime.Before(existing.EndsAt()) && existing.StartTime.Before(candidate.EndsAt()) {
			return true
		}
	}
	return false
}

func (r *memRepo) CreateIfNoConflict(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.overlapsLocked(a) {
		return appointment.ErrConflict
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.byID[a.ID] = r.snapshot(a)
	return nil
}

func (r *memRepo) UpdateIfNoConflict(_ context.Context, a *appointment.Appointment, expected appointment.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok {
		return appointment.ErrNotFound
	}
	if r.overlapsLocked(a) {
		return appointment.ErrConflict
	}
	if stored.Status != expected {
		return appointment.ErrStatusRace
	}
	r.byID[a.ID] = r.snapshot(a)
	return nil
}

func (r *memRepo) UpdateStatusIf(_ context.Context, a *appointment.Appointment, expected appointment.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[a.ID]
	if !ok {
		return appointment.ErrNotFound
	}
	if stored.Status != expected {
		return appointment.ErrStatusRace
	}
	stored.Status = a.Status
	stored.Notes = a.Notes
	return nil
}

// fakeNotifier records published events and can be told to fail.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
	err    error
}

func (n *fakeNotifier) Publish(_ context.Context, event notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

func (n *fakeNotifier) published() []notifier.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notifier.Event, len(n.events))
	copy(out, n.events)
	return out
}

func (n *fakeNotifier) lastType() (notifier.EventType, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return "", false
	}
	return n.events[len(n.events)-1].Type, true
}

func newTestEvents(n notifier.Notifier) *EventService {
	return NewEventService(n, testMetrics, zap.NewNop())
}

// fakeDirectory serves canned provider and patient profiles.
type fakeDirectory struct {
	providers map[uuid.UUID]*directory.ProviderProfile
	patients  map[uuid.UUID]*directory.PatientProfile
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		providers: make(map[uuid.UUID]*directory.ProviderProfile),
		patients:  make(map[uuid.UUID]*directory.PatientProfile),
	}
}

func (d *fakeDirectory) GetProvider(_ context.Context, id uuid.UUID) (*directory.ProviderProfile, error) {
	p, ok := d.providers[id]
	if !ok {
		return nil, directory.ErrProviderNotFound
	}
	return p, nil
}

func (d *fakeDirectory) GetPatient(_ context.Context, id uuid.UUID) (*directory.PatientProfile, error) {
	p, ok := d.patients[id]
	if !ok {
		return nil, directory.ErrPatientNotFound
	}
	return p, nil
}
