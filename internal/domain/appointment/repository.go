package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, q *ListQuery) (*PagedAppointments, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*Appointment, error)
	ListByStatus(ctx context.Context, status Status) ([]*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByProviderAndDateRange returns the provider's appointments whose
	// start time falls within [from, to].
	FindByProviderAndDateRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]*Appointment, error)

	// CreateIfNoConflict inserts the appointment only if no non-cancelled
	// appointment for the same provider overlaps its interval. The check and
	// the insert run atomically; a detected overlap yields ErrConflict.
	// The advisory availability scan is not authoritative, this is.
	CreateIfNoConflict(ctx context.Context, a *Appointment) error

	// UpdateIfNoConflict persists a full-row rewrite under the same atomic
	// overlap guard, ignoring the appointment's own row. The write lands only
	// while the stored status still equals expected, so a transition that
	// raced in between yields ErrStatusRace instead of being overwritten.
	UpdateIfNoConflict(ctx context.Context, a *Appointment, expected Status) error

	// UpdateStatusIf persists a status change only while the stored status
	// still equals expected; a lost race yields ErrStatusRace.
	UpdateStatusIf(ctx context.Context, a *Appointment, expected Status) error
}
