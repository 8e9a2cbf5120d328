package appointment

import (
	"time"

	"github.com/google/uuid"
)

const DefaultDurationMins = 30

// Status models the approval workflow: requests start PENDING and are
// approved into SCHEDULED or rejected. A direct-book deployment is the
// same machine with Approve invoked at creation time.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusScheduled  Status = "SCHEDULED"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
	StatusRejected   Status = "REJECTED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusNoShow:
		return true
	}
	return false
}

// transitions is the full legality matrix. Approve/Reject are gated on
// PENDING; the administrative transitions and Reschedule are legal from
// any non-terminal state. Keeping it as one table means the terminal-state
// policy cannot drift between call sites.
var transitions = map[Status][]Status{
	StatusPending:    {StatusScheduled, StatusRejected, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusScheduled:  {StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
	StatusRejected:   {},
}

type Appointment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	PatientID  uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patientId"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index" json:"providerId"`

	StartTime    time.Time `gorm:"column:start_time;not null;index" json:"startTime"`
	DurationMins int       `gorm:"column:duration_mins;not null;default:30" json:"durationMinutes"`
	Status       Status    `gorm:"column:status;type:varchar(20);not null;default:'PENDING';index" json:"status"`

	// Notes is an append-only log of administrative actions (rejection
	// reasons and the like); Reason is the caller-supplied booking reason.
	Notes  string `gorm:"column:notes;type:text" json:"notes"`
	Reason string `gorm:"column:reason;type:text" json:"reason"`
}

func (Appointment) TableName() string {
	return "scheduling.appointments"
}

// EndsAt derives the exclusive end of the appointment interval, falling
// back to the default duration when the stored value is unset.
func (a *Appointment) EndsAt() time.Time {
	mins := a.DurationMins
	if mins <= 0 {
		mins = DefaultDurationMins
	}
	return a.StartTime.Add(time.Duration(mins) * time.Minute)
}

func (a *Appointment) CanTransitionTo(next Status) bool {
	for _, s := range transitions[a.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// Transition moves the appointment to next after checking the matrix.
func (a *Appointment) Transition(next Status) error {
	if !a.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	a.Status = next
	return nil
}

// AppendNote adds one line to the administrative note log.
func (a *Appointment) AppendNote(note string) {
	if note == "" {
		return
	}
	if a.Notes != "" {
		a.Notes += "\n"
	}
	a.Notes += note
}

type CreateCommand struct {
	PatientID    uuid.UUID
	ProviderID   uuid.UUID
	StartTime    time.Time
	DurationMins int
	Reason       string
}

type UpdateCommand struct {
	PatientID    *uuid.UUID
	ProviderID   *uuid.UUID
	StartTime    *time.Time
	DurationMins *int
	Status       *Status
	Notes        *string
	Reason       *string
}

type RescheduleCommand struct {
	NewStartTime time.Time
	DurationMins *int
}

type ListQuery struct {
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	Status     *Status
	Page       int
	PageSize   int
	SortBy     string
	Descending bool
}

type PagedAppointments struct {
	Appointments []*Appointment
	TotalCount   int64
	Page         int
	PageSize     int
	TotalPages   int
}
