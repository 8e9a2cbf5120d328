package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/scheduling/internal/domain/appointment"
)

type EventType string

const (
	EventCreated     EventType = "CREATED"
	EventApproved    EventType = "APPROVED"
	EventRejected    EventType = "REJECTED"
	EventRescheduled EventType = "RESCHEDULED"
	EventConfirmed   EventType = "CONFIRMED"
	EventInProgress  EventType = "IN_PROGRESS"
	EventCancelled   EventType = "CANCELLED"
	EventCompleted   EventType = "COMPLETED"
	EventNoShow      EventType = "NO_SHOW"
)

// Event is the lifecycle notification emitted once per successful
// transition. Delivery is best-effort; downstream consumers (reminders,
// notification fan-out) must tolerate gaps.
type Event struct {
	AppointmentID uuid.UUID          `json:"appointmentId"`
	PatientID     uuid.UUID          `json:"patientId"`
	ProviderID    uuid.UUID          `json:"providerId"`
	StartTime     time.Time          `json:"startTime"`
	DurationMins  int                `json:"durationMinutes"`
	Status        appointment.Status `json:"status"`
	Type          EventType          `json:"type"`
	OccurredAt    time.Time          `json:"occurredAt"`
}

// NewEvent snapshots an appointment into a transition event.
func NewEvent(a *appointment.Appointment, t EventType, at time.Time) Event {
	return Event{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		ProviderID:    a.ProviderID,
		StartTime:     a.StartTime,
		DurationMins:  a.DurationMins,
		Status:        a.Status,
		Type:          t,
		OccurredAt:    at,
	}
}

type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
