package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/domain/appointment"
	"github.com/caredesk/scheduling/internal/notifier"
	"github.com/caredesk/scheduling/pkg/clock"
)

// Caller identifies the authenticated principal for patient-scoped access
// checks. Authentication itself happens upstream.
type Caller struct {
	UserID    uuid.UUID
	Role      string
	PatientID *uuid.UUID
}

func (c Caller) mayAccessPatient(patientID uuid.UUID) bool {
	if c.Role != "patient" {
		return true
	}
	return c.PatientID != nil && *c.PatientID == patientID
}

// AppointmentService owns the appointment lifecycle: creation and every
// status transition. All writes go through the repository's atomic
// operations, so the advisory availability read can never be the deciding
// check.
type AppointmentService struct {
	repo   appointment.Repository
	events *EventService
	clk    clock.Clock
	log    *zap.Logger
}

func NewAppointmentService(
	repo appointment.Repository,
	events *EventService,
	clk clock.Clock,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{repo: repo, events: events, clk: clk, log: log}
}

func (s *AppointmentService) Create(ctx context.Context, cmd *appointment.CreateCommand) (*appointment.Appointment, error) {
	if cmd.DurationMins < 0 {
		return nil, appointment.ErrInvalidDuration
	}
	duration := cmd.DurationMins
	if duration == 0 {
		duration = appointment.DefaultDurationMins
	}

	a := &appointment.Appointment{
		PatientID:    cmd.PatientID,
		ProviderID:   cmd.ProviderID,
		StartTime:    cmd.StartTime,
		DurationMins: duration,
		Status:       appointment.StatusPending,
		Reason:       cmd.Reason,
	}

	if err := s.repo.CreateIfNoConflict(ctx, a); err != nil {
		if err == appointment.ErrConflict {
			return nil, err
		}
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	s.events.PublishAsync(notifier.NewEvent(a, notifier.EventCreated, s.clk.Now()))
	return a, nil
}

func (s *AppointmentService) Get(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.mayAccessPatient(a.PatientID) {
		return nil, ErrForbidden
	}
	return a, nil
}

func (s *AppointmentService) List(ctx context.Context, q *appointment.ListQuery, caller Caller) (*appointment.PagedAppointments, error) {
	// Patients can only see their own appointments.
	if caller.Role == "patient" && caller.PatientID != nil {
		q.PatientID = caller.PatientID
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.repo.List(ctx, q)
}

func (s *AppointmentService) ListByPatient(ctx context.Context, patientID uuid.UUID, caller Caller) ([]*appointment.Appointment, error) {
	if !caller.mayAccessPatient(patientID) {
		return nil, ErrForbidden
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *AppointmentService) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*appointment.Appointment, error) {
	return s.repo.ListByProvider(ctx, providerID)
}

func (s *AppointmentService) ListByStatus(ctx context.Context, status appointment.Status) ([]*appointment.Appointment, error) {
	if !status.IsValid() {
		return nil, appointment.ErrInvalidStatus
	}
	return s.repo.ListByStatus(ctx, status)
}

// Update is the administrative field update, allowed only for back-office
// corrections. It goes through the same guarded write as Reschedule: status
// changes pass the transition matrix, interval rewrites are overlap-checked,
// and a transition that raced in after the read surfaces as ErrStatusRace.
func (s *AppointmentService) Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateCommand) (*appointment.Appointment, error) {
	if cmd.DurationMins != nil && *cmd.DurationMins <= 0 {
		return nil, appointment.ErrInvalidDuration
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prior := a.Status

	if cmd.Status != nil {
		if !cmd.Status.IsValid() {
			return nil, appointment.ErrInvalidStatus
		}
		if *cmd.Status != a.Status && !a.CanTransitionTo(*cmd.Status) {
			return nil, appointment.ErrInvalidStatusTransition
		}
	}

	if cmd.PatientID != nil {
		a.PatientID = *cmd.PatientID
	}
	if cmd.ProviderID != nil {
		a.ProviderID = *cmd.ProviderID
	}
	if cmd.StartTime != nil {
		a.StartTime = *cmd.StartTime
	}
	if cmd.DurationMins != nil {
		a.DurationMins = *cmd.DurationMins
	}
	if cmd.Status != nil {
		a.Status = *cmd.Status
	}
	if cmd.Notes != nil {
		a.Notes = *cmd.Notes
	}
	if cmd.Reason != nil {
		a.Reason = *cmd.Reason
	}

	if err := s.repo.UpdateIfNoConflict(ctx, a, prior); err != nil {
		return nil, err
	}
	s.log.Info("appointment updated administratively", zap.String("id", id.String()))
	return a, nil
}

func (s *AppointmentService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Approve moves a pending request onto the schedule.
func (s *AppointmentService) Approve(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != appointment.StatusPending {
		return nil, appointment.ErrInvalidStatusTransition
	}

	a.Status = appointment.StatusScheduled
	if err := s.repo.UpdateStatusIf(ctx, a, appointment.StatusPending); err != nil {
		return nil, err
	}

	s.events.PublishAsync(notifier.NewEvent(a, notifier.EventApproved, s.clk.Now()))
	return a, nil
}

// Reject declines a pending request, optionally recording the reason in the
// administrative note log.
func (s *AppointmentService) Reject(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != appointment.StatusPending {
		return nil, appointment.ErrInvalidStatusTransition
	}

	a.Status = appointment.StatusRejected
	if reason != "" {
		a.AppendNote("Rejection reason: " + reason)
	}
	if err := s.repo.UpdateStatusIf(ctx, a, appointment.StatusPending); err != nil {
		return nil, err
	}

	s.events.PublishAsync(notifier.NewEvent(a, notifier.EventRejected, s.clk.Now()))
	return a, nil
}

// Reschedule moves a non-terminal appointment to a new interval and resets
// it to SCHEDULED regardless of its prior state. Terminal appointments stay
// terminal; there is no un-cancelling.
func (s *AppointmentService) Reschedule(ctx context.Context, id uuid.UUID, cmd *appointment.RescheduleCommand) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.CanTransitionTo(appointment.StatusScheduled) {
		return nil, appointment.ErrInvalidStatusTransition
	}
	if !cmd.NewStartTime.After(s.clk.Now()) {
		return nil, appointment.ErrScheduledInPast
	}
	if cmd.DurationMins != nil && *cmd.DurationMins <= 0 {
		return nil, appointment.ErrInvalidDuration
	}

	prior := a.Status
	a.StartTime = cmd.NewStartTime
	if cmd.DurationMins != nil {
		a.DurationMins = *cmd.DurationMins
	}
	a.Status = appointment.StatusScheduled

	if err := s.repo.UpdateIfNoConflict(ctx, a, prior); err != nil {
		return nil, err
	}

	s.events.PublishAsync(notifier.NewEvent(a, notifier.EventRescheduled, s.clk.Now()))
	return a, nil
}

func (s *AppointmentService) Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.transition(ctx, id, appointment.StatusConfirmed, notifier.EventConfirmed)
}

func (s *AppointmentService) MarkInProgress(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.transition(ctx, id, appointment.StatusInProgress, notifier.EventInProgress)
}

func (s *AppointmentService) MarkCompleted(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.transition(ctx, id, appointment.StatusCompleted, notifier.EventCompleted)
}

func (s *AppointmentService) MarkNoShow(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return s.transition(ctx, id, appointment.StatusNoShow, notifier.EventNoShow)
}

func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.mayAccessPatient(a.PatientID) {
		return nil, ErrForbidden
	}
	return s.applyTransition(ctx, a, appointment.StatusCancelled, notifier.EventCancelled)
}

func (s *AppointmentService) transition(ctx context.Context, id uuid.UUID, next appointment.Status, eventType notifier.EventType) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(ctx, a, next, eventType)
}

func (s *AppointmentService) applyTransition(ctx context.Context, a *appointment.Appointment, next appointment.Status, eventType notifier.EventType) (*appointment.Appointment, error) {
	prior := a.Status
	if err := a.Transition(next); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusIf(ctx, a, prior); err != nil {
		return nil, err
	}

	s.events.PublishAsync(notifier.NewEvent(a, eventType, s.clk.Now()))
	return a, nil
}
