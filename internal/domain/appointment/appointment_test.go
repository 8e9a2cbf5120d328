package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusPending, StatusScheduled, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow, StatusRejected,
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusCompleted: true,
		StatusCancelled: true,
		StatusRejected:  true,
		StatusNoShow:    true,
	}
	for _, s := range allStatuses {
		assert.Equal(t, terminal[s], s.IsTerminal(), "status %s", s)
	}
}

func TestTerminalStatesAllowNoTransitions(t *testing.T) {
	for _, from := range allStatuses {
		if !from.IsTerminal() {
			continue
		}
		a := &Appointment{Status: from}
		for _, to := range allStatuses {
			assert.False(t, a.CanTransitionTo(to), "%s -> %s must be illegal", from, to)
		}
	}
}

func TestRejectedOnlyReachableFromPending(t *testing.T) {
	for _, from := range allStatuses {
		a := &Appointment{Status: from}
		want := from == StatusPending
		assert.Equal(t, want, a.CanTransitionTo(StatusRejected), "%s -> REJECTED", from)
	}
}

func TestNonTerminalStatesReachScheduled(t *testing.T) {
	// Reschedule resets any live appointment to SCHEDULED.
	for _, from := range allStatuses {
		if from.IsTerminal() {
			continue
		}
		a := &Appointment{Status: from}
		assert.True(t, a.CanTransitionTo(StatusScheduled), "%s -> SCHEDULED", from)
	}
}

func TestTransitionMutatesOnlyWhenLegal(t *testing.T) {
	a := &Appointment{Status: StatusCompleted}
	err := a.Transition(StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, StatusCompleted, a.Status)

	a = &Appointment{Status: StatusPending}
	assert.NoError(t, a.Transition(StatusScheduled))
	assert.Equal(t, StatusScheduled, a.Status)
}

func TestEndsAt(t *testing.T) {
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)

	a := &Appointment{StartTime: start, DurationMins: 45}
	assert.Equal(t, start.Add(45*time.Minute), a.EndsAt())

	// Unset duration falls back to the 30-minute default.
	a = &Appointment{StartTime: start}
	assert.Equal(t, start.Add(30*time.Minute), a.EndsAt())
}

func TestAppendNote(t *testing.T) {
	a := &Appointment{}
	a.AppendNote("Rejection reason: too busy")
	assert.Equal(t, "Rejection reason: too busy", a.Notes)

	a.AppendNote("second entry")
	assert.Equal(t, "Rejection reason: too busy\nsecond entry", a.Notes)

	a.AppendNote("")
	assert.Equal(t, "Rejection reason: too busy\nsecond entry", a.Notes)
}
