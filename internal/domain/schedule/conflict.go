package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/caredesk/scheduling/internal/domain/appointment"
)

// Overlaps is the half-open interval predicate: [s1,e1) and [s2,e2)
// intersect iff s1 < e2 && s2 < e1. Touching boundaries do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// MarkAvailability flags each slot unavailable if it overlaps a qualifying
// existing appointment or starts before now. Cancelled appointments never
// block a slot, and excludeID skips the appointment being rescheduled so it
// does not conflict with itself. Pure: inputs are not mutated beyond the
// slots' Available flags.
func MarkAvailability(slots []TimeSlot, existing []*appointment.Appointment, now time.Time, excludeID uuid.UUID) {
	qualifying := existing[:0:0]
	for _, apt := range existing {
		if apt.Status == appointment.StatusCancelled {
			continue
		}
		if excludeID != uuid.Nil && apt.ID == excludeID {
			continue
		}
		qualifying = append(qualifying, apt)
	}

	for i := range slots {
		if slots[i].StartTime.Before(now) {
			slots[i].Available = false
			continue
		}
		for _, apt := range qualifying {
			if Overlaps(slots[i].StartTime, slots[i].EndTime, apt.StartTime, apt.EndsAt()) {
				slots[i].Available = false
				break
			}
		}
	}
}
