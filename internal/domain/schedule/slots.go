package schedule

import "time"

// SlotWidth is the fixed booking granularity. Variable-width slots are
// deliberately unsupported.
const SlotWidth = 30 * time.Minute

// TimeSlot is a half-open [StartTime, EndTime) candidate booking window.
// Value type: produced fresh on every availability read, never stored.
type TimeSlot struct {
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	DisplayTime string    `json:"displayTime"`
	Available   bool      `json:"available"`
}

// GenerateSlots returns the ordered candidate slots for date under ws, all
// initially available. A non-working day or an inverted/empty working window
// yields no slots. The final slot may end exactly at dayEnd.
func GenerateSlots(date time.Time, ws WorkingSchedule) []TimeSlot {
	if !ws.Includes(date) {
		return nil
	}

	dayStart := ws.DayStart.At(date)
	dayEnd := ws.DayEnd.At(date)

	var slots []TimeSlot
	for start := dayStart; !start.Add(SlotWidth).After(dayEnd); start = start.Add(SlotWidth) {
		slots = append(slots, TimeSlot{
			StartTime:   start,
			EndTime:     start.Add(SlotWidth),
			DisplayTime: start.Format("15:04"),
			Available:   true,
		})
	}
	return slots
}
