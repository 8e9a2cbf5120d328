package schedule

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Defaults applied whenever a provider's raw working-hours configuration is
// absent or unparseable. Fallback is per field: a bad start time does not
// disturb a good end time or day set.
var (
	DefaultDayStart = TimeOfDay{Hour: 9}
	DefaultDayEnd   = TimeOfDay{Hour: 17}
)

type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// At anchors the time of day on the given date, in the date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, date.Location())
}

// FlexTime is the wire shape of a working-hours boundary. Upstream profile
// services send either a formatted string ("09:00" or "09:00:00") or a
// structured {"hour": 9, "minute": 0} object; both decode here, and anything
// else leaves the value unset so the resolver can fall back.
type FlexTime struct {
	Value TimeOfDay
	Set   bool
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if t, ok := parseClock(s); ok {
			f.Value, f.Set = t, true
		}
		return nil
	}

	var obj struct {
		Hour   *int `json:"hour"`
		Minute *int `json:"minute"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Hour != nil && obj.Minute != nil {
		if validClock(*obj.Hour, *obj.Minute) {
			f.Value, f.Set = TimeOfDay{Hour: *obj.Hour, Minute: *obj.Minute}, true
		}
	}
	// Malformed input is not an error at this boundary; it degrades to the
	// field default downstream.
	return nil
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(time.Date(0, 1, 1, f.Value.Hour, f.Value.Minute, 0, 0, time.UTC).Format("15:04:05"))
}

func parseClock(s string) (TimeOfDay, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, true
		}
	}
	return TimeOfDay{}, false
}

func validClock(hour, minute int) bool {
	return hour >= 0 && hour <= 23 && minute >= 0 && minute <= 59
}

// WorkingSchedule is the canonical form of a provider's availability
// configuration. It is derived on every read and never persisted here; the
// provider profile service owns the source of truth.
type WorkingSchedule struct {
	DayStart TimeOfDay
	DayEnd   TimeOfDay
	Days     map[time.Weekday]bool
}

// Includes reports whether date falls on a working day.
func (ws WorkingSchedule) Includes(date time.Time) bool {
	return ws.Days[date.Weekday()]
}

// Resolve normalizes raw configuration into a WorkingSchedule, applying the
// 09:00-17:00 all-days defaults field by field. It never fails: silently
// tolerating misconfigured profiles is long-standing behavior that callers
// depend on.
func Resolve(start, end FlexTime, workingDays string) WorkingSchedule {
	ws := WorkingSchedule{
		DayStart: DefaultDayStart,
		DayEnd:   DefaultDayEnd,
		Days:     parseWorkingDays(workingDays),
	}
	if start.Set {
		ws.DayStart = start.Value
	}
	if end.Set {
		ws.DayEnd = end.Value
	}
	return ws
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

func allDays() map[time.Weekday]bool {
	days := make(map[time.Weekday]bool, 7)
	for _, d := range weekdayNames {
		days[d] = true
	}
	return days
}

// parseWorkingDays understands comma-separated weekday names plus the
// "MON-FRI"/"MONDAY-FRIDAY" aliases. An empty or entirely unparseable
// descriptor means the provider works every day.
func parseWorkingDays(raw string) map[time.Weekday]bool {
	if strings.TrimSpace(raw) == "" {
		return allDays()
	}

	days := make(map[time.Weekday]bool, 7)
	for _, part := range strings.Split(raw, ",") {
		token := strings.ToUpper(strings.TrimSpace(part))
		if token == "MON-FRI" || token == "MONDAY-FRIDAY" {
			for d := time.Monday; d <= time.Friday; d++ {
				days[d] = true
			}
			continue
		}
		if d, ok := weekdayNames[token]; ok {
			days[d] = true
		}
	}

	if len(days) == 0 {
		return allDays()
	}
	return days
}
