// Package timeslot computes free time windows within a day from a user's
// recurring weekly schedule and one-off events, picks concrete start times
// for tasks, and spreads task lists across days.
package timeslot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"goal-planner/internal/model"
)

// Default day boundary for scheduling (7 AM - 11 PM).
const (
	DefaultDayStart = TimeOfDay(7 * 60)
	DefaultDayEnd   = TimeOfDay(23 * 60)
)

// DateLayout is the canonical date format used across the planner.
const DateLayout = "2006-01-02"

// TimeOfDay is a clock time expressed as minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" strings.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(hour*60 + minute), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Hour returns the hour component (0-23).
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Slot is a contiguous free interval within one day.
type Slot struct {
	Start           TimeOfDay
	End             TimeOfDay
	DurationMinutes int
}

// Weekday maps a date to the planner's day-of-week convention
// (0=Monday ... 6=Sunday).
func Weekday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// FreeSlots calculates the free periods on date between dayStart and dayEnd,
// net of recurring blocks matching the weekday and of non-all-day events on
// the date. An all-day blocking event empties the whole day. Periods shorter
// than minDurationMinutes are dropped. Busy intervals must not wrap past
// midnight; an interval whose end is not after its start is skipped as a
// caller error.
//
// The result is ordered left to right by period start, and is independent of
// the order busy intervals are applied in.
func FreeSlots(date time.Time, dayStart, dayEnd TimeOfDay, weekly []model.RecurringBlock, events []model.SpecialEvent, minDurationMinutes int) []Slot {
	// All-day blocking events dominate everything else.
	for _, ev := range events {
		if sameDate(ev.EventDate, date) && ev.BlocksScheduling && ev.IsAllDay {
			return nil
		}
	}

	day := Weekday(date)
	free := []period{{dayStart, dayEnd}}

	for _, block := range weekly {
		if block.DayOfWeek != day {
			continue
		}
		start, end, ok := parseBusy(block.StartTime, block.EndTime)
		if !ok {
			continue
		}
		free = subtract(free, start, end)
	}

	for _, ev := range events {
		if !sameDate(ev.EventDate, date) || !ev.BlocksScheduling || ev.IsAllDay {
			continue
		}
		start, end, ok := parseBusy(ev.StartTime, ev.EndTime)
		if !ok {
			continue
		}
		free = subtract(free, start, end)
	}

	var slots []Slot
	for _, p := range free {
		d := durationMinutes(p.start, p.end)
		if d >= minDurationMinutes {
			slots = append(slots, Slot{Start: p.start, End: p.end, DurationMinutes: d})
		}
	}
	return slots
}

type period struct {
	start, end TimeOfDay
}

// subtract removes [busyStart, busyEnd) from every period, splitting on
// partial overlap.
func subtract(periods []period, busyStart, busyEnd TimeOfDay) []period {
	var result []period
	for _, p := range periods {
		if busyEnd <= p.start || busyStart >= p.end {
			result = append(result, p)
			continue
		}
		if p.start < busyStart && busyStart < p.end {
			result = append(result, period{p.start, busyStart})
		}
		if p.start < busyEnd && busyEnd < p.end {
			result = append(result, period{busyEnd, p.end})
		}
	}
	return result
}

func parseBusy(startStr, endStr string) (start, end TimeOfDay, ok bool) {
	start, err := ParseTimeOfDay(startStr)
	if err != nil {
		return 0, 0, false
	}
	end, err = ParseTimeOfDay(endStr)
	if err != nil {
		return 0, 0, false
	}
	// Midnight wraparound is not supported for busy intervals.
	if end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// durationMinutes measures start..end, treating an end before its start as
// crossing midnight once. The wrap only applies to duration arithmetic, never
// to busy-interval input.
func durationMinutes(start, end TimeOfDay) int {
	d := int(end) - int(start)
	if d < 0 {
		d += 24 * 60
	}
	return d
}

// TotalAvailableMinutes sums the durations of all slots.
func TotalAvailableMinutes(slots []Slot) int {
	total := 0
	for _, s := range slots {
		total += s.DurationMinutes
	}
	return total
}

// Preference is a coarse time-of-day preference for slot selection.
type Preference string

const (
	PreferMorning   Preference = "morning" // slot starts before 12:00
	PreferAfternoon Preference = "afternoon"
	PreferEvening   Preference = "evening" // slot starts at or after 18:00
	PreferAny       Preference = "any"
)

const (
	noonTime    = TimeOfDay(12 * 60)
	eveningTime = TimeOfDay(18 * 60)
)

// SelectSlot picks a start time for a task of requiredMinutes from slots.
// Slots too small are filtered out; within the preference window (or the full
// suitable set when the preference is "any" or cannot be satisfied) the first
// slot in list order wins. First-fit is a deliberate deterministic policy,
// not a best-fit optimization: slots arrive ordered by start time and the
// earliest workable time is the one users expect.
//
// Returns ok=false with a reason when no slot can hold the task.
func SelectSlot(slots []Slot, requiredMinutes int, pref Preference) (start TimeOfDay, reason string, ok bool) {
	if len(slots) == 0 {
		return 0, "no available time slots", false
	}

	var suitable []Slot
	for _, s := range slots {
		if s.DurationMinutes >= requiredMinutes {
			suitable = append(suitable, s)
		}
	}
	if len(suitable) == 0 {
		return 0, fmt.Sprintf("no slots large enough for %d minute task", requiredMinutes), false
	}

	switch pref {
	case PreferMorning:
		for _, s := range suitable {
			if s.Start < noonTime {
				return s.Start, "scheduled in the morning as preferred", true
			}
		}
	case PreferAfternoon:
		for _, s := range suitable {
			if s.Start >= noonTime && s.Start < eveningTime {
				return s.Start, "scheduled in the afternoon as preferred", true
			}
		}
	case PreferEvening:
		for _, s := range suitable {
			if s.Start >= eveningTime {
				return s.Start, "scheduled in the evening as preferred", true
			}
		}
	}

	first := suitable[0]
	return first.Start, fmt.Sprintf("best available time slot (%d min available)", first.DurationMinutes), true
}

// Distribute spreads tasks across days round-robin, highest priority first
// (stable, so equal priorities keep their original relative order). The
// per-day cap is soft: when the round-robin lands on a full day the task goes
// to the next day without re-checking capacity there, so a day can exceed
// maxPerDay by wrap assignments. This is intentional best-effort spreading,
// not bin-packing.
//
// Keys of the returned map are days formatted with DateLayout.
func Distribute(tasks []model.Task, days []time.Time, maxPerDay int) map[string][]model.Task {
	distribution := make(map[string][]model.Task, len(days))
	for _, day := range days {
		distribution[day.Format(DateLayout)] = nil
	}
	if len(days) == 0 {
		return distribution
	}

	sorted := make([]model.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	dayIndex := 0
	for _, task := range sorted {
		key := days[dayIndex%len(days)].Format(DateLayout)
		if len(distribution[key]) < maxPerDay {
			distribution[key] = append(distribution[key], task)
			dayIndex++
			continue
		}
		dayIndex++
		key = days[dayIndex%len(days)].Format(DateLayout)
		distribution[key] = append(distribution[key], task)
	}
	return distribution
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
