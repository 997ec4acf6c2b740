package timeslot

import (
	"math/rand"
	"testing"
	"time"

	"goal-planner/internal/model"
)

// 2025-06-02 is a Monday.
var monday = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return v
}

func block(day int, start, end string) model.RecurringBlock {
	return model.RecurringBlock{DayOfWeek: day, StartTime: start, EndTime: end, ActivityLabel: "busy"}
}

func event(date time.Time, start, end string) model.SpecialEvent {
	return model.SpecialEvent{EventDate: date, StartTime: start, EndTime: end, BlocksScheduling: true}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{"07:00", 7 * 60, false},
		{"23:59", 23*60 + 59, false},
		{"09:30:00", 9*60 + 30, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestWeekdayMondayIsZero(t *testing.T) {
	if got := Weekday(monday); got != 0 {
		t.Fatalf("Weekday(Monday) = %d, want 0", got)
	}
	sunday := monday.AddDate(0, 0, 6)
	if got := Weekday(sunday); got != 6 {
		t.Fatalf("Weekday(Sunday) = %d, want 6", got)
	}
}

func TestFreeSlots_SchoolMorningExample(t *testing.T) {
	// Day 07:00-23:00 with a Monday 09:00-12:00 block splits into two periods.
	weekly := []model.RecurringBlock{block(0, "09:00", "12:00")}

	slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, nil, 15)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %+v", len(slots), slots)
	}
	if slots[0].Start != mustTime(t, "07:00") || slots[0].End != mustTime(t, "09:00") || slots[0].DurationMinutes != 120 {
		t.Errorf("first slot = %+v, want 07:00-09:00 (120 min)", slots[0])
	}
	if slots[1].Start != mustTime(t, "12:00") || slots[1].End != mustTime(t, "23:00") || slots[1].DurationMinutes != 660 {
		t.Errorf("second slot = %+v, want 12:00-23:00 (660 min)", slots[1])
	}

	// The block is weekly: Tuesday is unaffected.
	tuesday := monday.AddDate(0, 0, 1)
	slots = FreeSlots(tuesday, DefaultDayStart, DefaultDayEnd, weekly, nil, 15)
	if len(slots) != 1 || slots[0].DurationMinutes != 960 {
		t.Fatalf("Tuesday should be one full 960-min slot, got %+v", slots)
	}
}

func TestFreeSlots_AllDayEventDominates(t *testing.T) {
	weekly := []model.RecurringBlock{block(0, "09:00", "12:00")}
	events := []model.SpecialEvent{{EventDate: monday, IsAllDay: true, BlocksScheduling: true, Title: "conference"}}

	if slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, events, 15); len(slots) != 0 {
		t.Fatalf("all-day event should block everything, got %+v", slots)
	}

	// A non-blocking all-day event leaves the day alone.
	events[0].BlocksScheduling = false
	slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, events, 15)
	if len(slots) != 2 {
		t.Fatalf("non-blocking event should not block, got %+v", slots)
	}
}

func TestFreeSlots_AllDayEventOtherDateIgnored(t *testing.T) {
	events := []model.SpecialEvent{{EventDate: monday.AddDate(0, 0, 1), IsAllDay: true, BlocksScheduling: true}}
	slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, nil, events, 15)
	if len(slots) != 1 {
		t.Fatalf("event on another date must not block, got %+v", slots)
	}
}

func TestFreeSlots_MinimumDurationFilter(t *testing.T) {
	// 07:00-07:20 survives subtraction but is under a 30-minute minimum.
	weekly := []model.RecurringBlock{block(0, "07:20", "22:30")}
	slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, nil, 30)
	if len(slots) != 1 {
		t.Fatalf("expected only the evening slot, got %+v", slots)
	}
	if slots[0].Start != mustTime(t, "22:30") || slots[0].DurationMinutes != 30 {
		t.Errorf("slot = %+v, want 22:30-23:00", slots[0])
	}
	for _, s := range slots {
		if s.DurationMinutes < 30 {
			t.Errorf("slot %+v below minimum duration", s)
		}
	}
}

func TestFreeSlots_FullCoverDropsPeriod(t *testing.T) {
	weekly := []model.RecurringBlock{block(0, "07:00", "23:00")}
	if slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, nil, 15); len(slots) != 0 {
		t.Fatalf("fully covered day should have no slots, got %+v", slots)
	}
}

func TestFreeSlots_EventAndBlockCombine(t *testing.T) {
	weekly := []model.RecurringBlock{block(0, "09:00", "12:00")}
	events := []model.SpecialEvent{event(monday, "15:00", "16:30")}

	slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, events, 15)
	want := []Slot{
		{mustTime(t, "07:00"), mustTime(t, "09:00"), 120},
		{mustTime(t, "12:00"), mustTime(t, "15:00"), 180},
		{mustTime(t, "16:30"), mustTime(t, "23:00"), 390},
	}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots %+v, want %d", len(slots), slots, len(want))
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Errorf("slot[%d] = %+v, want %+v", i, slots[i], want[i])
		}
	}
}

func TestFreeSlots_InvalidBusyIntervalSkipped(t *testing.T) {
	// end <= start means a wraparound block, which is not supported; the
	// interval is ignored rather than misapplied.
	weekly := []model.RecurringBlock{block(0, "22:00", "06:00")}
	slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, nil, 15)
	if len(slots) != 1 || slots[0].DurationMinutes != 960 {
		t.Fatalf("invalid block should leave the day untouched, got %+v", slots)
	}
}

func TestFreeSlots_NoOverlapWithBusyIntervals(t *testing.T) {
	weekly := []model.RecurringBlock{
		block(0, "08:00", "09:30"),
		block(0, "12:30", "14:00"),
		block(0, "18:00", "19:00"),
	}
	events := []model.SpecialEvent{event(monday, "20:00", "21:00")}

	busy := [][2]TimeOfDay{
		{mustTime(t, "08:00"), mustTime(t, "09:30")},
		{mustTime(t, "12:30"), mustTime(t, "14:00")},
		{mustTime(t, "18:00"), mustTime(t, "19:00")},
		{mustTime(t, "20:00"), mustTime(t, "21:00")},
	}

	slots := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, weekly, events, 1)
	for _, s := range slots {
		for _, b := range busy {
			if s.Start < b[1] && b[0] < s.End {
				t.Errorf("slot %v-%v overlaps busy %v-%v", s.Start, s.End, b[0], b[1])
			}
		}
	}
}

func TestFreeSlots_SubtractionOrderIndependent(t *testing.T) {
	blocks := []model.RecurringBlock{
		block(0, "08:00", "10:00"),
		block(0, "09:30", "11:00"),
		block(0, "13:00", "14:00"),
		block(0, "16:45", "21:10"),
		block(0, "07:15", "07:30"),
	}

	reference := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, blocks, nil, 1)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]model.RecurringBlock, len(blocks))
		copy(shuffled, blocks)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := FreeSlots(monday, DefaultDayStart, DefaultDayEnd, shuffled, nil, 1)
		if len(got) != len(reference) {
			t.Fatalf("trial %d: %d slots vs %d", trial, len(got), len(reference))
		}
		for i := range reference {
			if got[i] != reference[i] {
				t.Fatalf("trial %d: slot[%d] = %+v, want %+v", trial, i, got[i], reference[i])
			}
		}
	}
}

func TestDurationMinutesMidnightWrap(t *testing.T) {
	if got := durationMinutes(mustTime(t, "23:00"), mustTime(t, "01:00")); got != 120 {
		t.Fatalf("duration 23:00..01:00 = %d, want 120", got)
	}
	if got := durationMinutes(mustTime(t, "09:00"), mustTime(t, "10:30")); got != 90 {
		t.Fatalf("duration 09:00..10:30 = %d, want 90", got)
	}
}

func TestTotalAvailableMinutes(t *testing.T) {
	slots := []Slot{{DurationMinutes: 120}, {DurationMinutes: 45}}
	if got := TotalAvailableMinutes(slots); got != 165 {
		t.Fatalf("TotalAvailableMinutes = %d, want 165", got)
	}
}

func TestSelectSlot(t *testing.T) {
	slots := []Slot{
		{mustTime(t, "07:00"), mustTime(t, "09:00"), 120},
		{mustTime(t, "12:00"), mustTime(t, "23:00"), 660},
	}

	start, reason, ok := SelectSlot(slots, 30, PreferMorning)
	if !ok || start != mustTime(t, "07:00") {
		t.Fatalf("morning pick = %v (%v), want 07:00", start, ok)
	}
	if reason != "scheduled in the morning as preferred" {
		t.Errorf("reason = %q", reason)
	}

	start, reason, ok = SelectSlot(slots, 30, PreferAfternoon)
	if !ok || start != mustTime(t, "12:00") {
		t.Fatalf("afternoon pick = %v (%v), want 12:00", start, ok)
	}
	if reason != "scheduled in the afternoon as preferred" {
		t.Errorf("reason = %q", reason)
	}

	// No evening-starting slot: falls back to the first suitable one.
	start, _, ok = SelectSlot(slots, 30, PreferEvening)
	if !ok || start != mustTime(t, "07:00") {
		t.Fatalf("evening fallback = %v (%v), want 07:00", start, ok)
	}

	// "any" takes the first suitable slot.
	start, _, ok = SelectSlot(slots, 200, PreferAny)
	if !ok || start != mustTime(t, "12:00") {
		t.Fatalf("any pick for 200 min = %v (%v), want 12:00", start, ok)
	}
}

func TestSelectSlot_PreferenceWinsOverEarlierSlots(t *testing.T) {
	slots := []Slot{
		{mustTime(t, "07:00"), mustTime(t, "11:00"), 240},
		{mustTime(t, "19:00"), mustTime(t, "22:00"), 180},
	}
	start, _, ok := SelectSlot(slots, 60, PreferEvening)
	if !ok || start != mustTime(t, "19:00") {
		t.Fatalf("evening preference should skip the earlier slot, got %v", start)
	}
}

func TestSelectSlot_Deterministic(t *testing.T) {
	slots := []Slot{
		{mustTime(t, "08:00"), mustTime(t, "10:00"), 120},
		{mustTime(t, "10:30"), mustTime(t, "11:30"), 60},
	}
	first, _, _ := SelectSlot(slots, 45, PreferMorning)
	for i := 0; i < 10; i++ {
		again, _, _ := SelectSlot(slots, 45, PreferMorning)
		if again != first {
			t.Fatalf("selection not deterministic: %v vs %v", again, first)
		}
	}
}

func TestSelectSlot_Failures(t *testing.T) {
	if _, reason, ok := SelectSlot(nil, 30, PreferAny); ok || reason != "no available time slots" {
		t.Fatalf("empty list: ok=%v reason=%q", ok, reason)
	}
	slots := []Slot{{mustTime(t, "07:00"), mustTime(t, "07:30"), 30}}
	if _, reason, ok := SelectSlot(slots, 90, PreferAny); ok || reason != "no slots large enough for 90 minute task" {
		t.Fatalf("too small: ok=%v reason=%q", ok, reason)
	}
}

func TestDistribute_RoundRobinByPriority(t *testing.T) {
	days := []time.Time{monday, monday.AddDate(0, 0, 1), monday.AddDate(0, 0, 2)}
	tasks := []model.Task{
		{Title: "low", Priority: 1},
		{Title: "high-a", Priority: 5},
		{Title: "mid", Priority: 3},
		{Title: "high-b", Priority: 5},
	}

	dist := Distribute(tasks, days, 5)

	// Priority order high-a, high-b, mid, low round-robins over the days.
	if got := dist[monday.Format(DateLayout)]; len(got) != 2 || got[0].Title != "high-a" || got[1].Title != "low" {
		t.Errorf("day 0 = %+v", got)
	}
	if got := dist[monday.AddDate(0, 0, 1).Format(DateLayout)]; len(got) != 1 || got[0].Title != "high-b" {
		t.Errorf("day 1 = %+v", got)
	}
	if got := dist[monday.AddDate(0, 0, 2).Format(DateLayout)]; len(got) != 1 || got[0].Title != "mid" {
		t.Errorf("day 2 = %+v", got)
	}
}

func TestDistribute_StableForEqualPriorities(t *testing.T) {
	days := []time.Time{monday}
	tasks := []model.Task{
		{Title: "first", Priority: 3},
		{Title: "second", Priority: 3},
		{Title: "third", Priority: 3},
	}
	dist := Distribute(tasks, days, 10)
	got := dist[monday.Format(DateLayout)]
	if len(got) != 3 || got[0].Title != "first" || got[1].Title != "second" || got[2].Title != "third" {
		t.Fatalf("equal priorities reordered: %+v", got)
	}
}

func TestDistribute_SoftCapOverflow(t *testing.T) {
	// One day at capacity: the wrap step assigns past the cap on the next
	// day without re-checking it.
	days := []time.Time{monday, monday.AddDate(0, 0, 1)}
	tasks := make([]model.Task, 5)
	for i := range tasks {
		tasks[i] = model.Task{Title: string(rune('a' + i)), Priority: 3}
	}

	dist := Distribute(tasks, days, 1)

	total := 0
	for _, day := range days {
		total += len(dist[day.Format(DateLayout)])
	}
	if total != len(tasks) {
		t.Fatalf("distributed %d tasks, want %d", total, len(tasks))
	}
	// Soft cap: day 1 takes the overflow beyond maxPerDay.
	if got := len(dist[monday.AddDate(0, 0, 1).Format(DateLayout)]); got <= 1 {
		t.Fatalf("expected overflow past the cap on day 1, got %d tasks", got)
	}
}

func TestDistribute_NoDays(t *testing.T) {
	dist := Distribute([]model.Task{{Title: "x"}}, nil, 3)
	if len(dist) != 0 {
		t.Fatalf("expected empty distribution, got %+v", dist)
	}
}
