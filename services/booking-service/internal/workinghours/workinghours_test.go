package workinghours

import (
	"testing"
	"time"
)

func TestResolvePrecedence(t *testing.T) {
	staff := WorkingHours{"mon": {{Start: "10:00", End: "14:00"}}}
	clinic := WorkingHours{"mon": {{Start: "08:00", End: "18:00"}}}
	owner := WorkingHours{"mon": {{Start: "07:00", End: "12:00"}}}

	got := Resolve(staff, clinic, owner)
	if got["mon"][0].Start != "10:00" {
		t.Fatalf("expected staff hours to win, got %+v", got)
	}

	got = Resolve(nil, clinic, owner)
	if got["mon"][0].Start != "08:00" {
		t.Fatalf("expected clinic hours, got %+v", got)
	}

	got = Resolve(nil, nil, owner)
	if got["mon"][0].Start != "07:00" {
		t.Fatalf("expected owner hours, got %+v", got)
	}

	got = Resolve(nil, nil, nil)
	if len(got["mon"]) != 1 || got["mon"][0].Start != "09:00" || got["mon"][0].End != "16:00" {
		t.Fatalf("expected default weekday hours, got %+v", got)
	}
	if len(got["sat"]) != 0 || len(got["sun"]) != 0 {
		t.Fatalf("expected closed weekend by default, got %+v", got)
	}
}

func TestDayKey(t *testing.T) {
	cases := map[string]time.Time{
		"mon": time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		"thu": time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		"sun": time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
	}
	for want, date := range cases {
		if got := DayKey(date); got != want {
			t.Fatalf("DayKey(%s) = %s, want %s", date.Format("2006-01-02"), got, want)
		}
	}
}

func TestWindowsForDay(t *testing.T) {
	wh := WorkingHours{"tue": {{Start: "09:00", End: "12:00"}}}
	if got := wh.WindowsForDay("tue"); len(got) != 1 {
		t.Fatalf("expected 1 window, got %d", len(got))
	}
	if got := wh.WindowsForDay("wed"); len(got) != 0 {
		t.Fatalf("expected no windows for unset day, got %d", len(got))
	}
	var empty WorkingHours
	if got := empty.WindowsForDay("mon"); got != nil {
		t.Fatalf("expected nil for nil schedule, got %v", got)
	}
}
