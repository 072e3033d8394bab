package timeparse

import (
	"testing"
	"time"
)

func TestInstant(t *testing.T) {
	got, ok := Instant("2026-03-10T09:00:00Z")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	want := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// No offset means UTC.
	got, ok = Instant("2026-03-10T09:00:00")
	if !ok || !got.Equal(want) {
		t.Fatalf("offset-less timestamp not treated as UTC: ok=%v got=%s", ok, got)
	}

	got, ok = Instant("2026-03-10T10:00:00+01:00")
	if !ok || !got.Equal(want) {
		t.Fatalf("offset timestamp mismatch: ok=%v got=%s", ok, got)
	}

	for _, bad := range []string{"", "  ", "not-a-date", "2026-13-40T00:00:00Z"} {
		if _, ok := Instant(bad); ok {
			t.Fatalf("expected parse failure for %q", bad)
		}
	}
}

func TestUTCISO(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2026, 3, 10, 10, 30, 0, 0, loc)
	if got := UTCISO(in); got != "2026-03-10T09:30:00Z" {
		t.Fatalf("unexpected ISO string: %s", got)
	}
}

func TestCalendarDate(t *testing.T) {
	got, ok := CalendarDate("2026-02-28")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if got.Year() != 2026 || got.Month() != time.February || got.Day() != 28 {
		t.Fatalf("unexpected date: %s", got)
	}

	for _, bad := range []string{"2026-2", "2026-13-01", "2026-00-10", "2026-02-32", "2026-02-30", "abcd-ef-gh", ""} {
		if _, ok := CalendarDate(bad); ok {
			t.Fatalf("expected parse failure for %q", bad)
		}
	}
}

func TestClockMinutes(t *testing.T) {
	cases := map[string]int{
		"09:00": 540,
		"00:00": 0,
		"23:59": 1439,
	}
	for input, want := range cases {
		got, ok := ClockMinutes(input)
		if !ok || got != want {
			t.Fatalf("ClockMinutes(%q) = %d, %v; want %d", input, got, ok, want)
		}
	}
	for _, bad := range []string{"24:00", "12:60", "9", "9:0:0", ""} {
		if _, ok := ClockMinutes(bad); ok {
			t.Fatalf("expected parse failure for %q", bad)
		}
	}
}

func TestDurationMinutes(t *testing.T) {
	cases := []struct {
		input any
		want  int
		ok    bool
	}{
		{"1 time 30 min", 90, true},
		{"1 time", 60, true},
		{"2 timer", 120, true},
		{"45 min", 45, true},
		{"45 minutter", 45, true},
		{"1h", 60, true},
		{"90m", 90, true},
		{"45", 45, true},
		{45, 45, true},
		{float64(30), 30, true},
		{"", 0, false},
		{"garbage", 0, false},
		{0, 0, false},
		{-15, 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := DurationMinutes(tc.input)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("DurationMinutes(%v) = %d, %v; want %d, %v", tc.input, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDurationMinutesOrDefault(t *testing.T) {
	if got := DurationMinutesOrDefault("garbage", 60, nil, "test"); got != 60 {
		t.Fatalf("expected default 60, got %d", got)
	}
	if got := DurationMinutesOrDefault("1 time 30 min", 60, nil, "test"); got != 90 {
		t.Fatalf("expected 90, got %d", got)
	}
}

func TestDisplayFormats(t *testing.T) {
	d := time.Date(2026, 3, 5, 8, 7, 0, 0, time.UTC)
	if got := DateDDMMYYYY(d); got != "05-03-2026" {
		t.Fatalf("unexpected date format: %s", got)
	}
	if got := TimeHHMM(d); got != "08:07" {
		t.Fatalf("unexpected time format: %s", got)
	}
}
