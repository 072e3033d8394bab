package availability

import (
	"testing"
	"time"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/workinghours"
)

func TestOverlapsHalfOpen(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	// [10:00,11:00) and [11:00,12:00) touch but do not overlap.
	if Overlaps(at(10, 0), at(11, 0), at(11, 0), at(12, 0)) {
		t.Fatal("touching intervals must not overlap")
	}
	// [10:00,11:00) contains [10:30,10:45).
	if !Overlaps(at(10, 0), at(11, 0), at(10, 30), at(10, 45)) {
		t.Fatal("contained interval must overlap")
	}
	if !Overlaps(at(10, 30), at(11, 30), at(10, 0), at(11, 0)) {
		t.Fatal("partial overlap must be detected")
	}
}

func TestSlotsDeterministic(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	windows := []workinghours.Window{{Start: "09:00", End: "10:00"}}

	slots := Slots(day, time.UTC, windows, 15, 30, nil)
	// 09:45 is excluded: 09:45+30 = 10:15 > 10:00.
	want := []string{"09:00", "09:15", "09:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(slots))
	}
	for i, w := range want {
		if got := slots[i].Start.Format("15:04"); got != w {
			t.Fatalf("slot %d: expected start %s, got %s", i, w, got)
		}
	}
	if got := slots[0].End.Format("15:04"); got != "09:30" {
		t.Fatalf("expected first slot to end 09:30, got %s", got)
	}
}

func TestSlotsBusyExclusion(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	windows := []workinghours.Window{{Start: "09:00", End: "10:00"}}
	busy := []Interval{{
		Start: day.Add(9*time.Hour + 15*time.Minute),
		End:   day.Add(9*time.Hour + 45*time.Minute),
	}}

	slots := Slots(day, time.UTC, windows, 15, 30, busy)
	// 09:00+30 = [09:00,09:30) overlaps [09:15,09:45); 09:15 and 09:30 also
	// overlap. Nothing survives with a 30-minute service.
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d starting at %s", len(slots), slots[0].Start.Format("15:04"))
	}

	// With a 15-minute service, [09:00,09:15) touches the busy start and
	// [09:45,10:00) touches its end; both survive.
	slots = Slots(day, time.UTC, windows, 15, 15, busy)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Start.Format("15:04") != "09:00" || slots[1].Start.Format("15:04") != "09:45" {
		t.Fatalf("unexpected slots: %s, %s", slots[0].Start.Format("15:04"), slots[1].Start.Format("15:04"))
	}
}

func TestSlotsTimezoneConversion(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	day := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	windows := []workinghours.Window{{Start: "09:00", End: "09:30"}}

	slots := Slots(day, loc, windows, 15, 30, nil)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	// 09:00 CET (winter, UTC+1) is 08:00 UTC.
	if got := slots[0].Start.UTC().Format("15:04"); got != "08:00" {
		t.Fatalf("expected 08:00 UTC, got %s", got)
	}
}

func TestSlotsSkipsInvalidWindows(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	windows := []workinghours.Window{
		{Start: "10:00", End: "09:00"}, // end before start
		{Start: "aa:bb", End: "12:00"}, // malformed
		{Start: "13:00", End: "13:30"},
	}
	slots := Slots(day, time.UTC, windows, 15, 30, nil)
	if len(slots) != 1 || slots[0].Start.Format("15:04") != "13:00" {
		t.Fatalf("expected single 13:00 slot, got %+v", slots)
	}
}

func TestSlotsWindowOrderPreserved(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	windows := []workinghours.Window{
		{Start: "14:00", End: "14:30"},
		{Start: "09:00", End: "09:30"},
	}
	slots := Slots(day, time.UTC, windows, 30, 30, nil)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Start.Format("15:04") != "14:00" {
		t.Fatalf("windows must be processed in the given order, first slot %s", slots[0].Start.Format("15:04"))
	}
}

func TestMatchesStaff(t *testing.T) {
	const owner = "owner-1"

	cases := []struct {
		name  string
		appt  model.Appointment
		staff string
		sname string
		want  bool
	}{
		{"staff uid match", model.Appointment{StaffUID: "s1"}, "s1", "", true},
		{"calendar owner id match", model.Appointment{CalendarOwnerID: "s1"}, "s1", "", true},
		{"name match case-insensitive", model.Appointment{CalendarOwner: "  Mette Hansen "}, "s1", "mette hansen", true},
		{"legacy owner fallback", model.Appointment{}, owner, "", true},
		{"legacy fallback only for owner", model.Appointment{}, "s1", "", false},
		{"no fallback with staff set", model.Appointment{StaffUID: "s2"}, owner, "", false},
		{"different staff", model.Appointment{StaffUID: "s2"}, "s1", "", false},
	}
	for _, tc := range cases {
		if got := MatchesStaff(tc.appt, tc.staff, tc.sname, owner); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
