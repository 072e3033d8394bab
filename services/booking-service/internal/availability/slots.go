package availability

import (
	"strings"
	"time"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/timeparse"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/workinghours"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

type Slot struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals [aStart,aEnd) and
// [bStart,bEnd) intersect. Touching boundaries do not overlap: an appointment
// ending at 11:00 does not conflict with one starting at 11:00.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// Slots enumerates bookable slots for one calendar day. Candidate starts step
// through each window by slotMinutes; a candidate fits while its end stays
// inside the window. Wall-clock minutes are anchored to midnight of the day
// in loc, so the resulting instants are absolute and DST-correct. Windows are
// processed in the order given and a window with end <= start is skipped.
//
// Pure: safe to call repeatedly for the same inputs.
func Slots(day time.Time, loc *time.Location, windows []workinghours.Window, slotMinutes, serviceMinutes int, busy []Interval) []Slot {
	if slotMinutes <= 0 || serviceMinutes <= 0 {
		return nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	var slots []Slot
	for _, window := range windows {
		startMinutes, ok := timeparse.ClockMinutes(window.Start)
		if !ok {
			continue
		}
		endMinutes, ok := timeparse.ClockMinutes(window.End)
		if !ok {
			continue
		}
		if endMinutes <= startMinutes {
			continue
		}

		for cursor := startMinutes; cursor+serviceMinutes <= endMinutes; cursor += slotMinutes {
			start := dayStart.Add(time.Duration(cursor) * time.Minute)
			end := start.Add(time.Duration(serviceMinutes) * time.Minute)
			if overlapsAny(start, end, busy) {
				continue
			}
			slots = append(slots, Slot{Start: start, End: end})
		}
	}
	return slots
}

// MatchesStaff attributes an appointment to a staff member. An appointment
// matches when its staff id or calendar-owner id equals staffUID, when the
// denormalized calendar-owner name equals staffName (case-insensitive,
// trimmed), or, for legacy records written before staff assignment existed,
// when the appointment carries no staff reference at all and the queried
// staff id is the owner account itself.
func MatchesStaff(appt model.Appointment, staffUID, staffName, ownerUID string) bool {
	if appt.StaffUID == staffUID {
		return true
	}
	if appt.CalendarOwnerID == staffUID {
		return true
	}
	if staffName != "" && appt.CalendarOwner != "" {
		if strings.EqualFold(strings.TrimSpace(appt.CalendarOwner), strings.TrimSpace(staffName)) {
			return true
		}
	}
	if staffUID == ownerUID && appt.StaffUID == "" && appt.CalendarOwnerID == "" {
		return true
	}
	return false
}
