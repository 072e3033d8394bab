package workinghours

import "time"

// Window is an open interval of clinic-local wall-clock time, HH:MM strings.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkingHours maps weekday keys (mon..sun) to that day's open windows.
type WorkingHours map[string][]Window

var dayKeys = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Default is the built-in schedule used when neither staff, clinic nor owner
// carries a configuration: Mon-Fri 09:00-16:00, closed weekends.
func Default() WorkingHours {
	wh := WorkingHours{}
	for _, key := range dayKeys[:5] {
		wh[key] = []Window{{Start: "09:00", End: "16:00"}}
	}
	wh["sat"] = []Window{}
	wh["sun"] = []Window{}
	return wh
}

// Resolve applies the layered lookup: a staff override wins over the clinic
// schedule, which wins over the owner profile, with Default as the floor.
// It always returns a usable schedule.
func Resolve(staff, clinic, owner WorkingHours) WorkingHours {
	if staff != nil {
		return staff
	}
	if clinic != nil {
		return clinic
	}
	if owner != nil {
		return owner
	}
	return Default()
}

// DayKey returns the mon..sun key for a date (ISO weekday).
func DayKey(date time.Time) string {
	// time.Weekday is Sunday-based; ISO weeks start Monday.
	return dayKeys[(int(date.Weekday())+6)%7]
}

// WindowsForDay returns the configured windows for a weekday key, or an empty
// slice when the key is absent.
func (wh WorkingHours) WindowsForDay(dayKey string) []Window {
	if wh == nil {
		return nil
	}
	return wh[dayKey]
}
