package timeparse

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parsers for the loosely-typed values that arrive from booking forms and
// stored appointment documents: ISO timestamps with or without a trailing Z,
// bare YYYY-MM-DD dates, HH:MM wall-clock strings, and free-text service
// durations in Danish or English ("1 time 30 min", "45 min", "1h").
//
// All parsers are total: malformed input yields ok=false, never a panic.

var (
	hoursPattern   = regexp.MustCompile(`(\d+)\s*(t|time|timer|hour|hours|hr|h)\b`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*(min|minute|minutter|m)\b`)
	numericPattern = regexp.MustCompile(`(\d+)`)
)

// Instant parses an ISO-8601 timestamp. A literal trailing Z is accepted, and
// a timestamp without an explicit offset is taken as UTC.
func Instant(value string) (time.Time, bool) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(raw, "Z") {
		raw = strings.TrimSuffix(raw, "Z") + "+00:00"
	}
	layouts := []string{
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// UTCISO renders an instant as UTC ISO-8601 with a literal Z marker. This is
// the canonical form for stored appointment start/end values.
func UTCISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// CalendarDate strictly parses YYYY-MM-DD (month 1-12, day 1-31).
func CalendarDate(value string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (e.g. Feb 30); reject those.
	if d.Day() != day || d.Month() != time.Month(month) {
		return time.Time{}, false
	}
	return d, true
}

// ClockMinutes parses HH:MM into minutes since midnight.
func ClockMinutes(value string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

// DurationMinutes parses a service duration. Accepts raw minute counts
// ("45", 45) and hour/minute text in Danish or English; the hour and minute
// components are summed when both are present.
func DurationMinutes(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case int:
		if v > 0 {
			return v, true
		}
		return 0, false
	case int64:
		if v > 0 {
			return int(v), true
		}
		return 0, false
	case float64:
		minutes := int(v)
		if minutes > 0 {
			return minutes, true
		}
		return 0, false
	case string:
		return durationFromText(v)
	default:
		return 0, false
	}
}

func durationFromText(value string) (int, bool) {
	text := strings.ToLower(strings.TrimSpace(value))
	if text == "" {
		return 0, false
	}
	total := 0
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.Atoi(m[1])
		total += hours * 60
	}
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		total += minutes
	}
	if total > 0 {
		return total, true
	}
	if m := numericPattern.FindStringSubmatch(text); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		if minutes > 0 {
			return minutes, true
		}
	}
	return 0, false
}

// DurationMinutesOrDefault substitutes fallback when the duration cannot be
// parsed, so a garbled service record never blocks slot computation.
func DurationMinutesOrDefault(value any, fallback int, logger *slog.Logger, context string) int {
	if minutes, ok := DurationMinutes(value); ok {
		return minutes
	}
	if logger != nil {
		logger.Warn("duration parse failed; using default", "default_minutes", fallback, "context", context)
	}
	return fallback
}

// DateDDMMYYYY and TimeHHMM format the denormalized display fields stored on
// appointment documents.
func DateDDMMYYYY(t time.Time) string {
	return t.Format("02-01-2006")
}

func TimeHHMM(t time.Time) string {
	return t.Format("15:04")
}
