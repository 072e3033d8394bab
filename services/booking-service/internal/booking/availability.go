package booking

import (
	"context"
	"strings"
	"time"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/apierr"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/availability"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/timeparse"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/workinghours"
)

type AvailabilityRequest struct {
	ClinicSlug string
	StaffUID   string
	DateISO    string
	ServiceID  string
}

type AvailabilityResult struct {
	Slots          []availability.Slot
	Timezone       string
	SlotMinutes    int
	ServiceMinutes int
}

// Availability computes the bookable slots for one clinic-local calendar day.
// DateISO accepts a bare YYYY-MM-DD or any parseable instant, in which case
// the date component in the clinic's timezone is used.
func (e *Engine) Availability(ctx context.Context, req AvailabilityRequest) (AvailabilityResult, error) {
	req.ClinicSlug = strings.ToLower(strings.TrimSpace(req.ClinicSlug))
	req.StaffUID = strings.TrimSpace(req.StaffUID)
	req.DateISO = strings.TrimSpace(req.DateISO)
	req.ServiceID = strings.TrimSpace(req.ServiceID)

	var missing []string
	if req.ClinicSlug == "" {
		missing = append(missing, "clinicSlug")
	}
	if req.StaffUID == "" {
		missing = append(missing, "staffUid")
	}
	if req.DateISO == "" {
		missing = append(missing, "dateIso")
	}
	if req.ServiceID == "" {
		missing = append(missing, "serviceId")
	}
	if len(missing) > 0 {
		return AvailabilityResult{}, apierr.MissingFields(missing)
	}

	clinic, err := e.resolveClinic(ctx, req.ClinicSlug)
	if err != nil {
		return AvailabilityResult{}, err
	}

	timezoneName := clinic.Timezone
	if timezoneName == "" {
		timezoneName = DefaultTimezone
	}
	loc, locErr := time.LoadLocation(timezoneName)
	if locErr != nil {
		loc = time.UTC
		timezoneName = "UTC"
	}

	day, ok := timeparse.CalendarDate(req.DateISO)
	if !ok {
		if instant, instantOK := timeparse.Instant(req.DateISO); instantOK {
			local := instant.In(loc)
			day = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
			ok = true
		}
	}
	if !ok {
		return AvailabilityResult{}, apierr.Validation("Invalid dateIso. Use YYYY-MM-DD or ISO timestamp.")
	}

	slotMinutes := clinic.SlotMinutes
	if slotMinutes <= 0 {
		slotMinutes = 15
	}

	service, found, err := e.store.ServiceByID(ctx, clinic.OwnerUID, req.ServiceID)
	if err != nil {
		return AvailabilityResult{}, apierr.Upstream("Service lookup failed.", err)
	}
	if !found {
		return AvailabilityResult{}, apierr.NotFound("Unknown serviceId.")
	}
	serviceMinutes := timeparse.DurationMinutesOrDefault(service.DurationRaw, 60, e.logger, "serviceId:"+req.ServiceID)

	staff, _, err := e.store.StaffMember(ctx, clinic.OwnerUID, req.StaffUID)
	if err != nil {
		return AvailabilityResult{}, apierr.Upstream("Staff lookup failed.", err)
	}
	owner, _, err := e.store.OwnerProfile(ctx, clinic.OwnerUID)
	if err != nil {
		return AvailabilityResult{}, apierr.Upstream("Owner lookup failed.", err)
	}

	hours := workinghours.Resolve(staff.WorkingHours, clinic.WorkingHours, owner.WorkingHours)
	windows := hours.WindowsForDay(workinghours.DayKey(day))

	dayStartLocal := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	dayEndLocal := dayStartLocal.Add(24 * time.Hour)

	appts, err := e.store.AppointmentsStartingWithin(ctx, clinic.OwnerUID, timeparse.UTCISO(dayStartLocal), timeparse.UTCISO(dayEndLocal))
	if err != nil {
		return AvailabilityResult{}, apierr.Upstream("Appointment lookup failed.", err)
	}

	staffName := staff.DisplayName()
	var busy []availability.Interval
	for _, appt := range appts {
		if !availability.MatchesStaff(appt, req.StaffUID, staffName, clinic.OwnerUID) {
			continue
		}
		start, ok := timeparse.Instant(appt.StartISO)
		if !ok {
			continue
		}
		end, ok := timeparse.Instant(appt.EndISO)
		if !ok {
			continue
		}
		busy = append(busy, availability.Interval{Start: start, End: end})
	}

	slots := availability.Slots(day, loc, windows, slotMinutes, serviceMinutes, busy)
	return AvailabilityResult{
		Slots:          slots,
		Timezone:       timezoneName,
		SlotMinutes:    slotMinutes,
		ServiceMinutes: serviceMinutes,
	}, nil
}
