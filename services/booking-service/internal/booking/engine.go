package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/apierr"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/availability"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/identity"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/outbox"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/storage"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/timeparse"
)

const DefaultTimezone = "Europe/Copenhagen"

// Request is a public booking attempt as received from the widget.
type Request struct {
	ClinicSlug      string
	StaffUID        string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	ServiceID       string
	StartISO        string
	EndISO          string
	Notes           string
	PrivacyAccepted bool
	MarketingOptIn  bool
}

type Result struct {
	AppointmentID string
	ClientID      string
}

// Engine runs the booking state machine:
// received -> validated -> clinic resolved -> conflict checked -> committed,
// with rejection or conflict as the terminal failure states.
//
// By default the conflict check and the client/appointment writes run as
// sequential operations, matching the low-contention behavior this flow has
// always had. With atomic enabled the check and writes run in one
// serializable store transaction; of two concurrent commits for the same
// slot one aborts at commit and maps to the conflict response.
type Engine struct {
	store  TxStore
	logger *slog.Logger
	atomic bool
}

func NewEngine(store TxStore, logger *slog.Logger, atomic bool) *Engine {
	return &Engine{store: store, logger: logger, atomic: atomic}
}

// Book validates, resolves and commits one booking attempt. All failures are
// *apierr.Error; the handler maps them onto the response contract.
func (e *Engine) Book(ctx context.Context, req Request) (Result, error) {
	req = normalize(req)

	if missing := missingFields(req); len(missing) > 0 {
		e.logger.Warn("booking rejected: missing fields", "missing", missing, "clinic_slug", orDash(req.ClinicSlug))
		return Result{}, apierr.MissingFields(missing)
	}

	start, startOK := timeparse.Instant(req.StartISO)
	end, endOK := timeparse.Instant(req.EndISO)
	if !startOK || !endOK {
		return Result{}, apierr.Validation("Invalid startIso/endIso.")
	}
	if !end.After(start) {
		return Result{}, apierr.Validation("Invalid time range.")
	}

	clinic, err := e.resolveClinic(ctx, req.ClinicSlug)
	if err != nil {
		return Result{}, err
	}

	loc := clinicLocation(clinic)

	staff, _, err := e.store.StaffMember(ctx, clinic.OwnerUID, req.StaffUID)
	if err != nil {
		return Result{}, apierr.Upstream("Staff lookup failed.", err)
	}

	if e.atomic {
		var result Result
		txErr := e.store.WithTx(ctx, func(s Store) error {
			r, err := e.commit(ctx, s, req, clinic, staff, start, end, loc)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if txErr != nil {
			if storage.IsSerializationFailure(txErr) || storage.IsExclusionConflict(txErr) {
				return Result{}, apierr.Conflict("Slot unavailable.")
			}
			return Result{}, txErr
		}
		return result, nil
	}

	return e.commit(ctx, e.store, req, clinic, staff, start, end, loc)
}

// commit runs conflict check, client upsert and appointment insert against
// the given store view.
func (e *Engine) commit(ctx context.Context, s Store, req Request, clinic model.Clinic, staff model.StaffMember, start, end time.Time, loc *time.Location) (Result, error) {
	if err := e.checkConflict(ctx, s, req, clinic, staff, start, end); err != nil {
		return Result{}, err
	}

	calendarOwnerID := req.StaffUID
	if calendarOwnerID == "" {
		calendarOwnerID = clinic.OwnerUID
	}

	clientID, err := e.upsertClient(ctx, s, req, clinic, calendarOwnerID)
	if err != nil {
		return Result{}, err
	}

	fullName := strings.TrimSpace(req.FirstName + " " + req.LastName)
	startLocal := start.In(loc)
	endLocal := end.In(loc)

	// Offset-form input is accepted but never stored: the day-window
	// prefetch compares strings, which only orders chronologically when
	// every stored instant is UTC with a literal Z.
	startISO := timeparse.UTCISO(start)
	endISO := timeparse.UTCISO(end)

	staffName := staff.DisplayName()
	calendarOwner := staffName
	if calendarOwner == "" {
		calendarOwner = clinic.ClinicName
	}
	if calendarOwner == "" {
		calendarOwner = "Clinician"
	}

	title := fullName
	if title == "" {
		title = req.ServiceID
	}
	if title == "" {
		title = "Booking"
	}

	appt := model.Appointment{
		OwnerUID:        clinic.OwnerUID,
		ClinicSlug:      clinic.Slug,
		ClinicName:      clinicName(clinic),
		StaffUID:        req.StaffUID,
		CalendarOwnerID: req.StaffUID,
		CalendarOwner:   calendarOwner,
		Title:           title,
		ClientName:      fullName,
		ClientID:        clientID,
		ClientEmail:     req.Email,
		ClientPhone:     req.Phone,
		ServiceID:       req.ServiceID,
		StartISO:        startISO,
		EndISO:          endISO,
		StartDate:       timeparse.DateDDMMYYYY(startLocal),
		StartTime:       timeparse.TimeHHMM(startLocal),
		EndDate:         timeparse.DateDDMMYYYY(endLocal),
		EndTime:         timeparse.TimeHHMM(endLocal),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		Notes:           req.Notes,
		PrivacyAccepted: req.PrivacyAccepted,
		MarketingOptIn:  req.MarketingOptIn,
		Status:          "requested",
	}

	appointmentID, err := s.InsertAppointment(ctx, appt)
	if err != nil {
		// The appointments exclusion constraint catches overlaps the
		// prefetch can miss under concurrency.
		if storage.IsExclusionConflict(err) {
			return Result{}, apierr.Conflict("Slot unavailable.")
		}
		return Result{}, apierr.Upstream("Appointment write failed.", err)
	}

	payload, err := json.Marshal(map[string]any{
		"appointmentId": appointmentID,
		"ownerUid":      clinic.OwnerUID,
		"clinicSlug":    clinic.Slug,
		"clinicName":    clinicName(clinic),
		"staffUid":      req.StaffUID,
		"serviceId":     req.ServiceID,
		"clientId":      clientID,
		"clientName":    fullName,
		"clientEmail":   req.Email,
		"clientPhone":   req.Phone,
		"startIso":      startISO,
		"endIso":        endISO,
		"startDate":     appt.StartDate,
		"startTime":     appt.StartTime,
	})
	if err != nil {
		return Result{}, apierr.Internal(err)
	}
	if err := s.InsertEvent(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appointmentID,
		EventType:     outbox.TopicAppointmentRequested,
		Payload:       payload,
	}); err != nil {
		return Result{}, apierr.Upstream("Event write failed.", err)
	}

	e.logger.Info("booking committed",
		"clinic_slug", clinic.Slug,
		"calendar_owner_id", calendarOwnerID,
		"staff_uid", req.StaffUID,
		"service_id", req.ServiceID,
		"appointment_id", appointmentID,
	)
	return Result{AppointmentID: appointmentID, ClientID: clientID}, nil
}

// checkConflict prefetches the UTC calendar day containing the requested
// start, keeps appointments attributed to the target staff member, and tests
// each stored interval against the request with half-open semantics.
func (e *Engine) checkConflict(ctx context.Context, s Store, req Request, clinic model.Clinic, staff model.StaffMember, start, end time.Time) error {
	dayStart := start.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	appts, err := s.AppointmentsStartingWithin(ctx, clinic.OwnerUID, timeparse.UTCISO(dayStart), timeparse.UTCISO(dayEnd))
	if err != nil {
		return apierr.Upstream("Appointment lookup failed.", err)
	}

	staffName := staff.DisplayName()
	for _, appt := range appts {
		if !availability.MatchesStaff(appt, req.StaffUID, staffName, clinic.OwnerUID) {
			continue
		}
		apptStart, ok := timeparse.Instant(appt.StartISO)
		if !ok {
			continue
		}
		apptEnd, ok := timeparse.Instant(appt.EndISO)
		if !ok {
			continue
		}
		if availability.Overlaps(start, end, apptStart, apptEnd) {
			return apierr.Conflict("Slot unavailable.")
		}
	}
	return nil
}

// upsertClient resolves the booking to a client record by normalized phone.
// Existing records get a fill-blank-only merge; populated fields are never
// overwritten, except phone_norm which refreshes when it differs.
func (e *Engine) upsertClient(ctx context.Context, s Store, req Request, clinic model.Clinic, calendarOwnerID string) (string, error) {
	phoneNorm := identity.NormalizePhone(req.Phone)
	phoneParts := identity.SplitPhone(req.Phone, phoneNorm)
	emailLower := identity.NormalizeEmail(req.Email)
	fullName := strings.TrimSpace(req.FirstName + " " + req.LastName)

	owner, _, err := s.OwnerProfile(ctx, calendarOwnerID)
	if err != nil {
		return "", apierr.Upstream("Owner lookup failed.", err)
	}
	ownerIdentifierSource := owner.DisplayName
	if ownerIdentifierSource == "" {
		ownerIdentifierSource = owner.Email
	}
	if ownerIdentifierSource == "" {
		ownerIdentifierSource = calendarOwnerID
	}
	ownerIdentifier := identity.OwnerIdentifier(ownerIdentifierSource)

	var existing model.Client
	found := false
	if phoneNorm != "" {
		existing, found, err = s.ClientByPhoneNorm(ctx, calendarOwnerID, phoneNorm)
		if err != nil {
			return "", apierr.Upstream("Client lookup failed.", err)
		}
	}

	if found {
		updates := map[string]string{}
		fill := func(column, current, value string) {
			if identity.IsBlank(current) && value != "" {
				updates[column] = value
			}
		}
		fill("email", existing.Email, req.Email)
		fill("email_lower", existing.EmailLower, emailLower)
		fill("full_name", existing.FullName, fullName)
		fill("first_name", existing.FirstName, req.FirstName)
		fill("last_name", existing.LastName, req.LastName)
		fill("phone", existing.Phone, phoneParts.National)
		fill("phone_full", existing.PhoneFull, phoneParts.Full)
		fill("phone_country", existing.PhoneCountry, phoneParts.Country)
		fill("owner_email", existing.OwnerEmail, owner.Email)
		fill("owner_identifier", existing.OwnerIdentifier, ownerIdentifier)
		if phoneNorm != "" && existing.PhoneNorm != phoneNorm {
			updates["phone_norm"] = phoneNorm
		}
		if err := s.UpdateClient(ctx, calendarOwnerID, existing.ID, updates); err != nil {
			return "", apierr.Upstream("Client update failed.", err)
		}
		e.logger.Info("booking client upsert", "action", "found", "clinic_slug", clinic.Slug, "calendar_owner_id", calendarOwnerID)
		return existing.ID, nil
	}

	name := fullName
	if name == "" {
		name = req.FirstName
	}
	phone := phoneParts.National
	if phone == "" {
		phone = req.Phone
	}
	country := phoneParts.Country
	if country == "" {
		country = "+45"
	}
	clientID, err := s.InsertClient(ctx, model.Client{
		OwnerUID:        calendarOwnerID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		FullName:        name,
		Email:           req.Email,
		EmailLower:      emailLower,
		Phone:           phone,
		PhoneCountry:    country,
		PhoneFull:       phoneParts.Full,
		PhoneNorm:       phoneNorm,
		OwnerEmail:      owner.Email,
		OwnerIdentifier: ownerIdentifier,
		Status:          "Aktiv",
		Source:          "publicBooking",
		ClinicSlug:      clinic.Slug,
		CreatedAtISO:    timeparse.UTCISO(time.Now()),
	})
	if err != nil {
		// Unique phone_norm lost a race: a concurrent booking created the
		// client first, so adopt that record.
		if storage.IsDuplicate(err) && phoneNorm != "" {
			if raced, found, lookupErr := s.ClientByPhoneNorm(ctx, calendarOwnerID, phoneNorm); lookupErr == nil && found {
				e.logger.Info("booking client upsert", "action", "found", "clinic_slug", clinic.Slug, "calendar_owner_id", calendarOwnerID)
				return raced.ID, nil
			}
		}
		return "", apierr.Upstream("Client write failed.", err)
	}
	e.logger.Info("booking client upsert", "action", "created", "clinic_slug", clinic.Slug, "calendar_owner_id", calendarOwnerID)
	return clientID, nil
}

func normalize(req Request) Request {
	req.ClinicSlug = strings.ToLower(strings.TrimSpace(req.ClinicSlug))
	req.StaffUID = strings.TrimSpace(req.StaffUID)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StartISO = strings.TrimSpace(req.StartISO)
	req.EndISO = strings.TrimSpace(req.EndISO)
	req.Notes = strings.TrimSpace(req.Notes)
	return req
}

// missingFields enumerates blank required fields in field-check order; the
// exact order is part of the response contract.
func missingFields(req Request) []string {
	var missing []string
	if identity.IsBlank(req.ClinicSlug) {
		missing = append(missing, "clinicSlug")
	}
	if identity.IsBlank(req.StaffUID) {
		missing = append(missing, "staffUid")
	}
	if identity.IsBlank(req.FirstName) {
		missing = append(missing, "firstName")
	}
	if identity.IsBlank(req.LastName) {
		missing = append(missing, "lastName")
	}
	if identity.IsBlank(identity.NormalizeEmail(req.Email)) {
		missing = append(missing, "email")
	}
	if identity.IsBlank(req.ServiceID) {
		missing = append(missing, "serviceId")
	}
	if identity.IsBlank(req.StartISO) {
		missing = append(missing, "startIso")
	}
	if identity.IsBlank(req.EndISO) {
		missing = append(missing, "endIso")
	}
	if identity.IsBlank(req.Phone) {
		missing = append(missing, "phone")
	}
	if !req.PrivacyAccepted {
		missing = append(missing, "privacyAccepted")
	}
	return missing
}

func clinicLocation(clinic model.Clinic) *time.Location {
	name := clinic.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func clinicName(clinic model.Clinic) string {
	if clinic.ClinicName != "" {
		return clinic.ClinicName
	}
	return clinic.Slug
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
