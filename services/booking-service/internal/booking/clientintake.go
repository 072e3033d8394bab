package booking

import (
	"context"
	"strings"
	"time"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/apierr"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/identity"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/storage"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/timeparse"
)

// ClientIntakeRequest is the portal-initiated client creation path. Unlike
// public bookings it deduplicates by lowercased email and records a booking
// request for the clinic to confirm manually, instead of committing an
// appointment.
type ClientIntakeRequest struct {
	ClinicSlug      string
	ServiceID       string
	StartISO        string
	EndISO          string
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Notes           string
	PrivacyAccepted bool
	MarketingOptIn  bool
}

type ClientIntakeResult struct {
	ClientID  string
	BookingID string
}

func (e *Engine) ClientIntake(ctx context.Context, req ClientIntakeRequest) (ClientIntakeResult, error) {
	req.ClinicSlug = strings.ToLower(strings.TrimSpace(req.ClinicSlug))
	req.StartISO = strings.TrimSpace(req.StartISO)
	req.EndISO = strings.TrimSpace(req.EndISO)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Notes = strings.TrimSpace(req.Notes)
	emailLower := identity.NormalizeEmail(req.Email)

	if req.ClinicSlug == "" {
		return ClientIntakeResult{}, apierr.Validation("Missing clinicSlug.")
	}
	if req.StartISO == "" || req.EndISO == "" {
		return ClientIntakeResult{}, apierr.Validation("Missing startIso or endIso.")
	}
	if req.FirstName == "" || emailLower == "" {
		return ClientIntakeResult{}, apierr.Validation("Missing firstName or email.")
	}
	if !req.PrivacyAccepted {
		return ClientIntakeResult{}, apierr.Validation("Privacy acceptance required.")
	}

	clinic, found, err := e.store.ClinicBySlug(ctx, req.ClinicSlug)
	if err != nil {
		return ClientIntakeResult{}, apierr.Upstream("Clinic lookup failed.", err)
	}
	// The intake form never distinguishes inactive from unknown clinics.
	if !found || !clinic.IsActive {
		return ClientIntakeResult{}, apierr.NotFound("Clinic not found.")
	}
	if clinic.OwnerUID == "" {
		return ClientIntakeResult{}, apierr.NotFound("Clinic owner missing.")
	}

	phoneParts := clientIntakePhone(req.Phone)
	fullName := strings.TrimSpace(req.FirstName + " " + req.LastName)

	existing, found, err := e.store.ClientByEmailLower(ctx, clinic.OwnerUID, emailLower)
	if err != nil {
		return ClientIntakeResult{}, apierr.Upstream("Client lookup failed.", err)
	}

	var clientID string
	if found {
		// Portal intake trusts the fresh form: name and email always update,
		// phone only when provided.
		updates := map[string]string{
			"first_name":  req.FirstName,
			"email":       req.Email,
			"email_lower": emailLower,
		}
		if req.LastName != "" {
			updates["last_name"] = req.LastName
		}
		if fullName != "" {
			updates["full_name"] = fullName
		}
		if req.Phone != "" {
			updates["phone_full"] = req.Phone
			updates["phone"] = phoneParts.National
			if phoneParts.Country != "" {
				updates["phone_country"] = phoneParts.Country
			}
		}
		if err := e.store.UpdateClient(ctx, clinic.OwnerUID, existing.ID, updates); err != nil {
			return ClientIntakeResult{}, apierr.Upstream("Client update failed.", err)
		}
		clientID = existing.ID
	} else {
		name := fullName
		if name == "" {
			name = req.FirstName
		}
		country := phoneParts.Country
		if country == "" {
			country = "+45"
		}
		clientID, err = e.store.InsertClient(ctx, model.Client{
			OwnerUID:     clinic.OwnerUID,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			FullName:     name,
			Email:        req.Email,
			EmailLower:   emailLower,
			Phone:        phoneParts.National,
			PhoneCountry: country,
			PhoneFull:    req.Phone,
			Status:       "Aktiv",
			Source:       "publicBooking",
			ClinicSlug:   clinic.Slug,
			CreatedAtISO: timeparse.UTCISO(time.Now()),
		})
		if err != nil {
			// Unique email_lower lost a race with a concurrent intake.
			raced, found, lookupErr := e.store.ClientByEmailLower(ctx, clinic.OwnerUID, emailLower)
			if !storage.IsDuplicate(err) || lookupErr != nil || !found {
				return ClientIntakeResult{}, apierr.Upstream("Client write failed.", err)
			}
			clientID = raced.ID
		}
	}

	bookingID, err := e.store.InsertBookingRequest(ctx, model.BookingRequest{
		OwnerUID:        clinic.OwnerUID,
		ClinicSlug:      clinic.Slug,
		ClinicName:      clinicName(clinic),
		ServiceID:       req.ServiceID,
		StartISO:        req.StartISO,
		EndISO:          req.EndISO,
		Notes:           req.Notes,
		ClientID:        clientID,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		PrivacyAccepted: req.PrivacyAccepted,
		MarketingOptIn:  req.MarketingOptIn,
	})
	if err != nil {
		return ClientIntakeResult{}, apierr.Upstream("Booking request write failed.", err)
	}

	return ClientIntakeResult{ClientID: clientID, BookingID: bookingID}, nil
}

// clientIntakePhone mirrors the looser intake-form split: a leading +prefix
// is separated, anything else is taken as a Danish national number.
func clientIntakePhone(raw string) identity.PhoneParts {
	if raw == "" {
		return identity.PhoneParts{}
	}
	if strings.HasPrefix(raw, "+") {
		fields := strings.SplitN(raw, " ", 2)
		parts := identity.PhoneParts{Country: fields[0], Full: raw}
		if len(fields) > 1 {
			parts.National = fields[1]
		}
		return parts
	}
	return identity.PhoneParts{Country: "+45", National: raw, Full: raw}
}
