package booking

import (
	"context"
	"strings"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/apierr"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/timeparse"
)

// Public directory reads backing the booking widget: the clinic's staff
// picker and service picker.

type StaffDirectory struct {
	ClinicSlug string
	ClinicName string
	Staff      []model.StaffMember
}

func (e *Engine) StaffForClinic(ctx context.Context, clinicSlug string) (StaffDirectory, error) {
	clinicSlug = strings.ToLower(strings.TrimSpace(clinicSlug))
	if clinicSlug == "" {
		return StaffDirectory{}, apierr.MissingFields([]string{"clinicSlug"})
	}

	clinic, err := e.resolveClinic(ctx, clinicSlug)
	if err != nil {
		return StaffDirectory{}, err
	}

	staff, err := e.store.ListStaff(ctx, clinic.OwnerUID)
	if err != nil {
		return StaffDirectory{}, apierr.Upstream("Staff lookup failed.", err)
	}

	// A clinic without a team exposes its owner as the only bookable
	// clinician.
	if len(staff) == 0 {
		owner, _, err := e.store.OwnerProfile(ctx, clinic.OwnerUID)
		if err != nil {
			return StaffDirectory{}, apierr.Upstream("Owner lookup failed.", err)
		}
		name := owner.DisplayName
		if name == "" {
			name = clinicName(clinic)
		}
		if name == "" {
			name = "Clinician"
		}
		staff = []model.StaffMember{{
			ID:   clinic.OwnerUID,
			Name: name,
			Role: "owner",
		}}
	}

	return StaffDirectory{
		ClinicSlug: clinic.Slug,
		ClinicName: clinicName(clinic),
		Staff:      staff,
	}, nil
}

type ServiceItem struct {
	ID              string
	Name            string
	Description     string
	DurationMinutes int
	Price           *float64
	PriceInclVAT    *float64
	Currency        string
	IncludeVAT      bool
	Color           string
}

func (e *Engine) ServicesForClinic(ctx context.Context, clinicSlug string) ([]ServiceItem, error) {
	clinicSlug = strings.ToLower(strings.TrimSpace(clinicSlug))
	if clinicSlug == "" {
		return nil, apierr.MissingFields([]string{"clinicSlug"})
	}

	clinic, err := e.resolveClinic(ctx, clinicSlug)
	if err != nil {
		return nil, err
	}

	services, err := e.store.ListServices(ctx, clinic.OwnerUID)
	if err != nil {
		return nil, apierr.Upstream("Service lookup failed.", err)
	}

	items := make([]ServiceItem, 0, len(services))
	for _, svc := range services {
		name := strings.TrimSpace(svc.Name)
		if name == "" {
			continue
		}
		item := ServiceItem{
			ID:              svc.ID,
			Name:            name,
			Description:     svc.Description,
			DurationMinutes: timeparse.DurationMinutesOrDefault(svc.DurationRaw, 60, e.logger, "serviceId:"+svc.ID),
			Price:           svc.Price,
			PriceInclVAT:    svc.PriceInclVAT,
			Currency:        svc.Currency,
			IncludeVAT:      svc.IncludeVAT,
			Color:           svc.Color,
		}
		if item.Currency == "" {
			item.Currency = "DKK"
		}
		if item.PriceInclVAT == nil {
			item.PriceInclVAT = svc.Price
		}
		items = append(items, item)
	}
	return items, nil
}

func (e *Engine) resolveClinic(ctx context.Context, clinicSlug string) (model.Clinic, error) {
	clinic, found, err := e.store.ClinicBySlug(ctx, clinicSlug)
	if err != nil {
		return model.Clinic{}, apierr.Upstream("Clinic lookup failed.", err)
	}
	if !found {
		return model.Clinic{}, apierr.NotFound("Clinic not found.")
	}
	if !clinic.IsActive {
		return model.Clinic{}, apierr.Forbidden("Clinic inactive.")
	}
	if clinic.OwnerUID == "" {
		return model.Clinic{}, apierr.NotFound("Clinic owner missing.")
	}
	return clinic, nil
}
