package storage

import (
	"context"

	"github.com/klinikflow/klinikflow/libs/db"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
)

// ClinicRepository reads the tenant configuration the booking flow consumes:
// public clinic records, owner profiles, staff, and services. All read-only
// here; the portal writes them.
type ClinicRepository struct {
	pool *db.Pool
}

func NewClinicRepository(pool *db.Pool) *ClinicRepository {
	return &ClinicRepository{pool: pool}
}

func (r *ClinicRepository) BySlug(ctx context.Context, slug string) (model.Clinic, error) {
	var clinic model.Clinic
	var hours []byte
	err := r.pool.QueryRow(ctx, `
		SELECT slug, COALESCE(clinic_name, ''), COALESCE(owner_uid, ''), is_active,
			COALESCE(timezone, ''), COALESCE(slot_minutes, 0), working_hours
		FROM public_clinics
		WHERE slug = $1
	`, slug).Scan(
		&clinic.Slug,
		&clinic.ClinicName,
		&clinic.OwnerUID,
		&clinic.IsActive,
		&clinic.Timezone,
		&clinic.SlotMinutes,
		&hours,
	)
	if err != nil {
		return model.Clinic{}, err
	}
	clinic.WorkingHours = scanWorkingHours(hours)
	return clinic, nil
}

func (r *ClinicRepository) OwnerProfile(ctx context.Context, uid string) (model.OwnerProfile, bool, error) {
	var profile model.OwnerProfile
	var hours []byte
	err := r.pool.QueryRow(ctx, `
		SELECT uid, COALESCE(display_name, ''), COALESCE(email, ''), working_hours
		FROM owner_profiles
		WHERE uid = $1
	`, uid).Scan(&profile.UID, &profile.DisplayName, &profile.Email, &hours)
	if err != nil {
		if IsNotFound(err) {
			return model.OwnerProfile{}, false, nil
		}
		return model.OwnerProfile{}, false, err
	}
	profile.WorkingHours = scanWorkingHours(hours)
	return profile, true, nil
}

func (r *ClinicRepository) StaffMember(ctx context.Context, ownerUID, staffID string) (model.StaffMember, bool, error) {
	var staff model.StaffMember
	var hours []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
			COALESCE(role, ''), COALESCE(avatar_text, ''), COALESCE(calendar_color, ''), working_hours
		FROM team
		WHERE owner_uid = $1 AND id = $2
	`, ownerUID, staffID).Scan(
		&staff.ID,
		&staff.Name,
		&staff.FirstName,
		&staff.LastName,
		&staff.Role,
		&staff.AvatarText,
		&staff.CalendarColor,
		&hours,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.StaffMember{}, false, nil
		}
		return model.StaffMember{}, false, err
	}
	staff.WorkingHours = scanWorkingHours(hours)
	return staff, true, nil
}

func (r *ClinicRepository) ListStaff(ctx context.Context, ownerUID string) ([]model.StaffMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
			COALESCE(role, ''), COALESCE(avatar_text, ''), COALESCE(calendar_color, ''), working_hours
		FROM team
		WHERE owner_uid = $1
		ORDER BY name
	`, ownerUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var staff []model.StaffMember
	for rows.Next() {
		var member model.StaffMember
		var hours []byte
		if err := rows.Scan(
			&member.ID,
			&member.Name,
			&member.FirstName,
			&member.LastName,
			&member.Role,
			&member.AvatarText,
			&member.CalendarColor,
			&hours,
		); err != nil {
			return nil, err
		}
		member.WorkingHours = scanWorkingHours(hours)
		staff = append(staff, member)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return staff, nil
}

func (r *ClinicRepository) Service(ctx context.Context, ownerUID, serviceID string) (model.Service, bool, error) {
	var svc model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(description, ''), COALESCE(duration, ''),
			price, price_incl_vat, COALESCE(currency, ''), COALESCE(include_vat, false), COALESCE(color, '')
		FROM services
		WHERE owner_uid = $1 AND id = $2
	`, ownerUID, serviceID).Scan(
		&svc.ID,
		&svc.Name,
		&svc.Description,
		&svc.DurationRaw,
		&svc.Price,
		&svc.PriceInclVAT,
		&svc.Currency,
		&svc.IncludeVAT,
		&svc.Color,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.Service{}, false, nil
		}
		return model.Service{}, false, err
	}
	return svc, true, nil
}

func (r *ClinicRepository) ListServices(ctx context.Context, ownerUID string) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(name, ''), COALESCE(description, ''), COALESCE(duration, ''),
			price, price_incl_vat, COALESCE(currency, ''), COALESCE(include_vat, false), COALESCE(color, '')
		FROM services
		WHERE owner_uid = $1
		ORDER BY name
	`, ownerUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var svc model.Service
		if err := rows.Scan(
			&svc.ID,
			&svc.Name,
			&svc.Description,
			&svc.DurationRaw,
			&svc.Price,
			&svc.PriceInclVAT,
			&svc.Currency,
			&svc.IncludeVAT,
			&svc.Color,
		); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return services, nil
}
