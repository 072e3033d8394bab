package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/klinikflow/klinikflow/libs/db"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `
	id::text, owner_uid, COALESCE(clinic_slug, ''), COALESCE(clinic_name, ''),
	COALESCE(staff_uid, ''), COALESCE(calendar_owner_id, ''), COALESCE(calendar_owner, ''),
	COALESCE(title, ''), COALESCE(client_name, ''), COALESCE(client_id, ''),
	COALESCE(client_email, ''), COALESCE(client_phone, ''), COALESCE(service_id, ''),
	COALESCE(start_iso, ''), COALESCE(end_iso, ''),
	COALESCE(start_date, ''), COALESCE(start_time, ''), COALESCE(end_date, ''), COALESCE(end_time, ''),
	COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(notes, ''), COALESCE(privacy_accepted, false), COALESCE(marketing_opt_in, false),
	COALESCE(status, ''), created_at`

// StartingWithin returns appointments whose stored start falls inside
// [fromISO, toISO). Start values are UTC ISO-8601 strings with a Z marker, so
// lexicographic comparison orders them chronologically. This is the same
// day-window prefetch the availability and conflict checks both use.
func (r *AppointmentRepository) StartingWithin(ctx context.Context, q Querier, ownerUID, fromISO, toISO string) ([]model.Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_uid = $1 AND start_iso >= $2 AND start_iso < $3
		ORDER BY start_iso
	`, ownerUID, fromISO, toISO)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(
			&a.ID,
			&a.OwnerUID,
			&a.ClinicSlug,
			&a.ClinicName,
			&a.StaffUID,
			&a.CalendarOwnerID,
			&a.CalendarOwner,
			&a.Title,
			&a.ClientName,
			&a.ClientID,
			&a.ClientEmail,
			&a.ClientPhone,
			&a.ServiceID,
			&a.StartISO,
			&a.EndISO,
			&a.StartDate,
			&a.StartTime,
			&a.EndDate,
			&a.EndTime,
			&a.FirstName,
			&a.LastName,
			&a.Email,
			&a.Phone,
			&a.Notes,
			&a.PrivacyAccepted,
			&a.MarketingOptIn,
			&a.Status,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *AppointmentRepository) Insert(ctx context.Context, q Querier, a model.Appointment) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO appointments
			(owner_uid, clinic_slug, clinic_name, staff_uid, calendar_owner_id, calendar_owner,
			title, client_name, client_id, client_email, client_phone, service_id,
			start_iso, end_iso, start_date, start_time, end_date, end_time,
			first_name, last_name, email, phone, notes, privacy_accepted, marketing_opt_in, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		RETURNING id::text
	`, a.OwnerUID, a.ClinicSlug, a.ClinicName, a.StaffUID, a.CalendarOwnerID, a.CalendarOwner,
		a.Title, a.ClientName, a.ClientID, a.ClientEmail, a.ClientPhone, a.ServiceID,
		a.StartISO, a.EndISO, a.StartDate, a.StartTime, a.EndDate, a.EndTime,
		a.FirstName, a.LastName, a.Email, a.Phone, a.Notes, a.PrivacyAccepted, a.MarketingOptIn, a.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
