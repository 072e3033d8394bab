package storage

import (
	"context"

	"github.com/klinikflow/klinikflow/libs/db"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
)

// BookingRequestRepository stores portal-intake bookings awaiting manual
// confirmation.
type BookingRequestRepository struct {
	pool *db.Pool
}

func NewBookingRequestRepository(pool *db.Pool) *BookingRequestRepository {
	return &BookingRequestRepository{pool: pool}
}

func (r *BookingRequestRepository) Insert(ctx context.Context, q Querier, b model.BookingRequest) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO booking_requests
			(owner_uid, clinic_slug, clinic_name, service_id, start_iso, end_iso, notes, client_id,
			first_name, last_name, email, phone, privacy_accepted, marketing_opt_in)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id::text
	`, b.OwnerUID, b.ClinicSlug, b.ClinicName, b.ServiceID, b.StartISO, b.EndISO, b.Notes, b.ClientID,
		b.FirstName, b.LastName, b.Email, b.Phone, b.PrivacyAccepted, b.MarketingOptIn).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}
