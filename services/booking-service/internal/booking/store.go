package booking

import (
	"context"

	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/outbox"
)

// Store is the document-store surface the commit engine consumes. The pg
// implementation lives in pgstore.go; tests use an in-memory fake.
type Store interface {
	ClinicBySlug(ctx context.Context, slug string) (model.Clinic, bool, error)
	OwnerProfile(ctx context.Context, uid string) (model.OwnerProfile, bool, error)
	StaffMember(ctx context.Context, ownerUID, staffID string) (model.StaffMember, bool, error)
	ListStaff(ctx context.Context, ownerUID string) ([]model.StaffMember, error)
	ServiceByID(ctx context.Context, ownerUID, serviceID string) (model.Service, bool, error)
	ListServices(ctx context.Context, ownerUID string) ([]model.Service, error)

	// AppointmentsStartingWithin prefetches by UTC day window over the stored
	// ISO start strings.
	AppointmentsStartingWithin(ctx context.Context, ownerUID, fromISO, toISO string) ([]model.Appointment, error)

	ClientByPhoneNorm(ctx context.Context, ownerUID, phoneNorm string) (model.Client, bool, error)
	ClientByEmailLower(ctx context.Context, ownerUID, emailLower string) (model.Client, bool, error)
	UpdateClient(ctx context.Context, ownerUID, id string, updates map[string]string) error
	InsertClient(ctx context.Context, c model.Client) (string, error)

	InsertAppointment(ctx context.Context, a model.Appointment) (string, error)
	InsertBookingRequest(ctx context.Context, b model.BookingRequest) (string, error)
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// TxStore adds transactional scoping for the atomic commit mode.
type TxStore interface {
	Store
	// WithTx runs fn against a transaction-scoped view; fn's writes commit or
	// roll back as one unit.
	WithTx(ctx context.Context, fn func(Store) error) error
}
