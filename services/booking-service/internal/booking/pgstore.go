package booking

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/klinikflow/klinikflow/libs/db"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/outbox"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/storage"
)

// PgStore backs the engine with the pgx repositories. The zero-tx form runs
// every call against the pool; WithTx produces a view whose writes and
// day-window reads share one transaction.
type PgStore struct {
	pool     *db.Pool
	q        storage.Querier
	clinics  *storage.ClinicRepository
	clients  *storage.ClientRepository
	appts    *storage.AppointmentRepository
	requests *storage.BookingRequestRepository
	events   *outbox.Repository
}

func NewPgStore(pool *db.Pool) *PgStore {
	return &PgStore{
		pool:     pool,
		q:        pool,
		clinics:  storage.NewClinicRepository(pool),
		clients:  storage.NewClientRepository(pool),
		appts:    storage.NewAppointmentRepository(pool),
		requests: storage.NewBookingRequestRepository(pool),
		events:   outbox.NewRepository(pool),
	}
}

// WithTx runs fn against a serializable transaction view. Two concurrent
// commits for the same slot cannot both pass the conflict re-check; the
// loser aborts with a serialization failure (40001) at commit.
func (s *PgStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	scoped := *s
	scoped.q = tx
	if err := fn(&scoped); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) ClinicBySlug(ctx context.Context, slug string) (model.Clinic, bool, error) {
	clinic, err := s.clinics.BySlug(ctx, slug)
	if err != nil {
		if storage.IsNotFound(err) {
			return model.Clinic{}, false, nil
		}
		return model.Clinic{}, false, err
	}
	return clinic, true, nil
}

func (s *PgStore) OwnerProfile(ctx context.Context, uid string) (model.OwnerProfile, bool, error) {
	return s.clinics.OwnerProfile(ctx, uid)
}

func (s *PgStore) StaffMember(ctx context.Context, ownerUID, staffID string) (model.StaffMember, bool, error) {
	return s.clinics.StaffMember(ctx, ownerUID, staffID)
}

func (s *PgStore) ListStaff(ctx context.Context, ownerUID string) ([]model.StaffMember, error) {
	return s.clinics.ListStaff(ctx, ownerUID)
}

func (s *PgStore) ServiceByID(ctx context.Context, ownerUID, serviceID string) (model.Service, bool, error) {
	return s.clinics.Service(ctx, ownerUID, serviceID)
}

func (s *PgStore) ListServices(ctx context.Context, ownerUID string) ([]model.Service, error) {
	return s.clinics.ListServices(ctx, ownerUID)
}

func (s *PgStore) AppointmentsStartingWithin(ctx context.Context, ownerUID, fromISO, toISO string) ([]model.Appointment, error) {
	return s.appts.StartingWithin(ctx, s.q, ownerUID, fromISO, toISO)
}

func (s *PgStore) ClientByPhoneNorm(ctx context.Context, ownerUID, phoneNorm string) (model.Client, bool, error) {
	return s.clients.FindByPhoneNorm(ctx, s.q, ownerUID, phoneNorm)
}

func (s *PgStore) ClientByEmailLower(ctx context.Context, ownerUID, emailLower string) (model.Client, bool, error) {
	return s.clients.FindByEmailLower(ctx, s.q, ownerUID, emailLower)
}

func (s *PgStore) UpdateClient(ctx context.Context, ownerUID, id string, updates map[string]string) error {
	return s.clients.Update(ctx, s.q, ownerUID, id, updates)
}

func (s *PgStore) InsertClient(ctx context.Context, c model.Client) (string, error) {
	return s.clients.Insert(ctx, s.q, c)
}

func (s *PgStore) InsertAppointment(ctx context.Context, a model.Appointment) (string, error) {
	return s.appts.Insert(ctx, s.q, a)
}

func (s *PgStore) InsertBookingRequest(ctx context.Context, b model.BookingRequest) (string, error) {
	return s.requests.Insert(ctx, s.q, b)
}

func (s *PgStore) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return s.events.Insert(ctx, s.q, evt)
}
