package storage

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/klinikflow/klinikflow/libs/db"
	"github.com/klinikflow/klinikflow/services/booking-service/internal/model"
)

type ClientRepository struct {
	pool *db.Pool
}

func NewClientRepository(pool *db.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

func (r *ClientRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const clientColumns = `
	id::text, owner_uid, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(full_name, ''),
	COALESCE(email, ''), COALESCE(email_lower, ''), COALESCE(phone, ''), COALESCE(phone_country, ''),
	COALESCE(phone_full, ''), COALESCE(phone_norm, ''), COALESCE(owner_email, ''),
	COALESCE(owner_identifier, ''), COALESCE(status, ''), COALESCE(source, ''),
	COALESCE(clinic_slug, ''), created_at, COALESCE(created_at_iso, ''), updated_at`

func scanClient(row pgx.Row) (model.Client, error) {
	var c model.Client
	err := row.Scan(
		&c.ID,
		&c.OwnerUID,
		&c.FirstName,
		&c.LastName,
		&c.FullName,
		&c.Email,
		&c.EmailLower,
		&c.Phone,
		&c.PhoneCountry,
		&c.PhoneFull,
		&c.PhoneNorm,
		&c.OwnerEmail,
		&c.OwnerIdentifier,
		&c.Status,
		&c.Source,
		&c.ClinicSlug,
		&c.CreatedAt,
		&c.CreatedAtISO,
		&c.UpdatedAt,
	)
	return c, err
}

// FindByPhoneNorm is the public-booking identity path.
func (r *ClientRepository) FindByPhoneNorm(ctx context.Context, q Querier, ownerUID, phoneNorm string) (model.Client, bool, error) {
	row := q.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE owner_uid = $1 AND phone_norm = $2
		LIMIT 1
	`, ownerUID, phoneNorm)
	c, err := scanClient(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Client{}, false, nil
		}
		return model.Client{}, false, err
	}
	return c, true, nil
}

// FindByEmailLower is the portal-initiated identity path.
func (r *ClientRepository) FindByEmailLower(ctx context.Context, q Querier, ownerUID, emailLower string) (model.Client, bool, error) {
	row := q.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE owner_uid = $1 AND email_lower = $2
		LIMIT 1
	`, ownerUID, emailLower)
	c, err := scanClient(row)
	if err != nil {
		if IsNotFound(err) {
			return model.Client{}, false, nil
		}
		return model.Client{}, false, err
	}
	return c, true, nil
}

func (r *ClientRepository) Insert(ctx context.Context, q Querier, c model.Client) (string, error) {
	var id string
	err := q.QueryRow(ctx, `
		INSERT INTO clients
			(owner_uid, first_name, last_name, full_name, email, email_lower, phone, phone_country,
			phone_full, phone_norm, owner_email, owner_identifier, status, source, clinic_slug, created_at_iso)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id::text
	`, c.OwnerUID, c.FirstName, c.LastName, c.FullName, c.Email, c.EmailLower, c.Phone, c.PhoneCountry,
		c.PhoneFull, c.PhoneNorm, c.OwnerEmail, c.OwnerIdentifier, c.Status, c.Source, c.ClinicSlug,
		c.CreatedAtISO).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update applies a named-column merge. Only the provided columns are touched;
// updated_at always refreshes.
func (r *ClientRepository) Update(ctx context.Context, q Querier, ownerUID, id string, updates map[string]string) error {
	sql := `UPDATE clients SET updated_at = now()`
	args := []any{ownerUID, id}
	for _, col := range clientUpdateColumns {
		value, ok := updates[col]
		if !ok {
			continue
		}
		args = append(args, value)
		sql += `, ` + col + ` = $` + strconv.Itoa(len(args))
	}
	sql += ` WHERE owner_uid = $1 AND id = $2`
	_, err := q.Exec(ctx, sql, args...)
	return err
}

// clientUpdateColumns whitelists merge targets so Update never interpolates a
// caller-supplied column name.
var clientUpdateColumns = []string{
	"first_name", "last_name", "full_name", "email", "email_lower",
	"phone", "phone_country", "phone_full", "phone_norm",
	"owner_email", "owner_identifier",
}

