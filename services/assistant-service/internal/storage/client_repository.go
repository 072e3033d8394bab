package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/klinikflow/klinikflow/libs/db"
)

// ClientSnapshot is the slice of a client record the chat context needs:
// a display name plus the free-form profile fields the portal stores
// (goal, diagnosis and whatever else the clinician filled in).
type ClientSnapshot struct {
	Name    string
	Profile map[string]any
}

type ClientRepository struct {
	pool *db.Pool
}

func NewClientRepository(pool *db.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

func (r *ClientRepository) Snapshot(ctx context.Context, ownerUID, clientID string) (ClientSnapshot, bool, error) {
	var name string
	var profile []byte
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(full_name, ''), COALESCE(profile, '{}'::jsonb)
		FROM clients
		WHERE owner_uid = $1 AND id::text = $2
	`, ownerUID, clientID).Scan(&name, &profile)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClientSnapshot{}, false, nil
	}
	if err != nil {
		return ClientSnapshot{}, false, err
	}

	snapshot := ClientSnapshot{Name: name, Profile: map[string]any{}}
	if len(profile) > 0 {
		// Malformed profile JSON degrades to an empty profile.
		_ = json.Unmarshal(profile, &snapshot.Profile)
	}
	return snapshot, true, nil
}
