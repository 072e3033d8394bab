package storage

import (
	"context"

	"github.com/klinikflow/klinikflow/libs/db"
)

// JournalEntry is one clinician note for a client. DateISO is the
// clinician-entered date; CreatedAtISO the write timestamp used for ordering.
type JournalEntry struct {
	ID           string
	OwnerUID     string
	ClientID     string
	Title        string
	DateISO      string
	Content      string
	CreatedAtISO string
}

type JournalRepository struct {
	pool *db.Pool
}

func NewJournalRepository(pool *db.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

// Recent returns the latest entries in chronological order (oldest first),
// capped at limit.
func (r *JournalRepository) Recent(ctx context.Context, ownerUID, clientID string, limit int) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text,
		       owner_uid,
		       client_id,
		       COALESCE(title, ''),
		       COALESCE(date_iso, ''),
		       COALESCE(content, ''),
		       COALESCE(created_at_iso, '')
		FROM journal_entries
		WHERE owner_uid = $1 AND client_id = $2
		ORDER BY created_at_iso DESC
		LIMIT $3
	`, ownerUID, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.OwnerUID, &e.ClientID, &e.Title, &e.DateISO, &e.Content, &e.CreatedAtISO); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse: queried newest-first for the limit, read oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
