package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/klinikflow/klinikflow/libs/db"
)

// ChatMessage lives in the shared per-client chat: every agent reads and
// writes the same thread.
type ChatMessage struct {
	ID           string
	OwnerUID     string
	ClientID     string
	Role         string
	AgentID      string
	Text         string
	Blocks       []ActionBlock
	CreatedAtMs  int64
	CreatedAtISO string
}

// ActionBlock is a suggested journal block produced in action mode.
type ActionBlock struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	DefaultMode string `json:"defaultMode"`
}

type ChatRepository struct {
	pool *db.Pool
}

func NewChatRepository(pool *db.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) Append(ctx context.Context, msg ChatMessage) error {
	var blocks []byte
	if len(msg.Blocks) > 0 {
		encoded, err := json.Marshal(msg.Blocks)
		if err != nil {
			return err
		}
		blocks = encoded
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_messages
			(id, owner_uid, client_id, role, agent_id, text, blocks, created_at_ms, created_at_iso)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, msg.ID, msg.OwnerUID, msg.ClientID, msg.Role, msg.AgentID, msg.Text, blocks, msg.CreatedAtMs, msg.CreatedAtISO)
	return err
}

// Recent returns the latest messages of the shared thread in chronological
// order, capped at limit.
func (r *ChatRepository) Recent(ctx context.Context, ownerUID, clientID string, limit int) ([]ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text,
		       owner_uid,
		       client_id,
		       role,
		       COALESCE(agent_id, ''),
		       COALESCE(text, ''),
		       blocks,
		       created_at_ms,
		       COALESCE(created_at_iso, '')
		FROM chat_messages
		WHERE owner_uid = $1 AND client_id = $2
		ORDER BY created_at_ms DESC
		LIMIT $3
	`, ownerUID, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var blocks []byte
		if err := rows.Scan(&m.ID, &m.OwnerUID, &m.ClientID, &m.Role, &m.AgentID, &m.Text, &blocks, &m.CreatedAtMs, &m.CreatedAtISO); err != nil {
			return nil, err
		}
		if len(blocks) > 0 {
			// Malformed stored blocks degrade to a plain text message.
			_ = json.Unmarshal(blocks, &m.Blocks)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
