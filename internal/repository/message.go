package repository

import (
	"context"
	"fmt"
	"time"

	"relun-backend/internal/models"
)

const messageColumns = `id, seq, match_id, sender_id, receiver_id, content, message_type, is_read, read_at, created_at`

// MessageRepository handles database operations for chat messages
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.Seq, &m.MatchID, &m.SenderID, &m.ReceiverID, &m.Content,
		&m.MessageType, &m.IsRead, &m.ReadAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create persists a message and fills in its sequence number
func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, match_id, sender_id, receiver_id, content, message_type, is_read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`
	err := r.db.conn(ctx).QueryRow(ctx, query,
		msg.ID, msg.MatchID, msg.SenderID, msg.ReceiverID, msg.Content, msg.MessageType,
		msg.IsRead, msg.ReadAt, msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return mapErr(fmt.Errorf("failed to create message: %w", err))
	}
	return nil
}

// GetByID retrieves a message by ID
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.db.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get message: %w", err))
	}
	return msg, nil
}

// ListByMatch returns a page of a match's messages, newest first, and the total count
func (r *MessageRepository) ListByMatch(ctx context.Context, matchID string, limit, offset int) ([]*models.Message, int, error) {
	var total int
	if err := r.db.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE match_id = $1`, matchID).Scan(&total); err != nil {
		return nil, 0, mapErr(fmt.Errorf("failed to count messages: %w", err))
	}

	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE match_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, matchID, limit, offset)
	if err != nil {
		return nil, 0, mapErr(fmt.Errorf("failed to list messages: %w", err))
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, total, nil
}

// LatestByMatch returns the most recent message of a match
func (r *MessageRepository) LatestByMatch(ctx context.Context, matchID string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE match_id = $1 ORDER BY seq DESC LIMIT 1`
	msg, err := scanMessage(r.db.conn(ctx).QueryRow(ctx, query, matchID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get latest message: %w", err))
	}
	return msg, nil
}

// MarkRead flags every unread message addressed to receiverID in a match
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, receiverID string, at time.Time) (int, error) {
	query := `
		UPDATE messages SET is_read = TRUE, read_at = $3
		WHERE match_id = $1 AND receiver_id = $2 AND NOT is_read
	`
	result, err := r.db.conn(ctx).Exec(ctx, query, matchID, receiverID, at)
	if err != nil {
		return 0, mapErr(fmt.Errorf("failed to mark messages read: %w", err))
	}
	return int(result.RowsAffected()), nil
}

// Delete deletes a message by ID
func (r *MessageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return mapErr(fmt.Errorf("failed to delete message: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByMatch removes every message of a match
func (r *MessageRepository) DeleteByMatch(ctx context.Context, matchID string) error {
	if _, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM messages WHERE match_id = $1`, matchID); err != nil {
		return mapErr(fmt.Errorf("failed to delete match messages: %w", err))
	}
	return nil
}

// CountUnread counts unread messages addressed to receiverID
func (r *MessageRepository) CountUnread(ctx context.Context, receiverID string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND NOT is_read`
	if err := r.db.conn(ctx).QueryRow(ctx, query, receiverID).Scan(&n); err != nil {
		return 0, mapErr(fmt.Errorf("failed to count unread messages: %w", err))
	}
	return n, nil
}
