package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"chatrelay/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) FindByPair(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	query := `
		SELECT id, pair_key, sender_id, receiver_id, created_at, updated_at
		FROM conversations
		WHERE pair_key = $1
	`
	return r.scanConversation(ctx, query, domain.PairKey(userA, userB))
}

// FindOrCreate relies on the UNIQUE pair_key constraint: the insert is an
// atomic insert-if-absent, so concurrent first messages for the same pair
// all resolve to the single winning row.
func (r *ConversationRepo) FindOrCreate(ctx context.Context, senderID, receiverID string) (*domain.Conversation, error) {
	key := domain.PairKey(senderID, receiverID)

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, pair_key, sender_id, receiver_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pair_key) DO NOTHING
	`, uuid.NewString(), key, senderID, receiverID); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	conv, err := r.scanConversation(ctx, `
		SELECT id, pair_key, sender_id, receiver_id, created_at, updated_at
		FROM conversations
		WHERE pair_key = $1
	`, key)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("find or create conversation %q: %w", key, domain.ErrNotFound)
	}
	return conv, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	query := `
		SELECT id, pair_key, sender_id, receiver_id, created_at, updated_at
		FROM conversations
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c := &domain.Conversation{}
		if err := rows.Scan(
			&c.ID,
			&c.PairKey,
			&c.SenderID,
			&c.ReceiverID,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) scanConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID,
		&c.PairKey,
		&c.SenderID,
		&c.ReceiverID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}
