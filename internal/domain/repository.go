package domain

import (
	"context"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// ConversationRepository defines persistence operations for conversations.
// All pair lookups are order-insensitive.
type ConversationRepository interface {
	// FindByPair returns the conversation between the two users, or nil.
	FindByPair(ctx context.Context, userA, userB string) (*Conversation, error)
	// FindOrCreate returns the conversation for the pair, creating it with
	// senderID as initiator if absent. Creation is atomic per unordered
	// pair: concurrent callers all resolve to the same row.
	FindOrCreate(ctx context.Context, senderID, receiverID string) (*Conversation, error)
	// ListForUser returns the user's conversations, most recently
	// updated first.
	ListForUser(ctx context.Context, userID string) ([]*Conversation, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	// Append persists the message under its conversation and bumps the
	// conversation's updated_at. Append order is the order successful
	// calls were accepted in.
	Append(ctx context.Context, m *Message) error
	// ListForConversation returns all messages in append order.
	ListForConversation(ctx context.Context, conversationID string) ([]*Message, error)
	// Last returns the newest message in the conversation, or nil.
	Last(ctx context.Context, conversationID string) (*Message, error)
	// MarkSeen flips seen to true for every unseen message in the
	// conversation authored by authorID. Idempotent.
	MarkSeen(ctx context.Context, conversationID, authorID string) error
	// CountUnseen counts unseen messages in the conversation authored
	// by authorID.
	CountUnseen(ctx context.Context, conversationID, authorID string) (int, error)
}
