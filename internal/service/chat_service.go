package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chatrelay/internal/domain"
	"chatrelay/internal/metrics"
)

// PresenceChecker reports live online status; satisfied by the presence
// registry.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

// ChatService coordinates the conversation store: find-or-create, append,
// seen propagation, and the sidebar summary projection.
type ChatService struct {
	users    domain.UserRepository
	convs    domain.ConversationRepository
	messages domain.MessageRepository
	presence PresenceChecker
	log      zerolog.Logger
}

func NewChatService(
	users domain.UserRepository,
	convs domain.ConversationRepository,
	messages domain.MessageRepository,
	presence PresenceChecker,
	logger zerolog.Logger,
) *ChatService {
	return &ChatService{
		users:    users,
		convs:    convs,
		messages: messages,
		presence: presence,
		log:      logger.With().Str("component", "chat").Logger(),
	}
}

// TargetProfile returns the public profile of a user annotated with live
// presence, for the message-page response.
func (s *ChatService) TargetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %q: %w", userID, domain.ErrNotFound)
	}
	return user.Profile(s.presence.IsOnline(userID)), nil
}

// ConversationMessages returns the full history between the two users in
// append order, or an empty list when no conversation exists yet.
func (s *ChatService) ConversationMessages(ctx context.Context, userA, userB string) ([]*domain.Message, error) {
	conv, err := s.convs.FindByPair(ctx, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return []*domain.Message{}, nil
	}
	msgs, err := s.messages.ListForConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return msgs, nil
}

type SendMessageInput struct {
	ReceiverID string
	Text       string
	ImageURL   string
	VideoURL   string
}

// SendMessage persists a message from senderID. The sender is always the
// caller's authenticated identity; nothing in the payload can override
// it. Returns the conversation's full updated history.
func (s *ChatService) SendMessage(ctx context.Context, senderID string, in SendMessageInput) ([]*domain.Message, error) {
	if strings.TrimSpace(in.ReceiverID) == "" {
		return nil, fmt.Errorf("receiver is required: %w", domain.ErrInvalidInput)
	}

	conv, err := s.convs.FindOrCreate(ctx, senderID, in.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("find or create conversation: %w", err)
	}

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		AuthorID:       senderID,
		Text:           in.Text,
		ImageURL:       in.ImageURL,
		VideoURL:       in.VideoURL,
		Seen:           false,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesStored.Inc()

	msgs, err := s.messages.ListForConversation(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// MarkSeen flips the seen flag on every message the counterpart authored
// in the shared conversation. A missing conversation is a no-op.
func (s *ChatService) MarkSeen(ctx context.Context, viewerID, counterpartID string) error {
	conv, err := s.convs.FindByPair(ctx, viewerID, counterpartID)
	if err != nil {
		return fmt.Errorf("find conversation: %w", err)
	}
	if conv == nil {
		return nil
	}
	return s.messages.MarkSeen(ctx, conv.ID, counterpartID)
}

// Summaries computes the sidebar projection for a user: one entry per
// conversation, most recently updated first.
func (s *ChatService) Summaries(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	res := make([]*domain.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		counterpartID := conv.Counterpart(userID)

		counterpart, err := s.users.GetByID(ctx, counterpartID)
		if err != nil {
			return nil, fmt.Errorf("get counterpart: %w", err)
		}
		if counterpart == nil {
			// conversation referencing a vanished profile; skip rather
			// than fail the whole sidebar
			s.log.Warn().Str("user_id", counterpartID).Msg("counterpart not found")
			continue
		}

		last, err := s.messages.Last(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("last message: %w", err)
		}
		unseen, err := s.messages.CountUnseen(ctx, conv.ID, counterpartID)
		if err != nil {
			return nil, fmt.Errorf("count unseen: %w", err)
		}

		res = append(res, &domain.ConversationSummary{
			ConversationID: conv.ID,
			UserDetails:    counterpart.Profile(s.presence.IsOnline(counterpartID)),
			LastMessage:    last,
			UnseenCount:    unseen,
			UpdatedAt:      conv.UpdatedAt,
		})
	}
	return res, nil
}
