package ws

import (
	"context"

	"github.com/rs/zerolog"

	"chatrelay/internal/domain"
	"chatrelay/internal/metrics"
	"chatrelay/internal/service"
)

// session is the per-connection state machine. After the gateway's
// handshake it has a single steady state: authenticated and listening.
// Its handlers run serially off the connection's read loop, so one
// connection never interleaves two of its own events.
type session struct {
	user   *domain.User
	connID string
	out    *client
	hub    *Hub
	chat   *service.ChatService
	log    zerolog.Logger
}

// handle dispatches one inbound event to its variant handler. Store
// failures are logged and the event's outbound emissions skipped; the
// connection stays open.
func (s *session) handle(ctx context.Context, ev inboundEvent) {
	switch ev := ev.(type) {
	case *messagePageEvent:
		s.handleMessagePage(ctx, ev)
	case *newMessageEvent:
		s.handleNewMessage(ctx, ev)
	case *sidebarEvent:
		s.handleSidebar(ctx, ev)
	case *seenEvent:
		s.handleSeen(ctx, ev)
	default:
		s.log.Warn().Str("event", ev.eventName()).Msg("no handler for event")
	}
}

// handleMessagePage answers with the target's profile-plus-presence and
// the pair's message history, to this connection only.
func (s *session) handleMessagePage(ctx context.Context, ev *messagePageEvent) {
	profile, err := s.chat.TargetProfile(ctx, ev.TargetUserID)
	if err != nil {
		s.drop(evMessagePage, err)
		return
	}
	s.emit(evMessageUser, profile)

	msgs, err := s.chat.ConversationMessages(ctx, s.user.ID, ev.TargetUserID)
	if err != nil {
		s.drop(evMessagePage, err)
		return
	}
	s.emit(evMessage, msgs)
}

// handleNewMessage persists the message and fans the updated history and
// sidebar summaries out to both participants' broadcast groups. The
// author is always this session's authenticated identity; the payload
// cannot claim another sender.
func (s *session) handleNewMessage(ctx context.Context, ev *newMessageEvent) {
	msgs, err := s.chat.SendMessage(ctx, s.user.ID, service.SendMessageInput{
		ReceiverID: ev.ReceiverID,
		Text:       ev.Text,
		ImageURL:   ev.ImageURL,
		VideoURL:   ev.VideoURL,
	})
	if err != nil {
		s.drop(evNewMessage, err)
		return
	}

	s.hub.EmitToUser(s.user.ID, evMessage, msgs)
	s.hub.EmitToUser(ev.ReceiverID, evMessage, msgs)

	s.emitSummaries(ctx, s.user.ID)
	s.emitSummaries(ctx, ev.ReceiverID)
}

// handleSidebar computes summaries for the requested user and answers
// this connection only.
func (s *session) handleSidebar(ctx context.Context, ev *sidebarEvent) {
	summaries, err := s.chat.Summaries(ctx, ev.UserID)
	if err != nil {
		s.drop(evSidebar, err)
		return
	}
	s.emit(evConversation, summaries)
}

// handleSeen marks the counterpart's messages seen and refreshes both
// participants' sidebars.
func (s *session) handleSeen(ctx context.Context, ev *seenEvent) {
	if err := s.chat.MarkSeen(ctx, s.user.ID, ev.CounterpartUserID); err != nil {
		s.drop(evSeen, err)
		return
	}

	s.emitSummaries(ctx, s.user.ID)
	s.emitSummaries(ctx, ev.CounterpartUserID)
}

// emitSummaries recomputes a user's sidebar and fans it out to that
// user's broadcast group.
func (s *session) emitSummaries(ctx context.Context, userID string) {
	summaries, err := s.chat.Summaries(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str("for_user", userID).Msg("summaries failed; skipping emission")
		return
	}
	s.hub.EmitToUser(userID, evConversation, summaries)
}

// emit sends an event to this connection only.
func (s *session) emit(event string, payload any) {
	if err := s.out.send(Event{Event: event, Data: payload}); err != nil {
		metrics.FanoutDropped.Inc()
		return
	}
	metrics.FanoutDeliveries.Inc()
}

// drop applies the leniency policy: log the failure, skip the event's
// emissions, keep the connection open.
func (s *session) drop(event string, err error) {
	metrics.EventsDropped.WithLabelValues(event).Inc()
	s.log.Error().Err(err).Str("event", event).Msg("event dropped")
}
