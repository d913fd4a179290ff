package ws

import (
	"encoding/json"
	"fmt"
)

// Client event names.
const (
	evMessagePage = "message-page"
	evNewMessage  = "new message"
	evSidebar     = "sidebar"
	evSeen        = "seen"
)

// Server event names.
const (
	evMessageUser  = "message-user"
	evMessage      = "message"
	evConversation = "conversation"
	evOnlineUser   = "onlineUser"
	evError        = "error"
)

// envelope is the raw frame shape: {"event": <name>, "data": <payload>}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// inboundEvent is the tagged-variant form of a client event. The decode
// switch below is the single place the protocol's event names map to
// variants; the router switches exhaustively on the concrete types.
type inboundEvent interface {
	eventName() string
}

type messagePageEvent struct {
	TargetUserID string
}

func (messagePageEvent) eventName() string { return evMessagePage }

type newMessageEvent struct {
	ReceiverID string `json:"receiver"`
	Text       string `json:"text"`
	ImageURL   string `json:"imageUrl"`
	VideoURL   string `json:"videoUrl"`
}

func (newMessageEvent) eventName() string { return evNewMessage }

type sidebarEvent struct {
	UserID string
}

func (sidebarEvent) eventName() string { return evSidebar }

type seenEvent struct {
	CounterpartUserID string
}

func (seenEvent) eventName() string { return evSeen }

// decodeEvent parses one inbound frame into its typed variant. Any
// malformed frame or unknown event name comes back as an error; per the
// leniency policy callers log and drop those.
func decodeEvent(raw []byte) (inboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Event {
	case evMessagePage:
		id, err := decodeStringData(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", evMessagePage, err)
		}
		return &messagePageEvent{TargetUserID: id}, nil

	case evNewMessage:
		var ev newMessageEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("%s: %w", evNewMessage, err)
		}
		return &ev, nil

	case evSidebar:
		id, err := decodeStringData(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", evSidebar, err)
		}
		return &sidebarEvent{UserID: id}, nil

	case evSeen:
		id, err := decodeStringData(env.Data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", evSeen, err)
		}
		return &seenEvent{CounterpartUserID: id}, nil

	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

// decodeStringData parses events whose payload is a bare user-id string.
func decodeStringData(data json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("expected string payload: %w", err)
	}
	if s == "" {
		return "", fmt.Errorf("empty id")
	}
	return s, nil
}
