package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/domain"
	"chatrelay/internal/metrics"
	"chatrelay/internal/presence"
	"chatrelay/internal/service"
)

// IdentityResolver maps a bearer credential to a user identity; satisfied
// by the auth service.
type IdentityResolver interface {
	ResolveToken(ctx context.Context, token string) (*domain.User, error)
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			// non-browser clients (tests, CLIs) send no Origin header
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

// extractToken pulls the bearer credential out of the handshake request:
// Authorization header, "bearer" subprotocol pair, or token query
// parameter (browser websocket clients cannot set headers).
func extractToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		if token := strings.TrimSpace(authHeader[len("Bearer "):]); token != "" {
			return token
		}
	}

	if protocolHeader := r.Header.Get("Sec-WebSocket-Protocol"); protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1]
		}
	}

	return r.URL.Query().Get("token")
}

// MakeHandler returns the HTTP handler for the /ws endpoint: the
// connection gateway. It upgrades the transport, runs the authentication
// handshake, wires the connection into the hub and the presence
// registry, and then runs the per-connection event loop. Teardown
// (unregister + onlineUser re-broadcast) runs exactly once per
// connection, whatever the close cause.
func MakeHandler(
	hub *Hub,
	registry *presence.Registry,
	resolver IdentityResolver,
	chat *service.ChatService,
	allowedOrigins []string,
	logger zerolog.Logger,
) http.HandlerFunc {
	log := logger.With().Str("component", "gateway").Logger()
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  checkOrigin,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		// Auth happens after the upgrade so failures reach the client as
		// an error event rather than an opaque HTTP status.
		if token == "" {
			metrics.AuthFailures.WithLabelValues("missing_token").Inc()
			_ = conn.WriteJSON(Event{Event: evError, Data: "authentication token missing"})
			conn.Close()
			return
		}
		user, err := resolver.ResolveToken(r.Context(), token)
		if err != nil {
			metrics.AuthFailures.WithLabelValues("invalid_token").Inc()
			log.Warn().Err(err).Msg("rejecting connection")
			_ = conn.WriteJSON(Event{Event: evError, Data: "invalid token"})
			conn.Close()
			return
		}

		connID := uuid.NewString()
		out := hub.Register(user.ID, connID, conn)
		registry.Add(user.ID, connID)
		s := &session{
			user:   user,
			connID: connID,
			out:    out,
			hub:    hub,
			chat:   chat,
			log:    log.With().Str("user_id", user.ID).Str("conn_id", connID).Logger(),
		}
		metrics.ConnectionsOpened.Inc()
		s.log.Info().Msg("connection registered")

		defer func() {
			// single teardown path: also reached when an event handler
			// panics, in which case the connection is force-closed
			// rather than left in an unknown state
			if rec := recover(); rec != nil {
				s.log.Error().Any("panic", rec).Msg("event handler panicked; closing connection")
			}
			hub.Unregister(user.ID, connID)
			registry.Remove(user.ID, connID)
			conn.Close()
			metrics.ConnectionsClosed.Inc()
			hub.EmitToAll(evOnlineUser, registry.OnlineUserIDs())
			s.log.Info().Msg("connection closed")
		}()

		hub.EmitToAll(evOnlineUser, registry.OnlineUserIDs())

		// Events from one connection are handled strictly in arrival
		// order; other connections' loops run concurrently.
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ev, err := decodeEvent(raw)
			if err != nil {
				// leniency policy: malformed events are logged, never
				// surfaced to the client
				metrics.EventsDropped.WithLabelValues("malformed").Inc()
				s.log.Debug().Err(err).Msg("dropping malformed event")
				continue
			}
			metrics.EventsReceived.WithLabelValues(ev.eventName()).Inc()
			s.handle(r.Context(), ev)
		}
	}
}
