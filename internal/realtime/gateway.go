package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/relayworks/server/internal/auth"
	"github.com/relayworks/server/internal/metrics"
	"github.com/relayworks/server/internal/tenant"
)

// TokenVerifier is the slice of the token authority the gateway needs.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

// UserDirectory answers whether the account behind a token is still
// allowed to connect. Verified email is re-checked at handshake because a
// token can outlive the flag.
type UserDirectory interface {
	EmailVerified(ctx context.Context, userID string) (bool, error)
}

// RoomAuthorizer re-verifies, server-side, that a client-declared target
// belongs to the connection's tenant (and for private channels that the
// user may view it). Client IDs are never trusted alone; a target in
// another tenant reports ErrRoomNotFound rather than confirming existence.
type RoomAuthorizer interface {
	AuthorizeProject(ctx context.Context, scope tenant.Scope, projectID string) error
	AuthorizeChannel(ctx context.Context, scope tenant.Scope, channelID string) error
}

var ErrRoomNotFound = errors.New("room not found")

type GatewayConfig struct {
	HeartbeatWindow time.Duration
	WriteTimeout    time.Duration
	OriginPatterns  []string
}

func (c *GatewayConfig) withDefaults() GatewayConfig {
	cfg := *c
	if cfg.HeartbeatWindow <= 0 {
		cfg.HeartbeatWindow = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return cfg
}

// Gateway authenticates inbound websocket connections and runs their
// control loop. A connection is only admitted after its access token
// verifies and the account is confirmed; rejected sockets never join a
// room.
type Gateway struct {
	verifier  TokenVerifier
	users     UserDirectory
	rooms     RoomAuthorizer
	hub       *Hub
	publisher Publisher
	cfg       GatewayConfig
	logger    zerolog.Logger
}

func NewGateway(verifier TokenVerifier, users UserDirectory, rooms RoomAuthorizer, hub *Hub, publisher Publisher, cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	return &Gateway{
		verifier:  verifier,
		users:     users,
		rooms:     rooms,
		hub:       hub,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "gateway").Logger(),
	}
}

// bearerToken pulls the access token from the Authorization header, with a
// query-parameter fallback for browser websocket clients that cannot set
// headers.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, err := auth.TokenFromHeader(header); err == nil {
			return token
		}
	}
	return r.URL.Query().Get("token")
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	claims, err := g.verifier.VerifyAccess(token)
	if err != nil {
		metrics.RealtimeHandshakeRejected.WithLabelValues("token").Inc()
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	verified, err := g.users.EmailVerified(r.Context(), claims.UserID)
	if err != nil || !verified {
		metrics.RealtimeHandshakeRejected.WithLabelValues("account").Inc()
		http.Error(w, "account not verified", http.StatusUnauthorized)
		return
	}

	opts := &websocket.AcceptOptions{}
	if len(g.cfg.OriginPatterns) > 0 {
		opts.OriginPatterns = g.cfg.OriginPatterns
	}
	sock, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}

	scope := claims.Scope()
	conn := newConn(scope, sock)

	// Implicit rooms: every connection hears its own user events and its
	// tenant's events without an explicit join.
	g.hub.Join(conn, UserRoom(scope.UserID))
	g.hub.Join(conn, TenantRoom(scope.TenantID))

	g.logger.Debug().
		Str("user_id", scope.UserID).
		Str("tenant_id", scope.TenantID).
		Msg("connection admitted")

	g.publishPresence(r.Context(), scope, true)

	g.serve(r.Context(), conn)
}

// serve runs the connection until the peer goes away, the heartbeat window
// lapses, or the request context ends. Teardown releases every room
// membership implicitly.
func (g *Gateway) serve(ctx context.Context, conn *Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		g.hub.Remove(conn)
		conn.closeSend()
		_ = conn.sock.Close(websocket.StatusNormalClosure, "closed")

		// The request context is already cancelled by the time teardown
		// runs, so the offline announcement gets its own deadline.
		offCtx, cancelOff := context.WithTimeout(context.Background(), g.cfg.WriteTimeout)
		defer cancelOff()
		g.publishPresence(offCtx, conn.scope, false)
	}()

	go conn.writeLoop(ctx, g.cfg.WriteTimeout)
	go g.watchHeartbeat(ctx, conn, cancel)

	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn.sock, &cmd); err != nil {
			return
		}
		conn.lastSeen.Store(time.Now())
		g.handle(ctx, conn, cmd)
	}
}

// publishPresence announces the user's online state to everyone in the
// tenant. Presence is advisory, so a failed publish is logged and dropped
// rather than tearing down the connection.
func (g *Gateway) publishPresence(ctx context.Context, scope tenant.Scope, online bool) {
	payload := map[string]any{
		"user_id": scope.UserID,
		"online":  online,
	}
	if err := g.publisher.Publish(ctx, TenantRoom(scope.TenantID), EventUserStatus, payload); err != nil {
		g.logger.Debug().Err(err).Str("user_id", scope.UserID).Msg("presence publish failed")
	}
}

func (g *Gateway) watchHeartbeat(ctx context.Context, conn *Conn, cancel context.CancelFunc) {
	ticker := time.NewTicker(g.cfg.HeartbeatWindow / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(conn.lastSeen.Load()) > g.cfg.HeartbeatWindow {
				g.logger.Debug().Str("user_id", conn.scope.UserID).Msg("heartbeat window lapsed")
				cancel()
				return
			}
		}
	}
}

func (g *Gateway) handle(ctx context.Context, conn *Conn, cmd Command) {
	ack := Ack{ID: cmd.ID, Success: true}

	switch cmd.Action {
	case ActionHeartbeat:
		// lastSeen already advanced by the read loop.

	case ActionJoinProject:
		if err := g.rooms.AuthorizeProject(ctx, conn.scope, cmd.Target); err != nil {
			ack = failedAck(cmd.ID, err)
			break
		}
		g.hub.Join(conn, ProjectRoom(conn.scope.TenantID, cmd.Target))

	case ActionJoinChannel:
		if err := g.rooms.AuthorizeChannel(ctx, conn.scope, cmd.Target); err != nil {
			ack = failedAck(cmd.ID, err)
			break
		}
		g.hub.Join(conn, ChannelRoom(conn.scope.TenantID, cmd.Target))

	case ActionLeaveProject:
		g.hub.Leave(conn, ProjectRoom(conn.scope.TenantID, cmd.Target))

	case ActionLeaveChannel:
		g.hub.Leave(conn, ChannelRoom(conn.scope.TenantID, cmd.Target))

	case ActionTypingStart, ActionTypingStop:
		room := ChannelRoom(conn.scope.TenantID, cmd.Target)
		if !g.hub.InRoom(conn, room) {
			ack = Ack{ID: cmd.ID, Success: false, Error: "not joined to channel"}
			break
		}
		payload := map[string]any{
			"user_id":    conn.scope.UserID,
			"channel_id": cmd.Target,
			"typing":     cmd.Action == ActionTypingStart,
		}
		if err := g.publisher.Publish(ctx, room, EventUserTyping, payload); err != nil {
			ack = Ack{ID: cmd.ID, Success: false, Error: "publish failed"}
		}

	default:
		ack = Ack{ID: cmd.ID, Success: false, Error: "unknown action"}
	}

	writeCtx, cancelWrite := context.WithTimeout(ctx, g.cfg.WriteTimeout)
	defer cancelWrite()
	if err := wsjson.Write(writeCtx, conn.sock, ack); err != nil {
		g.logger.Debug().Err(err).Msg("ack write failed")
	}
}

func failedAck(id string, err error) Ack {
	if errors.Is(err, ErrRoomNotFound) {
		return Ack{ID: id, Success: false, Error: "not found"}
	}
	return Ack{ID: id, Success: false, Error: "join failed"}
}
