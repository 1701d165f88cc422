package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"qrcall/internal/calls/models"
	authmw "qrcall/pkg/platform/middleware/auth"
	"qrcall/pkg/platform/sentinel"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	lookupTimeout  = 5 * time.Second
)

// CallLookup is used to authorize joins to caller rooms.
type CallLookup interface {
	FindByID(ctx context.Context, callID string) (*models.Call, error)
}

// Server upgrades HTTP requests to websockets and handles join-user.
type Server struct {
	hub       *Hub
	validator authmw.JWTValidator
	calls     CallLookup
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

type ServerOption func(*Server)

func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAllowedOrigins restricts browser origins. An empty list allows any origin.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.upgrader.CheckOrigin = checkOrigin(origins)
	}
}

func NewServer(hub *Hub, validator authmw.JWTValidator, calls CallLookup, opts ...ServerOption) *Server {
	s := &Server{
		hub:       hub,
		validator: validator,
		calls:     calls,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(nil),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		return slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var claims *authmw.JWTClaims
	if token := requestToken(r); token != "" {
		c, err := s.validator.ValidateToken(token)
		if err != nil {
			s.logger.WarnContext(r.Context(), "realtime upgrade rejected - invalid token", "error", err)
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		claims = c
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := newClient(uuid.NewString(), defaultSendBuffer)
	s.hub.register(c)
	s.logger.Info("realtime client connected", "socket_id", c.id)

	go s.writePump(conn, c)
	s.readPump(conn, c, claims)
}

func requestToken(r *http.Request) string {
	if token, ok := authmw.BearerToken(r); ok {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// inbound is a client frame. Data carries the identity for join-user.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) readPump(conn *websocket.Conn, c *client, claims *authmw.JWTClaims) {
	defer func() {
		s.hub.unregister(c)
		_ = conn.Close()
		s.logger.Info("realtime client disconnected", "socket_id", c.id)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("realtime read failed", "socket_id", c.id, "error", err)
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reply(c, NewEvent(EventError, map[string]string{"message": "malformed message"}))
			continue
		}
		switch msg.Event {
		case EventJoinUser:
			s.handleJoin(c, claims, msg.Data)
		default:
			s.reply(c, NewEvent(EventError, map[string]string{"message": "unknown event: " + msg.Event}))
		}
	}
}

func (s *Server) handleJoin(c *client, claims *authmw.JWTClaims, data json.RawMessage) {
	identity := parseIdentity(data)
	if identity == "" {
		s.reply(c, NewEvent(EventError, map[string]string{"message": "identity is required"}))
		return
	}
	if err := s.authorize(claims, identity); err != nil {
		s.logger.Warn("realtime join denied", "socket_id", c.id, "room", identity, "error", err)
		s.reply(c, NewEvent(EventError, map[string]string{"message": "not allowed to join " + identity}))
		return
	}
	s.hub.join(c, identity)
	s.logger.Info("realtime client joined room", "socket_id", c.id, "room", identity)
	s.reply(c, NewEvent(EventJoined, map[string]string{"userId": identity, "socketId": c.id}))
}

// parseIdentity accepts either a bare JSON string or {"userId": "..."}.
func parseIdentity(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return strings.TrimSpace(obj.UserID)
	}
	return ""
}

var errJoinDenied = errors.New("join denied")

// authorize lets owners join their own room and callers join the room of
// the live call their token was issued for.
func (s *Server) authorize(claims *authmw.JWTClaims, identity string) error {
	if callID, ok := models.CallIDFromCallerRoom(identity); ok {
		if !claims.IsCaller() || claims.CallID != callID {
			return errJoinDenied
		}
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()
		call, err := s.calls.FindByID(ctx, callID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return errJoinDenied
			}
			return err
		}
		if call.Status.IsTerminal() {
			return errJoinDenied
		}
		return nil
	}
	if claims.IsOwner() && claims.UserID == identity {
		return nil
	}
	return errJoinDenied
}

func (s *Server) reply(c *client, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (s *Server) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
