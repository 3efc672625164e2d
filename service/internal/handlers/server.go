// Package handlers exposes rooms over HTTP and websockets.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/linanqiu/acquire-game-sub002/service/internal/auth"
	"github.com/linanqiu/acquire-game-sub002/service/internal/config"
	"github.com/linanqiu/acquire-game-sub002/service/internal/game"
	"github.com/linanqiu/acquire-game-sub002/service/internal/models"
	"github.com/linanqiu/acquire-game-sub002/service/internal/session"
)

// Server wires the room registry to HTTP.
type Server struct {
	cfg      *config.Config
	signer   *auth.Signer
	hub      *Hub
	registry *game.Registry
	log      *logrus.Entry
}

// NewServer builds a server whose rooms follow cfg.
func NewServer(cfg *config.Config, signer *auth.Signer) *Server {
	s := &Server{
		cfg:    cfg,
		signer: signer,
		hub:    NewHub(),
		log:    logrus.WithField("component", "http"),
	}
	s.registry = game.NewRegistry(s.newRoom)
	return s
}

// Registry returns the live rooms.
func (s *Server) Registry() *game.Registry { return s.registry }

// Close drops every connection and room.
func (s *Server) Close() {
	s.hub.CloseAll()
	s.registry.CloseAll()
}

func (s *Server) newRoom(id uuid.UUID, name, password string) (*game.Room, error) {
	rules := game.DefaultHouseRules()
	rules.TurnTimerSec = int(s.cfg.TurnTimer / time.Second)
	rules.Seed = s.cfg.GameSeed

	r, err := game.NewRoom(id, game.Options{
		Name:                    name,
		Password:                password,
		HouseRules:              rules,
		ReconnectMaxAttempts:    s.cfg.ReconnectMaxAttempts,
		ReconnectDelay:          s.cfg.ReconnectDelay,
		ReconnectAttemptTimeout: s.cfg.ReconnectAttemptTimeout,
		Reconnect:               s.hub.ReconnectFunc(id),
	})
	if err != nil {
		return nil, err
	}
	r.BroadcastFn = func(ev game.GameEvent) { s.hub.Broadcast(id, ev) }
	r.BroadcastToPlayerFn = func(playerID uuid.UUID, ev game.GameEvent) { s.hub.Send(id, playerID, ev) }
	r.OnGameEnd = func(roomID uuid.UUID, winners []uuid.UUID, totals map[uuid.UUID]int) {
		s.log.WithFields(logrus.Fields{"room": roomID, "winners": winners}).Info("game finished")
	}
	return r, nil
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("POST /auth/guest", s.handleGuest)
	mux.HandleFunc("GET /ws/{roomID}", s.handleWebsocket)
	return s.corsMiddleware(mux)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.cfg.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) || strings.HasSuffix(origin, "://"+o) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "rooms": s.registry.Len()})
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Rooms())
}

// handleGuest issues a token for a fresh guest identity.
func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Username) > 32 {
		http.Error(w, "username must be 1-32 characters", http.StatusBadRequest)
		return
	}
	user := models.User{ID: uuid.New(), Username: req.Username}
	token, err := s.signer.IssueToken(user)
	if err != nil {
		s.log.WithError(err).Error("failed to issue token")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

func (s *Server) authenticate(r *http.Request) (models.User, error) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return s.signer.ParseToken(raw)
}

// handleWebsocket seats the caller in a room and pumps messages until the
// socket closes.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.PathValue("roomID"))
	if err != nil {
		http.Error(w, "invalid room id", http.StatusBadRequest)
		return
	}
	user, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.AllowOrigins})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusGoingAway, "server closing websocket")
	log := s.log.WithFields(logrus.Fields{"room": roomID, "player": user.ID})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	c := &client{conn: conn, send: make(chan game.GameEvent, sendBuffer), cancel: cancel}

	// Register before joining so the join's own events reach this socket.
	s.hub.register(roomID, user.ID, c)
	go c.writeLoop(ctx, log)

	q := r.URL.Query()
	room, _, err := s.registry.Join(roomID, user, q.Get("name"), q.Get("password"))
	if err != nil {
		s.hub.unregister(roomID, user.ID, c)
		reason := game.RejectionCode(err)
		log.WithError(err).Info("join refused")
		wctx, wcancel := context.WithTimeout(context.Background(), writeTimeout)
		_ = wsjson.Write(wctx, conn, game.GameEvent{
			Type:    game.EventPrivateActionRejected,
			Payload: map[string]interface{}{"actionType": "join", "code": reason, "message": err.Error()},
		})
		wcancel()
		conn.Close(websocket.StatusPolicyViolation, reason)
		return
	}
	if err := room.HandleReconnect(user.ID); err != nil && !errors.Is(err, session.ErrConnectionProtocol) {
		log.WithError(err).Warn("reconnect signal failed")
	}
	log.Info("websocket connected")

	left := s.readLoop(ctx, conn, room, user.ID, log)

	if s.hub.unregister(roomID, user.ID, c) && !left {
		s.registry.Disconnect(roomID, user.ID)
	}
	log.Info("websocket closed")
}

// readLoop routes inbound actions to the room. It reports whether the
// player left explicitly.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, room *game.Room, playerID uuid.UUID, log *logrus.Entry) bool {
	for {
		var msg models.GameAction
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.WithError(err).Debug("read failed")
			}
			return false
		}
		if msg.ActionType == game.ActionLeave {
			s.registry.Leave(room.ID, playerID)
			conn.Close(websocket.StatusNormalClosure, "left")
			return true
		}
		if err := room.HandlePlayerAction(ctx, playerID, msg); err != nil {
			log.WithError(err).WithField("action", msg.ActionType).Debug("action rejected")
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to write response")
	}
}
