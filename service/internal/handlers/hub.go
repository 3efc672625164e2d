// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/linanqiu/acquire-game-sub002/service/internal/game"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	pollInterval = 50 * time.Millisecond
)

// client is one live websocket for a seated player.
type client struct {
	conn   *websocket.Conn
	send   chan game.GameEvent
	cancel context.CancelFunc
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		c.cancel()
	})
}

// writeLoop drains the send queue onto the socket.
func (c *client) writeLoop(ctx context.Context, log *logrus.Entry) {
	for ev := range c.send {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, c.conn, ev)
		cancel()
		if err != nil {
			log.WithError(err).Debug("write failed; dropping connection")
			c.cancel()
			return
		}
	}
}

// Hub tracks the live connection of every player, per room. Room callbacks
// run under the room lock, so the hub never calls back into a room.
type Hub struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]map[uuid.UUID]*client
	log   *logrus.Entry
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[uuid.UUID]*client),
		log:   logrus.WithField("component", "hub"),
	}
}

// register makes c the player's connection, closing any older one.
func (h *Hub) register(roomID, playerID uuid.UUID, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	players, ok := h.rooms[roomID]
	if !ok {
		players = make(map[uuid.UUID]*client)
		h.rooms[roomID] = players
	}
	if old, ok := players[playerID]; ok && old != c {
		old.close()
	}
	players[playerID] = c
}

// unregister removes c and reports whether the player is now without a
// connection. It is false only when a newer client has taken the seat; a
// client already dropped for falling behind counts as gone.
func (h *Hub) unregister(roomID, playerID uuid.UUID, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.close()
	players := h.rooms[roomID]
	cur, ok := players[playerID]
	if !ok {
		return true
	}
	if cur != c {
		return false
	}
	delete(players, playerID)
	if len(players) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}

// Connected reports whether the player has a live connection to the room.
func (h *Hub) Connected(roomID, playerID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.rooms[roomID][playerID]
	return ok
}

// Broadcast queues ev for every connection in the room.
func (h *Hub) Broadcast(roomID uuid.UUID, ev game.GameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for playerID, c := range h.rooms[roomID] {
		h.enqueue(roomID, playerID, c, ev)
	}
}

// Send queues ev for one player's connection, if any.
func (h *Hub) Send(roomID, playerID uuid.UUID, ev game.GameEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.rooms[roomID][playerID]; ok {
		h.enqueue(roomID, playerID, c, ev)
	}
}

// enqueue assumes h.mu is held. A client too slow to keep up is dropped.
func (h *Hub) enqueue(roomID, playerID uuid.UUID, c *client, ev game.GameEvent) {
	select {
	case c.send <- ev:
	default:
		h.log.WithFields(logrus.Fields{"room": roomID, "player": playerID}).Warn("send queue full; closing connection")
		delete(h.rooms[roomID], playerID)
		c.close()
	}
}

// ReconnectFunc reports a player as reachable once a live connection for
// them exists in the room, waiting until the attempt's deadline.
func (h *Hub) ReconnectFunc(roomID uuid.UUID) func(ctx context.Context, playerID uuid.UUID) bool {
	return func(ctx context.Context, playerID uuid.UUID) bool {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			if h.Connected(roomID, playerID) {
				return true
			}
			select {
			case <-ctx.Done():
				return false
			case <-ticker.C:
			}
		}
	}
}

// CloseAll drops every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID, players := range h.rooms {
		for _, c := range players {
			c.close()
		}
		delete(h.rooms, roomID)
	}
}
