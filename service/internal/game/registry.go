// internal/game/registry.go
package game

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/linanqiu/acquire-game-sub002/service/internal/models"
)

// RoomFactory builds a room for an id seen for the first time, named and
// locked by whoever opens it. It must not call back into the registry.
type RoomFactory func(id uuid.UUID, name, password string) (*Room, error)

// RoomSummary is a lobby listing entry.
type RoomSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Players  int       `json:"players"`
	Seats    int       `json:"seats"`
	Started  bool      `json:"started"`
	GameOver bool      `json:"gameOver"`
	Locked   bool      `json:"locked"`
}

// Registry owns the live rooms. A room is created on first join and torn
// down once its game is over and no human remains, or when it aborts. The
// registry lock is never held while a room lock is taken.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]*Room
	newRoom RoomFactory
	log     *logrus.Entry
}

// NewRegistry returns an empty registry.
func NewRegistry(factory RoomFactory) *Registry {
	return &Registry{
		rooms:   make(map[uuid.UUID]*Room),
		newRoom: factory,
		log:     logrus.WithField("component", "registry"),
	}
}

// Get returns a live room.
func (reg *Registry) Get(id uuid.UUID) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// GetOrCreate returns the room for id, building it if needed. name and
// password only apply to a new room.
func (reg *Registry) GetOrCreate(id uuid.UUID, name, password string) (*Room, bool, error) {
	if r, ok := reg.Get(id); ok {
		return r, false, nil
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[id]; ok {
		return r, false, nil
	}
	r, err := reg.newRoom(id, name, password)
	if err != nil {
		return nil, false, err
	}
	prevAbort := r.OnAbort
	r.OnAbort = func(roomID uuid.UUID) {
		if prevAbort != nil {
			prevAbort(roomID)
		}
		// Called under the room lock; Remove closes the room.
		go reg.Remove(roomID)
	}
	reg.rooms[r.ID] = r
	reg.log.WithField("room", r.ID).Info("room created")
	return r, true, nil
}

// Join seats user in the room, creating it on first join. A room created
// for a join that fails is dropped again.
func (reg *Registry) Join(roomID uuid.UUID, user models.User, name, password string) (*Room, *models.Player, error) {
	r, created, err := reg.GetOrCreate(roomID, name, password)
	if err != nil {
		return nil, nil, err
	}
	p, err := r.Join(user, password)
	if err != nil {
		if created {
			reg.Remove(r.ID)
		}
		return nil, nil, err
	}
	return r, p, nil
}

// Leave gives up a player's seat and tears the room down when it is done.
func (reg *Registry) Leave(roomID, playerID uuid.UUID) {
	r, ok := reg.Get(roomID)
	if !ok {
		return
	}
	if r.Leave(playerID) {
		reg.Remove(roomID)
	}
}

// Disconnect forwards a dropped transport and tears the room down when it is done.
func (reg *Registry) Disconnect(roomID, playerID uuid.UUID) {
	r, ok := reg.Get(roomID)
	if !ok {
		return
	}
	if r.HandleDisconnect(playerID) {
		reg.Remove(roomID)
	}
}

// Remove drops a room and stops its timers.
func (reg *Registry) Remove(id uuid.UUID) {
	reg.mu.Lock()
	r, ok := reg.rooms[id]
	delete(reg.rooms, id)
	reg.mu.Unlock()
	if !ok {
		return
	}
	r.Close()
	reg.log.WithField("room", id).Info("room removed")
}

// Len returns the number of live rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Rooms lists the live rooms ordered by id.
func (reg *Registry) Rooms() []RoomSummary {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		r.Mu.Lock()
		out = append(out, RoomSummary{
			ID:       r.ID,
			Name:     r.Name,
			Players:  len(r.Players),
			Seats:    r.HouseRules.seatLimit(),
			Started:  r.Started,
			GameOver: r.GameOver,
			Locked:   r.passwordHash != "",
		})
		r.Mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// CloseAll removes every room.
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	rooms := reg.rooms
	reg.rooms = make(map[uuid.UUID]*Room)
	reg.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
