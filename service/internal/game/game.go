// internal/game/game.go
package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	engine "github.com/linanqiu/acquire-game-sub002/engine"
	"github.com/linanqiu/acquire-game-sub002/engine/agent"
	"github.com/linanqiu/acquire-game-sub002/service/internal/auth"
	"github.com/linanqiu/acquire-game-sub002/service/internal/cache"
	"github.com/linanqiu/acquire-game-sub002/service/internal/database"
	"github.com/linanqiu/acquire-game-sub002/service/internal/models"
	"github.com/linanqiu/acquire-game-sub002/service/internal/session"
)

var (
	ErrRoomAborted        = errors.New("room aborted")
	ErrRoomFull           = errors.New("room is full")
	ErrGameNotStarted     = errors.New("game has not started")
	ErrGameStarted        = errors.New("game already started")
	ErrNotSeated          = errors.New("player is not seated in this room")
	ErrPlayerNotConnected = errors.New("player is not connected")
	ErrUnknownAction      = errors.New("unknown action type")
)

// OnGameEndFunc is called once when a game reaches GAME_OVER, with the
// winners (ties preserved) and every player's final total.
type OnGameEndFunc func(roomID uuid.UUID, winners []uuid.UUID, totals map[uuid.UUID]int)

// Options configure a new Room.
type Options struct {
	Name       string
	HouseRules HouseRules
	Password   string

	// Connection retry policy for the room's session manager.
	ReconnectMaxAttempts    int
	ReconnectDelay          time.Duration
	ReconnectAttemptTimeout time.Duration
	// Reconnect asks the transport whether a player can be reached again.
	Reconnect session.ReconnectFunc
}

// Room is one table: a seat list, the authoritative engine state and the
// per-player connection states. Every mutation happens under Mu.
type Room struct {
	ID     uuid.UUID // stable for the room's lifetime
	GameID uuid.UUID // assigned when the game starts
	Name   string

	HouseRules   HouseRules
	passwordHash string

	Players []*models.Player

	Engine         engine.GameState
	PlayerToEngine map[uuid.UUID]uint8
	EngineToPlayer [engine.MaxPlayers]uuid.UUID
	bots           map[uint8]*agent.AgentState

	// DecisionID increments on every accepted action. A turn timer only
	// fires for the decision it was armed for.
	DecisionID   int
	TurnDuration time.Duration
	turnTimer    *time.Timer
	actionIndex  int
	applied      int // engine actions accepted

	Started  bool
	GameOver bool
	Aborted  bool
	closed   bool
	left     map[uuid.UUID]bool

	Sessions *session.Manager
	Mu       sync.Mutex

	BroadcastFn         func(ev GameEvent)
	BroadcastToPlayerFn func(playerID uuid.UUID, ev GameEvent)
	OnGameEnd           OnGameEndFunc
	OnAbort             func(roomID uuid.UUID)

	log *logrus.Entry
}

// NewRoom creates an empty lobby.
func NewRoom(id uuid.UUID, opts Options) (*Room, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	r := &Room{
		ID:             id,
		Name:           opts.Name,
		HouseRules:     opts.HouseRules,
		PlayerToEngine: make(map[uuid.UUID]uint8),
		bots:           make(map[uint8]*agent.AgentState),
		left:           make(map[uuid.UUID]bool),
		log:            logrus.WithField("room", id),
	}
	if r.HouseRules.TurnTimerSec > 0 {
		r.TurnDuration = time.Duration(r.HouseRules.TurnTimerSec) * time.Second
	}
	if opts.Password != "" {
		hash, err := auth.HashPassword(opts.Password)
		if err != nil {
			return nil, fmt.Errorf("hash room password: %w", err)
		}
		r.passwordHash = hash
	}
	r.Sessions = session.NewManager(session.Options{
		MaxAttempts:    opts.ReconnectMaxAttempts,
		RetryDelay:     opts.ReconnectDelay,
		AttemptTimeout: opts.ReconnectAttemptTimeout,
		Reconnect:      opts.Reconnect,
		OnStatus:       r.onSessionStatus,
		OnResync:       r.onSessionResync,
		Log:            r.log.WithField("component", "session"),
	})
	return r, nil
}

// Join seats a human in the lobby. Joining again with the same user returns
// the existing seat.
func (r *Room) Join(user models.User, password string) (*models.Player, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Aborted {
		return nil, ErrRoomAborted
	}
	if p := r.getPlayerByID(user.ID); p != nil && !r.left[user.ID] {
		return p, nil
	}
	if err := auth.CheckPassword(r.passwordHash, password); err != nil {
		return nil, err
	}
	if r.Started {
		return nil, ErrGameStarted
	}
	if len(r.Players) >= r.HouseRules.seatLimit() {
		return nil, ErrRoomFull
	}

	u := user
	p := &models.Player{ID: user.ID, User: &u, Connected: true}
	if err := r.Sessions.Join(p.ID); err != nil {
		return nil, err
	}
	r.Players = append(r.Players, p)
	r.log.WithField("player", p.ID).Infof("%s joined", p.Name())
	r.logAction(p.ID, string(EventPlayerJoined), map[string]interface{}{"username": p.Name()})
	r.fireEvent(GameEvent{Type: EventPlayerJoined, User: eventUser(p)})
	r.broadcastSyncStateToAll()
	return p, nil
}

// AddBot seats a bot with the named strategy.
func (r *Room) AddBot(strategy string) (*models.Player, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.addBot(strategy)
}

// addBot assumes lock is held by caller.
func (r *Room) addBot(strategy string) (*models.Player, error) {
	if r.Aborted {
		return nil, ErrRoomAborted
	}
	if r.Started {
		return nil, ErrGameStarted
	}
	if len(r.Players) >= r.HouseRules.seatLimit() {
		return nil, ErrRoomFull
	}
	p := &models.Player{
		ID:        uuid.New(),
		Connected: true,
		Bot:       true,
		Strategy:  agent.ParseStrategy(strategy).String(),
	}
	r.Players = append(r.Players, p)
	r.log.WithFields(logrus.Fields{"player": p.ID, "strategy": p.Strategy}).Info("bot added")
	r.logAction(uuid.Nil, "bot_added", map[string]interface{}{"playerId": p.ID, "strategy": p.Strategy})
	r.fireEvent(GameEvent{Type: EventPlayerJoined, User: eventUser(p), Payload: map[string]interface{}{"bot": true, "strategy": p.Strategy}})
	r.broadcastSyncStateToAll()
	return p, nil
}

// Start deals the game. Only a seated human may start it.
func (r *Room) Start(requester uuid.UUID) error {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.start(requester)
}

// start assumes lock is held by caller.
func (r *Room) start(requester uuid.UUID) error {
	if r.Aborted {
		return ErrRoomAborted
	}
	if r.Started {
		return ErrGameStarted
	}
	if p := r.getPlayerByID(requester); p == nil || p.Bot {
		return ErrNotSeated
	}
	if len(r.Players) < engine.MinPlayers {
		return fmt.Errorf("%w: need at least %d players", engine.ErrIllegalMove, engine.MinPlayers)
	}

	seed := r.HouseRules.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	g := engine.NewGame(seed, r.HouseRules.engineRules())
	for _, p := range r.Players {
		idx, err := g.AddPlayer(p.Bot)
		if err != nil {
			return err
		}
		r.PlayerToEngine[p.ID] = idx
		r.EngineToPlayer[idx] = p.ID
		if p.Bot {
			bot := agent.NewAgentState(idx, agent.ParseStrategy(p.Strategy))
			r.bots[idx] = &bot
		}
	}
	if err := g.Start(); err != nil {
		return err
	}

	r.Engine = g
	r.GameID = uuid.New()
	r.Started = true
	r.log = r.log.WithField("game", r.GameID)
	r.log.WithFields(logrus.Fields{"seed": seed, "players": len(r.Players)}).Info("game started")

	r.persistInitialGameState()
	r.logAction(requester, string(EventGameStart), map[string]interface{}{"seed": seed})
	r.fireEvent(GameEvent{Type: EventGameStart, Payload: map[string]interface{}{
		"gameId":      r.GameID,
		"seed":        seed,
		"firstPlayer": r.EngineToPlayer[r.Engine.CurrentPlayer],
	}})
	r.afterTransition()
	return nil
}

// Leave gives up a seat. In the lobby the seat is removed; during a game the
// seat is abandoned and plays fallback actions. It reports whether the room is
// now empty of humans and finished, so the registry can drop it.
func (r *Room) Leave(playerID uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()
	return r.leave(playerID)
}

// leave assumes lock is held by caller.
func (r *Room) leave(playerID uuid.UUID) bool {
	p := r.getPlayerByID(playerID)
	if p == nil || r.left[playerID] {
		return r.teardownReady()
	}
	r.Sessions.Leave(playerID)
	p.Connected = false
	if !r.Started {
		for i, q := range r.Players {
			if q.ID == playerID {
				r.Players = append(r.Players[:i], r.Players[i+1:]...)
				break
			}
		}
	} else {
		r.left[playerID] = true
	}
	r.log.WithField("player", playerID).Info("player left")
	r.logAction(playerID, string(EventPlayerLeft), nil)
	r.fireEvent(GameEvent{Type: EventPlayerLeft, User: eventUser(p)})
	if r.Started && !r.GameOver && !r.Aborted && r.EngineToPlayer[r.Engine.ActingPlayer()] == playerID {
		r.afterTransition()
	} else {
		r.broadcastSyncStateToAll()
	}
	return r.teardownReady()
}

// teardownReady reports whether no human remains seated and the room can
// never make progress again. Assumes lock is held by caller.
func (r *Room) teardownReady() bool {
	for _, p := range r.Players {
		if !p.Bot && !r.left[p.ID] {
			return false
		}
	}
	return !r.Started || r.GameOver || r.Aborted
}

// Close stops timers and retry loops. The room is unusable afterwards.
func (r *Room) Close() {
	r.Mu.Lock()
	r.closed = true
	r.stopTurnTimer()
	r.Mu.Unlock()
	r.Sessions.Close()
	if cache.Rdb != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.DeleteRoomSnapshot(ctx, r.ID); err != nil {
			r.log.WithError(err).Warn("failed to drop cached snapshot")
		}
	}
}

// CheckPassword reports whether password opens the room.
func (r *Room) CheckPassword(password string) error {
	return auth.CheckPassword(r.passwordHash, password)
}

// endGame publishes results once. Assumes lock is held by caller.
func (r *Room) endGame() {
	if r.GameOver {
		return
	}
	r.GameOver = true
	r.stopTurnTimer()

	results, ok := r.Engine.FinalResults()
	if !ok {
		r.abort(fmt.Errorf("%w: game over without results", engine.ErrInvariantViolation))
		return
	}
	standings := make([]map[string]interface{}, 0, len(results))
	totals := make(map[uuid.UUID]int, len(results))
	var winners []uuid.UUID
	rows := make([]database.ResultRow, 0, len(results))
	for _, res := range results {
		pid := r.EngineToPlayer[res.Player]
		totals[pid] = res.Total
		if res.Winner {
			winners = append(winners, pid)
		}
		name := ""
		if p := r.getPlayerByID(pid); p != nil {
			name = p.Name()
		}
		standings = append(standings, resultPayload(pid, name, res))
		rows = append(rows, database.ResultRow{PlayerID: pid, Username: name, Rank: int(res.Rank), Total: res.Total, Winner: res.Winner})
	}

	r.log.WithFields(logrus.Fields{"winners": winners, "totals": totals}).Info("game ended")
	r.logAction(uuid.Nil, string(EventGameEnd), map[string]interface{}{"standings": standings})
	r.persistFinalGameState(database.StatusCompleted, rows)
	r.fireEvent(GameEvent{Type: EventGameEnd, Payload: map[string]interface{}{
		"standings": standings,
		"winners":   winners,
	}})
	r.broadcastSyncStateToAll()

	if r.OnGameEnd != nil {
		r.OnGameEnd(r.ID, winners, totals)
	}
}

// abort stops the room after an invariant violation. Assumes lock is held
// by caller.
func (r *Room) abort(cause error) {
	if r.Aborted {
		return
	}
	r.Aborted = true
	r.GameOver = true
	r.stopTurnTimer()
	r.log.WithError(cause).Error("aborting room")
	r.logAction(uuid.Nil, string(EventGameAborted), map[string]interface{}{"reason": cause.Error()})
	if r.Started {
		r.persistFinalGameState(database.StatusAborted, nil)
	}
	r.fireEvent(GameEvent{Type: EventGameAborted, Payload: map[string]interface{}{"reason": cause.Error()}})
	if r.OnAbort != nil {
		r.OnAbort(r.ID)
	}
}

// fireEvent broadcasts to every connected player. Assumes lock is held by caller.
func (r *Room) fireEvent(ev GameEvent) {
	if r.BroadcastFn != nil {
		r.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends to one player if they are connected. Assumes lock
// is held by caller.
func (r *Room) fireEventToPlayer(playerID uuid.UUID, ev GameEvent) {
	if r.BroadcastToPlayerFn == nil {
		return
	}
	if p := r.getPlayerByID(playerID); p == nil || p.Bot || r.left[playerID] {
		return
	}
	r.BroadcastToPlayerFn(playerID, ev)
}

// persistInitialGameState records the dealt state. Assumes lock is held by caller.
func (r *Room) persistInitialGameState() {
	if database.DB == nil {
		return
	}
	snap := r.publicView()
	gameID, roomID, seed := r.GameID, r.ID, r.Engine.Seed
	go database.UpsertInitialGameState(context.Background(), gameID, roomID, seed, snap)
}

// persistFinalGameState records the final state and standings. Assumes lock
// is held by caller.
func (r *Room) persistFinalGameState(status string, rows []database.ResultRow) {
	if database.DB == nil {
		return
	}
	snap := r.publicView()
	gameID := r.GameID
	go database.StoreFinalGameStateInDB(context.Background(), gameID, status, snap, rows)
}

// cacheSnapshot refreshes the room's snapshot in Redis. Assumes lock is held
// by caller.
func (r *Room) cacheSnapshot() {
	if cache.Rdb == nil {
		return
	}
	snap := r.publicView()
	go func(roomID uuid.UUID) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.SaveRoomSnapshot(ctx, roomID, snap); err != nil {
			r.log.WithError(err).Warn("failed to cache room snapshot")
		}
	}(r.ID)
}

// logAction appends to the game history in Redis. Assumes lock is held by caller.
func (r *Room) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	r.actionIndex++
	if cache.Rdb == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	gameID := r.GameID
	if gameID == uuid.Nil {
		gameID = r.ID
	}
	record := cache.GameActionRecord{
		GameID:        gameID,
		ActionIndex:   r.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	go func(rec cache.GameActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishGameAction(ctx, rec); err != nil {
			r.log.WithError(err).Errorf("failed publishing action %d (%s)", rec.ActionIndex, rec.ActionType)
		}
	}(record)
}

func (r *Room) getPlayerByID(playerID uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// seatOf returns the engine index of a seated, started player.
func (r *Room) seatOf(playerID uuid.UUID) (uint8, bool) {
	idx, ok := r.PlayerToEngine[playerID]
	return idx, ok && r.Started
}

func eventUser(p *models.Player) *EventUser {
	return &EventUser{ID: p.ID, Username: p.Name()}
}

func resultPayload(pid uuid.UUID, name string, res engine.PlayerResult) map[string]interface{} {
	out := map[string]interface{}{
		"playerId":   pid,
		"username":   name,
		"cash":       res.Cash,
		"stockValue": res.StockValue,
		"bonus":      res.Bonus,
		"total":      res.Total,
		"rank":       res.Rank,
		"winner":     res.Winner,
	}
	if worthless := chainCounts(res.WorthlessShares); len(worthless) > 0 {
		out["worthlessShares"] = worthless
	}
	return out
}
