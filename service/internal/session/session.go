// Package session tracks each player's connection independently of the game.
// A dropped connection moves a player through Disconnected and a bounded
// series of Reconnecting attempts, ending either back at Connected or at
// ManualRejoin. The manager never touches game state; the room only asks it
// whether a player's actions are currently accepted.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrConnectionProtocol covers signals that make no sense for the
	// player's current state: unknown players, reconnecting a connected
	// player, rejoining outside ManualRejoin.
	ErrConnectionProtocol = errors.New("connection protocol error")
	// ErrRejoinFailed is returned when a manual rejoin attempt does not
	// reach the player.
	ErrRejoinFailed = errors.New("rejoin attempt failed")
)

// Status is a player's connection state.
type Status uint8

const (
	StatusConnected Status = iota
	StatusDisconnected
	StatusReconnecting
	StatusManualRejoin
)

var statusNames = [...]string{"connected", "disconnected", "reconnecting", "manual_rejoin"}

func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// State is a snapshot of one player's connection.
type State struct {
	Status   Status    `json:"status"`
	Attempt  int       `json:"attempt,omitempty"` // Reconnecting only, 1-based
	Deadline time.Time `json:"deadline,omitzero"` // Reconnecting only
}

// ReconnectFunc asks the transport whether the player can be reached again.
// It must honor ctx.
type ReconnectFunc func(ctx context.Context, player uuid.UUID) bool

// Options configure a Manager.
type Options struct {
	MaxAttempts    int           // 0 goes straight to ManualRejoin
	RetryDelay     time.Duration // wait before each attempt
	AttemptTimeout time.Duration // bound on each ReconnectFunc call

	Reconnect ReconnectFunc

	// OnStatus and OnResync fire for transitions made by the background
	// retry loop, never while the manager lock is held. Synchronous calls
	// report their outcome through return values instead.
	OnStatus func(player uuid.UUID, st State)
	OnResync func(player uuid.UUID)

	Log *logrus.Entry
}

type entry struct {
	state  State
	gen    uint64 // bumped on every transition that invalidates a retry
	cancel context.CancelFunc
}

// Manager owns the connection states of one room's players.
type Manager struct {
	opts Options

	mu      sync.Mutex
	players map[uuid.UUID]*entry
	wg      sync.WaitGroup
}

// NewManager returns a Manager. A nil Reconnect never succeeds.
func NewManager(opts Options) *Manager {
	if opts.Reconnect == nil {
		opts.Reconnect = func(context.Context, uuid.UUID) bool { return false }
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Second
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	if opts.Log == nil {
		opts.Log = logrus.WithField("component", "session")
	}
	return &Manager{opts: opts, players: make(map[uuid.UUID]*entry)}
}

// Join registers a connected player.
func (m *Manager) Join(player uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[player]; ok {
		return fmt.Errorf("%w: player %s already joined", ErrConnectionProtocol, player)
	}
	m.players[player] = &entry{state: State{Status: StatusConnected}}
	return nil
}

// Leave forgets a player, cancelling any retry in flight.
func (m *Manager) Leave(player uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.players[player]; ok {
		m.invalidate(e)
		delete(m.players, player)
	}
}

// invalidate cancels the retry task, if any. Assumes m.mu is held.
func (m *Manager) invalidate(e *entry) {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// State returns the player's connection state.
func (m *Manager) State(player uuid.UUID) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.players[player]
	if !ok {
		return State{}, false
	}
	return e.state, true
}

// IsConnected reports whether the player's actions are accepted.
func (m *Manager) IsConnected(player uuid.UUID) bool {
	st, ok := m.State(player)
	return ok && st.Status == StatusConnected
}

// Disconnected records a transport-detected disconnect and starts the retry
// loop. Repeated signals for a player already away are ignored.
func (m *Manager) Disconnected(player uuid.UUID) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.players[player]
	if !ok {
		return State{}, fmt.Errorf("%w: unknown player %s", ErrConnectionProtocol, player)
	}
	if e.state.Status != StatusConnected {
		return e.state, nil
	}
	m.invalidate(e)
	if m.opts.MaxAttempts == 0 {
		e.state = State{Status: StatusManualRejoin}
		m.opts.Log.WithField("player", player).Info("disconnected; manual rejoin required")
		return e.state, nil
	}
	e.state = State{Status: StatusDisconnected}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	m.wg.Add(1)
	go m.retry(ctx, player, e.gen)
	m.opts.Log.WithField("player", player).Info("disconnected; retrying")
	return e.state, nil
}

// Connected records a fresh connection from a player who was away. It
// supersedes any retry in flight. A player at ManualRejoin must use Rejoin.
func (m *Manager) Connected(player uuid.UUID) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.players[player]
	if !ok {
		return State{}, fmt.Errorf("%w: unknown player %s", ErrConnectionProtocol, player)
	}
	switch e.state.Status {
	case StatusConnected:
		return e.state, fmt.Errorf("%w: player %s is already connected", ErrConnectionProtocol, player)
	case StatusManualRejoin:
		return e.state, fmt.Errorf("%w: player %s must rejoin manually", ErrConnectionProtocol, player)
	}
	m.invalidate(e)
	e.state = State{Status: StatusConnected}
	return e.state, nil
}

// Rejoin is the explicit user action out of ManualRejoin: it resets the
// attempt counter and makes one synchronous attempt.
func (m *Manager) Rejoin(ctx context.Context, player uuid.UUID) (State, error) {
	m.mu.Lock()
	e, ok := m.players[player]
	if !ok {
		m.mu.Unlock()
		return State{}, fmt.Errorf("%w: unknown player %s", ErrConnectionProtocol, player)
	}
	if e.state.Status != StatusManualRejoin {
		st := e.state
		m.mu.Unlock()
		return st, fmt.Errorf("%w: player %s is %s, not awaiting rejoin", ErrConnectionProtocol, player, st.Status)
	}
	m.invalidate(e)
	gen := e.gen
	e.state = State{Status: StatusReconnecting, Attempt: 1, Deadline: time.Now().Add(m.opts.AttemptTimeout)}
	m.mu.Unlock()

	actx, cancel := context.WithTimeout(ctx, m.opts.AttemptTimeout)
	ok = m.opts.Reconnect(actx, player)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	e, live := m.players[player]
	if !live || e.gen != gen {
		// Left or superseded while the attempt ran.
		if live {
			return e.state, nil
		}
		return State{}, fmt.Errorf("%w: player %s left", ErrConnectionProtocol, player)
	}
	if ok {
		e.state = State{Status: StatusConnected}
		return e.state, nil
	}
	e.state = State{Status: StatusManualRejoin}
	return e.state, ErrRejoinFailed
}

// retry runs the bounded reconnect loop for one disconnect. It exits quietly
// as soon as its generation is stale.
func (m *Manager) retry(ctx context.Context, player uuid.UUID, gen uint64) {
	defer m.wg.Done()
	log := m.opts.Log.WithField("player", player)

	for attempt := 1; attempt <= m.opts.MaxAttempts; attempt++ {
		timer := time.NewTimer(m.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		st, live := m.transition(player, gen, State{
			Status:   StatusReconnecting,
			Attempt:  attempt,
			Deadline: time.Now().Add(m.opts.AttemptTimeout),
		})
		if !live {
			return
		}
		m.notify(player, st)

		actx, cancel := context.WithTimeout(ctx, m.opts.AttemptTimeout)
		ok := m.opts.Reconnect(actx, player)
		cancel()
		if ctx.Err() != nil {
			return
		}
		if ok {
			if st, live = m.transition(player, gen, State{Status: StatusConnected}); !live {
				return
			}
			log.WithField("attempt", attempt).Info("reconnected")
			m.notify(player, st)
			if m.opts.OnResync != nil {
				m.opts.OnResync(player)
			}
			return
		}
		log.WithField("attempt", attempt).Debug("reconnect attempt failed")
	}

	st, live := m.transition(player, gen, State{Status: StatusManualRejoin})
	if !live {
		return
	}
	log.Info("reconnect attempts exhausted; manual rejoin required")
	m.notify(player, st)
}

// transition sets the player's state if gen is still current.
func (m *Manager) transition(player uuid.UUID, gen uint64, st State) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.players[player]
	if !ok || e.gen != gen {
		return State{}, false
	}
	e.state = st
	if st.Status != StatusReconnecting && e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return st, true
}

func (m *Manager) notify(player uuid.UUID, st State) {
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(player, st)
	}
}

// Close cancels every retry and waits for the loops to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, e := range m.players {
		m.invalidate(e)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
