// internal/database/games.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Game status values stored in games.status.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusAborted    = "aborted"
)

// GameRecord is one stored game.
type GameRecord struct {
	ID           uuid.UUID
	RoomID       uuid.UUID
	Seed         uint64
	Status       string
	InitialState json.RawMessage
	FinalState   json.RawMessage
	CreatedAt    time.Time
	EndedAt      *time.Time
	Results      []ResultRow
}

// ResultRow is one player's final standing.
type ResultRow struct {
	PlayerID uuid.UUID `json:"playerId"`
	Username string    `json:"username"`
	Rank     int       `json:"rank"`
	Total    int       `json:"total"`
	Winner   bool      `json:"winner"`
}

// UpsertInitialGameState records a game at its start with the dealt state.
func (s *Store) UpsertInitialGameState(ctx context.Context, gameID, roomID uuid.UUID, seed uint64, state interface{}) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal initial state: %w", err)
	}
	q := `INSERT INTO games (id, room_id, seed, status, initial_state, created_at)
		VALUES (` + s.placeholders(6) + `)
		ON CONFLICT (id) DO UPDATE SET initial_state = excluded.initial_state, status = excluded.status`
	// database/sql rejects uint64 values with the high bit set.
	_, err = s.db.ExecContext(ctx, q, gameID.String(), roomID.String(), int64(seed), StatusInProgress, string(data), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", gameID, err)
	}
	return nil
}

// StoreFinalGameState marks a game finished and writes its final snapshot and
// standings in one transaction.
func (s *Store) StoreFinalGameState(ctx context.Context, gameID uuid.UUID, status string, state interface{}, results []ResultRow) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal final state: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin final state tx: %w", err)
	}
	q := fmt.Sprintf("UPDATE games SET status = %s, final_state = %s, ended_at = %s WHERE id = %s",
		s.bind(1), s.bind(2), s.bind(3), s.bind(4))
	res, err := tx.ExecContext(ctx, q, status, string(data), time.Now().UnixMilli(), gameID.String())
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update game %s: %w", gameID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	ins := "INSERT INTO game_results (game_id, player_id, username, standing, total, winner) VALUES (" + s.placeholders(6) + ")"
	for _, r := range results {
		if _, err := tx.ExecContext(ctx, ins, gameID.String(), r.PlayerID.String(), r.Username, r.Rank, r.Total, r.Winner); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert result for %s: %w", r.PlayerID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit final state: %w", err)
	}
	return nil
}

// LoadGame returns a stored game with its results.
func (s *Store) LoadGame(ctx context.Context, gameID uuid.UUID) (GameRecord, error) {
	var (
		rec             GameRecord
		id, roomID      string
		seed, createdAt int64
		initial, final  sql.NullString
		endedAt         sql.NullInt64
	)
	q := "SELECT id, room_id, seed, status, initial_state, final_state, created_at, ended_at FROM games WHERE id = " + s.bind(1)
	err := s.db.QueryRowContext(ctx, q, gameID.String()).Scan(&id, &roomID, &seed, &rec.Status, &initial, &final, &createdAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	if err != nil {
		return rec, fmt.Errorf("load game %s: %w", gameID, err)
	}
	rec.ID = uuid.MustParse(id)
	rec.RoomID = uuid.MustParse(roomID)
	rec.Seed = uint64(seed)
	rec.CreatedAt = time.UnixMilli(createdAt)
	if initial.Valid {
		rec.InitialState = json.RawMessage(initial.String)
	}
	if final.Valid {
		rec.FinalState = json.RawMessage(final.String)
	}
	if endedAt.Valid {
		t := time.UnixMilli(endedAt.Int64)
		rec.EndedAt = &t
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT player_id, username, standing, total, winner FROM game_results WHERE game_id = "+s.bind(1)+" ORDER BY standing, username",
		gameID.String())
	if err != nil {
		return rec, fmt.Errorf("load results %s: %w", gameID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var r ResultRow
		var pid string
		if err := rows.Scan(&pid, &r.Username, &r.Rank, &r.Total, &r.Winner); err != nil {
			return rec, fmt.Errorf("scan result: %w", err)
		}
		r.PlayerID = uuid.MustParse(pid)
		rec.Results = append(rec.Results, r)
	}
	return rec, rows.Err()
}

// UpsertInitialGameState writes through DB with a bounded timeout, logging
// failures. It is a no-op when persistence is disabled.
func UpsertInitialGameState(ctx context.Context, gameID, roomID uuid.UUID, seed uint64, state interface{}) {
	if DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := DB.UpsertInitialGameState(ctx, gameID, roomID, seed, state); err != nil {
		logrus.WithError(err).WithField("game", gameID).Error("failed to persist initial game state")
	}
}

// StoreFinalGameStateInDB writes the final state through DB, logging failures.
func StoreFinalGameStateInDB(ctx context.Context, gameID uuid.UUID, status string, state interface{}, results []ResultRow) {
	if DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := DB.StoreFinalGameState(ctx, gameID, status, state, results); err != nil {
		logrus.WithError(err).WithField("game", gameID).Error("failed to persist final game state")
	}
}
