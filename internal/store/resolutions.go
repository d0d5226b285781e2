package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

// ErrResolutionNotFound is returned when no resolution matches a query.
var ErrResolutionNotFound = errors.New("resolution not found")

// Resolution is a recorded resolution result.
type Resolution struct {
	// ID is a UUIDv7, so IDs sort by creation time.
	ID          string
	RoomID      string
	RoomVersion string
	StateHash   string
	EventCount  int
	LastSeq     int64
	State       stateres.StateMap
}

// WriteResolution records a resolved state and returns the stored record.
// The state hash is computed here so stored hashes always match their state.
func (s *Store) WriteResolution(ctx context.Context, roomID, roomVersion string, eventCount int, lastSeq int64, state stateres.StateMap) (*Resolution, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("write resolution: generate id: %w", err)
	}
	hash, err := ir.StateHash(state)
	if err != nil {
		return nil, fmt.Errorf("write resolution: %w", err)
	}

	rec := &Resolution{
		ID:          id.String(),
		RoomID:      roomID,
		RoomVersion: roomVersion,
		StateHash:   hash,
		EventCount:  eventCount,
		LastSeq:     lastSeq,
		State:       state.Clone(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("write resolution: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO resolutions
		(id, room_id, room_version, state_hash, event_count, last_seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.RoomID, rec.RoomVersion, rec.StateHash, rec.EventCount, rec.LastSeq); err != nil {
		return nil, fmt.Errorf("write resolution: %w", err)
	}

	for _, slot := range state.SortedKeys() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resolution_state (resolution_id, type, state_key, event_id)
			VALUES (?, ?, ?, ?)
		`, rec.ID, slot.Type, slot.StateKey, string(state[slot])); err != nil {
			return nil, fmt.Errorf("write resolution state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("write resolution: commit: %w", err)
	}
	return rec, nil
}

// ReadResolution returns a resolution by ID.
func (s *Store) ReadResolution(ctx context.Context, id string) (*Resolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, room_version, state_hash, event_count, last_seq
		FROM resolutions
		WHERE id = ?
	`, id)
	return s.loadResolution(ctx, row)
}

// LatestResolution returns the most recent resolution of a room.
func (s *Store) LatestResolution(ctx context.Context, roomID string) (*Resolution, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, room_version, state_hash, event_count, last_seq
		FROM resolutions
		WHERE room_id = ?
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`, roomID)
	return s.loadResolution(ctx, row)
}

func (s *Store) loadResolution(ctx context.Context, row *sql.Row) (*Resolution, error) {
	var rec Resolution
	err := row.Scan(&rec.ID, &rec.RoomID, &rec.RoomVersion, &rec.StateHash, &rec.EventCount, &rec.LastSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResolutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read resolution: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, state_key, event_id
		FROM resolution_state
		WHERE resolution_id = ?
		ORDER BY type COLLATE BINARY ASC, state_key COLLATE BINARY ASC
	`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("read resolution state: %w", err)
	}
	defer rows.Close()

	rec.State = make(stateres.StateMap)
	for rows.Next() {
		var slot ir.StateKey
		var id string
		if err := rows.Scan(&slot.Type, &slot.StateKey, &id); err != nil {
			return nil, fmt.Errorf("read resolution state: scan: %w", err)
		}
		rec.State[slot] = ir.EventID(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read resolution state: iterate: %w", err)
	}
	return &rec, nil
}
