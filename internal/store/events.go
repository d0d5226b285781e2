package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

const eventColumns = `event_id, room_id, sender, origin_server_ts, type, state_key,
	content, prev_events, auth_events, redacts, rejected`

// WriteEvent inserts a PDU into the store.
// Uses ON CONFLICT(event_id) DO NOTHING for idempotency - the first write of
// an event ID wins and later writes are silently ignored.
//
// Returns whether a new row was inserted.
func (s *Store) WriteEvent(ctx context.Context, p *ir.PDU) (bool, error) {
	return writeEvent(ctx, s.db, p)
}

// WriteEvents inserts PDUs in a single transaction and returns how many
// were new.
func (s *Store) WriteEvents(ctx context.Context, pdus []*ir.PDU) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	inserted := 0
	for _, p := range pdus {
		ok, err := writeEvent(ctx, tx, p)
		if err != nil {
			return 0, err
		}
		if ok {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write events: commit: %w", err)
	}
	return inserted, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeEvent(ctx context.Context, db execer, p *ir.PDU) (bool, error) {
	if p.ID == "" {
		return false, fmt.Errorf("write event: missing event_id")
	}

	content, err := marshalContent(p.RawContent)
	if err != nil {
		return false, fmt.Errorf("write event %s: %w", p.ID, err)
	}
	prev, err := marshalIDs(p.Prev)
	if err != nil {
		return false, fmt.Errorf("write event %s: %w", p.ID, err)
	}
	auth, err := marshalIDs(p.Auth)
	if err != nil {
		return false, fmt.Errorf("write event %s: %w", p.ID, err)
	}

	var stateKey, redacts sql.NullString
	if p.Key != nil {
		stateKey = sql.NullString{String: *p.Key, Valid: true}
	}
	if p.RedactsID != nil {
		redacts = sql.NullString{String: string(*p.RedactsID), Valid: true}
	}

	result, err := db.ExecContext(ctx, `
		INSERT INTO events
		(`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`,
		string(p.ID),
		p.Room,
		p.SenderID,
		p.Timestamp,
		p.Kind,
		stateKey,
		content,
		prev,
		auth,
		redacts,
		p.IsRejected,
	)
	if err != nil {
		return false, fmt.Errorf("write event %s: %w", p.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write event %s: rows affected: %w", p.ID, err)
	}
	return n > 0, nil
}

// ReadEvent returns a PDU by ID. Unknown IDs yield an error wrapping
// stateres.ErrEventNotFound.
func (s *Store) ReadEvent(ctx context.Context, id ir.EventID) (*ir.PDU, error) {
	return readEvent(ctx, s.db, id)
}

// RoomEvents returns every event of a room in insertion order.
// Returns an empty slice (not nil) for unknown rooms.
func (s *Store) RoomEvents(ctx context.Context, roomID string) ([]*ir.PDU, error) {
	return roomEvents(ctx, s.db, roomID)
}

func readEvent(ctx context.Context, q querier, id ir.EventID) (*ir.PDU, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE event_id = ?
	`, string(id))

	p, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read event %s: %w", id, stateres.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read event %s: %w", id, err)
	}
	return p, nil
}

func roomEvents(ctx context.Context, q querier, roomID string) ([]*ir.PDU, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE room_id = ?
		ORDER BY seq ASC, event_id COLLATE BINARY ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query room events: %w", err)
	}
	defer rows.Close()

	events := []*ir.PDU{}
	for rows.Next() {
		p, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room event: %w", err)
		}
		events = append(events, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate room events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*ir.PDU, error) {
	var (
		p                   ir.PDU
		id                  string
		stateKey, redacts   sql.NullString
		content, prev, auth string
	)
	if err := row.Scan(
		&id, &p.Room, &p.SenderID, &p.Timestamp, &p.Kind, &stateKey,
		&content, &prev, &auth, &redacts, &p.IsRejected,
	); err != nil {
		return nil, err
	}

	p.ID = ir.EventID(id)
	p.RawContent = []byte(content)
	if stateKey.Valid {
		p.Key = ir.StringPtr(stateKey.String)
	}
	if redacts.Valid {
		r := ir.EventID(redacts.String)
		p.RedactsID = &r
	}

	var err error
	if p.Prev, err = unmarshalIDs(prev); err != nil {
		return nil, err
	}
	if p.Auth, err = unmarshalIDs(auth); err != nil {
		return nil, err
	}
	return &p, nil
}
