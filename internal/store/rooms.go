package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ListRooms returns the IDs of all rooms with stored events, in byte order.
func (s *Store) ListRooms(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT room_id
		FROM events
		ORDER BY room_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []string{}
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, fmt.Errorf("list rooms: scan: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: iterate: %w", err)
	}
	return rooms, nil
}

// LastSeq returns the highest event sequence in the store, 0 when empty.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	return lastSeq(ctx, s.db)
}

func lastSeq(ctx context.Context, q querier) (int64, error) {
	var seq sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
