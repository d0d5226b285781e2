package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/stateres"
)

// Snapshot is a read-only view of the store pinned at the moment it was
// opened. It implements stateres.Fetcher.
//
// The store uses a single connection, so a Snapshot must be closed before
// any other Store method is called.
type Snapshot struct {
	tx *sql.Tx
}

var _ stateres.Fetcher = (*Snapshot)(nil)

// Snapshot begins a read-only transaction.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	return &Snapshot{tx: tx}, nil
}

// Fetch implements stateres.Fetcher.
func (sn *Snapshot) Fetch(ctx context.Context, id ir.EventID) (stateres.Event, error) {
	p, err := readEvent(ctx, sn.tx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RoomEvents returns every event of a room as of the snapshot.
func (sn *Snapshot) RoomEvents(ctx context.Context, roomID string) ([]*ir.PDU, error) {
	return roomEvents(ctx, sn.tx, roomID)
}

// LastSeq returns the highest event sequence visible in the snapshot.
func (sn *Snapshot) LastSeq(ctx context.Context) (int64, error) {
	return lastSeq(ctx, sn.tx)
}

// Close ends the snapshot.
func (sn *Snapshot) Close() error {
	return sn.tx.Rollback()
}
