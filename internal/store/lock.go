package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calden/knowld/internal/knowl"
)

// Acquire takes or keeps the advisory edit lock on a knowl. If another
// holder's unexpired lock exists it is returned with acquired=false so the
// caller can warn the second editor; the write still is not blocked
// anywhere else. Re-entry by the same holder refreshes the timestamp.
func (db *DB) Acquire(id, holder string, timeout time.Duration) (*knowl.Lock, bool, error) {
	cur, err := db.CurrentLock(id, timeout)
	if err != nil {
		return nil, false, err
	}
	if cur != nil && cur.Holder != holder {
		return cur, false, nil
	}

	now := time.Now().UTC()
	_, err = db.conn.Exec(`
		INSERT INTO locks (knowl_id, holder, acquired_at) VALUES (?, ?, ?)
		ON CONFLICT(knowl_id) DO UPDATE SET holder = excluded.holder, acquired_at = excluded.acquired_at
	`, id, holder, now)
	if err != nil {
		return nil, false, fmt.Errorf("store: acquire lock: %w", err)
	}
	return &knowl.Lock{KnowlID: id, Holder: holder, AcquiredAt: now}, true, nil
}

// CurrentLock returns the active lock on a knowl, or nil. A lock older
// than timeout is treated as absent (and lazily removed).
func (db *DB) CurrentLock(id string, timeout time.Duration) (*knowl.Lock, error) {
	var l knowl.Lock
	err := db.conn.QueryRow(`
		SELECT knowl_id, holder, acquired_at FROM locks WHERE knowl_id = ?
	`, id).Scan(&l.KnowlID, &l.Holder, &l.AcquiredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: current lock: %w", err)
	}
	if timeout > 0 && time.Since(l.AcquiredAt) > timeout {
		_, _ = db.conn.Exec(`DELETE FROM locks WHERE knowl_id = ? AND acquired_at = ?`, id, l.AcquiredAt)
		return nil, nil
	}
	return &l, nil
}

// Release drops the lock if held by holder.
func (db *DB) Release(id, holder string) error {
	if _, err := db.conn.Exec(`DELETE FROM locks WHERE knowl_id = ? AND holder = ?`, id, holder); err != nil {
		return fmt.Errorf("store: release lock: %w", err)
	}
	return nil
}
