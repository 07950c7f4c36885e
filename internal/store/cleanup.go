package store

import (
	"fmt"

	"github.com/calden/knowld/internal/knowl"
)

// historyLimit is the maximum number of revisions kept per knowl; the
// cleanup task discards anything older, irreversibly.
const historyLimit = 50

// CleanupReport summarizes one maintenance run.
type CleanupReport struct {
	Categories int `json:"categories"`
	Reindexed  int `json:"reindexed"`
	Pruned     int `json:"pruned"`
}

// Cleanup recomputes the derived fields (category, keyword set) for every
// knowl and prunes each edit history to its most recent entries. It only
// touches derived or bounded data, is idempotent, and is safe to re-run.
func (db *DB) Cleanup() (*CleanupReport, error) {
	report := &CleanupReport{}

	rows, err := db.conn.Query(`SELECT id, title, content FROM knowls`)
	if err != nil {
		return nil, fmt.Errorf("store: cleanup select: %w", err)
	}
	type rec struct{ id, title, content string }
	var recs []rec
	for rows.Next() {
		var r rec
		if err := rows.Scan(&r.id, &r.title, &r.content); err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: cleanup begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range recs {
		if _, err := tx.Exec(`UPDATE knowls SET cat = ? WHERE id = ?`, knowl.Category(r.id), r.id); err != nil {
			return nil, fmt.Errorf("store: cleanup update cat: %w", err)
		}
		if err := replaceKeywords(tx, r.id, knowl.Keywords(r.id, r.title, r.content)); err != nil {
			return nil, err
		}
		report.Reindexed++
	}

	// Prune histories that exceed the limit, keeping the most recent.
	pruneRows, err := tx.Query(`
		SELECT knowl_id FROM history
		GROUP BY knowl_id HAVING COUNT(*) > ?
	`, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("store: cleanup prune select: %w", err)
	}
	var prunes []string
	for pruneRows.Next() {
		var id string
		if err := pruneRows.Scan(&id); err != nil {
			pruneRows.Close()
			return nil, err
		}
		prunes = append(prunes, id)
	}
	if err := pruneRows.Err(); err != nil {
		pruneRows.Close()
		return nil, err
	}
	pruneRows.Close()

	for _, id := range prunes {
		_, err := tx.Exec(`
			DELETE FROM history WHERE knowl_id = ? AND seq NOT IN (
				SELECT seq FROM history WHERE knowl_id = ? ORDER BY seq DESC LIMIT ?
			)
		`, id, id, historyLimit)
		if err != nil {
			return nil, fmt.Errorf("store: cleanup prune: %w", err)
		}
		report.Pruned++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: cleanup commit: %w", err)
	}

	cats, err := db.Categories()
	if err != nil {
		return nil, err
	}
	report.Categories = len(cats)
	return report, nil
}
