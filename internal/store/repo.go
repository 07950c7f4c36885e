package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calden/knowld/internal/apperr"
	"github.com/calden/knowld/internal/knowl"
)

// Get returns the live record for id, or apperr.ErrNotFound.
func (db *DB) Get(id string) (*knowl.Knowl, error) {
	var k knowl.Knowl
	err := db.conn.QueryRow(`
		SELECT id, title, content, quality, cat, updated_at, updated_by
		FROM knowls WHERE id = ?
	`, id).Scan(&k.ID, &k.Title, &k.Content, &k.Quality, &k.Category, &k.UpdatedAt, &k.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	k.Exists = true
	return &k, nil
}

// Save writes a knowl, appending the previously stored version to history
// before committing, rederiving category and keywords, and releasing any
// lock held by the saver. Last write wins on concurrent saves.
func (db *DB) Save(k *knowl.Knowl, who string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Snapshot the current version into history first.
	var prev knowl.Knowl
	var prevBy string
	var prevAt time.Time
	row := tx.QueryRow(`SELECT title, content, quality, updated_by, updated_at FROM knowls WHERE id = ?`, k.ID)
	switch scanErr := row.Scan(&prev.Title, &prev.Content, &prev.Quality, &prevBy, &prevAt); {
	case scanErr == nil:
		_, err = tx.Exec(`
			INSERT INTO history (knowl_id, seq, title, content, quality, saved_by, saved_at)
			VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM history WHERE knowl_id = ?), ?, ?, ?, ?, ?)
		`, k.ID, k.ID, prev.Title, prev.Content, prev.Quality, prevBy, prevAt)
		if err != nil {
			return fmt.Errorf("store: append history: %w", err)
		}
	case errors.Is(scanErr, sql.ErrNoRows):
		// First save under this identifier; nothing to snapshot.
	default:
		return fmt.Errorf("store: read previous: %w", scanErr)
	}

	now := time.Now().UTC()
	cat := knowl.Category(k.ID)
	_, err = tx.Exec(`
		INSERT INTO knowls (id, title, content, quality, cat, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			content    = excluded.content,
			quality    = excluded.quality,
			cat        = excluded.cat,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by
	`, k.ID, k.Title, k.Content, k.Quality, cat, now, who)
	if err != nil {
		return fmt.Errorf("store: upsert knowl: %w", err)
	}

	if err := replaceKeywords(tx, k.ID, knowl.Keywords(k.ID, k.Title, k.Content)); err != nil {
		return err
	}

	// The saver's own advisory lock is done with.
	_, _ = tx.Exec(`DELETE FROM locks WHERE knowl_id = ? AND holder = ?`, k.ID, who)

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit save: %w", err)
	}
	k.Category = cat
	k.UpdatedAt = now
	k.UpdatedBy = who
	k.Exists = true
	return nil
}

func replaceKeywords(tx *sql.Tx, id string, keywords []string) error {
	if _, err := tx.Exec(`DELETE FROM knowl_keywords WHERE knowl_id = ?`, id); err != nil {
		return fmt.Errorf("store: clear keywords: %w", err)
	}
	if len(keywords) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO knowl_keywords (knowl_id, keyword) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare keyword insert: %w", err)
	}
	defer stmt.Close()
	for _, kw := range keywords {
		if _, err := stmt.Exec(id, kw); err != nil {
			return fmt.Errorf("store: insert keyword: %w", err)
		}
	}
	return nil
}

// Delete removes the live record together with its keywords, history, and
// lock. History is discarded, matching the source system's behavior.
func (db *DB) Delete(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`DELETE FROM knowls WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete knowl: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	_, _ = tx.Exec(`DELETE FROM knowl_keywords WHERE knowl_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM history WHERE knowl_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM locks WHERE knowl_id = ?`, id)

	return tx.Commit()
}

// SearchParams narrows the index listing.
type SearchParams struct {
	// Keywords that must ALL match (already tokenized and lowercased).
	Keywords []string
	// Qualities restricts to the given quality tags when non-empty.
	Qualities []string
	// Category restricts to one category when non-empty.
	Category string
}

// ListItem is a lightweight row for index listings.
type ListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Quality   string    `json:"quality"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Search returns knowls matching the given filters, sorted by title
// (case-insensitive), identifiers breaking ties.
func (db *DB) Search(p SearchParams) ([]ListItem, error) {
	var (
		where []string
		args  []any
	)

	if len(p.Qualities) > 0 {
		where = append(where, `quality IN (?`+strings.Repeat(",?", len(p.Qualities)-1)+`)`)
		for _, q := range p.Qualities {
			args = append(args, q)
		}
	}
	if p.Category != "" {
		where = append(where, `cat = ?`)
		args = append(args, p.Category)
	}
	if len(p.Keywords) > 0 {
		where = append(where, `id IN (
			SELECT knowl_id FROM knowl_keywords
			WHERE keyword IN (?`+strings.Repeat(",?", len(p.Keywords)-1)+`)
			GROUP BY knowl_id
			HAVING COUNT(DISTINCT keyword) = ?
		)`)
		for _, kw := range p.Keywords {
			args = append(args, kw)
		}
		args = append(args, len(p.Keywords))
	}

	query := `SELECT id, title, quality, cat, updated_at FROM knowls`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY title COLLATE NOCASE, id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Quality, &it.Category, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Categories returns the distinct category tags in use.
func (db *DB) Categories() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT cat FROM knowls WHERE cat != '' ORDER BY cat`)
	if err != nil {
		return nil, fmt.Errorf("store: categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// History returns a knowl's revisions, oldest first.
func (db *DB) History(id string) ([]knowl.Revision, error) {
	rows, err := db.conn.Query(`
		SELECT knowl_id, seq, title, content, quality, saved_by, saved_at
		FROM history WHERE knowl_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}
	return scanRevisions(rows)
}

// RecentHistory returns the latest revisions across all knowls, newest
// first, bounded by limit.
func (db *DB) RecentHistory(limit int) ([]knowl.Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT knowl_id, seq, title, content, quality, saved_by, saved_at
		FROM history ORDER BY saved_at DESC, knowl_id, seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent history: %w", err)
	}
	return scanRevisions(rows)
}

func scanRevisions(rows *sql.Rows) ([]knowl.Revision, error) {
	defer rows.Close()
	var out []knowl.Revision
	for rows.Next() {
		var r knowl.Revision
		if err := rows.Scan(&r.KnowlID, &r.Seq, &r.Title, &r.Content, &r.Quality, &r.SavedBy, &r.SavedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
