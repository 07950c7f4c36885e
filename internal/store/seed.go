package store

import "fmt"

// SeedChecksums returns the recorded checksum per seed-imported knowl.
func (db *DB) SeedChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT knowl_id, checksum FROM seed_files`)
	if err != nil {
		return nil, fmt.Errorf("store: seed checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, sum string
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		out[id] = sum
	}
	return out, rows.Err()
}

// SetSeedChecksum records the checksum of a seed file after import.
func (db *DB) SetSeedChecksum(id, sum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO seed_files (knowl_id, checksum) VALUES (?, ?)
		ON CONFLICT(knowl_id) DO UPDATE SET checksum = excluded.checksum
	`, id, sum)
	if err != nil {
		return fmt.Errorf("store: set seed checksum: %w", err)
	}
	return nil
}

// DeleteSeedChecksum forgets a seed file's import record.
func (db *DB) DeleteSeedChecksum(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM seed_files WHERE knowl_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete seed checksum: %w", err)
	}
	return nil
}
