package store

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/calden/knowld/internal/apperr"
	"github.com/calden/knowld/internal/knowl"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "knowld-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustSave(t *testing.T, db *DB, id, title, content, quality, who string) {
	t.Helper()
	k := &knowl.Knowl{ID: id, Title: title, Content: content, Quality: quality}
	if err := db.Save(k, who); err != nil {
		t.Fatalf("Save(%s): %v", id, err)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get("no.such"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestSave_DerivesCategory(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "group.sylow", "Sylow", "content here", "beta", "alice")

	k, err := db.Get("group.sylow")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if k.Category != "group" {
		t.Errorf("category = %q, want group", k.Category)
	}
	if !k.Exists {
		t.Error("Exists = false after save")
	}
	if k.UpdatedBy != "alice" {
		t.Errorf("updated_by = %q", k.UpdatedBy)
	}
}

func TestSave_AppendsPreviousToHistory(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "a.b", "v1", "first version", "beta", "alice")
	mustSave(t, db, "a.b", "v2", "second version", "ok", "bob")

	hist, err := db.History("a.b")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// First save has no previous version to snapshot.
	if len(hist) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(hist))
	}
	if hist[0].Title != "v1" || hist[0].SavedBy != "alice" {
		t.Errorf("history[0] = %+v, want v1 by alice", hist[0])
	}

	k, _ := db.Get("a.b")
	if k.Title != "v2" || k.Quality != "ok" {
		t.Errorf("live record = %+v, want v2/ok", k)
	}
}

func TestSave_LastWriteWins(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "race.id", "base", "base", "beta", "alice")
	mustSave(t, db, "race.id", "from alice", "alice content", "beta", "alice")
	mustSave(t, db, "race.id", "from bob", "bob content", "beta", "bob")

	k, _ := db.Get("race.id")
	if k.Title != "from bob" {
		t.Errorf("title = %q, want last writer's", k.Title)
	}
	hist, _ := db.History("race.id")
	if len(hist) != 2 {
		t.Errorf("len(history) = %d, want 2", len(hist))
	}
}

func TestDelete_RemovesEverything(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "gone.soon", "t", "c", "beta", "alice")
	mustSave(t, db, "gone.soon", "t2", "c2", "beta", "alice")
	if _, _, err := db.Acquire("gone.soon", "bob", time.Hour); err != nil {
		t.Fatal(err)
	}

	if err := db.Delete("gone.soon"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get("gone.soon"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	hist, _ := db.History("gone.soon")
	if len(hist) != 0 {
		t.Errorf("history survived delete: %v", hist)
	}
	lock, _ := db.CurrentLock("gone.soon", time.Hour)
	if lock != nil {
		t.Errorf("lock survived delete: %+v", lock)
	}
}

func TestDelete_NotFound(t *testing.T) {
	db := testDB(t)
	if err := db.Delete("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Delete = %v, want ErrNotFound", err)
	}
}

func TestSearch_KeywordsMustAllMatch(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "group.sylow", "Sylow Theorems", "finite group theory", "beta", "a")
	mustSave(t, db, "field.galois", "Galois Theory", "field extensions theory", "beta", "a")

	hits, err := db.Search(SearchParams{Keywords: []string{"theory", "finite"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "group.sylow" {
		t.Errorf("hits = %+v, want only group.sylow", hits)
	}

	hits, _ = db.Search(SearchParams{Keywords: []string{"theory"}})
	if len(hits) != 2 {
		t.Errorf("len(hits) = %d, want 2", len(hits))
	}
}

func TestSearch_QualityAndCategoryFilters(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "group.a", "A", "x", "beta", "a")
	mustSave(t, db, "group.b", "B", "x", "reviewed", "a")
	mustSave(t, db, "field.c", "C", "x", "reviewed", "a")

	hits, err := db.Search(SearchParams{Qualities: []string{"reviewed"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("quality filter: %d hits, want 2", len(hits))
	}

	hits, _ = db.Search(SearchParams{Qualities: []string{"reviewed"}, Category: "group"})
	if len(hits) != 1 || hits[0].ID != "group.b" {
		t.Errorf("combined filter: %+v", hits)
	}
}

func TestSearch_SortedByTitle(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "x.one", "zebra", "x", "beta", "a")
	mustSave(t, db, "x.two", "Apple", "x", "beta", "a")

	hits, _ := db.Search(SearchParams{})
	if len(hits) != 2 || hits[0].Title != "Apple" {
		t.Errorf("sort order wrong: %+v", hits)
	}
}

func TestCategories(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "group.a", "A", "x", "beta", "a")
	mustSave(t, db, "group.b", "B", "x", "beta", "a")
	mustSave(t, db, "field.c", "C", "x", "beta", "a")

	cats, err := db.Categories()
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "field" || cats[1] != "group" {
		t.Errorf("cats = %v", cats)
	}
}

func TestAcquire_WarnsSecondEditor(t *testing.T) {
	db := testDB(t)
	_, ok, err := db.Acquire("ed.it", "alice", time.Hour)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	lock, ok, err := db.Acquire("ed.it", "bob", time.Hour)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second editor acquired an active lock")
	}
	if lock == nil || lock.Holder != "alice" {
		t.Errorf("lock = %+v, want alice's", lock)
	}

	// Re-entry by the same holder refreshes.
	_, ok, _ = db.Acquire("ed.it", "alice", time.Hour)
	if !ok {
		t.Error("holder could not re-enter own lock")
	}
}

func TestAcquire_ExpiredLockIsAbsent(t *testing.T) {
	db := testDB(t)
	if _, _, err := db.Acquire("stale.id", "alice", time.Hour); err != nil {
		t.Fatal(err)
	}
	time.Sleep(15 * time.Millisecond)

	// With a tiny timeout the old lock counts as expired.
	_, ok, err := db.Acquire("stale.id", "bob", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire over stale: %v", err)
	}
	if !ok {
		t.Error("stale lock blocked a new editor")
	}
}

func TestSave_ReleasesSaversLock(t *testing.T) {
	db := testDB(t)
	if _, _, err := db.Acquire("a.b", "alice", time.Hour); err != nil {
		t.Fatal(err)
	}
	mustSave(t, db, "a.b", "t", "c", "beta", "alice")

	lock, err := db.CurrentLock("a.b", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if lock != nil {
		t.Errorf("lock not released on save: %+v", lock)
	}
}

func TestCleanup_IdempotentAndPrunes(t *testing.T) {
	db := testDB(t)
	mustSave(t, db, "group.long", "Long", "some long content", "beta", "a")
	// 55 further saves produce a 55-entry history.
	for i := 0; i < 55; i++ {
		mustSave(t, db, "group.long", fmt.Sprintf("rev %d", i), fmt.Sprintf("content %d", i), "beta", "a")
	}
	mustSave(t, db, "field.short", "Short", "tiny", "beta", "a")

	rep, err := db.Cleanup()
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if rep.Reindexed != 2 {
		t.Errorf("reindexed = %d, want 2", rep.Reindexed)
	}
	if rep.Pruned != 1 {
		t.Errorf("pruned = %d, want 1", rep.Pruned)
	}
	if rep.Categories != 2 {
		t.Errorf("categories = %d, want 2", rep.Categories)
	}

	hist, _ := db.History("group.long")
	if len(hist) != 50 {
		t.Fatalf("len(history) = %d, want 50", len(hist))
	}
	// Most recent snapshots kept (the live record holds "rev 54").
	if hist[len(hist)-1].Title != "rev 53" {
		t.Errorf("newest revision = %q, want rev 53", hist[len(hist)-1].Title)
	}

	// Second run: same derived data, nothing further pruned.
	rep2, err := db.Cleanup()
	if err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
	if rep2.Pruned != 0 {
		t.Errorf("second run pruned = %d, want 0", rep2.Pruned)
	}
	hist2, _ := db.History("group.long")
	if len(hist2) != 50 {
		t.Errorf("history changed on second run: %d", len(hist2))
	}

	kws1, _ := db.keywordsOf("group.long")
	rep3, _ := db.Cleanup()
	_ = rep3
	kws2, _ := db.keywordsOf("group.long")
	if len(kws1) == 0 || len(kws1) != len(kws2) {
		t.Errorf("keyword sets differ across runs: %v vs %v", kws1, kws2)
	}
}

// keywordsOf is a test helper reading the derived keyword set.
func (db *DB) keywordsOf(id string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT keyword FROM knowl_keywords WHERE knowl_id = ? ORDER BY keyword`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
