// Package testutil provides shared test helpers for setting up stores and
// rendering pipelines.
package testutil

import (
	"os"
	"testing"

	"github.com/calden/knowld/internal/render"
	"github.com/calden/knowld/internal/store"
)

// TestStore creates a temporary SQLite store that is automatically
// cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "knowld-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRenderer creates a renderer with the standard test configuration.
func TestRenderer() *render.Renderer {
	return render.New(render.Config{
		BasePath:     "/knowledge",
		GlossaryBase: "http://wiki.l-functions.org/",
	})
}

// TestAssembler creates a fragment assembler on the standard test renderer.
func TestAssembler() *render.Assembler {
	return render.NewAssembler(TestRenderer())
}
