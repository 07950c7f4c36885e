package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/calden/knowld/internal/apperr"
	"github.com/calden/knowld/internal/testutil"
)

type event struct{ kind, id string }

func testService(t *testing.T) (*Service, *[]event) {
	t.Helper()
	var events []event
	svc := New(testutil.TestStore(t), testutil.TestAssembler(), 30*time.Minute, func(kind, id string) {
		events = append(events, event{kind, id})
	})
	return svc, &events
}

func TestGet_UnknownIDIsEmptyKnowl(t *testing.T) {
	svc, _ := testService(t)

	k, err := svc.Get(context.Background(), "not.yet")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if k.Exists {
		t.Error("Exists = true for unknown id")
	}
	if k.ID != "not.yet" || k.Quality != "beta" {
		t.Errorf("empty knowl = %+v", k)
	}
}

func TestGet_RejectsMalformedID(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.Get(context.Background(), "Not Valid"); !errors.Is(err, apperr.ErrInvalidID) {
		t.Errorf("Get = %v, want ErrInvalidID", err)
	}
}

func TestSave_PublishesEventAndDefaultsQuality(t *testing.T) {
	svc, events := testService(t)

	k, err := svc.Save(context.Background(), "group.sylow", "Sylow", "the theorems", "", "alice")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if k.Quality != "beta" {
		t.Errorf("quality = %q, want default beta", k.Quality)
	}
	if len(*events) != 1 || (*events)[0] != (event{"saved", "group.sylow"}) {
		t.Errorf("events = %v", *events)
	}
}

func TestSave_RejectsMalformedID(t *testing.T) {
	svc, events := testService(t)
	if _, err := svc.Save(context.Background(), "bad id", "t", "c", "beta", "a"); !errors.Is(err, apperr.ErrInvalidID) {
		t.Errorf("Save = %v, want ErrInvalidID", err)
	}
	if len(*events) != 0 {
		t.Errorf("event published for rejected save: %v", *events)
	}
}

func TestDelete_PublishesEvent(t *testing.T) {
	svc, events := testService(t)
	ctx := context.Background()
	if _, err := svc.Save(ctx, "a.b", "t", "c", "beta", "a"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, "a.b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	last := (*events)[len(*events)-1]
	if last != (event{"deleted", "a.b"}) {
		t.Errorf("last event = %v", last)
	}
}

func TestAcquireLock_WarnsSecondEditor(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	if _, ok, err := svc.AcquireLock(ctx, "ed.it", "alice"); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	lock, ok, err := svc.AcquireLock(ctx, "ed.it", "bob")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok || lock == nil || lock.Holder != "alice" {
		t.Errorf("second acquire: ok=%v lock=%+v", ok, lock)
	}
}

func TestSearch_EmptyResultIsNotNil(t *testing.T) {
	svc, _ := testService(t)
	items, err := svc.Search(context.Background(), SearchOpts{Query: "nothing matches this"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if items == nil {
		t.Error("Search returned nil slice")
	}
}

// A query whose tokens are all below the keyword length can never match a
// derived keyword, so it returns nothing rather than the full listing.
func TestSearch_OnlyShortTokensMatchesNothing(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	if _, err := svc.Save(ctx, "group.sylow", "Sylow", "finite group theory", "beta", "a"); err != nil {
		t.Fatal(err)
	}

	items, err := svc.Search(ctx, SearchOpts{Query: "a of it"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("short-token query matched %d items", len(items))
	}

	// An empty query still lists everything.
	items, err = svc.Search(ctx, SearchOpts{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("unfiltered listing = %d items, want 1", len(items))
	}
}

func TestRender_UsesStoredContent(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	if _, err := svc.Save(ctx, "group.sylow", "Sylow", "Let $G$ be a finite group.", "beta", "a"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Render(ctx, "group.sylow", RenderOpts{Footer: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Contained != nil {
		t.Fatalf("contained failure: %v", res.Contained)
	}
	if !strings.Contains(res.HTML, "$G$") {
		t.Errorf("math not preserved: %s", res.HTML)
	}
	if !strings.Contains(res.HTML, `class="knowl-header"`) {
		t.Errorf("footer chrome missing: %s", res.HTML)
	}
}

func TestRender_ContentOverrideNeverSaves(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	if _, err := svc.Save(ctx, "a.b", "T", "stored text", "beta", "a"); err != nil {
		t.Fatal(err)
	}

	preview := "unsaved preview text"
	res, err := svc.Render(ctx, "a.b", RenderOpts{Content: &preview})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(res.HTML, "unsaved preview text") {
		t.Errorf("override not rendered: %s", res.HTML)
	}

	k, _ := svc.Get(ctx, "a.b")
	if k.Content != "stored text" {
		t.Errorf("stored content changed: %q", k.Content)
	}
}

func TestRender_UnknownKnowlRendersEmpty(t *testing.T) {
	svc, _ := testService(t)
	res, err := svc.Render(context.Background(), "no.such", RenderOpts{Footer: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.Contained != nil {
		t.Errorf("contained failure for empty knowl: %v", res.Contained)
	}
	// Header falls back to the identifier.
	if !strings.Contains(res.HTML, "no.such") {
		t.Errorf("id missing from fragment: %s", res.HTML)
	}
}

func TestRender_FailureIsContained(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	if _, err := svc.Save(ctx, "bro.ken", "Broken", "text with a stray \x1f byte", "beta", "a"); err != nil {
		t.Fatal(err)
	}

	res, err := svc.Render(ctx, "bro.ken", RenderOpts{})
	if err != nil {
		t.Fatalf("Render returned a hard error: %v", err)
	}
	if res.Contained == nil {
		t.Fatal("failure not contained")
	}
	if !strings.Contains(res.HTML, "ERROR in the knowl") {
		t.Errorf("notice missing: %s", res.HTML)
	}
}
