// Package service coordinates the store, the rendering pipeline, and
// change notifications for the API and MCP layers.
package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/calden/knowld/internal/apperr"
	"github.com/calden/knowld/internal/knowl"
	"github.com/calden/knowld/internal/render"
	"github.com/calden/knowld/internal/store"
)

// EventFunc is called after a successful mutation.
// kind is one of "saved", "deleted".
type EventFunc func(kind, id string)

// Service is the application core shared by HTTP and MCP front ends.
type Service struct {
	db          *store.DB
	asm         *render.Assembler
	lockTimeout time.Duration
	events      EventFunc
}

// New creates a Service. events may be nil.
func New(db *store.DB, asm *render.Assembler, lockTimeout time.Duration, events EventFunc) *Service {
	return &Service{db: db, asm: asm, lockTimeout: lockTimeout, events: events}
}

func (s *Service) notify(kind, id string) {
	if s.events != nil {
		s.events(kind, id)
	}
}

// Get fetches a knowl permissively: an unknown identifier yields an empty
// knowl with Exists=false, so "create on first save" just works. Only a
// malformed identifier is an error.
func (s *Service) Get(_ context.Context, id string) (*knowl.Knowl, error) {
	if !knowl.ValidID(id) {
		return nil, apperr.ErrInvalidID
	}
	k, err := s.db.Get(id)
	if errors.Is(err, apperr.ErrNotFound) {
		return &knowl.Knowl{ID: id, Quality: knowl.DefaultQuality}, nil
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

// Save validates and persists a knowl on behalf of who, appending the
// previous version to history and publishing a change event.
func (s *Service) Save(_ context.Context, id, title, content, quality, who string) (*knowl.Knowl, error) {
	if !knowl.ValidID(id) {
		return nil, apperr.ErrInvalidID
	}
	if quality == "" {
		quality = knowl.DefaultQuality
	}
	k := &knowl.Knowl{ID: id, Title: title, Content: content, Quality: quality}
	if err := s.db.Save(k, who); err != nil {
		return nil, err
	}
	s.notify("saved", id)
	return k, nil
}

// Delete removes a knowl and its history and publishes a change event.
func (s *Service) Delete(_ context.Context, id string) error {
	if !knowl.ValidID(id) {
		return apperr.ErrInvalidID
	}
	if err := s.db.Delete(id); err != nil {
		return err
	}
	s.notify("deleted", id)
	return nil
}

// AcquireLock takes or keeps the advisory edit lock. When another editor
// holds an active lock, it is returned with acquired=false so the caller
// can warn the user; edits are never actually blocked.
func (s *Service) AcquireLock(_ context.Context, id, who string) (*knowl.Lock, bool, error) {
	if !knowl.ValidID(id) {
		return nil, false, apperr.ErrInvalidID
	}
	if who == "" {
		who = "editor"
	}
	return s.db.Acquire(id, who, s.lockTimeout)
}

// History returns a knowl's revisions, oldest first.
func (s *Service) History(_ context.Context, id string) ([]knowl.Revision, error) {
	if !knowl.ValidID(id) {
		return nil, apperr.ErrInvalidID
	}
	return s.db.History(id)
}

// RecentHistory returns the latest revisions across all knowls.
func (s *Service) RecentHistory(_ context.Context, limit int) ([]knowl.Revision, error) {
	return s.db.RecentHistory(limit)
}

// SearchOpts carries the index view's filters.
type SearchOpts struct {
	// Query is the raw search string; tokens shorter than three
	// characters are ignored, remaining tokens must all match. A
	// non-empty query with no usable tokens matches nothing.
	Query string
	// Qualities filters by quality tag; empty means all qualities.
	Qualities []string
	// Category filters by category tag when non-empty.
	Category string
}

// Search lists knowls matching the filters, sorted by title.
func (s *Service) Search(_ context.Context, opts SearchOpts) ([]store.ListItem, error) {
	tokens := knowl.QueryTokens(opts.Query)
	if len(tokens) == 0 && strings.TrimSpace(opts.Query) != "" {
		// Every token was below the keyword length; nothing can match.
		return []store.ListItem{}, nil
	}
	items, err := s.db.Search(store.SearchParams{
		Keywords:  tokens,
		Qualities: opts.Qualities,
		Category:  opts.Category,
	})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.ListItem{}
	}
	return items, nil
}

// Categories returns the distinct category tags in use.
func (s *Service) Categories(_ context.Context) ([]string, error) {
	cats, err := s.db.Categories()
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

// Cleanup recomputes derived fields and prunes histories.
func (s *Service) Cleanup(_ context.Context) (*store.CleanupReport, error) {
	return s.db.Cleanup()
}

// RenderOpts describes one fragment rendering request.
type RenderOpts struct {
	// Content overrides the stored content when non-nil (unsaved preview).
	Content *string
	// Footer controls the header/footer chrome.
	Footer bool
	// Authenticated enables the conditional edit link.
	Authenticated bool
	// Vars are extra key/value pairs passed through to expansion.
	Vars url.Values
}

// Render runs the transclusion pipeline for a knowl. Pipeline failures are
// contained in the returned fragment, never in the error: the error is
// only ErrInvalidID or a storage fault.
func (s *Service) Render(ctx context.Context, id string, opts RenderOpts) (render.Rendered, error) {
	k, err := s.Get(ctx, id)
	if err != nil {
		return render.Rendered{}, err
	}
	content := k.Content
	if opts.Content != nil {
		content = *opts.Content
	}
	return s.asm.Render(render.Request{
		ID:            id,
		Title:         strings.TrimSpace(k.Title),
		Content:       content,
		Footer:        opts.Footer,
		Authenticated: opts.Authenticated,
		Vars:          opts.Vars,
	}), nil
}
