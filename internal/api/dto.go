package api

import (
	"time"

	"github.com/calden/knowld/internal/knowl"
	"github.com/calden/knowld/internal/store"
)

// SaveKnowlRequest is the request body for saving a knowl.
type SaveKnowlRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Quality string `json:"quality"`
}

// LockRequest is the request body for acquiring an edit lock.
type LockRequest struct {
	Who string `json:"who"`
}

// LockResponse reports the outcome of a lock acquisition.
type LockResponse struct {
	Acquired bool        `json:"acquired"`
	Lock     *knowl.Lock `json:"lock,omitempty"`
}

// LetterGroup is one first-letter bucket in the index listing.
type LetterGroup struct {
	Letter string           `json:"letter"`
	Knowls []store.ListItem `json:"knowls"`
}

// KnowlListResponse wraps the index/search listing, both flat and grouped
// by the title's first letter.
type KnowlListResponse struct {
	Knowls []store.ListItem `json:"knowls"`
	Groups []LetterGroup    `json:"groups"`
	Total  int              `json:"total"`
}

// HistoryResponse wraps a revision listing.
type HistoryResponse struct {
	Revisions []knowl.Revision `json:"revisions"`
}

// CategoriesResponse wraps the category listing.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// ShowResponse is the show view: metadata plus the rendered fragment with
// the footer suppressed (the surrounding page supplies its own chrome).
type ShowResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Quality   string    `json:"quality"`
	Category  string    `json:"category"`
	Exists    bool      `json:"exists"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	HTML      string    `json:"html"`
}

// CleanupResponse mirrors the maintenance report.
type CleanupResponse = store.CleanupReport
