package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/calden/knowld/internal/apperr"
	"github.com/calden/knowld/internal/knowl"
	"github.com/calden/knowld/internal/service"
	"github.com/calden/knowld/internal/store"
)

// Handler holds the JSON API route handlers.
type Handler struct {
	svc *service.Service
}

// NewHandler creates a Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// knowlID extracts the identifier from the URL. Encoded characters from
// generated clients are unescaped first.
func knowlID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// ListKnowls handles GET /api/knowls. The search parameter is tokenized
// and AND-matched against the keyword index (a %23tag form searches
// hashtags); quality checkboxes apply when filter is set; category narrows
// to one category tag.
func (h *Handler) ListKnowls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var qualities []string
	if q.Get("filter") != "" {
		for _, quality := range knowl.Qualities {
			if q.Get(quality) != "" {
				qualities = append(qualities, quality)
			}
		}
	}

	items, err := h.svc.Search(r.Context(), service.SearchOpts{
		Query:     q.Get("search"),
		Qualities: qualities,
		Category:  q.Get("category"),
	})
	if err != nil {
		slog.Error("search failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, KnowlListResponse{
		Knowls: items,
		Groups: groupByLetter(items),
		Total:  len(items),
	})
}

// groupByLetter buckets a title-sorted listing by first letter; digits and
// punctuation collect under "?".
func groupByLetter(items []store.ListItem) []LetterGroup {
	groups := []LetterGroup{}
	for _, it := range items {
		letter := "?"
		if r, _ := utf8.DecodeRuneInString(it.Title); unicode.IsLetter(r) {
			letter = strings.ToUpper(string(r))
		}
		if n := len(groups); n > 0 && groups[n-1].Letter == letter {
			groups[n-1].Knowls = append(groups[n-1].Knowls, it)
			continue
		}
		groups = append(groups, LetterGroup{Letter: letter, Knowls: []store.ListItem{it}})
	}
	return groups
}

// GetKnowl handles GET /api/knowls/{id}. Unknown identifiers yield an
// empty knowl with exists=false rather than 404, so editors can start a
// new knowl from any link to it.
func (h *Handler) GetKnowl(w http.ResponseWriter, r *http.Request) {
	id := knowlID(r)
	k, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidID) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid knowl id"))
		} else {
			slog.Error("get knowl failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// SaveKnowl handles PUT /api/knowls/{id}.
func (h *Handler) SaveKnowl(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := knowlID(r)

	var req SaveKnowlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Quality != "" && !knowl.ValidQuality(req.Quality) {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown quality tag"))
		return
	}

	k, err := h.svc.Save(r.Context(), id, req.Title, req.Content, req.Quality, editorName(r))
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidID) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid knowl id"))
		} else {
			slog.Error("save knowl failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, k)
}

// DeleteKnowl handles DELETE /api/knowls/{id}.
func (h *Handler) DeleteKnowl(w http.ResponseWriter, r *http.Request) {
	id := knowlID(r)
	if err := h.svc.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidID):
			writeJSON(w, http.StatusBadRequest, errorBody("invalid knowl id"))
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		default:
			slog.Error("delete knowl failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/knowls/{id}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := knowlID(r)
	revs, err := h.svc.History(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidID) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid knowl id"))
		} else {
			slog.Error("history failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if revs == nil {
		revs = []knowl.Revision{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Revisions: revs})
}

// RecentHistory handles GET /api/history.
func (h *Handler) RecentHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	revs, err := h.svc.RecentHistory(r.Context(), limit)
	if err != nil {
		slog.Error("recent history failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if revs == nil {
		revs = []knowl.Revision{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Revisions: revs})
}

// AcquireLock handles POST /api/knowls/{id}/lock. When another editor's
// unexpired lock exists the response carries their lock and acquired=false
// so the client can warn; editing is never actually blocked. With
// lock=ignore the warning is skipped and the editor just proceeds.
func (h *Handler) AcquireLock(w http.ResponseWriter, r *http.Request) {
	id := knowlID(r)

	var req LockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Who == "" {
		req.Who = editorName(r)
	}

	lock, acquired, err := h.svc.AcquireLock(r.Context(), id, req.Who)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidID) {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid knowl id"))
		} else {
			slog.Error("acquire lock failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	if !acquired && r.URL.Query().Get("lock") == "ignore" {
		writeJSON(w, http.StatusOK, LockResponse{Acquired: true})
		return
	}
	writeJSON(w, http.StatusOK, LockResponse{Acquired: acquired, Lock: lock})
}

// Categories handles GET /api/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.Categories(r.Context())
	if err != nil {
		slog.Error("categories failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: cats})
}

// Cleanup handles POST /api/maintenance/cleanup.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Cleanup(r.Context())
	if err != nil {
		slog.Error("cleanup failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// editorName identifies the saver for attribution. With auth enabled the
// role name stands in for a user account; the original system's full login
// is out of scope.
func editorName(r *http.Request) string {
	switch RoleFrom(r.Context()) {
	case RoleAdmin:
		return "admin"
	case RoleEditor:
		return "editor"
	default:
		return "anonymous"
	}
}
