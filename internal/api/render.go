package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/calden/knowld/internal/apperr"
	"github.com/calden/knowld/internal/render"
	"github.com/calden/knowld/internal/service"
)

// RenderHandler serves the HTML fragment endpoints that pages embed.
type RenderHandler struct {
	svc   *service.Service
	links render.Links
}

// NewRenderHandler creates a RenderHandler.
func NewRenderHandler(svc *service.Service, links render.Links) *RenderHandler {
	return &RenderHandler{svc: svc, links: links}
}

// reserved query parameters; everything else is passed through to
// transclusion expansion.
var reservedVars = map[string]bool{"footer": true, "content": true}

func passthroughVars(q url.Values) url.Values {
	vars := url.Values{}
	for k, vs := range q {
		if reservedVars[k] {
			continue
		}
		for _, v := range vs {
			vars.Add(k, v)
		}
	}
	return vars
}

// Render handles GET {base}/render/{id}: the stored content as an
// embeddable fragment. footer=0 suppresses the chrome, content=... renders
// the given text in place of the stored content without persisting it, and
// any other query parameter propagates into nested render URLs. Responses
// are publicly cacheable since the fragment is the same for every anonymous
// reader, except when the content override makes them request-specific.
func (h *RenderHandler) Render(w http.ResponseWriter, r *http.Request) {
	id := knowlID(r)
	q := r.URL.Query()

	opts := service.RenderOpts{
		Footer:        q.Get("footer") != "0",
		Authenticated: RoleFrom(r.Context()) >= RoleEditor,
		Vars:          passthroughVars(q),
	}
	if q.Has("content") {
		content := q.Get("content")
		opts.Content = &content
	}

	res, err := h.svc.Render(r.Context(), id, opts)
	if err != nil {
		h.renderError(w, r, id, err)
		return
	}
	if opts.Content != nil {
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "max-age=600, public")
	}
	h.writeFragment(w, id, res)
}

// RenderPreview handles POST {base}/render/{id}: renders submitted, not
// yet saved content. Never cached and never persisted.
func (h *RenderHandler) RenderPreview(w http.ResponseWriter, r *http.Request) {
	id := knowlID(r)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid form body"))
		return
	}

	opts := service.RenderOpts{
		Footer:        r.PostForm.Get("footer") != "0",
		Authenticated: RoleFrom(r.Context()) >= RoleEditor,
		Vars:          passthroughVars(r.URL.Query()),
	}
	if r.PostForm.Has("content") {
		content := r.PostForm.Get("content")
		opts.Content = &content
	}

	res, err := h.svc.Render(r.Context(), id, opts)
	if err != nil {
		h.renderError(w, r, id, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	h.writeFragment(w, id, res)
}

// Show handles GET {base}/show/{id}: the knowl's metadata plus the
// fragment rendered without chrome, for the standalone page.
func (h *RenderHandler) Show(w http.ResponseWriter, r *http.Request) {
	id := knowlID(r)
	ctx := r.Context()

	k, err := h.svc.Get(ctx, id)
	if err != nil {
		h.renderError(w, r, id, err)
		return
	}
	res, err := h.svc.Render(ctx, id, service.RenderOpts{
		Footer:        false,
		Authenticated: RoleFrom(ctx) >= RoleEditor,
	})
	if err != nil {
		h.renderError(w, r, id, err)
		return
	}
	if res.Contained != nil {
		slog.Warn("render failure contained",
			slog.String("id", id), slog.String("error", res.Contained.Error()))
	}
	writeJSON(w, http.StatusOK, ShowResponse{
		ID:        k.ID,
		Title:     k.Title,
		Quality:   k.Quality,
		Category:  k.Category,
		Exists:    k.Exists,
		UpdatedAt: k.UpdatedAt,
		UpdatedBy: k.UpdatedBy,
		HTML:      res.HTML,
	})
}

// writeFragment emits the fragment. A contained pipeline failure is still
// a 200: the notice is the fragment, and the embedding page must not see
// an error status for one broken knowl.
func (h *RenderHandler) writeFragment(w http.ResponseWriter, id string, res render.Rendered) {
	if res.Contained != nil {
		slog.Warn("render failure contained",
			slog.String("id", id), slog.String("error", res.Contained.Error()))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.HTML))
}

// renderError redirects a malformed identifier back to the index with a
// message, matching the browser-facing flow; anything else is a plain 500.
func (h *RenderHandler) renderError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, apperr.ErrInvalidID) {
		target := h.links.Index() + "?message=" + url.QueryEscape("invalid knowl id: "+id)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	slog.Error("render failed", slog.String("id", id), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
