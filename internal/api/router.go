package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calden/knowld/internal/render"
	"github.com/calden/knowld/internal/service"
)

// NewRouter creates a chi router with every route mounted. basePath is the
// prefix of the fragment endpoints (e.g. "/knowledge"); the JSON API lives
// under /api. sseHandler, if non-nil, is mounted at GET /api/events.
func NewRouter(svc *service.Service, links render.Links, basePath string, authEnabled bool, editorToken, adminToken string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	rh := NewRenderHandler(svc, links)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, editorToken, adminToken))

	// Fragment endpoints.
	r.Route(basePath, func(r chi.Router) {
		r.Get("/render/{id}", rh.Render)
		r.Post("/render/{id}", rh.RenderPreview)
		r.Get("/show/{id}", rh.Show)
	})

	// JSON API.
	r.Route("/api", func(r chi.Router) {
		r.Get("/knowls", h.ListKnowls)
		r.Get("/knowls/{id}", h.GetKnowl)
		r.Put("/knowls/{id}", requireRole(RoleEditor, h.SaveKnowl))
		r.Delete("/knowls/{id}", requireRole(RoleAdmin, h.DeleteKnowl))
		r.Get("/knowls/{id}/history", h.History)
		r.Post("/knowls/{id}/lock", requireRole(RoleEditor, h.AcquireLock))
		r.Get("/history", h.RecentHistory)
		r.Get("/categories", h.Categories)
		r.Post("/maintenance/cleanup", requireRole(RoleAdmin, h.Cleanup))

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	// Health probes.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
