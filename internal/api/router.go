package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/study/internal/noteservice"
)

// NewRouter creates a chi router with the read-only vault routes.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/search", h.Search)

	r.Get("/items", h.ListItems)
	r.Get("/items/pending", h.PendingItems)
	r.Get("/items/{id}", h.GetItem)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
