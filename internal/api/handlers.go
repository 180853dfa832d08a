package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/study/internal/apperr"
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// wildcardPath extracts the note path from the trailing wildcard.
// Encoded slashes (Concepts%2FAlpha.md) are accepted.
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List vault notes with optional filtering
//	@Tags			notes
//	@Produce		json
//	@Param			kind	query		string	false	"Note kind"	Enums(youtube_video, concept, youtube_channel)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title, path)
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := index.ListFilter{
		Kind:   q.Get("kind"),
		Tag:    q.Get("tag"),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	}

	items, total, err := h.svc.ListNotes(r.Context(), filter)
	if err != nil {
		slog.Error("api: list notes failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by vault path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		h.fail(w, "get note", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List notes linking to a note
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		h.fail(w, "backlinks", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: bl})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		h.fail(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListItems handles GET /api/items.
//
//	@Summary		Pipeline status of every item
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	ItemsResponse
//	@Security		BearerAuth
//	@Router			/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Items(r.Context())
	if err != nil {
		h.fail(w, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemsResponse{Items: items, Total: len(items)})
}

// PendingItems handles GET /api/items/pending.
//
//	@Summary		Items with a transcript awaiting enrichment
//	@Tags			items
//	@Produce		json
//	@Success		200	{object}	ItemsResponse
//	@Security		BearerAuth
//	@Router			/items/pending [get]
func (h *Handler) PendingItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.PendingItems(r.Context())
	if err != nil {
		h.fail(w, "pending items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemsResponse{Items: items, Total: len(items)})
}

// GetItem handles GET /api/items/{id}.
//
//	@Summary		Pipeline status of one item
//	@Tags			items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	ItemStatus
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.svc.Item(r.Context(), id)
	if err != nil {
		h.fail(w, "get item", err, slog.String("item", id))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error, attrs ...any) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error("api: "+op+" failed", append(attrs, slog.String("error", err.Error()))...)
	writeError(w, http.StatusInternalServerError, "internal error")
}
