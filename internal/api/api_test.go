package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/starford/study/internal/noteservice"
	"github.com/starford/study/internal/testutil"
)

// testEnv builds a router over a seeded vault. An empty authToken means
// auth is disabled.
func testEnv(t *testing.T, authToken string) (http.Handler, testutil.Seeded) {
	t.Helper()
	return testEnvWithEvents(t, authToken != "", authToken, nil)
}

func testEnvWithEvents(t *testing.T, authEnabled bool, authToken string, events http.Handler) (http.Handler, testutil.Seeded) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	seeded := testutil.Seed(t, store, db)

	svc := noteservice.NewService(store, db, seeded.StatePath)
	return NewRouter(svc, authEnabled, authToken, events), seeded
}

func get(t *testing.T, router http.Handler, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v", target, err)
		}
	}
	return w.Code
}

func TestListNotes(t *testing.T) {
	router, _ := testEnv(t, "")

	var resp NoteListResponse
	if code := get(t, router, "/notes?limit=10", &resp); code != http.StatusOK {
		t.Fatalf("list = %d", code)
	}
	if resp.Total != 4 || len(resp.Notes) != 4 {
		t.Errorf("total = %d, notes = %d, want 4", resp.Total, len(resp.Notes))
	}

	if code := get(t, router, "/notes?kind=concept&sort=title", &resp); code != http.StatusOK {
		t.Fatalf("list concepts = %d", code)
	}
	if resp.Total != 2 || resp.Notes[0].Title != "Channel" || resp.Notes[1].Title != "Goroutine" {
		t.Errorf("concepts = %+v", resp.Notes)
	}
}

func TestGetNote(t *testing.T) {
	router, seeded := testEnv(t, "")

	var note NoteDetail
	if code := get(t, router, "/notes/"+seeded.Concepts["Goroutine"], &note); code != http.StatusOK {
		t.Fatalf("get = %d", code)
	}
	if note.Kind != "concept" || note.Title != "Goroutine" {
		t.Errorf("note = %+v", note)
	}
	if len(note.Backlinks) != 1 || note.Backlinks[0] != seeded.VideoPath {
		t.Errorf("backlinks = %v, want [%s]", note.Backlinks, seeded.VideoPath)
	}
	if note.Checksum == "" || note.Content == "" {
		t.Error("content and checksum should be set")
	}
}

func TestGetNote_EncodedPath(t *testing.T) {
	router, seeded := testEnv(t, "")

	var note NoteDetail
	target := "/notes/" + url.PathEscape(seeded.ChannelPath)
	if code := get(t, router, target, &note); code != http.StatusOK {
		t.Fatalf("get %s = %d", target, code)
	}
	if note.Kind != "youtube_channel" {
		t.Errorf("kind = %q", note.Kind)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	router, _ := testEnv(t, "")
	if code := get(t, router, "/notes/nope.md", nil); code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", code)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	router, seeded := testEnv(t, "")

	var resp BacklinksResponse
	if code := get(t, router, "/backlinks/"+seeded.VideoPath, &resp); code != http.StatusOK {
		t.Fatalf("backlinks = %d", code)
	}
	// Both concept notes and the channel note list the video.
	if len(resp.Backlinks) != 3 {
		t.Errorf("backlinks = %v, want 3", resp.Backlinks)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := testEnv(t, "")

	var resp SearchResponse
	if code := get(t, router, "/search?q=conduit", &resp); code != http.StatusOK {
		t.Fatalf("search = %d", code)
	}
	if len(resp.Results) != 1 || resp.Results[0].Kind != "concept" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router, _ := testEnv(t, "")
	if code := get(t, router, "/search", nil); code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", code)
	}
}

func TestItems(t *testing.T) {
	router, seeded := testEnv(t, "")

	var all ItemsResponse
	if code := get(t, router, "/items", &all); code != http.StatusOK {
		t.Fatalf("items = %d", code)
	}
	if all.Total != 2 || all.Items[0].ItemID != "vid1" {
		t.Fatalf("items = %+v", all.Items)
	}

	var pending ItemsResponse
	if code := get(t, router, "/items/pending", &pending); code != http.StatusOK {
		t.Fatalf("pending = %d", code)
	}
	if pending.Total != 1 || pending.Items[0].ItemID != "vid2" || pending.Items[0].Enriched {
		t.Errorf("pending = %+v", pending.Items)
	}

	var item ItemStatus
	if code := get(t, router, "/items/vid1", &item); code != http.StatusOK {
		t.Fatalf("item = %d", code)
	}
	if !item.NotesGenerated || item.NotePath != seeded.VideoPath || item.Title != "Intro to Go" {
		t.Errorf("item = %+v", item)
	}

	if code := get(t, router, "/items/unknown", nil); code != http.StatusNotFound {
		t.Errorf("unknown item = %d, want 404", code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")
	if code := get(t, router, "/items", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router, _ := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Errorf("WWW-Authenticate = %q", w.Header().Get("WWW-Authenticate"))
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router, _ := testEnv(t, "")
	if code := get(t, router, "/notes", nil); code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", code)
	}
}

func TestWriteMethodsNotRouted(t *testing.T) {
	router, seeded := testEnv(t, "")

	req := httptest.NewRequest(http.MethodDelete, "/notes/"+seeded.VideoPath, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("delete = %d, want 405", w.Code)
	}
}

// Event stream auth.

func blockingStream() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestEvents_AuthProtected(t *testing.T) {
	router, _ := testEnvWithEvents(t, true, "secret", blockingStream())
	if code := get(t, router, "/events", nil); code != http.StatusUnauthorized {
		t.Errorf("events no auth = %d, want 401", code)
	}
}

func TestEvents_ValidToken(t *testing.T) {
	router, _ := testEnvWithEvents(t, true, "tok", blockingStream())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("events with valid token = %d, want 200", w.Code)
	}
}

func TestEvents_NotMountedWithoutHandler(t *testing.T) {
	router, _ := testEnv(t, "")
	if code := get(t, router, "/events", nil); code != http.StatusNotFound {
		t.Errorf("events = %d, want 404", code)
	}
}
