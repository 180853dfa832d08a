package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/pipeline"
	"github.com/starford/study/internal/source"
	"github.com/starford/study/internal/state"
)

type stubFetcher struct {
	items []source.Item
	opts  []source.FetchOptions
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string, opts source.FetchOptions) (*source.Batch, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &source.Batch{Items: f.items}, nil
}

type stubEnricher struct {
	mu    sync.Mutex
	calls int
}

func (e *stubEnricher) Process(_ context.Context, _, title string) (models.Knowledge, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return models.Knowledge{
		TLDR:     "short " + title,
		Summary:  "long " + title,
		Concepts: []models.Concept{{Name: "Goroutine", Definition: "A lightweight thread."}},
	}, nil
}

type harness struct {
	cfg      *Config
	fetcher  *stubFetcher
	enricher *stubEnricher
	out      bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = filepath.Join(root, "vault")
	cfg.Data.Dir = filepath.Join(root, "data")
	cfg.SQLite.Path = filepath.Join(root, "data", "index.db")

	h := &harness{cfg: cfg, fetcher: &stubFetcher{}, enricher: &stubEnricher{}}
	for i, title := range []string{"Intro to Go", "Channels in Depth"} {
		id := fmt.Sprintf("vid%d", i+1)
		p := filepath.Join(root, id+".en.json3")
		body := fmt.Sprintf(`{"events":[{"tStartMs":0,"dDurationMs":2000,"segs":[{"utf8":"about %s"}]}]}`, title)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		h.fetcher.items = append(h.fetcher.items, source.Item{
			ID:          id,
			Title:       title,
			Channel:     "Tech Talks",
			UploadDate:  "20240115",
			URL:         "https://www.youtube.com/watch?v=" + id,
			CaptionPath: p,
		})
	}
	return h
}

func (h *harness) opts() []Option {
	return []Option{
		WithConfig(h.cfg),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithOutput(&h.out),
		WithFetcher(h.fetcher),
		WithEnricher(h.enricher),
	}
}

func TestIngest_FullRun(t *testing.T) {
	h := newHarness(t)

	c, err := Ingest(context.Background(), IngestRequest{URL: "https://www.youtube.com/@tech"}, h.opts()...)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	want := pipeline.Counts{TranscriptsSaved: 2, Enriched: 2, NotesGenerated: 2}
	if c != want {
		t.Errorf("counts = %+v, want %+v", c, want)
	}
	for _, p := range []string{
		"Sources/YouTube/Tech Talks/Videos/Intro to Go.md",
		"Sources/YouTube/Tech Talks/Tech Talks.md",
		"Concepts/Goroutine.md",
	} {
		if _, err := os.Stat(filepath.Join(h.cfg.Vault.Path, p)); err != nil {
			t.Errorf("missing note %s: %v", p, err)
		}
	}
	if !strings.Contains(h.out.String(), "Run summary") {
		t.Errorf("summary not printed: %q", h.out.String())
	}
	if _, err := os.Stat(h.cfg.SQLite.Path); err != nil {
		t.Errorf("index not refreshed: %v", err)
	}
}

func TestIngest_SecondRunSyncsArchiveAndSkips(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := Ingest(ctx, IngestRequest{URL: "u"}, h.opts()...); err != nil {
		t.Fatal(err)
	}
	c, err := Ingest(ctx, IngestRequest{URL: "u"}, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	if c.TranscriptsSkipped != 2 || c.Enriched != 0 || c.NotesGenerated != 0 {
		t.Errorf("second run counts = %+v", c)
	}
	if h.enricher.calls != 2 {
		t.Errorf("enricher calls = %d, want 2", h.enricher.calls)
	}

	archive := h.fetcher.opts[1].ArchiveFile
	if archive != h.cfg.Data.ArchivePath() {
		t.Fatalf("archive = %q, want %q", archive, h.cfg.Data.ArchivePath())
	}
	data, err := os.ReadFile(archive)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "youtube vid1\nyoutube vid2\n" {
		t.Errorf("archive = %q", data)
	}
}

func TestIngest_ForceSkipsArchive(t *testing.T) {
	h := newHarness(t)
	req := IngestRequest{URL: "u", Options: pipeline.Options{Force: true}}
	if _, err := Ingest(context.Background(), req, h.opts()...); err != nil {
		t.Fatal(err)
	}
	if got := h.fetcher.opts[0].ArchiveFile; got != "" {
		t.Errorf("archive with force = %q, want empty", got)
	}
}

func TestIngest_ReprocessSkipsArchive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := Ingest(ctx, IngestRequest{URL: "u"}, h.opts()...); err != nil {
		t.Fatal(err)
	}

	req := IngestRequest{URL: "u", Options: pipeline.Options{Reprocess: true}}
	c, err := Ingest(ctx, req, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.fetcher.opts[1].ArchiveFile; got != "" {
		t.Errorf("archive with reprocess = %q, want empty", got)
	}
	if c.Enriched != 2 || c.NotesGenerated != 2 {
		t.Errorf("reprocess counts = %+v, want 2 enriched and 2 notes", c)
	}
	if h.enricher.calls != 4 {
		t.Errorf("enricher calls = %d, want 4", h.enricher.calls)
	}
}

func TestIngest_UnfinishedItemsLeaveArchive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// yt-dlp archives what it downloads, before enrichment has run.
	if err := os.MkdirAll(h.cfg.Data.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.cfg.Data.ArchivePath(), []byte("youtube vid1\nyoutube vid2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Ingest(ctx, IngestRequest{URL: "u", TranscriptOnly: true}, h.opts()...); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(h.cfg.Data.ArchivePath())
	if string(data) != "youtube vid1\nyoutube vid2\n" {
		t.Fatalf("archive after transcript-only run = %q", data)
	}

	c, err := Ingest(ctx, IngestRequest{URL: "u"}, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.fetcher.opts[1].ArchiveFile; got != h.cfg.Data.ArchivePath() {
		t.Fatalf("archive = %q, want %q", got, h.cfg.Data.ArchivePath())
	}
	data, err = os.ReadFile(h.cfg.Data.ArchivePath())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("archive passed to full run = %q, want empty", data)
	}
	want := pipeline.Counts{TranscriptsSkipped: 2, Enriched: 2, NotesGenerated: 2}
	if c != want {
		t.Errorf("counts = %+v, want %+v", c, want)
	}

	if _, err := Ingest(ctx, IngestRequest{URL: "u"}, h.opts()...); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(h.cfg.Data.ArchivePath())
	if string(data) != "youtube vid1\nyoutube vid2\n" {
		t.Errorf("archive after finished run = %q", data)
	}
}

func TestIngest_FetchError(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = errors.New("yt-dlp exploded")
	if _, err := Ingest(context.Background(), IngestRequest{URL: "u"}, h.opts()...); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestIngest_LockHeld(t *testing.T) {
	h := newHarness(t)
	lock, err := state.AcquireRunLock(h.cfg.Data.StatePath())
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = Ingest(context.Background(), IngestRequest{URL: "u"}, h.opts()...)
	if !errors.Is(err, state.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}

func TestTranscriptOnlyThenProcessAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c, err := Ingest(ctx, IngestRequest{URL: "u", TranscriptOnly: true}, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	if c.TranscriptsSaved != 2 || h.enricher.calls != 0 {
		t.Fatalf("transcript-only counts = %+v, calls = %d", c, h.enricher.calls)
	}

	h.out.Reset()
	if err := Status(ctx, h.opts()...); err != nil {
		t.Fatal(err)
	}
	status := h.out.String()
	if !strings.Contains(status, "Pending enrichment") || !strings.Contains(status, "Channels in Depth") {
		t.Errorf("status = %q", status)
	}

	c, err = Process(ctx, nil, true, pipeline.Options{}, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	if c.Enriched != 2 || c.NotesGenerated != 2 {
		t.Errorf("process counts = %+v", c)
	}

	h.out.Reset()
	if err := Status(ctx, h.opts()...); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(h.out.String(), "Pending enrichment") {
		t.Errorf("nothing should be pending: %q", h.out.String())
	}
}

func TestProcess_SingleID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := Ingest(ctx, IngestRequest{URL: "u", TranscriptOnly: true}, h.opts()...); err != nil {
		t.Fatal(err)
	}
	c, err := Process(ctx, []string{"vid2"}, false, pipeline.Options{}, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	if c.Enriched != 1 || h.enricher.calls != 1 {
		t.Errorf("counts = %+v, calls = %d", c, h.enricher.calls)
	}
}

func TestProcess_RequiresTarget(t *testing.T) {
	h := newHarness(t)
	if _, err := Process(context.Background(), nil, false, pipeline.Options{}, h.opts()...); !errors.Is(err, ErrNothingToProcess) {
		t.Fatalf("err = %v, want ErrNothingToProcess", err)
	}
}

func TestReindexAndSearch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := Ingest(ctx, IngestRequest{URL: "u"}, h.opts()...); err != nil {
		t.Fatal(err)
	}

	res, err := Reindex(ctx, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	// The run already refreshed the index.
	if res.Unchanged != 4 || res.Indexed != 0 {
		t.Errorf("reindex = %+v", res)
	}

	results, err := Search(ctx, "lightweight", 10, h.opts()...)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Path != "Concepts/Goroutine.md" {
		t.Errorf("results = %+v", results)
	}
}

func TestShowConfig_MasksKey(t *testing.T) {
	h := newHarness(t)
	h.cfg.Enrichment.APIKey = "sk-ant-secret-1234"
	if err := ShowConfig(h.opts()...); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	if strings.Contains(out, "secret") || !strings.Contains(out, "****1234") {
		t.Errorf("config output = %q", out)
	}
}

func TestNewApplication_RejectsInvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Source.Format = "ass"
	if _, err := newApplication([]Option{WithConfig(cfg)}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := newApplication(nil); err == nil {
		t.Fatal("expected missing config error")
	}
}
