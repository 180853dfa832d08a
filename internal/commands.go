package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/starford/study/internal/caption"
	"github.com/starford/study/internal/deps"
	"github.com/starford/study/internal/index"
	"github.com/starford/study/internal/notes"
	"github.com/starford/study/internal/pipeline"
	"github.com/starford/study/internal/records"
	"github.com/starford/study/internal/source"
	"github.com/starford/study/internal/state"
	"github.com/starford/study/internal/storage"
)

// ErrNothingToProcess is returned by Process when neither ids nor all
// were given.
var ErrNothingToProcess = errors.New("give an item id or --all")

// IngestRequest describes one ingest or transcript-only run.
type IngestRequest struct {
	URL string
	// After keeps only items uploaded on or after this YYYYMMDD date.
	After string
	// TranscriptOnly stops after stage 1.
	TranscriptOnly bool
	pipeline.Options
}

// workspace holds the stores shared by the pipeline commands.
type workspace struct {
	state   *state.Store
	records *records.Store
	vault   *notes.Vault
	store   *storage.FS
	lock    *state.RunLock
}

func (w *workspace) close() {
	_ = w.lock.Release()
}

// openWorkspace takes the run lock and opens the state, record and vault
// stores. Callers must close the workspace.
func (a *application) openWorkspace() (*workspace, error) {
	statePath := a.config.Data.StatePath()
	lock, err := state.AcquireRunLock(statePath)
	if err != nil {
		return nil, err
	}
	ws := &workspace{lock: lock}

	if ws.state, err = state.Open(statePath); err != nil {
		ws.close()
		return nil, err
	}
	dataFS, err := storage.EnsureFS(a.config.Data.Dir)
	if err != nil {
		ws.close()
		return nil, fmt.Errorf("init data dir: %w", err)
	}
	ws.records = records.New(dataFS)
	if ws.store, err = storage.EnsureFS(a.config.Vault.Path); err != nil {
		ws.close()
		return nil, fmt.Errorf("init vault: %w", err)
	}
	ws.vault = notes.NewVault(ws.store)
	return ws, nil
}

func (a *application) orchestrator(ws *workspace, withEnricher bool) (*pipeline.Orchestrator, error) {
	d := pipeline.Dependencies{
		State:         ws.state,
		Records:       ws.records,
		Notes:         ws.vault,
		DefaultFormat: caption.Format(a.config.Source.Format),
	}
	if withEnricher {
		e, err := a.enrichBackend()
		if err != nil {
			return nil, err
		}
		d.Enricher = e
	}
	return pipeline.New(d, a.logger), nil
}

// Ingest fetches the items behind req.URL and runs them through the
// pipeline. Items the state store records as finished are added to the
// yt-dlp download archive first so they are not fetched again, and
// unfinished ones are taken out of it. Force and Reprocess bypass the
// archive.
func Ingest(ctx context.Context, req IngestRequest, opts ...Option) (pipeline.Counts, error) {
	app, err := newApplication(opts)
	if err != nil {
		return pipeline.Counts{}, err
	}
	ws, err := app.openWorkspace()
	if err != nil {
		return pipeline.Counts{}, err
	}
	defer ws.close()

	orch, err := app.orchestrator(ws, !req.TranscriptOnly)
	if err != nil {
		return pipeline.Counts{}, err
	}

	fetchOpts := source.FetchOptions{
		Lang:    app.config.Source.Lang,
		Format:  caption.Format(app.config.Source.Format),
		After:   req.After,
		Verbose: app.config.App.Verbose,
	}
	if !req.Force && !req.Reprocess {
		fetchOpts.ArchiveFile = app.config.Data.ArchivePath()
		done, unfinished := archiveIDs(ws.state, req.TranscriptOnly)
		n, err := source.SyncArchive(fetchOpts.ArchiveFile, done, unfinished)
		if err != nil {
			return pipeline.Counts{}, err
		}
		app.logger.Debug("ingest: archive synced", slog.String("path", fetchOpts.ArchiveFile), slog.Int("entries", n))
	}

	batch, err := app.sourceFetcher().Fetch(ctx, req.URL, fetchOpts)
	if err != nil {
		return pipeline.Counts{}, err
	}
	defer func() {
		if err := batch.Close(); err != nil {
			app.logger.Warn("ingest: cleanup failed", slog.String("error", err.Error()))
		}
	}()
	app.logger.Info("ingest: starting", slog.String("url", req.URL), slog.Int("items", len(batch.Items)),
		slog.Bool("transcript_only", req.TranscriptOnly))

	var counts pipeline.Counts
	if req.TranscriptOnly {
		counts, err = orch.Extract(ctx, batch.Items, req.Options)
	} else {
		counts, err = orch.Run(ctx, batch.Items, req.Options)
	}
	writeCounts(app.out, counts)
	if err != nil {
		return counts, err
	}
	app.refreshIndex(ws.store)
	return counts, nil
}

// Process runs enrichment and note generation for transcripts already on
// disk: the given ids, or every pending item when ids is empty and all is
// set.
func Process(ctx context.Context, ids []string, all bool, popts pipeline.Options, opts ...Option) (pipeline.Counts, error) {
	if len(ids) == 0 && !all {
		return pipeline.Counts{}, ErrNothingToProcess
	}
	app, err := newApplication(opts)
	if err != nil {
		return pipeline.Counts{}, err
	}
	ws, err := app.openWorkspace()
	if err != nil {
		return pipeline.Counts{}, err
	}
	defer ws.close()

	orch, err := app.orchestrator(ws, true)
	if err != nil {
		return pipeline.Counts{}, err
	}
	if len(ids) == 0 {
		ids = ws.state.PendingEnrichment()
	}
	app.logger.Info("process: starting", slog.Int("items", len(ids)))

	counts, err := orch.Process(ctx, ids, popts)
	writeCounts(app.out, counts)
	if err != nil {
		return counts, err
	}
	app.refreshIndex(ws.store)
	return counts, nil
}

// refreshIndex brings the vault index up to date after a run. The index is
// a cache, so failures are logged and the run still succeeds.
func (a *application) refreshIndex(store *storage.FS) {
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		a.logger.Warn("index: open failed", slog.String("error", err.Error()))
		return
	}
	defer db.Close()
	if _, err := index.Sync(db, store, a.logger); err != nil {
		a.logger.Warn("index: sync failed", slog.String("error", err.Error()))
	}
}

// archiveIDs splits the known items into those that need no more work from
// this kind of run and those that do. A transcript-only run is finished once
// the transcript is saved, a full run once notes are written.
func archiveIDs(st *state.Store, transcriptOnly bool) (done, unfinished []string) {
	last := state.StageNotes
	if transcriptOnly {
		last = state.StageTranscript
	}
	for _, it := range st.All() {
		if it.Done(last) {
			done = append(done, it.ItemID)
		} else {
			unfinished = append(unfinished, it.ItemID)
		}
	}
	return done, unfinished
}

// Status prints stage counts, the items awaiting enrichment and the
// availability of external tools.
func Status(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	st, err := state.Open(app.config.Data.StatePath())
	if err != nil {
		return err
	}
	all := st.All()
	var extracted, enriched, noted int
	for _, it := range all {
		if it.TranscriptExtracted {
			extracted++
		}
		if it.Enriched {
			enriched++
		}
		if it.NotesGenerated {
			noted++
		}
	}
	itoa := strconv.Itoa
	fmt.Fprintln(app.out, renderTable("Items",
		[]string{"Total", "Transcripts", "Enriched", "Notes"},
		[][]string{{itoa(len(all)), itoa(extracted), itoa(enriched), itoa(noted)}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight}))

	if pending := st.PendingEnrichment(); len(pending) > 0 {
		titles := func(string) string { return "" }
		if dataFS, err := storage.NewFS(app.config.Data.Dir); err == nil {
			recs := records.New(dataFS)
			titles = func(id string) string {
				if t, err := recs.LoadTranscript(id); err == nil {
					return t.Title
				}
				return ""
			}
		}
		rows := make([][]string, len(pending))
		for i, id := range pending {
			rows[i] = []string{id, titles(id)}
		}
		fmt.Fprintln(app.out, renderTable("Pending enrichment", []string{"Item", "Title"}, rows, nil))
	}

	ytdlp := deps.YTDLP
	ytdlp.Command = app.config.Source.Command
	claude := deps.ClaudeCLI
	claude.Command = app.config.Enrichment.CLICommand
	claude.Optional = app.config.Enrichment.Backend != "cli"
	writeDeps(app.out, deps.CheckBinaries([]deps.Requirement{ytdlp, claude}))
	return nil
}

// ShowConfig prints the effective configuration with the API key masked.
func ShowConfig(opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c := app.config
	rows := [][]string{
		{"vault.path", c.Vault.Path},
		{"data.dir", c.Data.Dir},
		{"data.state", c.Data.StatePath()},
		{"data.archive", c.Data.ArchivePath()},
		{"source.command", c.Source.Command},
		{"source.lang", c.Source.Lang},
		{"source.format", c.Source.Format},
		{"enrichment.backend", c.Enrichment.Backend},
		{"enrichment.model", c.Enrichment.Model},
		{"enrichment.api_key", c.Enrichment.MaskedAPIKey()},
		{"enrichment.content_lang", c.Enrichment.ContentLang},
		{"enrichment.timeout", c.Enrichment.Timeout.String()},
		{"sqlite.path", c.SQLite.Path},
		{"app.http", c.App.HTTP.Address()},
		{"app.log_level", c.App.Level().String()},
		{"auth.mode", c.Auth.Mode},
	}
	fmt.Fprintln(app.out, renderTable("Configuration", []string{"Key", "Value"}, rows, nil))
	return nil
}

// Reindex synchronizes the vault index with the notes on disk.
func Reindex(_ context.Context, opts ...Option) (index.SyncResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return index.SyncResult{}, err
	}
	store, db, err := app.openIndex()
	if err != nil {
		return index.SyncResult{}, err
	}
	defer db.Close()

	res, err := index.Sync(db, store, app.logger)
	if err != nil {
		return res, err
	}
	writeSync(app.out, res)
	return res, nil
}

// Search syncs the index and prints the notes matching query.
func Search(_ context.Context, query string, limit int, opts ...Option) ([]index.SearchResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	store, db, err := app.openIndex()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if _, err := index.Sync(db, store, app.logger); err != nil {
		return nil, err
	}
	results, err := db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{r.Title, r.Kind, r.Path, oneLine(r.Snippet)}
	}
	fmt.Fprintln(app.out, renderTable(fmt.Sprintf("%d results for %q", len(results), query),
		[]string{"Title", "Kind", "Path", "Snippet"}, rows, nil))
	return results, nil
}

func (a *application) openIndex() (*storage.FS, *index.DB, error) {
	store, err := storage.EnsureFS(a.config.Vault.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init vault: %w", err)
	}
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}
	return store, db, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
