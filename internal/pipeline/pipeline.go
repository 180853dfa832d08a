// Package pipeline drives items through the three stages: transcript
// extraction, enrichment and note generation. Every stage is gated by the
// item state store so re-running a batch only does outstanding work.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/starford/study/internal/apperr"
	"github.com/starford/study/internal/caption"
	"github.com/starford/study/internal/enrich"
	"github.com/starford/study/internal/models"
	"github.com/starford/study/internal/notes"
	"github.com/starford/study/internal/source"
	"github.com/starford/study/internal/state"
)

// StateStore is the subset of state.Store the orchestrator uses.
type StateStore interface {
	IsStageComplete(itemID string, stage state.Stage) bool
	Complete(itemID string, stage state.Stage) error
}

// RecordStore persists transcript and knowledge records.
type RecordStore interface {
	SaveTranscript(t models.Transcript) (string, error)
	LoadTranscript(id string) (models.Transcript, error)
	SaveKnowledge(id string, k models.Knowledge) (string, error)
	LoadKnowledge(id string) (models.Knowledge, error)
}

// NoteWriter writes the knowledge vault.
type NoteWriter interface {
	WriteVideoNote(t models.Transcript, k models.Knowledge) (string, error)
	MergeConcept(c models.Concept, sourceTitle string) (notes.MergeResult, error)
	MergeChannel(channel, channelURL, videoTitle string) (notes.MergeResult, error)
}

// Dependencies are the collaborators of an Orchestrator.
type Dependencies struct {
	State    StateStore
	Records  RecordStore
	Notes    NoteWriter
	Enricher enrich.Enricher
	// DefaultFormat is used for caption files without a known extension.
	DefaultFormat caption.Format
	// EnrichTimeout bounds one enrichment call including its retries.
	EnrichTimeout time.Duration
}

// Options tune a run.
type Options struct {
	// Force re-extracts transcripts even when stage 1 is complete.
	Force bool
	// Reprocess re-runs enrichment and note generation.
	Reprocess bool
}

// Counts summarizes a run.
type Counts struct {
	TranscriptsSaved   int
	TranscriptsSkipped int
	TranscriptsFailed  int
	Enriched           int
	EnrichFailed       int
	NotesGenerated     int
	NotesSkipped       int
	NotesFailed        int
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.TranscriptsSaved += other.TranscriptsSaved
	c.TranscriptsSkipped += other.TranscriptsSkipped
	c.TranscriptsFailed += other.TranscriptsFailed
	c.Enriched += other.Enriched
	c.EnrichFailed += other.EnrichFailed
	c.NotesGenerated += other.NotesGenerated
	c.NotesSkipped += other.NotesSkipped
	c.NotesFailed += other.NotesFailed
}

// Failed reports whether any item failed a stage.
func (c Counts) Failed() int {
	return c.TranscriptsFailed + c.EnrichFailed + c.NotesFailed
}

// Orchestrator runs items sequentially in input order.
type Orchestrator struct {
	deps   Dependencies
	logger *slog.Logger
}

// New returns an Orchestrator.
func New(deps Dependencies, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.DefaultFormat == "" {
		deps.DefaultFormat = caption.FormatJSON3
	}
	return &Orchestrator{deps: deps, logger: logger}
}

// Run executes all three stages for each item. Per-item failures are
// counted and logged; state store failures and cancellation abort the run.
func (o *Orchestrator) Run(ctx context.Context, items []source.Item, opts Options) (Counts, error) {
	var c Counts
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		t, ok, err := o.extract(it, opts, &c)
		if err != nil {
			return c, err
		}
		if !ok {
			continue
		}
		if err := o.enrichAndWrite(ctx, t, opts, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Extract runs stage 1 only.
func (o *Orchestrator) Extract(ctx context.Context, items []source.Item, opts Options) (Counts, error) {
	var c Counts
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		if _, _, err := o.extract(it, opts, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Process runs stages 2 and 3 for transcripts already in the record store.
func (o *Orchestrator) Process(ctx context.Context, ids []string, opts Options) (Counts, error) {
	var c Counts
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return c, err
		}
		t, err := o.deps.Records.LoadTranscript(id)
		if err != nil {
			o.logger.Error("pipeline: load transcript", slog.String("item", id), slog.String("error", err.Error()))
			c.TranscriptsFailed++
			continue
		}
		if err := o.enrichAndWrite(ctx, t, opts, &c); err != nil {
			return c, err
		}
	}
	return c, nil
}

// extract returns the transcript for it, parsing and saving it when stage 1
// is due. ok is false when the item cannot continue.
func (o *Orchestrator) extract(it source.Item, opts Options, c *Counts) (models.Transcript, bool, error) {
	log := o.logger.With(slog.String("item", it.ID), slog.String("title", it.Title))

	if o.deps.State.IsStageComplete(it.ID, state.StageTranscript) && !opts.Force {
		t, err := o.deps.Records.LoadTranscript(it.ID)
		if err == nil {
			log.Info("pipeline: transcript already extracted")
			c.TranscriptsSkipped++
			return t, true, nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			log.Error("pipeline: load transcript", slog.String("error", err.Error()))
			c.TranscriptsFailed++
			return models.Transcript{}, false, nil
		}
		log.Warn("pipeline: transcript record missing, extracting again")
	}

	if it.CaptionPath == "" {
		log.Warn("pipeline: no caption found")
		c.TranscriptsSkipped++
		return models.Transcript{}, false, nil
	}

	segments, err := caption.ParseFile(it.CaptionPath, caption.DetectFormat(it.CaptionPath, o.deps.DefaultFormat))
	if err != nil {
		log.Error("pipeline: parse caption", slog.String("path", it.CaptionPath), slog.String("error", err.Error()))
		c.TranscriptsFailed++
		return models.Transcript{}, false, nil
	}
	t := models.Transcript{
		ID:         it.ID,
		Title:      it.Title,
		Channel:    it.Channel,
		UploadDate: it.UploadDate,
		URL:        it.URL,
		Segments:   segments,
	}
	if _, err := o.deps.Records.SaveTranscript(t); err != nil {
		log.Error("pipeline: save transcript", slog.String("error", err.Error()))
		c.TranscriptsFailed++
		return models.Transcript{}, false, nil
	}
	if err := o.deps.State.Complete(it.ID, state.StageTranscript); err != nil {
		return models.Transcript{}, false, err
	}
	log.Info("pipeline: transcript saved", slog.Int("segments", len(segments)))
	c.TranscriptsSaved++
	return t, true, nil
}

// enrichAndWrite runs stages 2 and 3 for t. Only state store failures and
// cancellation are returned.
func (o *Orchestrator) enrichAndWrite(ctx context.Context, t models.Transcript, opts Options, c *Counts) error {
	log := o.logger.With(slog.String("item", t.ID), slog.String("title", t.Title))

	var k models.Knowledge
	if o.deps.State.IsStageComplete(t.ID, state.StageEnrichment) && !opts.Reprocess {
		stored, err := o.deps.Records.LoadKnowledge(t.ID)
		if err != nil {
			log.Warn("pipeline: no stored knowledge, skipping notes", slog.String("error", err.Error()))
			c.NotesSkipped++
			return nil
		}
		log.Info("pipeline: already enriched")
		k = stored
	} else {
		if len(t.Segments) == 0 {
			log.Warn("pipeline: empty transcript, skipping enrichment")
			c.NotesSkipped++
			return nil
		}
		enriched, err := o.enrich(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("pipeline: enrichment failed", slog.String("error", err.Error()))
			c.EnrichFailed++
			return nil
		}
		if _, err := o.deps.Records.SaveKnowledge(t.ID, enriched); err != nil {
			log.Error("pipeline: save knowledge", slog.String("error", err.Error()))
			c.EnrichFailed++
			return nil
		}
		if err := o.deps.State.Complete(t.ID, state.StageEnrichment); err != nil {
			return err
		}
		log.Info("pipeline: enriched", slog.Int("concepts", len(enriched.Concepts)))
		c.Enriched++
		k = enriched
	}

	if o.deps.State.IsStageComplete(t.ID, state.StageNotes) && !opts.Reprocess {
		log.Info("pipeline: notes already generated")
		return nil
	}
	if err := o.writeNotes(t, k); err != nil {
		log.Error("pipeline: write notes", slog.String("error", err.Error()))
		c.NotesFailed++
		return nil
	}
	if err := o.deps.State.Complete(t.ID, state.StageNotes); err != nil {
		return err
	}
	log.Info("pipeline: notes generated")
	c.NotesGenerated++
	return nil
}

func (o *Orchestrator) enrich(ctx context.Context, t models.Transcript) (models.Knowledge, error) {
	if o.deps.EnrichTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deps.EnrichTimeout)
		defer cancel()
	}
	return o.deps.Enricher.Process(ctx, t.FullText(), t.Title)
}

func (o *Orchestrator) writeNotes(t models.Transcript, k models.Knowledge) error {
	if _, err := o.deps.Notes.WriteVideoNote(t, k); err != nil {
		return err
	}
	for _, concept := range k.Concepts {
		if _, err := o.deps.Notes.MergeConcept(concept, t.Title); err != nil {
			return err
		}
	}
	_, err := o.deps.Notes.MergeChannel(t.Channel, t.ChannelURL(), t.Title)
	return err
}
