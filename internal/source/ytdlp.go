// Package source fetches item metadata and caption files with yt-dlp.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/study/internal/caption"
	"github.com/starford/study/internal/deps"
)

// Item is one fetched video. CaptionPath is empty when no caption track was
// available in the requested language.
type Item struct {
	ID          string
	Title       string
	Channel     string
	UploadDate  string
	URL         string
	CaptionPath string
}

// FetchOptions controls one yt-dlp invocation.
type FetchOptions struct {
	Lang   string
	Format caption.Format
	// After keeps only items uploaded on or after this YYYYMMDD date.
	After string
	// ArchiveFile enables yt-dlp's download archive when non-empty.
	ArchiveFile string
	Verbose     bool
}

// Batch is the result of a fetch. It owns a temporary directory holding the
// caption files; call Close once the items are processed.
type Batch struct {
	Items []Item
	dir   string
}

// Close removes the batch's temporary files.
func (b *Batch) Close() error {
	if b == nil || b.dir == "" {
		return nil
	}
	return os.RemoveAll(b.dir)
}

type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// YTDLP drives the yt-dlp command-line tool.
type YTDLP struct {
	command string
	logger  *slog.Logger
	run     runFunc
}

// NewYTDLP returns a fetcher that runs command (default "yt-dlp").
func NewYTDLP(command string, logger *slog.Logger) *YTDLP {
	if strings.TrimSpace(command) == "" {
		command = deps.YTDLP.Command
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &YTDLP{command: command, logger: logger, run: execRun}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Args builds the yt-dlp argument list for url writing into dir.
func Args(url, dir string, opts FetchOptions) []string {
	args := []string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--write-info-json",
		"--ignore-errors",
		"--sub-langs", opts.Lang,
		"--sub-format", string(opts.Format),
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
	}
	if !opts.Verbose {
		args = append(args, "--quiet", "--no-warnings")
	}
	if opts.ArchiveFile != "" {
		args = append(args, "--download-archive", opts.ArchiveFile)
	}
	if opts.After != "" {
		args = append(args, "--dateafter", opts.After)
	}
	return append(args, url)
}

// Fetch runs yt-dlp for url (a video, playlist or channel) and collects the
// resulting items.
func (y *YTDLP) Fetch(ctx context.Context, url string, opts FetchOptions) (*Batch, error) {
	if y.run == nil {
		y.run = execRun
	}
	req := deps.YTDLP
	req.Command = y.command
	if _, err := deps.Require(req); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	dir, err := os.MkdirTemp("", "study-captions-*")
	if err != nil {
		return nil, fmt.Errorf("source: temp dir: %w", err)
	}
	batch := &Batch{dir: dir}

	y.logger.Info("source: fetching", slog.String("url", url), slog.String("lang", opts.Lang), slog.String("format", string(opts.Format)))
	_, stderr, runErr := y.run(ctx, y.command, Args(url, dir, opts)...)

	items, err := collect(dir, opts)
	if err != nil {
		_ = batch.Close()
		return nil, err
	}
	if runErr != nil {
		if len(items) == 0 {
			_ = batch.Close()
			return nil, fmt.Errorf("source: yt-dlp %s: %w: %s", url, runErr, strings.TrimSpace(string(stderr)))
		}
		y.logger.Warn("source: yt-dlp reported errors", slog.String("url", url), slog.String("error", runErr.Error()))
	}
	batch.Items = items
	y.logger.Info("source: fetched", slog.String("url", url), slog.Int("items", len(items)))
	return batch, nil
}

type infoJSON struct {
	Type               string                  `json:"_type"`
	ID                 string                  `json:"id"`
	Title              string                  `json:"title"`
	Channel            string                  `json:"channel"`
	Uploader           string                  `json:"uploader"`
	UploadDate         string                  `json:"upload_date"`
	WebpageURL         string                  `json:"webpage_url"`
	PlaylistIndex      int                     `json:"playlist_index"`
	RequestedSubtitles map[string]subtitleInfo `json:"requested_subtitles"`
}

type subtitleInfo struct {
	Ext      string `json:"ext"`
	Filepath string `json:"filepath"`
}

// collect reads every per-video .info.json file in dir.
func collect(dir string, opts FetchOptions) ([]Item, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.info.json"))
	if err != nil {
		return nil, fmt.Errorf("source: list info files: %w", err)
	}
	type indexed struct {
		Item
		index int
	}
	var found []indexed
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("source: read %s: %w", m, err)
		}
		var info infoJSON
		if err := json.Unmarshal(data, &info); err != nil {
			return nil, fmt.Errorf("source: decode %s: %w", filepath.Base(m), err)
		}
		if info.ID == "" || info.Type == "playlist" {
			continue
		}
		found = append(found, indexed{Item: toItem(info, dir, opts.Lang), index: info.PlaylistIndex})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].index != found[j].index {
			return found[i].index < found[j].index
		}
		return found[i].ID < found[j].ID
	})
	items := make([]Item, len(found))
	for i, f := range found {
		items[i] = f.Item
	}
	return items, nil
}

func toItem(info infoJSON, dir, lang string) Item {
	return Item{
		ID:          info.ID,
		Title:       orDefault(info.Title, "Unknown"),
		Channel:     orDefault(orDefault(info.Channel, info.Uploader), "Unknown"),
		UploadDate:  orDefault(info.UploadDate, "00000000"),
		URL:         info.WebpageURL,
		CaptionPath: findCaption(info, dir, lang),
	}
}

// findCaption prefers the requested track for lang, then any requested
// track, then any caption file named after the item id.
func findCaption(info infoJSON, dir, lang string) string {
	candidates := make([]subtitleInfo, 0, len(info.RequestedSubtitles))
	if sub, ok := info.RequestedSubtitles[lang]; ok {
		candidates = append(candidates, sub)
	}
	keys := make([]string, 0, len(info.RequestedSubtitles))
	for k := range info.RequestedSubtitles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		candidates = append(candidates, info.RequestedSubtitles[k])
	}
	for _, c := range candidates {
		if c.Filepath != "" && fileExists(c.Filepath) {
			return c.Filepath
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, info.ID+".") {
			continue
		}
		ext := caption.Format(strings.TrimPrefix(filepath.Ext(name), "."))
		if ext.Valid() {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.Mode().IsRegular()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
