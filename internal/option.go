package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/starford/study/internal/enrich"
	"github.com/starford/study/internal/logging"
	"github.com/starford/study/internal/source"
)

// Fetcher downloads item metadata and captions for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts source.FetchOptions) (*source.Batch, error)
}

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	logger   *slog.Logger
	out      io.Writer
	version  string
	runID    string
	fetcher  Fetcher
	enricher enrich.Enricher
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// WithOutput sets where reports and tables are written (default stdout).
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithFetcher replaces the yt-dlp fetcher.
func WithFetcher(f Fetcher) Option {
	return func(a *application) {
		a.fetcher = f
	}
}

// WithEnricher replaces the enrichment backend selected by the configuration.
func WithEnricher(e enrich.Enricher) Option {
	return func(a *application) {
		a.enricher = e
	}
}

// newApplication applies opts, validates the configuration and fills in
// the logger and output. Logs go to stderr so stdout stays free for
// reports and the MCP stdio transport.
func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := app.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if app.out == nil {
		app.out = os.Stdout
	}

	app.runID = uuid.NewString()
	if app.logger == nil {
		l, err := logging.New(os.Stderr, app.config.App.Level(), app.config.App.LogFormat)
		if err != nil {
			return nil, err
		}
		app.logger = l
	}
	app.logger = app.logger.With(slog.String("run_id", app.runID))
	return app, nil
}

// enrichBackend returns the injected enricher or builds the configured one.
func (a *application) enrichBackend() (enrich.Enricher, error) {
	if a.enricher != nil {
		return a.enricher, nil
	}
	return enrich.New(a.config.Enrichment.Client(), a.logger)
}

func (a *application) sourceFetcher() Fetcher {
	if a.fetcher != nil {
		return a.fetcher
	}
	return source.NewYTDLP(a.config.Source.Command, a.logger)
}
