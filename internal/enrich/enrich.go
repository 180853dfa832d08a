// Package enrich turns a transcript into structured knowledge by calling a
// language model through one of two interchangeable strategies: the
// Anthropic Messages API or the claude command-line tool.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/study/internal/deps"
	"github.com/starford/study/internal/models"
)

// Backend names an enrichment strategy.
type Backend string

// Available strategies.
const (
	BackendAPI Backend = "api"
	BackendCLI Backend = "cli"
)

const (
	defaultAPIAttempts = 3
	defaultCLIAttempts = 2
	defaultRetryDelay  = 2 * time.Second
	defaultTimeout     = 300 * time.Second
	defaultMaxTokens   = 4096
	defaultBaseURL     = "https://api.anthropic.com"
	defaultContentLang = "pt-BR"
)

// Enricher extracts knowledge from a transcript. Implementations retry
// internally and return *FailedError once attempts are exhausted.
type Enricher interface {
	Process(ctx context.Context, text, title string) (models.Knowledge, error)
}

// Config selects and parameterizes a strategy.
type Config struct {
	Backend     Backend
	APIKey      string
	Model       string
	BaseURL     string
	CLICommand  string
	ContentLang string
	MaxTokens   int
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// RetryDelay is the linear backoff base for the API strategy.
	RetryDelay time.Duration
	// MaxAttempts overrides the per-strategy default when positive.
	MaxAttempts int
}

// Option configures optional client parameters.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client used by the API strategy.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// ErrDependencyUnavailable matches a missing external enrichment tool.
var ErrDependencyUnavailable = deps.ErrUnavailable

// ValidationError describes a model response that does not match the
// expected document shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "enrich: invalid response: " + e.Reason
	}
	return fmt.Sprintf("enrich: invalid response: field %q: %s", e.Field, e.Reason)
}

// FailedError is returned when every attempt failed or a permanent error
// stopped the retries.
type FailedError struct {
	Attempts int
	Err      error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("enrich: failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// DependencyError reports that the external enrichment tool is missing.
type DependencyError struct {
	Name    string
	Install string
	Err     error
}

func (e *DependencyError) Error() string {
	if e.Install == "" {
		return fmt.Sprintf("enrich: %s not found", e.Name)
	}
	return fmt.Sprintf("enrich: %s not found. Install it with: %s", e.Name, e.Install)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Is makes DependencyError match ErrDependencyUnavailable.
func (e *DependencyError) Is(target error) bool { return target == ErrDependencyUnavailable }

// StatusError is a non-2xx response from the Messages API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("enrich: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// New builds the strategy named by cfg.Backend. The choice is made once; the
// returned Enricher is safe to reuse across items.
func New(cfg Config, logger *slog.Logger, opts ...Option) (Enricher, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &client{
		logger:  logger.With(slog.String("backend", string(cfg.Backend))),
		timeout: cfg.Timeout,
		lang:    cfg.ContentLang,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.lang == "" {
		c.lang = defaultContentLang
	}

	switch cfg.Backend {
	case BackendAPI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("enrich: api backend requires an API key")
		}
		if cfg.Model == "" {
			return nil, errors.New("enrich: api backend requires a model")
		}
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{}
		}
		api := &apiCaller{
			http:      httpClient,
			baseURL:   strings.TrimRight(firstNonEmpty(cfg.BaseURL, defaultBaseURL), "/"),
			apiKey:    cfg.APIKey,
			model:     cfg.Model,
			maxTokens: cfg.MaxTokens,
		}
		if api.maxTokens <= 0 {
			api.maxTokens = defaultMaxTokens
		}
		c.caller = api
		c.attempts = defaultAPIAttempts
		c.delay = cfg.RetryDelay
		if c.delay <= 0 {
			c.delay = defaultRetryDelay
		}
	case BackendCLI:
		c.caller = &cliCaller{command: firstNonEmpty(cfg.CLICommand, deps.ClaudeCLI.Command)}
		c.attempts = defaultCLIAttempts
	default:
		return nil, fmt.Errorf("enrich: unknown backend %q", cfg.Backend)
	}
	if cfg.MaxAttempts > 0 {
		c.attempts = cfg.MaxAttempts
	}
	return c, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
