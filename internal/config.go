package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/study/internal/caption"
	"github.com/starford/study/internal/enrich"
	"github.com/starford/study/internal/logging"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Vault      VaultConfig       `yaml:"vault"`
	Data       DataConfig        `yaml:"data"`
	Source     SourceConfig      `yaml:"source"`
	Enrichment EnrichmentConfig  `yaml:"enrichment"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Enrichment.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplyEnv overrides fields from environment variables. lookup has the
// signature of os.LookupEnv; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("VAULT_PATH", &c.Vault.Path)
	str("DATA_DIR", &c.Data.Dir)
	str("ARCHIVE_FILE", &c.Data.ArchiveFile)
	str("TRANSCRIPT_LANG", &c.Source.Lang)
	str("SUBTITLE_FORMAT", &c.Source.Format)
	str("CLAUDE_BACKEND", &c.Enrichment.Backend)
	str("ANTHROPIC_API_KEY", &c.Enrichment.APIKey)
	str("CLAUDE_MODEL", &c.Enrichment.Model)
	str("CONTENT_LANG", &c.Enrichment.ContentLang)

	if v, ok := lookup("VERBOSE"); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			c.App.Verbose = true
		}
	}
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	Verbose   bool       `yaml:"verbose"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Level returns the effective log level. Verbose forces debug.
func (c *ApplicationConfig) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return c.LogLevel
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(logging.FormatAuto, logging.FormatJSON, logging.FormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the knowledge vault.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DataConfig locates transcript records, knowledge records and the state file.
type DataConfig struct {
	Dir         string `yaml:"dir"`
	ArchiveFile string `yaml:"archive_file"`
}

// StatePath returns the item state file.
func (c *DataConfig) StatePath() string {
	return filepath.Join(c.Dir, "processing_state.json")
}

// ArchivePath returns the yt-dlp download archive, defaulting to
// archive.txt in the data dir.
func (c *DataConfig) ArchivePath() string {
	if c.ArchiveFile != "" {
		return c.ArchiveFile
	}
	return filepath.Join(c.Dir, "archive.txt")
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// SourceConfig controls caption download.
type SourceConfig struct {
	Command string `yaml:"command"`
	Lang    string `yaml:"lang"`
	Format  string `yaml:"format"`
}

func formatNames() []string {
	names := make([]string, len(caption.Formats))
	for i, f := range caption.Formats {
		names[i] = string(f)
	}
	return names
}

// formatChoices is formatNames typed for validation.In, which compares the
// raw string field.
func formatChoices() []any {
	var out []any
	for _, n := range formatNames() {
		out = append(out, n)
	}
	return out
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Command, validation.Required),
		validation.Field(&c.Lang, validation.Required),
		validation.Field(&c.Format, validation.Required, validation.In(formatChoices()...).
			Error("must be one of "+strings.Join(formatNames(), ", "))),
	)
}

// EnrichmentConfig selects the enrichment backend.
type EnrichmentConfig struct {
	Backend     string        `yaml:"backend"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	CLICommand  string        `yaml:"cli_command"`
	ContentLang string        `yaml:"content_lang"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// Validate validates the enrichment configuration. The API key is checked
// when the backend is built so that commands which never enrich work
// without one.
func (c *EnrichmentConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(string(enrich.BackendAPI), string(enrich.BackendCLI))),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.ContentLang, validation.Required),
		validation.Field(&c.MaxTokens, validation.Min(0)),
		validation.Field(&c.MaxAttempts, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Timeout < 0 || c.RetryDelay < 0 {
		return fmt.Errorf("enrichment: timeout and retry_delay must not be negative")
	}
	return nil
}

// Client returns the enrich package configuration.
func (c *EnrichmentConfig) Client() enrich.Config {
	return enrich.Config{
		Backend:     enrich.Backend(c.Backend),
		APIKey:      c.APIKey,
		Model:       c.Model,
		BaseURL:     c.BaseURL,
		CLICommand:  c.CLICommand,
		ContentLang: c.ContentLang,
		MaxTokens:   c.MaxTokens,
		Timeout:     c.Timeout,
		RetryDelay:  c.RetryDelay,
		MaxAttempts: c.MaxAttempts,
	}
}

// MaskedAPIKey returns the API key reduced to its last four characters.
func (c *EnrichmentConfig) MaskedAPIKey() string {
	switch {
	case c.APIKey == "":
		return "(not set)"
	case len(c.APIKey) <= 4:
		return "****"
	default:
		return "****" + c.APIKey[len(c.APIKey)-4:]
	}
}

// SQLiteConfig holds the vault index database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the read API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: logging.FormatAuto,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Source: SourceConfig{
			Command: "yt-dlp",
			Lang:    "en",
			Format:  string(caption.FormatJSON3),
		},
		Enrichment: EnrichmentConfig{
			Backend:     string(enrich.BackendAPI),
			Model:       "claude-sonnet-4-5-20250929",
			CLICommand:  "claude",
			ContentLang: "pt-BR",
			MaxTokens:   4096,
			Timeout:     300 * time.Second,
			RetryDelay:  2 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "./data/index.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
