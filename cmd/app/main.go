package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/study/internal"
	"github.com/starford/study/internal/pipeline"
	pkgconfig "github.com/starford/study/pkg/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitItemsFailed is the exit status of a run in which some items failed.
const exitItemsFailed = 2

// loadConfig layers the configuration: defaults, then the config file when
// present, then environment variables, then command-line flags.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)

	if cmd.IsSet("vault") {
		cfg.Vault.Path = cmd.String("vault")
	}
	if cmd.IsSet("data-dir") {
		cfg.Data.Dir = cmd.String("data-dir")
	}
	if cmd.IsSet("lang") {
		cfg.Source.Lang = cmd.String("lang")
	}
	if cmd.IsSet("format") {
		cfg.Source.Format = cmd.String("format")
	}
	if cmd.IsSet("backend") {
		cfg.Enrichment.Backend = cmd.String("backend")
	}
	if cmd.IsSet("model") {
		cfg.Enrichment.Model = cmd.String("model")
	}
	if cmd.Bool("verbose") {
		cfg.App.Verbose = true
	}
	return cfg, nil
}

func options(cmd *cli.Command) ([]internal.Option, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func runOptions(cmd *cli.Command) pipeline.Options {
	return pipeline.Options{
		Force:     cmd.Bool("force"),
		Reprocess: cmd.Bool("reprocess"),
	}
}

// finish turns per-item failures into a non-zero exit status.
func finish(c pipeline.Counts, err error) error {
	if err != nil {
		return err
	}
	if n := c.Failed(); n > 0 {
		return cli.Exit(fmt.Sprintf("%d item stage(s) failed, see the log for details", n), exitItemsFailed)
	}
	return nil
}

// urlCommands builds the video, playlist and channel subcommands shared by
// ingest and transcript.
func urlCommands(transcriptOnly bool) []*cli.Command {
	kinds := []struct{ name, usage string }{
		{"video", "a single video URL"},
		{"playlist", "every video of a playlist URL"},
		{"channel", "every video of a channel URL"},
	}
	cmds := make([]*cli.Command, 0, len(kinds))
	for _, k := range kinds {
		cmds = append(cmds, &cli.Command{
			Name:      k.name,
			Usage:     "Process " + k.usage,
			ArgsUsage: "URL",
			Flags:     runFlags(),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				url := cmd.Args().First()
				if url == "" {
					return cli.Exit(k.name+": URL is required", 1)
				}
				opts, err := options(cmd)
				if err != nil {
					return err
				}
				req := internal.IngestRequest{
					URL:            url,
					After:          cmd.String("after"),
					TranscriptOnly: transcriptOnly,
					Options:        runOptions(cmd),
				}
				return finish(internal.Ingest(ctx, req, opts...))
			},
		})
	}
	return cmds
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "after",
			Usage: "Only items uploaded on or after `YYYYMMDD`",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Extract transcripts again even when already done",
		},
		&cli.BoolFlag{
			Name:  "reprocess",
			Usage: "Run enrichment and note generation again",
		},
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "study",
		Usage:   "Turn video captions into an Obsidian knowledge vault",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{Name: "vault", Usage: "Obsidian vault directory"},
			&cli.StringFlag{Name: "data-dir", Usage: "Directory for transcripts, knowledge records and state"},
			&cli.StringFlag{Name: "lang", Usage: "Caption language code"},
			&cli.StringFlag{Name: "format", Usage: "Caption format: json3, vtt or srt"},
			&cli.StringFlag{Name: "backend", Usage: "Enrichment backend: api or cli"},
			&cli.StringFlag{Name: "model", Usage: "Model used by the api backend"},
			&cli.BoolFlag{Name: "verbose", Usage: "Debug logging and yt-dlp output", Sources: cli.EnvVars("VERBOSE")},
		},
		Commands: []*cli.Command{
			{
				Name:     "ingest",
				Usage:    "Extract transcripts, enrich them and write notes",
				Commands: urlCommands(false),
			},
			{
				Name:     "transcript",
				Usage:    "Extract transcripts only",
				Commands: urlCommands(true),
			},
			{
				Name:      "process",
				Usage:     "Enrich extracted transcripts and write notes",
				ArgsUsage: "[ID...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Process every item awaiting enrichment"},
					&cli.BoolFlag{Name: "reprocess", Usage: "Run enrichment and note generation again"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					c, err := internal.Process(ctx, cmd.Args().Slice(), cmd.Bool("all"), runOptions(cmd), opts...)
					if errors.Is(err, internal.ErrNothingToProcess) {
						return cli.Exit(err.Error(), 1)
					}
					return finish(c, err)
				},
			},
			{
				Name:  "status",
				Usage: "Show pipeline progress and tool availability",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					return internal.Status(ctx, opts...)
				},
			},
			{
				Name:  "config",
				Usage: "Show the effective configuration",
				Action: func(_ context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					return internal.ShowConfig(opts...)
				},
			},
			{
				Name:  "index",
				Usage: "Rebuild the search index from the vault",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					_, err = internal.Reindex(ctx, opts...)
					return err
				},
			},
			{
				Name:      "search",
				Usage:     "Full-text search over the vault",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum number of results"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					query := strings.Join(cmd.Args().Slice(), " ")
					if query == "" {
						return cli.Exit("search: QUERY is required", 1)
					}
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					_, err = internal.Search(ctx, query, int(cmd.Int("limit")), opts...)
					return err
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the vault over HTTP with live change events",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					if err := internal.Serve(ctx, opts...); err != nil {
						return fmt.Errorf("app run error: %w", err)
					}
					return nil
				},
			},
			{
				Name:  "mcp",
				Usage: "Serve the vault as MCP tools over stdio",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := options(cmd)
					if err != nil {
						return err
					}
					return internal.ServeMCP(ctx, opts...)
				},
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			stop()
			os.Exit(exit.ExitCode())
		}
		slog.Error("application error", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
