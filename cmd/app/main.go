package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/noteforge/internal"
	"github.com/starford/noteforge/internal/mcpserver"
	"github.com/starford/noteforge/internal/noteservice"
	"github.com/starford/noteforge/internal/store"
	"github.com/starford/noteforge/internal/transfer"
	pkgconfig "github.com/starford/noteforge/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// newService opens the store and builds a facade for the one-shot
// subcommands that run without the HTTP server or event broker.
func newService(cfg *internal.Config) (*noteservice.Service, func(), error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	svc := noteservice.New(db, transfer.NewWorker(db, logger), nil, cfg.Autosave.Interval(), logger)
	cleanup := func() {
		_ = svc.Shutdown(context.Background())
		_ = db.Close()
	}
	return svc, cleanup, nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return mcpserver.New(svc).ServeStdio()
}

func exportNotes(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	count, err := svc.ExportTo(ctx, cmd.String("out"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "exported %d notes to %s\n", count, cmd.String("out"))
	return nil
}

func importNotes(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := svc.ImportFrom(ctx, cmd.String("in"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "imported: %d inserted, %d updated, %d skipped, %d problems\n",
		rep.Inserted, rep.Updated, rep.Skipped, len(rep.Problems))
	for _, p := range rep.Problems {
		fmt.Fprintf(os.Stderr, "  problem: %s\n", p.Error())
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "noteforge",
		Usage:  "Local-first note store with debounced autosave, SQLite full-text search, and JSON import/export",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tool interface on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:   "export",
				Usage:  "Export all notes to a JSON file",
				Action: exportNotes,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Destination file path",
						Required: true,
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Import notes from a JSON export file",
				Action: importNotes,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "in",
						Usage:    "Source file path",
						Required: true,
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
