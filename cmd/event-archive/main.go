package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/did-method-hcs/go-didevent/archive"
	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

func main() {
	cmd := &cli.Command{
		Name:  "event-archive",
		Usage: "archive and query DID document event logs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "postgres-url",
				Usage:   "PostgreSQL connection string (if set, uses Postgres instead of SQLite)",
				Sources: cli.EnvVars("POSTGRES_URL"),
			},
			&cli.StringFlag{
				Name:    "sqlite-path",
				Usage:   "SQLite database file path (used when --postgres-url is not set)",
				Value:   "archive.db",
				Sources: cli.EnvVars("SQLITE_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Output logs in JSON format",
				Sources: cli.EnvVars("LOG_JSON"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the archive HTTP server",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "bind",
						Usage:   "HTTP server listen address",
						Value:   ":8080",
						Sources: cli.EnvVars("ARCHIVE_BIND"),
					},
					&cli.StringFlag{
						Name:    "metrics-addr",
						Usage:   "Metrics HTTP server listen address",
						Value:   ":9464",
						Sources: cli.EnvVars("METRICS_ADDR"),
					},
				},
			},
			{
				Name:      "import",
				Usage:     "import a JSON-lines export of event log entries",
				ArgsUsage: "<file | ->",
				Action:    runImport,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "name the import cursor is kept under (defaults to the file path)",
					},
					&cli.StringFlag{
						Name:    "metrics-addr",
						Usage:   "Metrics HTTP server listen address, kept up while the import runs (disabled if empty)",
						Sources: cli.EnvVars("METRICS_ADDR"),
					},
					&cli.IntFlag{
						Name:    "num-workers",
						Usage:   "Number of validation worker threads (0 = auto)",
						Value:   0,
						Sources: cli.EnvVars("NUM_WORKERS"),
					},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cmd *cli.Command) *slog.Logger {
	var level slog.Level
	switch cmd.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cmd.Bool("log-json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func openStore(cmd *cli.Command, logger *slog.Logger) (*archive.GormEventStore, error) {
	if postgresURL := cmd.String("postgres-url"); postgresURL != "" {
		slog.Info("using database", "type", "postgres")
		store, err := archive.NewGormEventStoreWithPostgres(postgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		return store, nil
	}

	sqlitePath := cmd.String("sqlite-path")
	slog.Info("using database", "type", "sqlite", "path", sqlitePath)
	store, err := archive.NewGormEventStoreWithSqlite(sqlitePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite store: %w", err)
	}
	return store, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd)
	httpAddr := cmd.String("bind")
	metricsAddr := cmd.String("metrics-addr")

	tel, err := setupOTel(ctx, "serve")
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer tel.Shutdown()

	store, err := openStore(cmd, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	server := archive.NewServer(store, httpAddr, logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx)
	})

	g.Go(func() error {
		return archive.ServeMetrics(gctx, metricsAddr, logger)
	})

	return g.Wait()
}

func runImport(ctx context.Context, cmd *cli.Command) error {
	logger := setupLogger(cmd)

	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("need to provide an export file as an argument")
	}
	source := cmd.String("source")
	if source == "" {
		source = path
	}
	numWorkers := cmd.Int("num-workers")
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	tel, err := setupOTel(ctx, "import")
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer tel.Shutdown()

	store, err := openStore(cmd, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, span := tel.tracer().Start(ctx, "import", trace.WithAttributes(
		attribute.String("import.source", source),
		attribute.Int("import.workers", numWorkers),
	))
	defer span.End()

	importCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	g, gctx := errgroup.WithContext(importCtx)
	if metricsAddr := cmd.String("metrics-addr"); metricsAddr != "" {
		g.Go(func() error {
			return archive.ServeMetrics(gctx, metricsAddr, logger)
		})
	}

	var stats archive.ImportStats
	g.Go(func() error {
		// the metrics listener only lives as long as the import
		defer stopMetrics()
		var err error
		stats, err = archive.NewImporter(store, source, numWorkers, logger).Run(gctx, r)
		return err
	})
	err = g.Wait()

	span.SetAttributes(
		attribute.Int64("import.imported", stats.Imported),
		attribute.Int64("import.rejected", stats.Rejected),
		attribute.Int64("import.cursor", stats.Cursor),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "import failed")
		return err
	}
	fmt.Printf("imported %d entries (%d rejected, %d duplicates), cursor at line %d\n", stats.Imported, stats.Rejected, stats.Duplicates, stats.Cursor)
	return nil
}
