package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/andresuchdata/order-tracker/internal/cache"
	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/andresuchdata/order-tracker/internal/domain"
	"github.com/andresuchdata/order-tracker/internal/repository/postgres"
	"github.com/andresuchdata/order-tracker/internal/service"
	"github.com/andresuchdata/order-tracker/internal/source"
	"github.com/andresuchdata/order-tracker/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/urfave/cli/v2"
)

type contextKey string

const dbKey contextKey = "db"

// mirrorDB is the connection a mirror writes to and the driver it was opened with.
type mirrorDB struct {
	*postgres.DB
	driver string
}

// initDB opens --sqlite when given, otherwise the Postgres --db-url.
func initDB(c *cli.Context) error {
	driver, dsn := "pgx", c.String("db-url")
	if path := c.String("sqlite"); path != "" {
		driver, dsn = "sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000"
	}
	if dsn == "" {
		return cli.Exit("either --db-url or --sqlite is required", 2)
	}

	db, err := postgres.Open(driver, dsn)
	if err != nil {
		return err
	}

	c.Context = context.WithValue(c.Context, dbKey, &mirrorDB{DB: db, driver: driver})
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*mirrorDB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "trackerctl",
		Usage: "Inspect and mirror the order tracking sheet",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				EnvVars: []string{"TRACKERCTL_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetLevel(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "lookup",
				Usage:     "Look up one order in the configured sheet and print the result as JSON",
				ArgsUsage: "<number>",
				Action:    runLookup,
			},
			{
				Name:   "fetch",
				Usage:  "Fetch and parse the configured sheet, printing its columns and row count",
				Action: runFetch,
			},
			{
				Name:  "mirror",
				Usage: "Copy the configured sheet into a Postgres or SQLite table",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db-url",
						Usage:   "Postgres connection string",
						EnvVars: []string{"DATABASE_URL"},
					},
					&cli.StringFlag{
						Name:  "sqlite",
						Usage: "Path of a SQLite file to mirror into instead of Postgres",
					},
					&cli.StringFlag{
						Name:    "table",
						Usage:   "Target table, replaced on every run",
						Value:   "order_sheet",
						EnvVars: []string{"SOURCE_TABLE"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runMirror,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("trackerctl failed")
		os.Exit(1)
	}
}

func newSnapshotCache(ctx context.Context, cfg *config.Config) (*cache.SnapshotCache, error) {
	fetcher, err := source.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return cache.NewSnapshotCache(fetcher, cache.NewNoopRawCache(), cache.OptionsFromConfig(cfg)), nil
}

func runLookup(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: trackerctl lookup <number>", 2)
	}

	cfg := config.Load()
	snapshots, err := newSnapshotCache(c.Context, cfg)
	if err != nil {
		return err
	}

	tracker := service.NewTrackerService(snapshots, service.LookupConfig{
		KeyColumn:    cfg.Source.KeyColumn,
		StatusColumn: cfg.Source.StatusColumn,
		Pipeline:     domain.NewPipeline(cfg.Tracker.Pipeline, cfg.Tracker.UnrankedProgress, cfg.Tracker.DefaultProgress),
	}, cfg.Tracker.KeyLabel)

	result := tracker.Track(c.Context, c.Args().First())
	if err := printJSON(c, result); err != nil {
		return err
	}

	switch result.Outcome {
	case domain.OutcomeUnavailable:
		return cli.Exit(fmt.Sprintf("sheet unavailable: %v", result.Err), 1)
	case domain.OutcomeNotFound, domain.OutcomeEmptyQuery:
		return cli.Exit("", 3)
	}
	return nil
}

func runFetch(c *cli.Context) error {
	cfg := config.Load()
	snapshots, err := newSnapshotCache(c.Context, cfg)
	if err != nil {
		return err
	}

	ds, err := snapshots.Load(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "source:  %s\n", ds.Source)
	fmt.Fprintf(c.App.Writer, "rows:    %d\n", ds.Len())
	fmt.Fprintf(c.App.Writer, "columns: %v\n", ds.Columns)
	for _, col := range []string{cfg.Source.KeyColumn, cfg.Source.StatusColumn} {
		if !ds.HasColumn(col) {
			fmt.Fprintf(c.App.Writer, "warning: column %q is missing\n", col)
		}
	}
	return nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
