package main

import (
	"fmt"

	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/andresuchdata/order-tracker/internal/dataset"
	"github.com/andresuchdata/order-tracker/internal/repository/postgres"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func runMirror(c *cli.Context) error {
	db, ok := c.Context.Value(dbKey).(*mirrorDB)
	if !ok || db == nil {
		return fmt.Errorf("database connection not initialized")
	}

	cfg := config.Load()
	snapshots, err := newSnapshotCache(c.Context, cfg)
	if err != nil {
		return err
	}

	ds, err := snapshots.Load(c.Context)
	if err != nil {
		return err
	}

	table := c.String("table")
	repo := postgres.NewSheetRepository(db.DB)
	if err := repo.ReplaceTable(c.Context, table, ds.Columns, datasetRecords(ds)); err != nil {
		return err
	}

	log.Info().
		Str("source", ds.Source).
		Str("driver", db.driver).
		Str("table", table).
		Int("rows", ds.Len()).
		Msg("sheet mirrored")
	fmt.Fprintf(c.App.Writer, "mirrored %d rows into %s\n", ds.Len(), table)
	return nil
}

// datasetRecords lays the rows out in column order.
func datasetRecords(ds *dataset.Dataset) [][]string {
	records := make([][]string, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		record := make([]string, len(ds.Columns))
		for i, col := range ds.Columns {
			record[i] = row[col]
		}
		records = append(records, record)
	}
	return records
}
