package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/andresuchdata/order-tracker/internal/repository/postgres"
	_ "github.com/mattn/go-sqlite3"
)

// tableReader is implemented by postgres.SheetRepository, over either a
// Postgres or a SQLite connection.
type tableReader interface {
	ReadTable(ctx context.Context, table string) ([]string, [][]string, error)
}

// TableFetcher reads a sheet mirrored into a database table and hands it on
// as CSV so it goes through the same parsing as every other source.
type TableFetcher struct {
	reader tableReader
	driver string
	table  string
}

func NewTableFetcher(reader tableReader, driver, table string) *TableFetcher {
	return &TableFetcher{reader: reader, driver: driver, table: table}
}

func (f *TableFetcher) Name() string {
	return f.driver + "://" + f.table
}

func (f *TableFetcher) Fetch(ctx context.Context) ([]byte, error) {
	header, records, err := f.reader.ReadTable(ctx, f.table)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return buf.Bytes(), nil
}

// openSQLite opens a SQLite file holding a mirrored sheet, read-only.
func openSQLite(path string) (*postgres.DB, error) {
	return postgres.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
}
