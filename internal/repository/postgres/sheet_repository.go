package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// rowNumberColumn keeps the sheet order; it is not part of the sheet itself.
const rowNumberColumn = "_row_no"

// SheetRepository stores a copy of the order sheet as a plain text table so
// that deployments without access to the published sheet can read it.
type SheetRepository struct {
	db *DB
}

func NewSheetRepository(db *DB) *SheetRepository {
	return &SheetRepository{db: db}
}

// ReadTable returns the header and the rows of table in sheet order.
// NULL cells come back as empty strings.
func (r *SheetRepository) ReadTable(ctx context.Context, table string) (header []string, records [][]string, err error) {
	err = r.db.withSlot(ctx, func() error {
		header, records, err = r.readTable(ctx, table)
		return err
	})
	return header, records, err
}

func (r *SheetRepository) readTable(ctx context.Context, table string) ([]string, [][]string, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s", pq.QuoteIdentifier(table), pq.QuoteIdentifier(rowNumberColumn))

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query sheet table %s: %w", table, err)
	}
	defer rows.Close()

	allColumns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	header := make([]string, 0, len(allColumns))
	for _, col := range allColumns {
		if col != rowNumberColumn {
			header = append(header, col)
		}
	}

	var records [][]string
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan sheet row: %w", err)
		}

		record := make([]string, 0, len(header))
		for i, col := range allColumns {
			if col == rowNumberColumn {
				continue
			}
			record = append(record, cellString(values[i]))
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate sheet rows: %w", err)
	}

	return header, records, nil
}

// ReplaceTable swaps the whole table content for header/records in one
// transaction, so readers see either the old or the new sheet.
func (r *SheetRepository) ReplaceTable(ctx context.Context, table string, header []string, records [][]string) error {
	if err := validateHeader(header); err != nil {
		return err
	}

	quotedTable := pq.QuoteIdentifier(table)
	columnDefs := make([]string, 0, len(header)+1)
	insertCols := make([]string, 0, len(header)+1)
	placeholders := make([]string, 0, len(header)+1)

	columnDefs = append(columnDefs, pq.QuoteIdentifier(rowNumberColumn)+" INTEGER PRIMARY KEY")
	insertCols = append(insertCols, pq.QuoteIdentifier(rowNumberColumn))
	placeholders = append(placeholders, "$1")
	for i, col := range header {
		columnDefs = append(columnDefs, pq.QuoteIdentifier(col)+" TEXT")
		insertCols = append(insertCols, pq.QuoteIdentifier(col))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quotedTable); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
		create := fmt.Sprintf("CREATE TABLE %s (%s)", quotedTable, strings.Join(columnDefs, ", "))
		if _, err := tx.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("failed to create %s: %w", table, err)
		}

		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quotedTable, strings.Join(insertCols, ", "), strings.Join(placeholders, ", "))
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		args := make([]any, len(header)+1)
		for n, record := range records {
			args[0] = n + 1
			for i := range header {
				if i < len(record) {
					args[i+1] = record[i]
				} else {
					args[i+1] = ""
				}
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert sheet row %d: %w", n+1, err)
			}
		}

		return nil
	})
}

// validateHeader rejects headers that cannot become table columns. Names
// are compared case-insensitively since SQLite folds them.
func validateHeader(header []string) error {
	if len(header) == 0 {
		return fmt.Errorf("sheet header is empty")
	}

	seen := make(map[string]string, len(header))
	for _, col := range header {
		if col == "" {
			return fmt.Errorf("sheet header has an empty column name")
		}
		folded := strings.ToLower(col)
		if folded == rowNumberColumn {
			return fmt.Errorf("sheet column %q is reserved", col)
		}
		if prev, dup := seen[folded]; dup {
			return fmt.Errorf("sheet columns %q and %q differ only in case", prev, col)
		}
		seen[folded] = col
	}
	return nil
}

func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
