package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/andresuchdata/order-tracker/internal/domain"
)

// NormalizeOptions names the columns that get normalized while parsing.
type NormalizeOptions struct {
	KeyColumn    string
	StatusColumn string
}

// Parse reads a CSV table whose first row is the header. The key column is
// trimmed and the status column is trimmed and lower-cased; all other
// columns are kept verbatim. Absent columns are skipped.
func Parse(r io.Reader, opts NormalizeOptions) (*Dataset, error) {
	// Published sheets come with or without a UTF-8 BOM.
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Kind: ErrParse, Err: errors.New("no header row")}
	}
	if err != nil {
		return nil, &LoadError{Kind: ErrParse, Err: fmt.Errorf("failed to read CSV header: %w", err)}
	}

	columns := normalizeHeader(header)
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "") {
		return nil, &LoadError{Kind: ErrParse, Err: errors.New("empty header row")}
	}

	ds := &Dataset{Columns: columns}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &LoadError{Kind: ErrParse, Err: fmt.Errorf("failed to read CSV record: %w", err)}
		}
		if len(record) > len(columns) {
			line, _ := reader.FieldPos(0)
			return nil, &LoadError{Kind: ErrParse, Err: fmt.Errorf("line %d: expected %d fields, saw %d", line, len(columns), len(record))}
		}

		row := make(domain.Row, len(columns))
		for i, col := range columns {
			var value string
			if i < len(record) {
				value = record[i]
			}
			row[col] = value
		}
		normalizeRow(row, opts)
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

func normalizeRow(row domain.Row, opts NormalizeOptions) {
	if opts.KeyColumn != "" {
		if v, ok := row[opts.KeyColumn]; ok {
			row[opts.KeyColumn] = strings.TrimSpace(v)
		}
	}
	if opts.StatusColumn != "" {
		if v, ok := row[opts.StatusColumn]; ok {
			row[opts.StatusColumn] = domain.NormalizeStatus(v)
		}
	}
}

// normalizeHeader trims header names and suffixes repeats with ".N" so
// every column keeps a distinct key.
func normalizeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
