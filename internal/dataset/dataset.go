package dataset

import (
	"time"

	"github.com/andresuchdata/order-tracker/internal/domain"
)

// Dataset is an immutable snapshot of the order sheet. A refresh builds a
// new Dataset; an existing one is never modified.
type Dataset struct {
	Columns []string
	Rows    []domain.Row
	Source  string
	// FetchedAt is when the payload was fetched from upstream.
	FetchedAt time.Time
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// HasColumn reports whether the header contains name.
func (d *Dataset) HasColumn(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Find returns the first row whose column equals key exactly.
// The returned row is shared with the snapshot and must not be modified.
func (d *Dataset) Find(column, key string) (domain.Row, bool) {
	if d == nil || !d.HasColumn(column) {
		return nil, false
	}
	for _, row := range d.Rows {
		if row[column] == key {
			return row, true
		}
	}
	return nil, false
}
