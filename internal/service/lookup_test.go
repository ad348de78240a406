package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/andresuchdata/order-tracker/internal/dataset"
	"github.com/andresuchdata/order-tracker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sixStages = []string{"in production", "ready to deliver", "shipping", "arrived", "stock", "sold"}

func soConfig() LookupConfig {
	return LookupConfig{
		KeyColumn:    "so_number",
		StatusColumn: "status",
		Pipeline:     domain.NewPipeline(sixStages, nil, 0),
	}
}

// tenRows builds SO numbers 40100..40109 cycling through the stages.
func tenRows(t *testing.T) *dataset.Dataset {
	t.Helper()

	var b strings.Builder
	b.WriteString("so_number,product_name,client_name,status,prod_date,ETD,ETA,remarks\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%d,Machine %d,Client %d,%s,2025-01-%02d,,,nan\n", 40100+i, i, i, sixStages[i%len(sixStages)], i+1)
	}

	ds, err := dataset.Decode([]byte(b.String()), "test", dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"})
	require.NoError(t, err)
	return ds
}

func TestLookup_FoundComputesProgress(t *testing.T) {
	res := Lookup("40102", tenRows(t), nil, soConfig())

	require.Equal(t, domain.OutcomeFound, res.Outcome)
	require.NotNil(t, res.Order)
	assert.Equal(t, "40102", res.Order.Number)
	assert.Equal(t, "shipping", res.Order.Status)
	assert.Equal(t, 50, res.Progress)
	assert.Equal(t, 3, res.Stage)
	assert.True(t, res.Ranked)
	assert.Equal(t, sixStages, res.Pipeline)
	assert.Equal(t, "nan", res.Order.Remarks, "remarks are returned raw")
	assert.Equal(t, domain.MissingValue, res.Order.SerialNumber)
}

func TestLookup_EveryPresentKeyIsFound(t *testing.T) {
	ds := tenRows(t)
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("%d", 40100+i)
		res := Lookup("  "+key+"\t", ds, nil, soConfig())
		require.Equal(t, domain.OutcomeFound, res.Outcome, key)
		assert.Equal(t, key, res.Order.Number)
		assert.Equal(t, key, res.Query)
	}
}

func TestLookup_NotFound(t *testing.T) {
	res := Lookup("99999", tenRows(t), nil, soConfig())
	assert.Equal(t, domain.OutcomeNotFound, res.Outcome)
	assert.Nil(t, res.Order)
	assert.Equal(t, 0, res.Progress)
}

func TestLookup_IsCaseSensitive(t *testing.T) {
	ds, err := dataset.Decode([]byte("so_number,status\nSO-1A,sold\n"), "test", dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeNotFound, Lookup("so-1a", ds, nil, soConfig()).Outcome)
	assert.Equal(t, domain.OutcomeFound, Lookup("SO-1A", ds, nil, soConfig()).Outcome)
}

func TestLookup_EmptyQuery(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		res := Lookup(raw, nil, errors.New("never consulted"), soConfig())
		assert.Equal(t, domain.OutcomeEmptyQuery, res.Outcome)
		assert.NoError(t, res.Err)
	}
}

func TestLookup_UnavailableRegardlessOfKey(t *testing.T) {
	loadErr := &dataset.LoadError{Kind: dataset.ErrFetch, Err: context.DeadlineExceeded}
	for _, key := range []string{"40100", "99999", "x"} {
		res := Lookup(key, nil, loadErr, soConfig())
		assert.Equal(t, domain.OutcomeUnavailable, res.Outcome)
		assert.True(t, errors.Is(res.Err, dataset.ErrFetch))
	}
}

func TestLookup_DuplicateKeysReturnFirst(t *testing.T) {
	ds, err := dataset.Decode([]byte("so_number,product_name,status\n7,first,sold\n7,second,shipping\n"), "test",
		dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"})
	require.NoError(t, err)

	res := Lookup("7", ds, nil, soConfig())
	require.True(t, res.Found())
	assert.Equal(t, "first", res.Order.ProductName)
	assert.Equal(t, 100, res.Progress)
}

func TestLookup_UnrankedStatus(t *testing.T) {
	ds, err := dataset.Decode([]byte("so_number,status\n1,On Hold\n2,\n"), "test",
		dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"})
	require.NoError(t, err)

	res := Lookup("1", ds, nil, soConfig())
	require.True(t, res.Found())
	assert.Equal(t, "on hold", res.Order.Status)
	assert.Equal(t, 0, res.Progress)
	assert.Equal(t, 0, res.Stage)
	assert.False(t, res.Ranked)

	res = Lookup("2", ds, nil, soConfig())
	require.True(t, res.Found())
	assert.Equal(t, 0, res.Progress)
}

func TestLookup_BlankStatusIsUnknown(t *testing.T) {
	// 40100 has an empty status cell, 40101 is a short row padded by the parser.
	ds, err := dataset.Decode([]byte("so_number,status\n40100,\n40101\n40102,   \n"), "test",
		dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"})
	require.NoError(t, err)

	for _, key := range []string{"40100", "40101", "40102"} {
		res := Lookup(key, ds, nil, soConfig())
		require.True(t, res.Found(), key)
		assert.Equal(t, domain.UnknownStatus, res.Order.Status, key)
		assert.Equal(t, 0, res.Progress, key)
		assert.False(t, res.Ranked, key)
	}
}

func TestLookup_LegacyStockPolicy(t *testing.T) {
	cfg := LookupConfig{
		KeyColumn:    "PO_number",
		StatusColumn: "status",
		Pipeline:     domain.NewPipeline([]string{"in production", "shipping", "arrived", "sold"}, map[string]int{"stock": 50}, 0),
	}
	ds, err := dataset.Decode([]byte("PO_number,serial_number,status\nP-1,SN-9,Stock\n"), "test",
		dataset.NormalizeOptions{KeyColumn: "PO_number", StatusColumn: "status"})
	require.NoError(t, err)

	res := Lookup("P-1", ds, nil, cfg)
	require.True(t, res.Found())
	assert.Equal(t, 50, res.Progress)
	assert.False(t, res.Ranked)
	assert.Equal(t, "SN-9", res.Order.SerialNumber)
}

func TestLookup_MissingStatusColumn(t *testing.T) {
	ds, err := dataset.Decode([]byte("so_number,product_name\n1,Mill\n"), "test",
		dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"})
	require.NoError(t, err)

	res := Lookup("1", ds, nil, soConfig())
	require.True(t, res.Found())
	assert.Equal(t, domain.UnknownStatus, res.Order.Status)
	assert.Equal(t, 0, res.Progress)
}

func TestLookup_MissingKeyColumn(t *testing.T) {
	ds, err := dataset.Decode([]byte("order,status\n1,sold\n"), "test",
		dataset.NormalizeOptions{KeyColumn: "so_number", StatusColumn: "status"})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeNotFound, Lookup("1", ds, nil, soConfig()).Outcome)
}
