package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestConvertXLSX_FirstSheetAsCSV(t *testing.T) {
	payload := buildWorkbook(t, [][]any{
		{"so_number", "status", "remarks"},
		{"40100", "Shipping", "fragile"},
		{"40101", "sold"},
	})
	require.True(t, IsXLSX(payload))

	csvData, err := ConvertXLSX(payload)
	require.NoError(t, err)

	ds, err := Parse(bytes.NewReader(csvData), soOptions)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "shipping", ds.Rows[0]["status"])
	assert.Equal(t, "", ds.Rows[1]["remarks"])
}

func TestConvertXLSX_RejectsGarbage(t *testing.T) {
	assert.False(t, IsXLSX([]byte("so_number,status\n")))

	_, err := ConvertXLSX([]byte("PK\x03\x04not really a zip"))
	assert.Error(t, err)
}
