package domain

import "strings"

// MissingValue stands in for any column the sheet does not provide.
const MissingValue = "-"

// Row is one record of the order sheet keyed by header name.
type Row map[string]string

// Column names used by the published order sheets.
const (
	ColumnProductName  = "product_name"
	ColumnClientName   = "client_name"
	ColumnSerialNumber = "serial_number"
	ColumnProdDate     = "prod_date"
	ColumnETD          = "ETD"
	ColumnETA          = "ETA"
	ColumnRemarks      = "remarks"
)

// Order is a tracked order with every field resolved at construction.
type Order struct {
	Number       string            `json:"number"`
	ProductName  string            `json:"product_name"`
	ClientName   string            `json:"client_name"`
	SerialNumber string            `json:"serial_number"`
	Status       string            `json:"status"`
	ProdDate     string            `json:"prod_date"`
	ETD          string            `json:"etd"`
	ETA          string            `json:"eta"`
	Remarks      string            `json:"remarks"`
	Fields       map[string]string `json:"fields"`
}

// NewOrder builds an Order from a row. Columns missing from the row become
// MissingValue; a missing or blank status becomes UnknownStatus.
func NewOrder(row Row, keyColumn, statusColumn string) *Order {
	get := func(col string) string {
		if v, ok := row[col]; ok {
			return v
		}
		return MissingValue
	}

	status := strings.TrimSpace(row[statusColumn])
	if status == "" {
		status = UnknownStatus
	}

	fields := make(map[string]string, len(row))
	for k, v := range row {
		fields[k] = v
	}

	return &Order{
		Number:       get(keyColumn),
		ProductName:  get(ColumnProductName),
		ClientName:   get(ColumnClientName),
		SerialNumber: get(ColumnSerialNumber),
		Status:       status,
		ProdDate:     get(ColumnProdDate),
		ETD:          get(ColumnETD),
		ETA:          get(ColumnETA),
		Remarks:      get(ColumnRemarks),
		Fields:       fields,
	}
}

var placeholderRemarks = map[string]struct{}{
	"":     {},
	"nan":  {},
	"none": {},
	"-":    {},
}

// HasRemarks reports whether Remarks carries text worth showing. Spreadsheet
// exports write empty cells as "nan" or "none"; those count as no remarks.
func (o *Order) HasRemarks() bool {
	_, placeholder := placeholderRemarks[strings.ToLower(strings.TrimSpace(o.Remarks))]
	return !placeholder
}
