package domain

// Outcome classifies a lookup. Only OutcomeFound carries an order.
type Outcome string

const (
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeEmptyQuery  Outcome = "empty_query"
	OutcomeNotFound    Outcome = "not_found"
	OutcomeFound       Outcome = "found"
)

// LookupResult is what the presentation layer renders for one query.
type LookupResult struct {
	Outcome  Outcome  `json:"outcome"`
	Query    string   `json:"query"`
	Order    *Order   `json:"order,omitempty"`
	Progress int      `json:"progress"`
	Stage    int      `json:"stage"`
	Ranked   bool     `json:"ranked"`
	Pipeline []string `json:"pipeline,omitempty"`
	Err      error    `json:"-"`
}

// Found reports whether the lookup matched an order.
func (r LookupResult) Found() bool {
	return r.Outcome == OutcomeFound
}
