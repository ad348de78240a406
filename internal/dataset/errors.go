package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch marks failures reaching the upstream sheet.
	ErrFetch = errors.New("dataset fetch failed")
	// ErrParse marks payloads that are not a usable table.
	ErrParse = errors.New("dataset parse failed")
)

// LoadError is the single failure value that crosses the cache boundary.
// Kind is ErrFetch or ErrParse.
type LoadError struct {
	Kind   error
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v from %s: %v", e.Kind, e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewFetchError wraps err as a fetch failure unless it already is a LoadError.
func NewFetchError(source string, err error) error {
	return wrap(ErrFetch, source, err)
}

// NewParseError wraps err as a parse failure unless it already is a LoadError.
func NewParseError(source string, err error) error {
	return wrap(ErrParse, source, err)
}

func wrap(kind error, source string, err error) error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Kind: kind, Source: source, Err: err}
}
