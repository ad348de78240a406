package dataset

import (
	"bytes"
	"errors"
	"time"
)

// Decode turns a raw sheet payload into a Dataset. Workbooks are converted
// to CSV first. Failures come back as *LoadError tagged with source.
// FetchedAt is set to now; callers that know the fetch time override it.
func Decode(payload []byte, source string, opts NormalizeOptions) (*Dataset, error) {
	if IsXLSX(payload) {
		converted, err := ConvertXLSX(payload)
		if err != nil {
			return nil, NewParseError(source, err)
		}
		payload = converted
	}

	ds, err := Parse(bytes.NewReader(payload), opts)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Source == "" {
			le.Source = source
		}
		return nil, NewParseError(source, err)
	}

	ds.Source = source
	ds.FetchedAt = time.Now()
	return ds, nil
}
