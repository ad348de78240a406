package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const maxSheetSize = 32 << 20

// HTTPFetcher downloads a sheet published to the web as CSV.
type HTTPFetcher struct {
	url    string
	client *http.Client
}

func NewHTTPFetcher(rawURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		url:    rawURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Name hides the query string, which for published sheets carries the document key.
func (f *HTTPFetcher) Name() string {
	u, err := url.Parse(f.url)
	if err != nil {
		return "http"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxSheetSize+1))
	if err != nil {
		return nil, fmt.Errorf("read sheet body: %w", err)
	}
	if len(payload) > maxSheetSize {
		return nil, fmt.Errorf("sheet exceeds %d bytes", maxSheetSize)
	}
	return payload, nil
}
