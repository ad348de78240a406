package source

import (
	"context"
	"fmt"
	"os"
)

// FileFetcher reads a sheet export from local disk.
type FileFetcher struct {
	path string
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{path: path}
}

func (f *FileFetcher) Name() string {
	return "file://" + f.path
}

func (f *FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read sheet file: %w", err)
	}
	return payload, nil
}
