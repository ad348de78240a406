package source

import (
	"context"

	"github.com/andresuchdata/order-tracker/internal/storage"
)

// ObjectFetcher reads a sheet export stored in an S3-compatible bucket.
type ObjectFetcher struct {
	store  storage.ObjectStorage
	bucket string
	key    string
}

func NewObjectFetcher(store storage.ObjectStorage, bucket, key string) *ObjectFetcher {
	return &ObjectFetcher{store: store, bucket: bucket, key: key}
}

func (f *ObjectFetcher) Name() string {
	return "s3://" + f.bucket + "/" + f.key
}

func (f *ObjectFetcher) Fetch(ctx context.Context) ([]byte, error) {
	return f.store.GetObject(ctx, f.key)
}
