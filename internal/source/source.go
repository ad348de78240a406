// Package source fetches the raw order sheet from wherever a deployment
// publishes it.
package source

import (
	"context"
	"fmt"

	"github.com/andresuchdata/order-tracker/internal/config"
	"github.com/andresuchdata/order-tracker/internal/drive"
	"github.com/andresuchdata/order-tracker/internal/repository/postgres"
	"github.com/andresuchdata/order-tracker/internal/storage"
)

// Fetcher returns the raw sheet payload, CSV or XLSX.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// New builds the Fetcher selected by cfg.Source.Kind.
func New(ctx context.Context, cfg *config.Config) (Fetcher, error) {
	src := cfg.Source
	switch src.Kind {
	case config.SourceHTTP, "":
		if src.URL == "" {
			return nil, fmt.Errorf("SOURCE_URL is required for the http source")
		}
		return NewHTTPFetcher(src.URL, src.FetchTimeout()), nil

	case config.SourceFile:
		if src.Path == "" {
			return nil, fmt.Errorf("SOURCE_PATH is required for the file source")
		}
		return NewFileFetcher(src.Path), nil

	case config.SourceDrive:
		if src.DriveFileID == "" {
			return nil, fmt.Errorf("SOURCE_DRIVE_FILE_ID is required for the drive source")
		}
		svc, err := drive.NewService(ctx, src.DriveCredentialJSON)
		if err != nil {
			return nil, err
		}
		return NewDriveFetcher(svc, src.DriveFileID, src.DriveExportMIME), nil

	case config.SourceS3:
		if src.S3.Key == "" {
			return nil, fmt.Errorf("SOURCE_S3_KEY is required for the s3 source")
		}
		client, err := NewObjectStore(src.S3)
		if err != nil {
			return nil, err
		}
		return NewObjectFetcher(client, src.S3.Bucket, src.S3.Key), nil

	case config.SourcePostgres:
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return NewTableFetcher(postgres.NewSheetRepository(db), config.SourcePostgres, src.Table), nil

	case config.SourceSQLite:
		if src.Path == "" {
			return nil, fmt.Errorf("SOURCE_PATH is required for the sqlite source")
		}
		db, err := openSQLite(src.Path)
		if err != nil {
			return nil, err
		}
		return NewTableFetcher(postgres.NewSheetRepository(db), config.SourceSQLite, src.Table), nil
	}

	return nil, fmt.Errorf("unknown SOURCE_KIND %q", src.Kind)
}

// NewObjectStore opens the bucket described by cfg.
func NewObjectStore(cfg config.S3Config) (*storage.MinioClient, error) {
	return storage.NewMinioClient(storage.S3Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	})
}
