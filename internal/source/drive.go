package source

import (
	"bytes"
	"context"
	"io"

	"github.com/andresuchdata/order-tracker/internal/drive"
)

// driveClient is the part of drive.Service the fetcher uses.
type driveClient interface {
	Stat(ctx context.Context, fileID string) (*drive.File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
	ExportFile(ctx context.Context, fileID, mimeType string, w io.Writer) error
}

// DriveFetcher reads the sheet from Google Drive. Native Google Sheets are
// exported; uploaded CSV/XLSX files are downloaded as they are.
type DriveFetcher struct {
	client     driveClient
	fileID     string
	exportMIME string
}

func NewDriveFetcher(client driveClient, fileID, exportMIME string) *DriveFetcher {
	if exportMIME == "" {
		exportMIME = "text/csv"
	}
	return &DriveFetcher{client: client, fileID: fileID, exportMIME: exportMIME}
}

func (f *DriveFetcher) Name() string {
	return "gdrive://" + f.fileID
}

func (f *DriveFetcher) Fetch(ctx context.Context) ([]byte, error) {
	meta, err := f.client.Stat(ctx, f.fileID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if meta.MimeType == drive.SpreadsheetMIME {
		err = f.client.ExportFile(ctx, f.fileID, f.exportMIME, &buf)
	} else {
		err = f.client.DownloadFile(ctx, f.fileID, &buf)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
