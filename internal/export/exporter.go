package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/storage"
)

type Upload struct {
	Key         string    `json:"object_key"`
	Format      Format    `json:"format"`
	Size        int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	DownloadURL string    `json:"download_url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitzero"`
}

// Exporter encodes result sets and uploads them to object storage.
type Exporter struct {
	Store         storage.ObjectStore
	PresignExpiry time.Duration
	Now           func() time.Time
	NewID         func() string
}

func NewExporter(store storage.ObjectStore, presignExpiry time.Duration) *Exporter {
	return &Exporter{
		Store:         store,
		PresignExpiry: presignExpiry,
		Now:           time.Now,
		NewID:         func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Encode renders result in format into memory.
func Encode(format Format, result query.Result) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(buf, result)
	case FormatParquet:
		err = WriteParquet(buf, result)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return nil, err
	}
	observability.IncrementExport(string(format))
	return buf.Bytes(), nil
}

func (e *Exporter) Upload(ctx context.Context, database string, format Format, result query.Result) (Upload, error) {
	if e.Store == nil {
		return Upload{}, fmt.Errorf("object store is not configured")
	}
	data, err := Encode(format, result)
	if err != nil {
		return Upload{}, err
	}

	now := e.Now().UTC()
	key, err := storage.BuildExportPath(database, now, e.NewID(), format.Extension())
	if err != nil {
		return Upload{}, err
	}
	info, err := e.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: format.ContentType()})
	if err != nil {
		return Upload{}, fmt.Errorf("upload export: %w", err)
	}

	upload := Upload{Key: key, Format: format, Size: info.Size, Rows: result.RowCount()}
	if e.PresignExpiry > 0 {
		signed, err := e.Store.PresignGet(ctx, key, e.PresignExpiry)
		if err != nil {
			return Upload{}, fmt.Errorf("presign export: %w", err)
		}
		upload.DownloadURL = signed.String()
		upload.ExpiresAt = now.Add(e.PresignExpiry)
	}
	return upload, nil
}
