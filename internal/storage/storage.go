package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

// ObjectStore holds exported result files. Downloads go through presigned URLs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
}
