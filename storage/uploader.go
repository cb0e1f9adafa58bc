package storage

import (
	"context"
	"errors"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader stores blobs under caller-chosen keys and serves them from a
// public base URL.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, size int64, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

var ErrStorageDisabled = errors.New("file storage is not configured")

// Disabled is used when no bucket is configured; every upload fails.
var Disabled FileUploader = disabledUploader{}

type disabledUploader struct{}

func (disabledUploader) Upload(context.Context, string, string, int64, io.Reader) (*UploadResult, error) {
	return nil, ErrStorageDisabled
}

func (disabledUploader) Delete(context.Context, string) error {
	return ErrStorageDisabled
}

func (disabledUploader) GetPublicURL(string) string {
	return ""
}
