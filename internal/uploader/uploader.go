// Package uploader pushes run directories to external object storage.
package uploader

import "context"

// Uploader uploads a finished run directory and returns its remote location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is used when no storage backend is configured.
type NoopUploader struct{}

// Enabled always reports false.
func (n NoopUploader) Enabled() bool {
	return false
}

// UploadDir does nothing.
func (n NoopUploader) UploadDir(_ context.Context, _ string) (string, error) {
	return "", nil
}
