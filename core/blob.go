package core

import (
	"context"
	"io"
)

type (
	// Upload is a file received with a create or update request.
	Upload struct {
		Filename    string
		ContentType string
		Size        int64
		Open        func() (io.ReadCloser, error)
	}

	// BlobStorage persists uploaded files. Store returns the path later passed to Delete and Exists.
	BlobStorage interface {
		Store(ctx context.Context, dir, filename string, r io.Reader) (string, error)
		Delete(ctx context.Context, path string) error
		Exists(ctx context.Context, path string) (bool, error)
	}
)
