// Package blob stores capture images by path and hands out public URLs.
package blob

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("blob not found")

// Object is an open blob. Callers must Close it.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// Entry is one stored blob as seen by List.
type Entry struct {
	Path       string
	UploadedAt time.Time
}

type Store interface {
	// Put stores r under path, replacing any previous content, and returns
	// the public URL.
	Put(ctx context.Context, path string, r io.Reader, contentType string) (string, error)
	Open(ctx context.Context, path string) (*Object, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// List returns the blobs under prefix ordered by path.
	List(ctx context.Context, prefix string) ([]Entry, error)
	URL(path string) string
}
