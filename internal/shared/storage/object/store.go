package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Stat and Open when the object is gone.
var ErrNotExist = errors.New("object does not exist")

// ObjectStore defines the contract for transient document storage. The
// orchestration layer owns the lifetime of stored objects: they are created at
// submission and deleted exactly once when the job reaches a terminal state.
type ObjectStore interface {
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Stat(ctx context.Context, storageKey string) error
	Delete(ctx context.Context, storageKey string) error
}
