package media

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("media object not found")

// Storage holds media objects under slash separated keys such as
// "12/256_user_image.png".
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	// List returns the keys directly under dir.
	List(ctx context.Context, dir string) ([]string, error)
}
