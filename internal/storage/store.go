package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

// Store holds whole serialized collections, one value per key. Values are
// always replaced in full; there are no partial updates or transactions.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}
