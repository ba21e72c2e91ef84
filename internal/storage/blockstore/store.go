// Package blockstore is the durable byte store behind the persistence engine.
// A Store keeps whole named objects; the engine writes one snapshot object
// per save and reads it back on open.
package blockstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the name.
var ErrNotFound = errors.New("object not found")

// Store persists whole objects by name. Put must replace the object
// atomically: a concurrent or interrupted Put never leaves a partial object
// visible to Get.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}
