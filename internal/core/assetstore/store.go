// Package assetstore persists asset blobs by UUID and keeps the asset table
// in sync with them.
package assetstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("asset not in store")
	ErrNilID    = errors.New("asset has no id")
)

// Store holds serialized asset blobs keyed by asset UUID.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) ([]byte, error)
	Save(ctx context.Context, id uuid.UUID, data []byte) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns the stored ids in ascending order.
	List(ctx context.Context) ([]uuid.UUID, error)
}
