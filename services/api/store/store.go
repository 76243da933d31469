// Package store persists accepted documents byte-for-byte under opaque
// generated identifiers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no document exists for an id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned for ids that were not generated by a store.
	ErrInvalidID = errors.New("invalid document id")
)

// BlobStore keeps original document bytes keyed by generated id.
type BlobStore interface {
	// Put durably stores data and returns its new id. An error means nothing
	// was stored.
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
	// List returns every stored id in acceptance order.
	List(ctx context.Context) ([]string, error)
}

// Stats summarises the stored corpus.
type Stats struct {
	Documents  int        `json:"documents"`
	TotalBytes int64      `json:"totalBytes"`
	LastAt     *time.Time `json:"lastReceivedAt,omitempty"`
}

// StatsStore is a BlobStore that can summarise its content.
type StatsStore interface {
	BlobStore
	Stats(ctx context.Context) (Stats, error)
}

// NewID returns a collision-free document identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidateID rejects anything that is not a canonical generated id, which
// keeps path-like input away from the storage backends.
func ValidateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
