// Package storage persists segment blobs and the index manifest. Backends
// treat blobs as opaque bytes. Every failure is a *errors.StorageError;
// Get on a missing id additionally matches errors.ErrNotFound.
package storage

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/minisearch/pkg/errors"
)

// Backend stores immutable blobs by id.
type Backend interface {
	Put(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	// Delete removes a blob. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// List returns ids with the given prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Locker is implemented by backends that can enforce writer exclusivity
// across processes.
type Locker interface {
	// Lock acquires the named lock for owner without waiting. A lock held
	// by someone else yields an error matching errors.ErrWriterLockConflict.
	Lock(ctx context.Context, name, owner string) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

func notFound(op, id string) error {
	return apperrors.Storage(op, id, apperrors.ErrNotFound)
}

func lockConflict(name string) error {
	return fmt.Errorf("lock %q: %w", name, apperrors.ErrWriterLockConflict)
}

func storageErr(op, id string, err error) error {
	return apperrors.Storage(op, id, err)
}
