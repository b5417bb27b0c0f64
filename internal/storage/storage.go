// Package storage addresses the raw bytes of finalized uploads.
// Every artifact lives directly under a fixed root and is named by its upload id;
// no other path derivation is allowed.
package storage

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned for ids that are not plain file names.
var ErrInvalidKey = errors.New("invalid storage key")

// Storage is the raw-bytes store shared with the upload engine.
type Storage interface {
	// Root returns the absolute storage root.
	Root() string
	// Path returns the absolute location of the bytes for id.
	Path(id string) string
	// Delete removes the bytes for id together with any engine sidecar.
	// An already-absent artifact is not an error.
	Delete(ctx context.Context, id string) error
}
