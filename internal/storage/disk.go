package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// InfoSuffix is the extension of the sidecar the tus file store keeps next to each upload.
const InfoSuffix = ".info"

// diskStorage implements Storage on a local directory.
// It is safe for concurrent use by multiple goroutines.
type diskStorage struct {
	root string
}

// NewDisk returns a Storage rooted at dir. The directory is created if missing.
func NewDisk(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &diskStorage{root: abs}, nil
}

func (d *diskStorage) Root() string { return d.root }

func (d *diskStorage) Path(id string) string {
	return filepath.Join(d.root, id)
}

func (d *diskStorage) Delete(ctx context.Context, id string) error {
	if err := validateKey(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := d.Path(id)
	var errs []error
	for _, name := range []string{p, p + InfoSuffix} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateKey(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidKey, id)
	}
	return nil
}
