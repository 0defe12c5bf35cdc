// Package archive stores certificate PDFs as flat files in one directory.
// Every name is validated on every call, so no caller can reach outside the directory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"certverify/pkg/platform/sentinel"
)

// ErrInvalidName is returned for names that are empty, contain "..", contain a
// path separator, or do not end in ".pdf".
var ErrInvalidName = errors.New("invalid archive file name")

// FileSystem is a directory-backed archive.
type FileSystem struct {
	dir string
}

// New creates dir if needed and returns an archive rooted there.
func New(dir string) (*FileSystem, error) {
	if dir == "" {
		return nil, errors.New("archive directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &FileSystem{dir: dir}, nil
}

// MaxNameLength is the longest file name, in bytes, the archive accepts.
const MaxNameLength = 255

// ValidateName applies the archive naming rules.
func ValidateName(name string) error {
	switch {
	case name == "",
		len(name) > MaxNameLength,
		strings.Contains(name, ".."),
		strings.ContainsAny(name, `/\`),
		strings.ContainsRune(name, 0),
		!strings.HasSuffix(name, ".pdf"):
		return ErrInvalidName
	}
	return nil
}

// Store writes r under name. Data goes to a temporary file first and is
// renamed into place, so readers never observe a partial file. An existing
// name is never overwritten: sentinel.ErrAlreadyUsed.
func (a *FileSystem) Store(ctx context.Context, name string, r io.Reader) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(a.dir, name)
	if _, err := os.Stat(target); err == nil {
		return sentinel.ErrAlreadyUsed
	}

	tmp, err := os.CreateTemp(a.dir, ".upload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", name, err)
	}

	// os.Link fails if target exists, unlike os.Rename.
	if err := os.Link(tmpName, target); err != nil {
		cleanup()
		if errors.Is(err, fs.ErrExist) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("publish %s: %w", name, err)
	}
	cleanup()
	return nil
}

// Open returns a reader over name and its size in bytes.
func (a *FileSystem) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if err := ValidateName(name); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f, err := os.Open(filepath.Join(a.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, sentinel.ErrNotFound
		}
		return nil, 0, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, 0, sentinel.ErrNotFound
	}
	return f, info.Size(), nil
}

// Delete removes name. A missing file yields sentinel.ErrNotFound.
func (a *FileSystem) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(a.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
