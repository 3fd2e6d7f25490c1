package env

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"orgls/internal/document"
)

// FileStorage reads and writes file:// locations on the local disk.
type FileStorage struct {
	// HomeDir overrides the user's home directory for "~/" paths.
	HomeDir string
}

// FileLocation turns a filesystem path into a file:// location.
func FileLocation(path string) (document.Location, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return document.Location(u.String()), nil
}

// Path returns the filesystem path of a file:// location.
func Path(loc document.Location) (string, error) {
	u, err := url.Parse(string(loc))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrResolution, loc, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s is not a file location", ErrResolution, loc)
	}
	return filepath.FromSlash(u.Path), nil
}

func (s FileStorage) home() (string, error) {
	if s.HomeDir != "" {
		return s.HomeDir, nil
	}
	return os.UserHomeDir()
}

func (s FileStorage) ReadToString(_ context.Context, loc document.Location) (string, error) {
	path, err := Path(loc)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s FileStorage) Write(_ context.Context, loc document.Location, text string) error {
	path, err := Path(loc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0644)
}

func (s FileStorage) Resolve(path string, base document.Location) (document.Location, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := s.home()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrResolution, err)
		}
		return FileLocation(filepath.Join(home, filepath.FromSlash(rest)))
	}

	b, err := url.Parse(string(base))
	if err != nil {
		return "", fmt.Errorf("%w: base %s: %w", ErrResolution, base, err)
	}
	if b.Scheme != "file" {
		return "", fmt.Errorf("%w: %q relative to %s", ErrResolution, path, base)
	}
	ref, err := url.Parse(filepath.ToSlash(path))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrResolution, path, err)
	}
	return document.Location(b.ResolveReference(ref).String()), nil
}

// MkdirAll creates the parent directories of loc.
func (s FileStorage) MkdirAll(_ context.Context, loc document.Location) error {
	path, err := Path(loc)
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// Chmod sets the permission bits of loc.
func (s FileStorage) Chmod(_ context.Context, loc document.Location, mode fs.FileMode) error {
	path, err := Path(loc)
	if err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

// DirMaker is implemented by storages that can create directories.
type DirMaker interface {
	MkdirAll(ctx context.Context, loc document.Location) error
}

// Chmoder is implemented by storages with permission bits.
type Chmoder interface {
	Chmod(ctx context.Context, loc document.Location, mode fs.FileMode) error
}
