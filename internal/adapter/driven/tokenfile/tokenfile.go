// Package tokenfile writes freshly issued tokens to per-owner files so an
// operator can hand them over out of band.
package tokenfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/sqlgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TokenArtifacts = (*Dir)(nil)

// Dir stores one "<owner>.token" file per owner inside a directory.
type Dir struct {
	path string
}

// New returns a Dir rooted at path. The directory is created on first write.
func New(path string) *Dir {
	return &Dir{path: path}
}

// Write replaces the owner's token file. The file is readable by the
// current user only.
func (d *Dir) Write(owner, token string) error {
	name, err := d.fileName(owner)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(d.path, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	// Write to a temp file and rename so a reader never sees a partial token.
	tmp, err := os.CreateTemp(d.path, ".token-*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if _, err := tmp.WriteString(token + "\n"); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}

	if err := os.Rename(tmp.Name(), name); err != nil {
		return fmt.Errorf("install token file for %s: %w", owner, err)
	}
	return nil
}

// Remove deletes the owner's token file. A missing file is not an error.
func (d *Dir) Remove(owner string) error {
	name, err := d.fileName(owner)
	if err != nil {
		return err
	}

	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token file for %s: %w", owner, err)
	}
	return nil
}

// Path returns the file that holds the owner's token.
func (d *Dir) Path(owner string) (string, error) {
	return d.fileName(owner)
}

func (d *Dir) fileName(owner string) (string, error) {
	if owner == "" || owner != filepath.Base(owner) || strings.HasPrefix(owner, ".") {
		return "", fmt.Errorf("invalid owner %q for token file", owner)
	}
	return filepath.Join(d.path, owner+".token"), nil
}
