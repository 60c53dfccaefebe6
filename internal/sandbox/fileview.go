package sandbox

import (
	"errors"
	"fmt"
	"os"

	"github.com/revuekit/revue/internal/pathguard"
	"github.com/revuekit/revue/internal/types"
)

// ErrReadOnly is returned for any write attempt through a file view
var ErrReadOnly = errors.New("sandbox file view is read-only")

// ErrNotInView is returned when a path outside the scoped file set is accessed
var ErrNotInView = errors.New("path not in sandbox file view")

// FileView is a read-only façade over exactly one validated file set.
// Every path was pushed through the path guard before the view exists,
// so no read can escape the declared root. Views are safe for
// concurrent reads by construction since no writes are permitted.
type FileView struct {
	paths   types.FileSet
	members map[string]struct{}
}

// NewFileView validates every file against the guard and scopes a view
// to the validated set. A single path violation fails view construction;
// it is never widened to a default.
func NewFileView(guard *pathguard.Guard, files types.FileSet) (*FileView, error) {
	paths := make(types.FileSet, 0, len(files))
	members := make(map[string]struct{}, len(files))
	for _, f := range files {
		resolved, err := guard.Validate(f)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", f, err)
		}
		paths = append(paths, resolved)
		members[resolved] = struct{}{}
	}
	return &FileView{paths: paths, members: members}, nil
}

// Paths returns the validated file set in its original order
func (v *FileView) Paths() types.FileSet {
	out := make(types.FileSet, len(v.paths))
	copy(out, v.paths)
	return out
}

// Contains reports whether a resolved path is part of the view
func (v *FileView) Contains(path string) bool {
	_, ok := v.members[path]
	return ok
}

// ReadFile reads one file from the view. Paths outside the scoped set
// fail with ErrNotInView before any filesystem access happens.
func (v *FileView) ReadFile(path string) ([]byte, error) {
	if !v.Contains(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotInView, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile always fails: the view permits no writes
func (v *FileView) WriteFile(path string, data []byte) error {
	return fmt.Errorf("%w: refusing write to %s", ErrReadOnly, path)
}

// RemoveFile always fails: the view permits no writes
func (v *FileView) RemoveFile(path string) error {
	return fmt.Errorf("%w: refusing removal of %s", ErrReadOnly, path)
}
