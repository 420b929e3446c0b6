package gateways

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Workspace manages the directories a run owns exclusively
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at root
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// SourceDir returns <root>/src
func (w *Workspace) SourceDir() string {
	return filepath.Join(w.root, "src")
}

// InstallDir returns <root>/out/<treeName>
func (w *Workspace) InstallDir(treeName string) string {
	return filepath.Join(w.root, "out", treeName)
}

// EnsureEmptyDir removes path recursively if it exists and recreates it empty
func (w *Workspace) EnsureEmptyDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}

// copyFile copies src to dst, creating or truncating dst with mode perm
func copyFile(src, dst string, perm os.FileMode) error {
	//nolint:gosec // G304: src is a configured input file
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer in.Close()

	//nolint:gosec // G304: dst is inside the run's workspace
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return nil
}
