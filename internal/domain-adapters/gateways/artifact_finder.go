package gateways

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SidecarSuffix is appended to a binary's path to name its checksum file
const SidecarSuffix = ".sha256"

// ArtifactFinder provides utilities for locating build artifacts
type ArtifactFinder struct{}

// NewArtifactFinder creates a new artifact finder
func NewArtifactFinder() *ArtifactFinder {
	return &ArtifactFinder{}
}

// FindBinaries lists the regular files directly under installRoot/binDir,
// sorted by name. Existing checksum sidecars are skipped.
func (f *ArtifactFinder) FindBinaries(installRoot, binDir string) ([]string, error) {
	return f.FindFiles(filepath.Join(installRoot, binDir))
}

// FindFiles lists the regular files directly under dir, sorted by name,
// skipping checksum sidecars
func (f *ArtifactFinder) FindFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("binary directory does not exist: %s", dir)
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasSuffix(e.Name(), SidecarSuffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// FindSidecars lists the checksum sidecars directly under dir, sorted by name
func (f *ArtifactFinder) FindSidecars(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+SidecarSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to glob sidecars in %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}
