package entities

import (
	"fmt"
	"path/filepath"
)

// SourceTree is the extracted, patched upstream source owned by one run
type SourceTree struct {
	Name        string // top-level directory name recorded in the archive
	Root        string // absolute path
	ArchivePath string
}

// InstallTree is the directory populated by the install step
type InstallTree struct {
	Root string
}

// BinDir returns the directory holding installed binaries
func (t InstallTree) BinDir(rel string) string {
	return filepath.Join(t.Root, rel)
}

// AppliedPatch records a successful patch application
type AppliedPatch struct {
	PatchRecord
	TargetPath string
	BackupPath string
}

// ArtifactChecksum is the fingerprint of one installed binary
type ArtifactChecksum struct {
	FilePath    string
	SHA256      string
	SidecarPath string
}

// Line returns the sidecar content without the trailing newline
func (c ArtifactChecksum) Line() string {
	return fmt.Sprintf("%s  %s", c.SHA256, filepath.Base(c.FilePath))
}
