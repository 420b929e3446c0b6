// Package entities defines core domain models and data structures.
package entities

import (
	"net/url"
	"path"
	"path/filepath"
)

// BuildConfig represents one package build loaded from the config document.
// It is loaded once per run and never modified afterwards.
type BuildConfig struct {
	Source  SourceConfig
	Patches []PatchRecord
	Build   BuildProfile

	// BaseDir is the directory holding the config document. Relative paths
	// (local tarball, patches, signature, key) resolve against it.
	BaseDir string
}

// SourceConfig describes where the upstream archive comes from and how to trust it
type SourceConfig struct {
	URL       string
	LocalPath string // optional; takes precedence over URL
	SHA256    string
	Signature string // optional detached OpenPGP signature file
	KeyFile   string // optional armored public key used with Signature
}

// ArchiveName returns the file name the archive is stored under in the source directory
func (s SourceConfig) ArchiveName() string {
	if s.LocalPath != "" {
		return filepath.Base(s.LocalPath)
	}
	if u, err := url.Parse(s.URL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(s.URL)
}

// PatchRecord pairs a unified diff with the file it applies to.
// Order in BuildConfig.Patches is authoritative.
type PatchRecord struct {
	PatchPath  string
	TargetFile string // relative to the source tree root
}

// Resolve returns p relative to the config directory unless it is already absolute
func (c *BuildConfig) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}
