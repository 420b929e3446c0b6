package entities

import (
	"path/filepath"
	"strings"
)

// Default locations of the packaged build environment
const (
	DefaultEnvRoot = `C:\msys64`
	DefaultEnvMode = "UCRT64"
)

// Environment identifies the external build environment every command runs in
type Environment struct {
	Root  string // installation root (MSYS2_ROOT)
	Mode  string // operating mode exported to children (MSYSTEM)
	Shell string // login shell used to run scripts
}

// ResolveEnvironment fills an Environment from the given values, applying defaults
func ResolveEnvironment(root, mode, shell string) Environment {
	if root == "" {
		root = DefaultEnvRoot
	}
	if mode == "" {
		mode = DefaultEnvMode
	}
	if shell == "" {
		shell = filepath.Join(root, "usr", "bin", "bash.exe")
	}
	return Environment{Root: root, Mode: mode, Shell: shell}
}

// IsLoginShell reports whether the shell understands -l
func (e Environment) IsLoginShell() bool {
	base := strings.ToLower(filepath.Base(e.Shell))
	return strings.HasPrefix(base, "bash")
}
