package gateways

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspace_EnsureEmptyDir(t *testing.T) {
	root := t.TempDir()
	ws := NewWorkspace(root)

	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name:  "missing directory",
			setup: func(_ *testing.T, _ string) {},
		},
		{
			name: "directory with stale files",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "old", "nested"), 0750))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "old", "nested", "f"), []byte("x"), 0600))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "archive.tar.gz"), []byte("x"), 0600))
			},
		},
		{
			name: "empty directory",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(dir, 0750))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(root, "case")
			require.NoError(t, os.RemoveAll(dir))
			tt.setup(t, dir)

			require.NoError(t, ws.EnsureEmptyDir(dir))

			info, err := os.Stat(dir)
			require.NoError(t, err)
			assert.True(t, info.IsDir())

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestWorkspace_Layout(t *testing.T) {
	ws := NewWorkspace("/work")
	assert.Equal(t, filepath.Join("/work", "src"), ws.SourceDir())
	assert.Equal(t, filepath.Join("/work", "out", "patch-2.7.6"), ws.InstallDir("patch-2.7.6"))
}
