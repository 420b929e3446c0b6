package yaml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path, url string) {
	t.Helper()
	doc := `{"tarball": {"url": "` + url + `", "sha256": "` + validSHA + `"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
}

func TestConfigRepository_Load_PrefersPrimary(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, filepath.Join(root, PrimaryConfigName), "https://example.com/primary.tar.gz")
	writeConfig(t, filepath.Join(root, DefaultConfigName), "https://example.com/default.tar.gz")

	cfg, err := NewConfigRepository(root, "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/primary.tar.gz", cfg.Source.URL)
}

func TestConfigRepository_Load_FallsBackToDefault(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, filepath.Join(root, DefaultConfigName), "https://example.com/default.tar.gz")

	cfg, err := NewConfigRepository(root, "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/default.tar.gz", cfg.Source.URL)
}

func TestConfigRepository_Load_ExplicitPathFallsBackBesideIt(t *testing.T) {
	root := t.TempDir()
	confDir := filepath.Join(root, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0750))
	writeConfig(t, filepath.Join(confDir, DefaultConfigName), "https://example.com/conf-default.tar.gz")

	repo := NewConfigRepository(root, filepath.Join(confDir, "custom.json"))
	cfg, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/conf-default.tar.gz", cfg.Source.URL)
}

func TestConfigRepository_Load_Missing(t *testing.T) {
	_, err := NewConfigRepository(t.TempDir(), "").Load(context.Background())
	require.Error(t, err)

	var buildErr *entities.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, entities.CategoryConfig, buildErr.Category)
}

func TestConfigRepository_Load_Unparsable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, PrimaryConfigName), []byte("{not json"), 0600))
	writeConfig(t, filepath.Join(root, DefaultConfigName), "https://example.com/default.tar.gz")

	// a broken primary is an error, not a reason to use the default
	_, err := NewConfigRepository(root, "").Load(context.Background())
	assert.Error(t, err)
}

func TestConfigRepository_Load_PrimaryOverridesDefaultBuild(t *testing.T) {
	root := t.TempDir()
	def := `{
	"tarball": {"url": "https://example.com/default.tar.gz", "sha256": "` + validSHA + `"},
	"patches": [{"patch": "default.patch", "file": "src/a.c"}],
	"build": {
		"packages": ["mingw-w64-ucrt-x86_64-gcc", "make"],
		"compileRewrites": [{"file": "src/Makefile", "old": "libintl.dll.a", "new": "libintl.a"}],
		"harnessRewrites": [{"file": "tests/test-lib.sh", "old": "-rw-r--r--", "new": "-rw-r--r--*"}],
		"tests": ["basic", "merge"]
	}
}`
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultConfigName), []byte(def), 0600))
	primary := `{"tarball": {"url": "https://example.com/primary.tar.gz", "sha256": "` + validSHA + `"}, "patches": []}`
	require.NoError(t, os.WriteFile(filepath.Join(root, PrimaryConfigName), []byte(primary), 0600))

	cfg, err := NewConfigRepository(root, "").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/primary.tar.gz", cfg.Source.URL)
	assert.Empty(t, cfg.Patches)
	assert.Equal(t, []string{"basic", "merge"}, cfg.Build.Tests)
	assert.Len(t, cfg.Build.Packages, 2)
	assert.Len(t, cfg.Build.CompileRewrites, 1)
	assert.Len(t, cfg.Build.HarnessRewrites, 1)
	assert.Equal(t, "make", cfg.Build.Make)
}

func TestConfigRepository_Load_PrimaryBuildFieldsWin(t *testing.T) {
	root := t.TempDir()
	def := `{"tarball": {"url": "https://example.com/d.tar.gz", "sha256": "` + validSHA + `"}, "build": {"tests": ["basic"]}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultConfigName), []byte(def), 0600))
	primary := `{"tarball": {"url": "https://example.com/p.tar.gz", "sha256": "` + validSHA + `"}, "build": {"tests": ["garbage"], "make": "mingw32-make"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, PrimaryConfigName), []byte(primary), 0600))

	cfg, err := NewConfigRepository(root, "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"garbage"}, cfg.Build.Tests)
	assert.Equal(t, "mingw32-make", cfg.Build.Make)
}

func TestConfigRepository_Load_BrokenDefaultBesidePrimary(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, filepath.Join(root, PrimaryConfigName), "https://example.com/primary.tar.gz")
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultConfigName), []byte("{not json"), 0600))

	_, err := NewConfigRepository(root, "").Load(context.Background())
	assert.Error(t, err)
}
