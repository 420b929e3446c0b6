package gateways

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() entities.BuildProfile {
	p := entities.DefaultBuildProfile()
	p.Tests = []string{"basic", "reject-format"}
	return p
}

func newTree(t *testing.T) entities.SourceTree {
	t.Helper()
	root := filepath.Join(t.TempDir(), "patch-2.7.6")
	require.NoError(t, os.MkdirAll(root, 0750))
	return entities.SourceTree{Name: "patch-2.7.6", Root: root}
}

func TestBuildDriver_Run_Order(t *testing.T) {
	runner := &recordingRunner{}
	tree := newTree(t)
	install := entities.InstallTree{Root: "/work/out/patch-2.7.6"}

	err := NewBuildDriver(runner, testProfile(), nil).Run(context.Background(), tree, install)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"./configure --host=x86_64-w64-mingw32 --build=x86_64-w64-mingw32 --target=x86_64-w64-mingw32 " +
			"LDFLAGS=-static --prefix=/work/out/patch-2.7.6 --disable-dependency-tracking",
		"make",
		"make check TESTS=basic",
		"make check TESTS=reject-format",
		"make install",
	}, runner.scripts())

	for _, call := range runner.calls {
		assert.Equal(t, tree.Root, call.WorkingDir)
	}
	assert.Equal(t, map[string]string{"MSYS": "noacl"}, runner.calls[1].Env)
}

func TestBuildDriver_FailingTestNeverInstalls(t *testing.T) {
	runner := &recordingRunner{fail: map[string]int{"make check TESTS=basic": 2}}

	err := NewBuildDriver(runner, testProfile(), nil).Run(context.Background(), newTree(t), entities.InstallTree{Root: "/out"})
	require.Error(t, err)

	var buildErr *entities.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, entities.StageTest, buildErr.Stage)
	assert.Equal(t, entities.CategoryProcess, buildErr.Category)
	assert.Contains(t, err.Error(), "test basic failed")

	for _, script := range runner.scripts() {
		assert.NotEqual(t, "make install", script)
		assert.NotEqual(t, "make check TESTS=reject-format", script)
	}
}

func TestBuildDriver_StageFailures(t *testing.T) {
	install := entities.InstallTree{Root: "/out"}
	configure := NewBuildDriver(nil, testProfile(), nil).ConfigureCommand(install)

	tests := []struct {
		name      string
		failing   string
		wantStage entities.Stage
		wantCalls int
	}{
		{"configure", configure, entities.StageConfigure, 1},
		{"compile", "make", entities.StageCompile, 2},
		{"install", "make install", entities.StageInstall, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &recordingRunner{fail: map[string]int{tt.failing: 1}}

			err := NewBuildDriver(runner, testProfile(), nil).Run(context.Background(), newTree(t), install)

			var buildErr *entities.BuildError
			require.True(t, errors.As(err, &buildErr))
			assert.Equal(t, tt.wantStage, buildErr.Stage)
			assert.Equal(t, entities.CategoryProcess, buildErr.Category)
			assert.Len(t, runner.calls, tt.wantCalls)
		})
	}
}

func TestBuildDriver_CompileRewrites(t *testing.T) {
	tree := newTree(t)
	makefile := filepath.Join(tree.Root, "src", "Makefile")
	require.NoError(t, os.MkdirAll(filepath.Dir(makefile), 0750))
	require.NoError(t, os.WriteFile(makefile,
		[]byte("LIBINTL = /ucrt64/lib/libintl.dll.a\nLIBICONV = /ucrt64/lib/libiconv.dll.a\n"), 0640))

	profile := testProfile()
	profile.CompileRewrites = []entities.Rewrite{
		{File: "src/Makefile", Old: "libintl.dll.a", New: "libintl.a"},
		{File: "src/Makefile", Old: "libiconv.dll.a", New: "libiconv.a"},
	}
	runner := &recordingRunner{}

	require.NoError(t, NewBuildDriver(runner, profile, nil).Compile(context.Background(), tree))

	got, err := os.ReadFile(makefile)
	require.NoError(t, err)
	assert.Equal(t, "LIBINTL = /ucrt64/lib/libintl.a\nLIBICONV = /ucrt64/lib/libiconv.a\n", string(got))
	assert.Equal(t, []string{"make"}, runner.scripts())
}

func TestBuildDriver_CompileRewriteMissing(t *testing.T) {
	tree := newTree(t)
	require.NoError(t, os.WriteFile(filepath.Join(tree.Root, "Makefile"), []byte("all:\n"), 0600))

	profile := testProfile()
	profile.CompileRewrites = []entities.Rewrite{{File: "Makefile", Old: "libintl.dll.a", New: "libintl.a"}}
	runner := &recordingRunner{}

	err := NewBuildDriver(runner, profile, nil).Compile(context.Background(), tree)

	var buildErr *entities.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, entities.StageCompile, buildErr.Stage)
	assert.Equal(t, entities.CategoryPatch, buildErr.Category)
	assert.ErrorIs(t, err, ErrRewriteNotFound)
	assert.Empty(t, runner.calls, "build tool must not run after a failed rewrite")
}

func TestBuildDriver_ApplyWorkarounds(t *testing.T) {
	tree := newTree(t)
	harness := filepath.Join(tree.Root, "tests", "test-lib.sh")
	require.NoError(t, os.MkdirAll(filepath.Dir(harness), 0750))
	require.NoError(t, os.WriteFile(harness, []byte("check_perms '-rw-r--r--'\n"), 0755))

	profile := testProfile()
	profile.HarnessRewrites = []entities.Rewrite{
		{File: "tests/test-lib.sh", Old: "check_perms '-rw-r--r--'", New: "check_perms '-rw-r--r--*'"},
	}

	require.NoError(t, NewBuildDriver(&recordingRunner{}, profile, nil).ApplyWorkarounds(tree))

	got, err := os.ReadFile(harness)
	require.NoError(t, err)
	assert.Equal(t, "check_perms '-rw-r--r--*'\n", string(got))

	missing := testProfile()
	missing.HarnessRewrites = []entities.Rewrite{{File: "tests/absent.sh", Old: "x", New: "y"}}
	err = NewBuildDriver(&recordingRunner{}, missing, nil).ApplyWorkarounds(tree)

	var buildErr *entities.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, entities.StageWorkarounds, buildErr.Stage)
	assert.Equal(t, entities.CategoryFileSystem, buildErr.Category)
}

func TestBuildDriver_ConfigureCommand(t *testing.T) {
	d := NewBuildDriver(nil, entities.BuildProfile{Host: "h", BuildTriple: "b", Target: "t"}, nil)

	tests := []struct {
		root string
		want string
	}{
		{`C:\kiln\out\patch-2.7.6`, "--prefix=/c/kiln/out/patch-2.7.6"},
		{"/home/build dir/out", "--prefix='/home/build dir/out'"},
	}

	for _, tt := range tests {
		cmd := d.ConfigureCommand(entities.InstallTree{Root: tt.root})
		assert.True(t, strings.HasPrefix(cmd, "./configure --host=h --build=b --target=t LDFLAGS=-static "), cmd)
		assert.Contains(t, cmd, tt.want)
		assert.True(t, strings.HasSuffix(cmd, " --disable-dependency-tracking"), cmd)
	}
}

func TestBuildDriver_TestCommand(t *testing.T) {
	profile := testProfile()
	profile.Make = "mingw32-make"
	profile.TestCommand = "{make} -C tests check TESTS={test}"

	d := NewBuildDriver(nil, profile, nil)
	assert.Equal(t, "mingw32-make -C tests check TESTS=basic", d.TestCommand("basic"))
}

func TestBuildDriver_WithShell(t *testing.T) {
	env := posixEnv(t)
	tree := newTree(t)
	install := entities.InstallTree{Root: filepath.Join(t.TempDir(), "out")}

	//nolint:gosec // G306: configure must be executable
	require.NoError(t, os.WriteFile(filepath.Join(tree.Root, "configure"),
		[]byte("#!/bin/sh\necho \"$@\" > configure.args\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tree.Root, "build.sh"), []byte(`#!/bin/sh
case "$1" in
  check) echo "$2" >> tests.log; [ "$2" != "TESTS=fail" ] ;;
  install) echo "$MSYSTEM" > installed ;;
  *) echo "$MSYS" > compiled ;;
esac
`), 0600))

	profile := testProfile()
	profile.Make = "sh ./build.sh"
	driver := NewBuildDriver(NewShellExecutor(env), profile, nil)

	require.NoError(t, driver.Run(context.Background(), tree, install))

	args, err := os.ReadFile(filepath.Join(tree.Root, "configure.args"))
	require.NoError(t, err)
	assert.Contains(t, string(args), "--prefix="+install.Root)

	compiled, err := os.ReadFile(filepath.Join(tree.Root, "compiled"))
	require.NoError(t, err)
	assert.Equal(t, "noacl\n", string(compiled))

	testsLog, err := os.ReadFile(filepath.Join(tree.Root, "tests.log"))
	require.NoError(t, err)
	assert.Equal(t, "TESTS=basic\nTESTS=reject-format\n", string(testsLog))

	installed, err := os.ReadFile(filepath.Join(tree.Root, "installed"))
	require.NoError(t, err)
	assert.Equal(t, "UCRT64\n", string(installed))

	// Renaming a test to one that fails must stop before install
	require.NoError(t, os.Remove(filepath.Join(tree.Root, "installed")))
	profile.Tests = []string{"fail", "basic"}
	err = NewBuildDriver(NewShellExecutor(env), profile, nil).Run(context.Background(), tree, install)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(tree.Root, "installed"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "/c/out/x-1.0", shellQuote("/c/out/x-1.0"))
	assert.Equal(t, "'/a b'", shellQuote("/a b"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}
