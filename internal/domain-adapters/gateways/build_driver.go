package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
)

// ErrRewriteNotFound is returned when a rewrite's old text is absent from its file
var ErrRewriteNotFound = errors.New("rewrite target text not found")

// BuildDriver runs configure, compile, workarounds, test and install in a
// source tree. Every method returns a *entities.BuildError on failure.
type BuildDriver struct {
	runner   CommandRunner
	profile  entities.BuildProfile
	reporter interfaces.Reporter
}

// NewBuildDriver creates a build driver for profile
func NewBuildDriver(runner CommandRunner, profile entities.BuildProfile, reporter interfaces.Reporter) *BuildDriver {
	if reporter == nil {
		reporter = interfaces.NoOpReporter{}
	}
	return &BuildDriver{
		runner:   runner,
		profile:  profile.WithDefaults(),
		reporter: reporter,
	}
}

// Run executes every state in order and stops at the first failure
func (d *BuildDriver) Run(ctx context.Context, tree entities.SourceTree, install entities.InstallTree) error {
	steps := []func() error{
		func() error { return d.Configure(ctx, tree, install) },
		func() error { return d.Compile(ctx, tree) },
		func() error { return d.ApplyWorkarounds(tree) },
		func() error { return d.Test(ctx, tree) },
		func() error { return d.Install(ctx, tree) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// ConfigureCommand returns the configure invocation for install
func (d *BuildDriver) ConfigureCommand(install entities.InstallTree) string {
	args := []string{
		"./configure",
		"--host=" + d.profile.Host,
		"--build=" + d.profile.BuildTriple,
		"--target=" + d.profile.Target,
	}
	if d.profile.StaticFlag != "" {
		args = append(args, d.profile.StaticFlag)
	}
	args = append(args,
		"--prefix="+shellQuote(ShellPath(install.Root)),
		"--disable-dependency-tracking",
	)
	return strings.Join(args, " ")
}

// Configure runs the tree's configure script
func (d *BuildDriver) Configure(ctx context.Context, tree entities.SourceTree, install entities.InstallTree) error {
	d.reporter.Step("Configuring %s", tree.Name)
	if err := d.exec(ctx, tree.Root, d.ConfigureCommand(install), nil, "configure"); err != nil {
		return entities.NewBuildError(entities.StageConfigure, entities.CategoryProcess, err)
	}
	return nil
}

// Compile applies the compile rewrites to generated build files and runs the build tool
func (d *BuildDriver) Compile(ctx context.Context, tree entities.SourceTree) error {
	for _, rw := range d.profile.CompileRewrites {
		if err := applyRewrite(tree.Root, rw); err != nil {
			return entities.NewBuildError(entities.StageCompile, rewriteCategory(err), err)
		}
	}

	d.reporter.Step("Compiling %s", tree.Name)
	if err := d.exec(ctx, tree.Root, d.profile.Make, d.profile.CompileEnv, "compile"); err != nil {
		return entities.NewBuildError(entities.StageCompile, entities.CategoryProcess, err)
	}
	return nil
}

// ApplyWorkarounds applies the test-harness rewrites
func (d *BuildDriver) ApplyWorkarounds(tree entities.SourceTree) error {
	for _, rw := range d.profile.HarnessRewrites {
		d.reporter.Detail("Rewriting %s", rw.File)
		if err := applyRewrite(tree.Root, rw); err != nil {
			return entities.NewBuildError(entities.StageWorkarounds, rewriteCategory(err), err)
		}
	}
	return nil
}

// TestCommand returns the runner invocation for one named test
func (d *BuildDriver) TestCommand(name string) string {
	return strings.NewReplacer("{make}", d.profile.Make, "{test}", name).Replace(d.profile.TestCommand)
}

// Test runs the allow-listed tests sequentially; the first failure aborts
func (d *BuildDriver) Test(ctx context.Context, tree entities.SourceTree) error {
	for _, name := range d.profile.Tests {
		d.reporter.Step("test: %s", name)
		if err := d.exec(ctx, tree.Root, d.TestCommand(name), nil, "test "+name); err != nil {
			return entities.NewBuildError(entities.StageTest, entities.CategoryProcess,
				fmt.Errorf("test %s failed: %w", name, err))
		}
	}
	return nil
}

// Install runs the build tool's install target
func (d *BuildDriver) Install(ctx context.Context, tree entities.SourceTree) error {
	d.reporter.Step("Installing %s", tree.Name)
	if err := d.exec(ctx, tree.Root, d.profile.Make+" install", nil, "install"); err != nil {
		return entities.NewBuildError(entities.StageInstall, entities.CategoryProcess, err)
	}
	return nil
}

func (d *BuildDriver) exec(ctx context.Context, dir, script string, env map[string]string, desc string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result := d.runner.Run(ctx, Invocation{
		Script:      script,
		WorkingDir:  dir,
		Env:         env,
		Description: desc,
	})
	if !result.Success {
		return result.Error
	}
	return nil
}

// applyRewrite replaces every occurrence of rw.Old in rw.File, keeping the file mode
func applyRewrite(root string, rw entities.Rewrite) error {
	path := filepath.Join(root, filepath.FromSlash(rw.File))
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", rw.File, err)
	}
	//nolint:gosec // G304: path lies inside the source tree
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rw.File, err)
	}

	if !bytes.Contains(data, []byte(rw.Old)) {
		return fmt.Errorf("%w: %q in %s", ErrRewriteNotFound, rw.Old, rw.File)
	}
	data = bytes.ReplaceAll(data, []byte(rw.Old), []byte(rw.New))

	if err := os.WriteFile(path, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", rw.File, err)
	}
	return nil
}

func rewriteCategory(err error) entities.Category {
	if errors.Is(err, ErrRewriteNotFound) {
		return entities.CategoryPatch
	}
	return entities.CategoryFileSystem
}

// shellQuote single-quotes s unless it only holds characters the shell leaves alone
func shellQuote(s string) string {
	safe := s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("/._-+=:,@", r))
	}) < 0
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
