// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
	"github.com/ochairo/kiln/internal/domain/interfaces/repositories"
)

// Workspace interface for the run's directory layout
type Workspace interface {
	SourceDir() string
	InstallDir(treeName string) string
	EnsureEmptyDir(path string) error
}

// Downloader interface for acquiring the source archive
type Downloader interface {
	FetchSource(ctx context.Context, cfg *entities.BuildConfig, srcDir string) (string, error)
}

// Extractor interface for unpacking the source archive
type Extractor interface {
	Extract(archivePath, destDir string) (string, error)
}

// PatchApplier interface for applying configured patches in order
type PatchApplier interface {
	Apply(ctx context.Context, treeRoot string, patches []entities.PatchRecord) ([]entities.AppliedPatch, error)
}

// Provisioner interface for preparing the build environment
type Provisioner interface {
	Provision(ctx context.Context, packages []string) error
}

// BuildDriver interface for the configure/compile/test/install states
type BuildDriver interface {
	Configure(ctx context.Context, tree entities.SourceTree, install entities.InstallTree) error
	Compile(ctx context.Context, tree entities.SourceTree) error
	ApplyWorkarounds(tree entities.SourceTree) error
	Test(ctx context.Context, tree entities.SourceTree) error
	Install(ctx context.Context, tree entities.SourceTree) error
}

// BuildDriverFactory creates a driver for the loaded build profile
type BuildDriverFactory func(profile entities.BuildProfile) BuildDriver

// ArtifactFinder interface for locating installed binaries
type ArtifactFinder interface {
	FindBinaries(installRoot, binDir string) ([]string, error)
}

// Fingerprinter interface for writing checksum sidecars
type Fingerprinter interface {
	Fingerprint(paths []string) ([]entities.ArtifactChecksum, error)
}

// LinkageInspector reports the runtime DLL dependencies of a binary
type LinkageInspector interface {
	Inspect(binaryPath string) (*entities.BinaryLinkage, error)
}

// BuildOrchestrator coordinates the complete package build workflow
type BuildOrchestrator struct {
	configRepo    repositories.ConfigRepository
	workspace     Workspace
	downloader    Downloader
	integrityOrch *IntegrityOrchestrator
	extractor     Extractor
	patcher       PatchApplier
	provisioner   Provisioner
	newDriver     BuildDriverFactory
	finder        ArtifactFinder
	fingerprinter Fingerprinter
	inspector     LinkageInspector
	skipProvision bool
	logger        interfaces.Logger
}

// BuildOrchestratorConfig holds configuration for the orchestrator
type BuildOrchestratorConfig struct {
	SkipProvision bool
}

// BuildOrchestratorDeps groups the collaborators of a BuildOrchestrator
type BuildOrchestratorDeps struct {
	ConfigRepo    repositories.ConfigRepository
	Workspace     Workspace
	Downloader    Downloader
	Integrity     *IntegrityOrchestrator
	Extractor     Extractor
	Patcher       PatchApplier
	Provisioner   Provisioner
	NewDriver     BuildDriverFactory
	Finder        ArtifactFinder
	Fingerprinter Fingerprinter
	Inspector     LinkageInspector // optional
}

// NewBuildOrchestrator creates a new build orchestrator
func NewBuildOrchestrator(deps BuildOrchestratorDeps, config BuildOrchestratorConfig, logger interfaces.Logger) *BuildOrchestrator {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	return &BuildOrchestrator{
		configRepo:    deps.ConfigRepo,
		workspace:     deps.Workspace,
		downloader:    deps.Downloader,
		integrityOrch: deps.Integrity,
		extractor:     deps.Extractor,
		patcher:       deps.Patcher,
		provisioner:   deps.Provisioner,
		newDriver:     deps.NewDriver,
		finder:        deps.Finder,
		fingerprinter: deps.Fingerprinter,
		inspector:     deps.Inspector,
		skipProvision: config.SkipProvision,
		logger:        logger,
	}
}

// StageTiming records how long one stage took
type StageTiming struct {
	Stage    entities.Stage
	Duration time.Duration
}

// BuildResult contains the result of a build operation
type BuildResult struct {
	Config        *entities.BuildConfig
	ArchivePath   string
	Integrity     *IntegrityResult
	Source        *entities.SourceTree
	Install       *entities.InstallTree
	Patches       []entities.AppliedPatch
	Checksums     []entities.ArtifactChecksum
	Linkage       []entities.BinaryLinkage
	Timings       []StageTiming
	TotalDuration time.Duration
	Success       bool
	Error         error
}

// BuildPackage runs every stage from workspace preparation to fingerprinting
func (o *BuildOrchestrator) BuildPackage(ctx context.Context) (*BuildResult, error) {
	return o.run(ctx, entities.StageFingerprint)
}

// FetchPackage stops after the patch stage, leaving a verified, patched tree
func (o *BuildOrchestrator) FetchPackage(ctx context.Context) (*BuildResult, error) {
	return o.run(ctx, entities.StagePatch)
}

func (o *BuildOrchestrator) run(ctx context.Context, last entities.Stage) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{}
	defer func() { result.TotalDuration = time.Since(startTime) }()

	var (
		cfg    *entities.BuildConfig
		tree   entities.SourceTree
		driver BuildDriver
	)
	install := entities.InstallTree{}

	stages := []struct {
		stage    entities.Stage
		category entities.Category
		fn       func() error
	}{
		{entities.StageConfig, entities.CategoryConfig, func() error {
			var err error
			cfg, err = o.configRepo.Load(ctx)
			result.Config = cfg
			return err
		}},
		{entities.StageWorkspace, entities.CategoryFileSystem, func() error {
			return o.workspace.EnsureEmptyDir(o.workspace.SourceDir())
		}},
		{entities.StageAcquire, entities.CategoryFileSystem, func() error {
			archive, err := o.downloader.FetchSource(ctx, cfg, o.workspace.SourceDir())
			result.ArchivePath = archive
			return err
		}},
		{entities.StageVerify, entities.CategoryIntegrity, func() error {
			integrity, err := o.integrityOrch.VerifySource(ctx, cfg, result.ArchivePath)
			if err != nil {
				return err
			}
			result.Integrity = integrity
			o.logger.Info(o.integrityOrch.GetIntegritySummary(integrity), interfaces.F("archive", filepath.Base(result.ArchivePath)))
			return nil
		}},
		{entities.StageExtract, entities.CategoryFileSystem, func() error {
			root, err := o.extractor.Extract(result.ArchivePath, o.workspace.SourceDir())
			if err != nil {
				return err
			}
			tree = entities.SourceTree{Name: filepath.Base(root), Root: root, ArchivePath: result.ArchivePath}
			result.Source = &tree

			install.Root = o.workspace.InstallDir(tree.Name)
			if err := o.workspace.EnsureEmptyDir(install.Root); err != nil {
				return err
			}
			result.Install = &install
			return nil
		}},
		{entities.StagePatch, entities.CategoryPatch, func() error {
			patches := make([]entities.PatchRecord, len(cfg.Patches))
			for i, rec := range cfg.Patches {
				patches[i] = entities.PatchRecord{PatchPath: cfg.Resolve(rec.PatchPath), TargetFile: rec.TargetFile}
			}
			applied, err := o.patcher.Apply(ctx, tree.Root, patches)
			result.Patches = applied
			return err
		}},
		{entities.StageProvision, entities.CategoryProcess, func() error {
			if o.skipProvision {
				o.logger.Info("skipping environment provisioning")
				return nil
			}
			return o.provisioner.Provision(ctx, cfg.Build.Packages)
		}},
		{entities.StageConfigure, entities.CategoryProcess, func() error {
			driver = o.newDriver(cfg.Build)
			return driver.Configure(ctx, tree, install)
		}},
		{entities.StageCompile, entities.CategoryProcess, func() error {
			return driver.Compile(ctx, tree)
		}},
		{entities.StageWorkarounds, entities.CategoryPatch, func() error {
			return driver.ApplyWorkarounds(tree)
		}},
		{entities.StageTest, entities.CategoryProcess, func() error {
			return driver.Test(ctx, tree)
		}},
		{entities.StageInstall, entities.CategoryProcess, func() error {
			return driver.Install(ctx, tree)
		}},
		{entities.StageFingerprint, entities.CategoryFileSystem, func() error {
			binaries, err := o.finder.FindBinaries(install.Root, cfg.Build.BinDir)
			if err != nil {
				return err
			}
			if len(binaries) == 0 {
				return fmt.Errorf("no binaries installed in %s", install.BinDir(cfg.Build.BinDir))
			}
			checksums, err := o.fingerprinter.Fingerprint(binaries)
			result.Checksums = checksums
			if err != nil {
				return err
			}
			result.Linkage = o.inspectLinkage(binaries)
			return nil
		}},
	}

	for _, s := range stages {
		if err := o.runStage(ctx, result, s.stage, s.category, s.fn); err != nil {
			return result, err
		}
		if s.stage == last {
			break
		}
	}

	result.Success = true
	return result, nil
}

// runStage executes fn and records its timing. Failures are tagged with the
// stage unless fn already returned a *entities.BuildError.
func (o *BuildOrchestrator) runStage(ctx context.Context, result *BuildResult, stage entities.Stage, category entities.Category, fn func() error) error {
	if err := ctx.Err(); err != nil {
		result.Error = entities.NewBuildError(stage, entities.CategoryProcess, err)
		return result.Error
	}

	o.logger.Debug("stage started", interfaces.F("stage", stage))
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	result.Timings = append(result.Timings, StageTiming{Stage: stage, Duration: elapsed})

	if err == nil {
		o.logger.Debug("stage finished", interfaces.F("stage", stage), interfaces.F("duration", elapsed))
		return nil
	}

	var buildErr *entities.BuildError
	if !errors.As(err, &buildErr) {
		buildErr = entities.NewBuildError(stage, category, err)
	}
	o.logger.Error("stage failed",
		interfaces.F("stage", buildErr.Stage),
		interfaces.F("category", buildErr.Category),
		interfaces.F("error", buildErr.Err),
	)
	result.Error = buildErr
	return buildErr
}

// inspectLinkage records the DLL imports of each binary. Non-system imports
// are logged as warnings; files that are not PE images are skipped.
func (o *BuildOrchestrator) inspectLinkage(binaries []string) []entities.BinaryLinkage {
	if o.inspector == nil {
		return nil
	}

	var out []entities.BinaryLinkage
	for _, path := range binaries {
		linkage, err := o.inspector.Inspect(path)
		if err != nil {
			o.logger.Debug("skipping linkage check", interfaces.F("binary", path), interfaces.F("error", err))
			continue
		}
		if !linkage.Static() {
			o.logger.Warn("binary depends on non-system DLLs",
				interfaces.F("binary", filepath.Base(path)),
				interfaces.F("dlls", strings.Join(linkage.Foreign, ",")),
			)
		}
		out = append(out, *linkage)
	}
	return out
}

// GetBuildSummary returns a human-readable summary of the build
func (r *BuildResult) GetBuildSummary() string {
	if !r.Success {
		return fmt.Sprintf("Build failed: %v", r.Error)
	}

	var b strings.Builder
	b.WriteString("Build successful!\n")
	if r.Source != nil {
		fmt.Fprintf(&b, "Source: %s\n", r.Source.Name)
	}
	if r.Install != nil {
		fmt.Fprintf(&b, "Install: %s\n", r.Install.Root)
	}
	fmt.Fprintf(&b, "Patches: %d\n", len(r.Patches))
	if len(r.Checksums) > 0 {
		fmt.Fprintf(&b, "Binaries: %d\n", len(r.Checksums))
	}
	for _, l := range r.Linkage {
		if !l.Static() {
			fmt.Fprintf(&b, "  %s needs %s\n", filepath.Base(l.Path), strings.Join(l.Foreign, ", "))
		}
	}
	for _, t := range r.Timings {
		fmt.Fprintf(&b, "  %-12s %v\n", t.Stage, t.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "Total: %v", r.TotalDuration.Round(time.Millisecond))
	return b.String()
}
