package main

import (
	"context"
	"os"

	"github.com/ochairo/kiln/internal/domain-adapters/gateways"
	orchestrators "github.com/ochairo/kiln/internal/domain-orchestrators"
	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
	"github.com/ochairo/kiln/internal/domain/services"
	"github.com/ochairo/kiln/internal/external-adapters/s3"
	"github.com/ochairo/kiln/internal/external-adapters/yaml"
)

func (g *Global) configRepository() *yaml.ConfigRepository {
	return yaml.NewConfigRepository(g.Root, g.Config)
}

func (g *Global) shellExecutor() *gateways.ShellExecutor {
	return gateways.NewShellExecutor(g.Env,
		gateways.WithOutput(os.Stdout, os.Stderr),
		gateways.WithLogger(g.Logger),
	)
}

func (g *Global) downloader(ctx context.Context) *gateways.Downloader {
	opts := []gateways.DownloaderOption{gateways.WithUserAgent("kiln/" + version)}
	if g.Interactive {
		opts = append(opts, gateways.WithProgress(g.Reporter.Writer()))
	}

	fetcher, err := s3.NewFetcher(ctx, g.S3)
	if err != nil {
		g.Logger.Warn("s3 sources disabled", interfaces.F("error", err))
	} else {
		opts = append(opts, gateways.WithObjectFetcher(fetcher))
	}
	return gateways.NewDownloader(g.Reporter, opts...)
}

// newBuildOrchestrator wires the production adapters into the pipeline
func (g *Global) newBuildOrchestrator(ctx context.Context, skipProvision bool) *orchestrators.BuildOrchestrator {
	executor := g.shellExecutor()

	return orchestrators.NewBuildOrchestrator(orchestrators.BuildOrchestratorDeps{
		ConfigRepo:  g.configRepository(),
		Workspace:   gateways.NewWorkspace(g.Root),
		Downloader:  g.downloader(ctx),
		Integrity:   orchestrators.NewIntegrityOrchestrator(gateways.NewChecksumVerifier(), gateways.NewGPGVerifier()),
		Extractor:   gateways.NewExtractor(g.Reporter),
		Patcher:     gateways.NewPatchApplier(g.Reporter),
		Provisioner: gateways.NewProvisioner(executor, g.Reporter),
		NewDriver: func(profile entities.BuildProfile) orchestrators.BuildDriver {
			return gateways.NewBuildDriver(executor, profile, g.Reporter)
		},
		Finder:        gateways.NewArtifactFinder(),
		Fingerprinter: services.NewFingerprintService(g.Reporter),
		Inspector:     gateways.NewLinkageInspector(),
	}, orchestrators.BuildOrchestratorConfig{SkipProvision: skipProvision}, g.Logger)
}
