package main

import (
	"errors"
	"fmt"

	"github.com/ochairo/kiln/internal/domain-adapters/gateways"
	"github.com/ochairo/kiln/internal/domain/interfaces"
	"github.com/ochairo/kiln/internal/domain/services"
)

// FingerprintCmd implements the 'fingerprint' command.
type FingerprintCmd struct {
	Dir string `arg:"" help:"Directory whose files get a sidecar" type:"existingdir"`
}

// Run writes one sidecar per regular file in Dir
func (c *FingerprintCmd) Run(g *Global) error {
	files, err := gateways.NewArtifactFinder().FindFiles(c.Dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files to fingerprint in %s", c.Dir)
	}

	_, err = services.NewFingerprintService(g.Reporter).Fingerprint(files)
	return err
}

// VerifyCmd implements the 'verify' command.
type VerifyCmd struct {
	Dir string `arg:"" help:"Directory holding .sha256 sidecars" type:"existingdir"`
}

// Run checks every sidecar and fails when any file does not match
func (c *VerifyCmd) Run(g *Global) error {
	sidecars, err := gateways.NewArtifactFinder().FindSidecars(c.Dir)
	if err != nil {
		return err
	}
	if len(sidecars) == 0 {
		return fmt.Errorf("no %s sidecars in %s", gateways.SidecarSuffix, c.Dir)
	}

	svc := services.NewFingerprintService(g.Reporter)
	var failures []error
	for _, path := range sidecars {
		if _, err := svc.VerifySidecar(path); err != nil {
			g.Logger.Error("sidecar check failed", interfaces.F("sidecar", path), interfaces.F("error", err))
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d sidecars failed: %w", len(failures), len(sidecars), errors.Join(failures...))
	}
	return nil
}
