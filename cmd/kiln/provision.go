package main

import (
	"context"
	"fmt"

	"github.com/ochairo/kiln/internal/domain-adapters/gateways"
)

// ProvisionCmd implements the 'provision' command.
type ProvisionCmd struct {
	Packages []string `arg:"" optional:"" help:"Packages to install (default: the config's package list)"`
}

// Run updates the environment and installs the package list
func (c *ProvisionCmd) Run(ctx context.Context, g *Global) error {
	packages := c.Packages
	if len(packages) == 0 {
		cfg, err := g.configRepository().Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		packages = cfg.Build.Packages
	}

	return gateways.NewProvisioner(g.shellExecutor(), g.Reporter).Provision(ctx, packages)
}
