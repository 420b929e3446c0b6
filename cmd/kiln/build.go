package main

import (
	"context"
	"fmt"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	SkipProvision bool `name:"skip-provision" help:"Do not update the build environment or install packages"`
}

// Run executes every stage and prints a summary
func (c *BuildCmd) Run(ctx context.Context, g *Global) error {
	orch := g.newBuildOrchestrator(ctx, c.SkipProvision)

	result, err := orch.BuildPackage(ctx)
	if err != nil {
		return err
	}
	fmt.Println(result.GetBuildSummary())
	return nil
}

// FetchCmd implements the 'fetch' command.
type FetchCmd struct{}

// Run stops once the source tree is extracted and patched
func (c *FetchCmd) Run(ctx context.Context, g *Global) error {
	result, err := g.newBuildOrchestrator(ctx, true).FetchPackage(ctx)
	if err != nil {
		return err
	}
	g.Reporter.Success("Source ready: %s (%d patches applied)", result.Source.Root, len(result.Patches))
	return nil
}
