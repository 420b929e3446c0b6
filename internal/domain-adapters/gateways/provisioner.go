package gateways

import (
	"context"
	"fmt"
	"strings"

	"github.com/ochairo/kiln/internal/domain/interfaces"
)

// Provisioner brings the packaged build environment up to date and installs
// the toolchain packages a build needs
type Provisioner struct {
	runner   CommandRunner
	reporter interfaces.Reporter
}

// NewProvisioner creates a provisioner running pacman through runner
func NewProvisioner(runner CommandRunner, reporter interfaces.Reporter) *Provisioner {
	if reporter == nil {
		reporter = interfaces.NoOpReporter{}
	}
	return &Provisioner{runner: runner, reporter: reporter}
}

// Commands returns the package manager invocations in execution order.
// The full upgrade runs twice: the first pass may only replace the package
// manager and core runtime, the second upgrades everything else.
func (p *Provisioner) Commands(packages []string) []string {
	cmds := []string{
		"pacman --noconfirm -Sy",
		"pacman --noconfirm -Syuu",
		"pacman --noconfirm -Syuu",
	}
	if len(packages) > 0 {
		cmds = append(cmds, "pacman --noconfirm --needed -S "+strings.Join(packages, " "))
	}
	return cmds
}

// Provision runs every command in order and stops at the first failure
func (p *Provisioner) Provision(ctx context.Context, packages []string) error {
	for _, script := range p.Commands(packages) {
		if err := ctx.Err(); err != nil {
			return err
		}

		p.reporter.Step("%s", script)
		result := p.runner.Run(ctx, Invocation{
			Script:      script,
			Description: "provision",
		})
		if !result.Success {
			return fmt.Errorf("provisioning failed: %w", result.Error)
		}
	}
	return nil
}
