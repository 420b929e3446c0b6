// Package main provides the kiln CLI for building a static Windows patch utility.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
	"github.com/ochairo/kiln/internal/external-adapters/console"
	"github.com/ochairo/kiln/internal/external-adapters/s3"
)

var version = "dev"

// CLI definition & global flags
type CLI struct {
	Verbose bool             `short:"v" help:"Enable debug logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Root   string `help:"Workspace root holding src/ and out/" default:"." type:"path" env:"KILN_ROOT"`
	Config string `short:"c" help:"Config file (default <root>/kiln.json, then kiln.default.json)" type:"path"`

	EnvRoot string `name:"msys2-root" help:"Build environment installation root" env:"MSYS2_ROOT"`
	Mode    string `name:"msystem" help:"Build environment mode" env:"MSYSTEM"`
	Shell   string `help:"Login shell used for every command" env:"KILN_SHELL"`

	S3 S3Flags `embed:"" prefix:"s3-" group:"Object store"`

	Build       BuildCmd       `cmd:"" help:"Run the full pipeline and fingerprint the installed binaries"`
	Fetch       FetchCmd       `cmd:"" help:"Acquire, verify, extract and patch the source tree"`
	Provision   ProvisionCmd   `cmd:"" help:"Update the build environment and install the configured packages"`
	Fingerprint FingerprintCmd `cmd:"" help:"Write a .sha256 sidecar for every file in a directory"`
	Verify      VerifyCmd      `cmd:"" help:"Check every .sha256 sidecar in a directory"`
}

// S3Flags configures s3:// source URLs
type S3Flags struct {
	Endpoint        string `help:"Custom endpoint for S3-compatible stores" env:"KILN_S3_ENDPOINT"`
	Region          string `help:"Bucket region" env:"KILN_S3_REGION"`
	AccessKeyID     string `name:"access-key-id" help:"Static access key" env:"KILN_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `name:"secret-access-key" help:"Static secret key" env:"KILN_S3_SECRET_ACCESS_KEY"`
}

// Global carries the state shared by every subcommand
type Global struct {
	Logger      *interfaces.SlogLogger
	Reporter    *console.Printer
	Env         entities.Environment
	Root        string
	Config      string
	S3          s3.Config
	Interactive bool
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("kiln"),
		kong.Description("Build a statically linked patch utility inside an MSYS2 environment."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	g := newGlobal(&cli)
	g.Logger.Debug("starting", interfaces.F("command", kctx.Command()))

	if err := kctx.Run(g); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadDotEnv seeds the process environment from path without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func newGlobal(cli *CLI) *Global {
	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	logger := interfaces.NewSlogLogger(nil).With(interfaces.F("run", uuid.NewString()))

	return &Global{
		Logger:      logger,
		Reporter:    console.NewStderr(),
		Env:         entities.ResolveEnvironment(cli.EnvRoot, cli.Mode, cli.Shell),
		Root:        cli.Root,
		Config:      cli.Config,
		Interactive: console.IsTerminal(os.Stderr),
		S3: s3.Config{
			Endpoint:        cli.S3.Endpoint,
			Region:          cli.S3.Region,
			AccessKeyID:     cli.S3.AccessKeyID,
			SecretAccessKey: cli.S3.SecretAccessKey,
		},
	}
}
