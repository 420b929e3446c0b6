package orchestrators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces/gateways"
)

// ChecksumVerifier interface for checking an archive digest
type ChecksumVerifier interface {
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error
}

// IntegrityOrchestrator gates extraction on the archive's checksum and,
// when configured, its detached signature
type IntegrityOrchestrator struct {
	checksum  ChecksumVerifier
	signature gateways.SignatureVerifier
}

// NewIntegrityOrchestrator creates a new integrity orchestrator. signature may
// be nil when no configuration uses signatures.
func NewIntegrityOrchestrator(checksum ChecksumVerifier, signature gateways.SignatureVerifier) *IntegrityOrchestrator {
	return &IntegrityOrchestrator{
		checksum:  checksum,
		signature: signature,
	}
}

// IntegrityResult records what was verified
type IntegrityResult struct {
	ArchivePath      string
	SHA256           string
	SignatureChecked bool
	Duration         time.Duration
}

// VerifySource checks archivePath against the configured digest, then the
// optional signature. The checksum always runs first.
func (o *IntegrityOrchestrator) VerifySource(ctx context.Context, cfg *entities.BuildConfig, archivePath string) (*IntegrityResult, error) {
	startTime := time.Now()
	result := &IntegrityResult{
		ArchivePath: archivePath,
		SHA256:      cfg.Source.SHA256,
	}

	if err := o.checksum.VerifyChecksum(ctx, archivePath, cfg.Source.SHA256); err != nil {
		return nil, err
	}

	if cfg.Source.Signature != "" {
		if o.signature == nil {
			return nil, fmt.Errorf("signature configured for %s but no signature verifier available", archivePath)
		}
		if err := o.signature.VerifyDetachedSignature(ctx, archivePath,
			resolveLocation(cfg, cfg.Source.Signature), resolveLocation(cfg, cfg.Source.KeyFile)); err != nil {
			return nil, err
		}
		result.SignatureChecked = true
	}

	result.Duration = time.Since(startTime)
	return result, nil
}

// GetIntegritySummary generates a human-readable integrity summary
func (o *IntegrityOrchestrator) GetIntegritySummary(result *IntegrityResult) string {
	summary := fmt.Sprintf("sha256 %s OK", result.SHA256)
	if result.SignatureChecked {
		summary += ", signature OK"
	}
	return summary
}

// resolveLocation resolves local paths against the config directory and
// leaves URLs untouched
func resolveLocation(cfg *entities.BuildConfig, location string) string {
	if isURL(location) {
		return location
	}
	return cfg.Resolve(location)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
