package gateways

import (
	"context"
	"fmt"

	"github.com/ochairo/kiln/internal/external-adapters/gpg"
)

// gpgVerifier wraps the external GPG adapter to implement the domain gateway interface
type gpgVerifier struct{}

// NewGPGVerifier creates a new GPG verifier gateway
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewGPGVerifier() *gpgVerifier {
	return &gpgVerifier{}
}

// VerifyDetachedSignature checks filePath against the detached signature at
// sigLocation using only the keys found at keyLocation. Each call starts from
// an empty keyring.
func (g *gpgVerifier) VerifyDetachedSignature(ctx context.Context, filePath, sigLocation, keyLocation string) error {
	verifier := gpg.NewVerifier()
	if err := verifier.ImportKey(ctx, keyLocation); err != nil {
		return fmt.Errorf("failed to import GPG key from %s: %w", keyLocation, err)
	}
	if err := verifier.Verify(ctx, filePath, sigLocation); err != nil {
		return fmt.Errorf("GPG signature verification failed: %w", err)
	}
	return nil
}
