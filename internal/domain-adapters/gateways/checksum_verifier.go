package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ochairo/kiln/internal/domain/entities"
)

// ChecksumVerifier implements SHA-256 verification using pure Go
type ChecksumVerifier struct{}

// NewChecksumVerifier creates a new checksum verifier
func NewChecksumVerifier() *ChecksumVerifier {
	return &ChecksumVerifier{}
}

// VerifyChecksum hashes the whole file and compares it to expectedSum.
// Hex case and surrounding whitespace are ignored. A mismatch returns
// *entities.ChecksumMismatchError.
func (v *ChecksumVerifier) VerifyChecksum(_ context.Context, filePath, expectedSum string) error {
	actualSum, err := v.CalculateChecksum(filePath)
	if err != nil {
		return err
	}

	expected := strings.ToLower(strings.TrimSpace(expectedSum))
	if actualSum != expected {
		return &entities.ChecksumMismatchError{
			File:     filePath,
			Expected: expected,
			Actual:   actualSum,
		}
	}

	return nil
}

// CalculateChecksum calculates the lowercase hex SHA-256 of a file
func (v *ChecksumVerifier) CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: File path is user-provided for checksum calculation
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", filePath, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
