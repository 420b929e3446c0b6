package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
)

// sidecarLine matches "<64 hex>  <basename>"
var sidecarLine = regexp.MustCompile(`^([0-9a-f]{64})  (\S.*)$`)

// FingerprintService writes and checks .sha256 sidecar files
type FingerprintService struct {
	reporter interfaces.Reporter
}

// NewFingerprintService creates a new fingerprint service
func NewFingerprintService(reporter interfaces.Reporter) *FingerprintService {
	if reporter == nil {
		reporter = interfaces.NoOpReporter{}
	}
	return &FingerprintService{reporter: reporter}
}

// Fingerprint writes <path>.sha256 for every path and echoes each line to the
// operator. The first failure stops the run.
func (s *FingerprintService) Fingerprint(paths []string) ([]entities.ArtifactChecksum, error) {
	checksums := make([]entities.ArtifactChecksum, 0, len(paths))
	for _, p := range paths {
		sum, err := s.GenerateSHA256(p)
		if err != nil {
			return checksums, err
		}
		s.reporter.Success("%s", sum.Line())
		checksums = append(checksums, sum)
	}
	return checksums, nil
}

// GenerateSHA256 writes the sidecar for one file
func (s *FingerprintService) GenerateSHA256(filePath string) (entities.ArtifactChecksum, error) {
	hash, err := computeSHA256(filePath)
	if err != nil {
		return entities.ArtifactChecksum{}, fmt.Errorf("failed to hash %s: %w", filePath, err)
	}

	sum := entities.ArtifactChecksum{
		FilePath:    filePath,
		SHA256:      hash,
		SidecarPath: filePath + ".sha256",
	}
	if err := os.WriteFile(sum.SidecarPath, []byte(sum.Line()), 0644); err != nil {
		return entities.ArtifactChecksum{}, fmt.Errorf("failed to write SHA256 file: %w", err)
	}
	return sum, nil
}

// VerifySidecar recomputes the digest of the file a sidecar names. The file
// is looked up next to the sidecar.
func (s *FingerprintService) VerifySidecar(sidecarPath string) (entities.ArtifactChecksum, error) {
	//nolint:gosec // G304: sidecarPath is provided by the operator
	data, err := os.ReadFile(sidecarPath)
	if err != nil {
		return entities.ArtifactChecksum{}, fmt.Errorf("failed to read sidecar: %w", err)
	}

	line := strings.TrimRight(string(data), "\r\n")
	m := sidecarLine.FindStringSubmatch(line)
	if m == nil || strings.Contains(line, "\n") {
		return entities.ArtifactChecksum{}, fmt.Errorf("malformed sidecar %s", sidecarPath)
	}
	expected, name := m[1], m[2]

	filePath := filepath.Join(filepath.Dir(sidecarPath), name)
	actual, err := computeSHA256(filePath)
	if err != nil {
		return entities.ArtifactChecksum{}, fmt.Errorf("failed to hash %s: %w", filePath, err)
	}

	sum := entities.ArtifactChecksum{FilePath: filePath, SHA256: actual, SidecarPath: sidecarPath}
	if actual != expected {
		return sum, &entities.ChecksumMismatchError{File: filePath, Expected: expected, Actual: actual}
	}
	s.reporter.Success("%s: OK", name)
	return sum, nil
}

// computeSHA256 computes SHA256 hash of a file
func computeSHA256(filePath string) (string, error) {
	//nolint:gosec // G304: filePath is function parameter for checksum generation
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	//nolint:errcheck // Defer close
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
