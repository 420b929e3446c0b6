// Package gateways defines interfaces for external service adapters.
package gateways

import "context"

// SignatureVerifier checks a detached OpenPGP signature over a downloaded archive
type SignatureVerifier interface {
	VerifyDetachedSignature(ctx context.Context, filePath, sigPath, keyPath string) error
}
