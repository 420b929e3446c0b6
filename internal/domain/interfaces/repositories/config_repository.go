// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/kiln/internal/domain/entities"
)

// ConfigRepository defines the interface for loading the build configuration
type ConfigRepository interface {
	// Load returns the build configuration, falling back to the default document
	Load(ctx context.Context) (*entities.BuildConfig, error)
}
