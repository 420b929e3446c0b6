package yaml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/kiln/internal/domain/entities"
)

// Config document names looked up in the workspace root
const (
	PrimaryConfigName = "kiln.json"
	DefaultConfigName = "kiln.default.json"
)

// ConfigRepository implements repositories.ConfigRepository on top of config files
type ConfigRepository struct {
	primaryPath string
	defaultPath string
	parser      *ConfigParser
}

// NewConfigRepository looks for the primary document at primaryPath (or
// <root>/kiln.json when empty) and falls back to kiln.default.json next to it.
func NewConfigRepository(root, primaryPath string) *ConfigRepository {
	if primaryPath == "" {
		primaryPath = filepath.Join(root, PrimaryConfigName)
	}
	return &ConfigRepository{
		primaryPath: primaryPath,
		defaultPath: filepath.Join(filepath.Dir(primaryPath), DefaultConfigName),
		parser:      NewConfigParser(),
	}
}

// Load parses the primary config, or the default one when the primary is absent.
// When both exist the primary overrides the default: tarball and patches come
// from the primary, and build fields it leaves unset come from the default.
func (r *ConfigRepository) Load(_ context.Context) (*entities.BuildConfig, error) {
	path, err := r.locate()
	if err != nil {
		return nil, entities.NewBuildError(entities.StageConfig, entities.CategoryConfig, err)
	}

	var base entities.BuildProfile
	if path != r.defaultPath {
		base, err = r.defaultBuild()
		if err != nil {
			return nil, entities.NewBuildError(entities.StageConfig, entities.CategoryConfig, err)
		}
	}

	cfg, err := r.parser.ParseFileOver(path, base)
	if err != nil {
		return nil, entities.NewBuildError(entities.StageConfig, entities.CategoryConfig, err)
	}
	return cfg, nil
}

// defaultBuild returns the build section of the default document, or an empty
// profile when there is none
func (r *ConfigRepository) defaultBuild() (entities.BuildProfile, error) {
	if _, err := os.Stat(r.defaultPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entities.BuildProfile{}, nil
		}
		return entities.BuildProfile{}, fmt.Errorf("failed to stat %s: %w", r.defaultPath, err)
	}
	def, err := r.parser.ParseFile(r.defaultPath)
	if err != nil {
		return entities.BuildProfile{}, err
	}
	return def.Build, nil
}

// Path returns the document Load would read
func (r *ConfigRepository) Path() (string, error) {
	return r.locate()
}

func (r *ConfigRepository) locate() (string, error) {
	for _, candidate := range []string{r.primaryPath, r.defaultPath} {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("config not found: neither %s nor %s exists", r.primaryPath, r.defaultPath)
}
