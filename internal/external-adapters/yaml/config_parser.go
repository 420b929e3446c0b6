// Package yaml provides the YAML/JSON-based build configuration parser and repository.
package yaml

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ochairo/kiln/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

// yamlConfig represents the raw config document. JSON documents are decoded
// with encoding/json, everything else with yaml.v3; both share the same tags.
type yamlConfig struct {
	Tarball yamlTarball  `json:"tarball" yaml:"tarball"`
	Patches []yamlPatch  `json:"patches" yaml:"patches"`
	Build   yamlBuildDef `json:"build" yaml:"build"`
}

type yamlTarball struct {
	URL       string `json:"url" yaml:"url"`
	LocalPath string `json:"localPath" yaml:"localPath"`
	SHA256    string `json:"sha256" yaml:"sha256"`
	Signature string `json:"signature" yaml:"signature"`
	KeyFile   string `json:"keyFile" yaml:"keyFile"`
}

type yamlPatch struct {
	Patch string `json:"patch" yaml:"patch"`
	File  string `json:"file" yaml:"file"`
}

type yamlBuildDef struct {
	Host            string            `json:"host" yaml:"host"`
	BuildTriple     string            `json:"buildTriple" yaml:"buildTriple"`
	Target          string            `json:"target" yaml:"target"`
	StaticFlag      string            `json:"staticFlag" yaml:"staticFlag"`
	Packages        []string          `json:"packages" yaml:"packages"`
	Make            string            `json:"make" yaml:"make"`
	CompileEnv      map[string]string `json:"compileEnv" yaml:"compileEnv"`
	CompileRewrites []yamlRewrite     `json:"compileRewrites" yaml:"compileRewrites"`
	HarnessRewrites []yamlRewrite     `json:"harnessRewrites" yaml:"harnessRewrites"`
	Tests           []string          `json:"tests" yaml:"tests"`
	TestCommand     string            `json:"testCommand" yaml:"testCommand"`
	BinDir          string            `json:"binDir" yaml:"binDir"`
}

type yamlRewrite struct {
	File string `json:"file" yaml:"file"`
	Old  string `json:"old" yaml:"old"`
	New  string `json:"new" yaml:"new"`
}

var sha256Pattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// ConfigParser parses build configuration documents
type ConfigParser struct{}

// NewConfigParser creates a new parser
func NewConfigParser() *ConfigParser {
	return &ConfigParser{}
}

// ParseFile parses a config document; relative paths inside it resolve against its directory
func (p *ConfigParser) ParseFile(filePath string) (*entities.BuildConfig, error) {
	return p.ParseFileOver(filePath, entities.BuildProfile{})
}

// ParseFileOver parses a config document whose unset build fields come from base
func (p *ConfigParser) ParseFileOver(filePath string, base entities.BuildProfile) (*entities.BuildConfig, error) {
	//nolint:gosec // G304: filePath is the configuration path chosen by the operator
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	cfg, err := p.parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	absDir, err := filepath.Abs(filepath.Dir(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config directory: %w", err)
	}
	cfg.BaseDir = absDir

	return cfg, nil
}

// Parse parses document bytes into a BuildConfig entity
func (p *ConfigParser) Parse(data []byte) (*entities.BuildConfig, error) {
	return p.parse(data, entities.BuildProfile{})
}

func (p *ConfigParser) parse(data []byte, base entities.BuildProfile) (*entities.BuildConfig, error) {
	var raw yamlConfig
	if err := decode(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	cfg := &entities.BuildConfig{
		Source: entities.SourceConfig{
			URL:       raw.Tarball.URL,
			LocalPath: raw.Tarball.LocalPath,
			SHA256:    raw.Tarball.SHA256,
			Signature: raw.Tarball.Signature,
			KeyFile:   raw.Tarball.KeyFile,
		},
		Patches: convertPatches(raw.Patches),
		Build:   convertBuild(raw.Build).Over(base).WithDefaults(),
	}

	return cfg, nil
}

// decode picks the decoder from the document's first significant byte.
// yaml.v3 rejects tab-indented JSON, which is common in hand-written configs.
func decode(data []byte, raw *yamlConfig) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, raw)
	}
	return yaml.Unmarshal(data, raw)
}

func validate(raw *yamlConfig) error {
	if raw.Tarball.URL == "" && raw.Tarball.LocalPath == "" {
		return fmt.Errorf("tarball must have a url or a localPath")
	}
	if !sha256Pattern.MatchString(raw.Tarball.SHA256) {
		return fmt.Errorf("tarball.sha256 must be 64 hex characters, got %q", raw.Tarball.SHA256)
	}
	if (raw.Tarball.Signature == "") != (raw.Tarball.KeyFile == "") {
		return fmt.Errorf("tarball.signature and tarball.keyFile must be set together")
	}
	for i, patch := range raw.Patches {
		if patch.Patch == "" || patch.File == "" {
			return fmt.Errorf("patches[%d] must have both patch and file", i)
		}
	}
	for i, rw := range append(raw.Build.CompileRewrites, raw.Build.HarnessRewrites...) {
		if rw.File == "" || rw.Old == "" {
			return fmt.Errorf("rewrite %d must have file and old", i)
		}
	}
	return nil
}

func convertPatches(yp []yamlPatch) []entities.PatchRecord {
	patches := make([]entities.PatchRecord, 0, len(yp))
	for _, patch := range yp {
		patches = append(patches, entities.PatchRecord{
			PatchPath:  patch.Patch,
			TargetFile: patch.File,
		})
	}
	return patches
}

func convertBuild(yb yamlBuildDef) entities.BuildProfile {
	return entities.BuildProfile{
		Host:            yb.Host,
		BuildTriple:     yb.BuildTriple,
		Target:          yb.Target,
		StaticFlag:      yb.StaticFlag,
		Packages:        yb.Packages,
		Make:            yb.Make,
		CompileEnv:      yb.CompileEnv,
		CompileRewrites: convertRewrites(yb.CompileRewrites),
		HarnessRewrites: convertRewrites(yb.HarnessRewrites),
		Tests:           yb.Tests,
		TestCommand:     yb.TestCommand,
		BinDir:          yb.BinDir,
	}
}

func convertRewrites(yr []yamlRewrite) []entities.Rewrite {
	rewrites := make([]entities.Rewrite, 0, len(yr))
	for _, rw := range yr {
		rewrites = append(rewrites, entities.Rewrite{File: rw.File, Old: rw.Old, New: rw.New})
	}
	return rewrites
}
