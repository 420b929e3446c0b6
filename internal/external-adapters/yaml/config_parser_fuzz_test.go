package yaml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// FuzzConfigParser feeds random/malformed documents to the parser
// to detect crashes or panics.
//
// Run with: go test -fuzz=FuzzConfigParser -fuzztime=30s
func FuzzConfigParser(f *testing.F) {
	f.Add([]byte(`{"tarball": {"url": "https://example.com/a.tar.gz", "sha256": "` + validSHA + `"}}`))
	f.Add([]byte(`tarball:
  localPath: a.tar.xz
  sha256: ` + validSHA + `
patches:
  - patch: p.patch
    file: a.c
`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`[`))
	f.Add([]byte("tarball: {url: \t}"))

	f.Fuzz(func(t *testing.T, data []byte) {
		cfg, err := NewConfigParser().Parse(data)
		if err != nil {
			return
		}
		assert.False(t, cfg.Source.URL == "" && cfg.Source.LocalPath == "", "accepted a config without a source")
		assert.Len(t, cfg.Source.SHA256, 64)
		assert.NotEmpty(t, cfg.Build.Make, "build defaults not applied")
	})
}
