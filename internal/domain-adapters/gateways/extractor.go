package gateways

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ochairo/kiln/internal/domain/interfaces"
	"github.com/ulikunitz/xz"
)

// maxEntrySize caps a single extracted file (decompression bomb guard)
var maxEntrySize int64 = 4 << 30

// Extractor unpacks source archives
type Extractor struct {
	reporter interfaces.Reporter
}

// NewExtractor creates a new extractor
func NewExtractor(reporter interfaces.Reporter) *Extractor {
	if reporter == nil {
		reporter = interfaces.NoOpReporter{}
	}
	return &Extractor{reporter: reporter}
}

// Extract unpacks archivePath into destDir and returns the absolute path of the
// top-level directory named by the archive's first entry.
func (e *Extractor) Extract(archivePath, destDir string) (string, error) {
	e.reporter.Step("Unpacking %s", filepath.Base(archivePath))

	//nolint:gosec // G304: archivePath was just verified against the configured checksum
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	r, closeFn, err := decompressor(archivePath, f)
	if err != nil {
		return "", err
	}
	defer closeFn()

	rootName, err := extractTar(tar.NewReader(r), destDir)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", filepath.Base(archivePath), err)
	}

	absDest, err := filepath.Abs(destDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}
	root := filepath.Join(absDest, rootName)

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("archive %s has no top-level directory %q", filepath.Base(archivePath), rootName)
	}

	e.reporter.Detail("Extracted to %s", root)
	return root, nil
}

// decompressor picks the stream decoder from the archive suffix
func decompressor(name string, f io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create xz reader: %w", err)
		}
		return xr, noop, nil
	case strings.HasSuffix(lower, ".tar.zst") || strings.HasSuffix(lower, ".tzst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	case strings.HasSuffix(lower, ".tar.bz2") || strings.HasSuffix(lower, ".tbz2"):
		return bzip2.NewReader(f), noop, nil
	case strings.HasSuffix(lower, ".tar"):
		return f, noop, nil
	default:
		return nil, noop, fmt.Errorf("unsupported archive format: %s", filepath.Base(name))
	}
}

// extractTar writes every entry below destDir and returns the first path
// component of the first content entry.
func extractTar(tr *tar.Reader, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	cleanDest := filepath.Clean(destDir)

	// Symlinks and hard links are created after all regular files exist
	type linkInfo struct {
		target   string
		linkname string
		hard     bool
	}
	var links []linkInfo
	var rootName string

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("tar read error: %w", err)
		}

		if header.Typeflag == tar.TypeXHeader || header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		name := strings.TrimPrefix(header.Name, "./")
		if rootName == "" {
			rootName = strings.SplitN(name, "/", 2)[0]
		}

		//nolint:gosec // G305: Path traversal validated below
		target := filepath.Join(destDir, name)
		if !withinDir(cleanDest, target) {
			return "", fmt.Errorf("invalid file path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return "", fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := writeEntry(tr, target, header); err != nil {
				return "", err
			}

		case tar.TypeSymlink, tar.TypeLink:
			linkname := header.Linkname
			if header.Typeflag == tar.TypeLink {
				linkname = filepath.Join(destDir, strings.TrimPrefix(linkname, "./"))
				if !withinDir(cleanDest, linkname) {
					return "", fmt.Errorf("invalid link target in archive: %s", header.Linkname)
				}
			}
			links = append(links, linkInfo{
				target:   target,
				linkname: linkname,
				hard:     header.Typeflag == tar.TypeLink,
			})

		default:
			// fifos and devices have no place in a source tree
		}
	}

	if rootName == "" {
		return "", fmt.Errorf("archive is empty")
	}

	for _, link := range links {
		if err := os.MkdirAll(filepath.Dir(link.target), 0750); err != nil {
			return "", fmt.Errorf("failed to create directory for link: %w", err)
		}
		var err error
		if link.hard {
			err = os.Link(link.linkname, link.target)
		} else {
			err = os.Symlink(link.linkname, link.target)
		}
		if err != nil {
			return "", fmt.Errorf("failed to create link %s -> %s: %w", link.target, link.linkname, err)
		}
	}

	return rootName, nil
}

func writeEntry(tr *tar.Reader, target string, header *tar.Header) error {
	if header.Size > maxEntrySize {
		return fmt.Errorf("entry %s is %d bytes, over the %d byte limit", header.Name, header.Size, maxEntrySize)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	//nolint:gosec // G115: tar header mode fits in FileMode
	mode := os.FileMode(header.Mode).Perm() | 0600
	//nolint:gosec // G304: target validated by withinDir
	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(outFile, io.LimitReader(tr, maxEntrySize+1))
	if err != nil {
		_ = outFile.Close()
		return fmt.Errorf("failed to write file %s: %w", header.Name, err)
	}
	if n > maxEntrySize {
		_ = outFile.Close()
		return fmt.Errorf("entry %s exceeds the %d byte limit", header.Name, maxEntrySize)
	}
	if err := outFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

func withinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
