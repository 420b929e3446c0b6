package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
)

// PatchApplier applies unified diffs to files of an extracted source tree
type PatchApplier struct {
	reporter interfaces.Reporter
}

// NewPatchApplier creates a patch applier
func NewPatchApplier(reporter interfaces.Reporter) *PatchApplier {
	if reporter == nil {
		reporter = interfaces.NoOpReporter{}
	}
	return &PatchApplier{reporter: reporter}
}

// Apply applies patches in order. Patch paths must already be resolved.
// Each target is backed up to <target>.orig (overwriting an earlier backup)
// before the patched content is written.
// A failure leaves earlier patches applied.
func (a *PatchApplier) Apply(ctx context.Context, treeRoot string, patches []entities.PatchRecord) ([]entities.AppliedPatch, error) {
	applied := make([]entities.AppliedPatch, 0, len(patches))
	for _, rec := range patches {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		a.reporter.Step("Applying %s to %s", filepath.Base(rec.PatchPath), rec.TargetFile)
		result, err := a.applyOne(treeRoot, rec)
		if err != nil {
			return applied, err
		}
		applied = append(applied, result)
	}
	return applied, nil
}

func (a *PatchApplier) applyOne(treeRoot string, rec entities.PatchRecord) (entities.AppliedPatch, error) {
	//nolint:gosec // G304: patch paths come from the build configuration
	patchText, err := os.ReadFile(rec.PatchPath)
	if err != nil {
		return entities.AppliedPatch{}, fmt.Errorf("failed to read patch %s: %w", rec.PatchPath, err)
	}

	targetPath := filepath.Join(treeRoot, filepath.FromSlash(rec.TargetFile))
	info, err := os.Stat(targetPath)
	if err != nil {
		return entities.AppliedPatch{}, fmt.Errorf("failed to stat target %s: %w", targetPath, err)
	}
	//nolint:gosec // G304: target lies inside the extracted source tree
	original, err := os.ReadFile(targetPath)
	if err != nil {
		return entities.AppliedPatch{}, fmt.Errorf("failed to read target %s: %w", targetPath, err)
	}

	patched, err := applyDiff(patchText, original, rec.TargetFile)
	if err != nil {
		return entities.AppliedPatch{}, fmt.Errorf("patch %s does not apply to %s: %w", rec.PatchPath, rec.TargetFile, err)
	}

	backupPath := targetPath + ".orig"
	if err := os.WriteFile(backupPath, original, info.Mode().Perm()); err != nil {
		return entities.AppliedPatch{}, fmt.Errorf("failed to write backup %s: %w", backupPath, err)
	}
	if err := os.WriteFile(targetPath, patched, info.Mode().Perm()); err != nil {
		return entities.AppliedPatch{}, fmt.Errorf("failed to write %s: %w", targetPath, err)
	}

	return entities.AppliedPatch{
		PatchRecord: rec,
		TargetPath:  targetPath,
		BackupPath:  backupPath,
	}, nil
}

// applyDiff applies the file diff addressing target (or the only one) to original
func applyDiff(patchText, original []byte, target string) ([]byte, error) {
	files, _, err := gitdiff.Parse(bytes.NewReader(patchText))
	if err != nil {
		return nil, fmt.Errorf("malformed patch: %w", err)
	}

	fileDiff, err := selectFileDiff(files, target)
	if err != nil {
		return nil, err
	}
	if fileDiff.IsBinary {
		return nil, fmt.Errorf("binary patches are not supported")
	}
	if fileDiff.IsDelete {
		return nil, fmt.Errorf("patch deletes %s", target)
	}

	var out bytes.Buffer
	err = gitdiff.Apply(&out, bytes.NewReader(original), fileDiff)
	if err == nil {
		return out.Bytes(), nil
	}
	misplaced := errors.Is(err, &gitdiff.Conflict{}) || errors.Is(err, io.ErrUnexpectedEOF)
	if !misplaced || !relocateFragments(fileDiff.TextFragments, original) {
		return nil, err
	}

	// hunks matched at an offset; context must still match exactly
	out.Reset()
	if err := gitdiff.Apply(&out, bytes.NewReader(original), fileDiff); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// maxHunkOffset bounds how far from its header line a hunk may be found
const maxHunkOffset = 200

// relocateFragments moves each fragment to the nearest position within
// maxHunkOffset lines where its context and deleted lines match original
// exactly. Fragments keep their order and must not overlap. It reports false
// when some fragment matches nowhere.
func relocateFragments(frags []*gitdiff.TextFragment, original []byte) bool {
	src := splitLines(original)
	next := 0
	shift := int64(0)

	for _, frag := range frags {
		var preimage []string
		for _, line := range frag.Lines {
			if line.Old() {
				preimage = append(preimage, line.Line)
			}
		}
		if len(preimage) == 0 {
			frag.NewPosition += shift
			continue
		}

		want := int(frag.OldPosition-1) + int(shift)
		start, ok := nearestMatch(src, preimage, want, next)
		if !ok {
			return false
		}

		delta := int64(start) - (frag.OldPosition - 1)
		frag.OldPosition += delta
		frag.NewPosition += delta
		shift = delta
		next = start + len(preimage)
	}
	return true
}

// nearestMatch finds the start index closest to want, at or after floor,
// where lines begins in src
func nearestMatch(src, lines []string, want, floor int) (int, bool) {
	for d := 0; d <= maxHunkOffset; d++ {
		for _, start := range []int{want - d, want + d} {
			if start < floor || start+len(lines) > len(src) {
				continue
			}
			if matchesAt(src, lines, start) {
				return start, true
			}
		}
	}
	return 0, false
}

func matchesAt(src, lines []string, start int) bool {
	for i, line := range lines {
		if src[start+i] != line {
			return false
		}
	}
	return true
}

// splitLines splits data after each newline, keeping the terminators
func splitLines(data []byte) []string {
	var lines []string
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, string(data))
			break
		}
		lines = append(lines, string(data[:i+1]))
		data = data[i+1:]
	}
	return lines
}

func selectFileDiff(files []*gitdiff.File, target string) (*gitdiff.File, error) {
	switch len(files) {
	case 0:
		return nil, fmt.Errorf("patch contains no file diffs")
	case 1:
		return files[0], nil
	}
	for _, f := range files {
		if pathMatches(f.NewName, target) || pathMatches(f.OldName, target) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("patch has %d file diffs and none addresses %s", len(files), target)
}

// pathMatches compares a diff header name with a tree-relative target,
// tolerating leading components such as a/ and b/.
func pathMatches(name, target string) bool {
	if name == "" {
		return false
	}
	n := path.Clean(filepath.ToSlash(name))
	t := path.Clean(filepath.ToSlash(target))
	return n == t || strings.HasSuffix(n, "/"+t)
}
