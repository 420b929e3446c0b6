package entities

import (
	"errors"
	"fmt"
)

// Category classifies pipeline failures
type Category string

const (
	CategoryConfig     Category = "config"
	CategoryIntegrity  Category = "integrity"
	CategoryFileSystem Category = "filesystem"
	CategoryProcess    Category = "process"
	CategoryPatch      Category = "patch"
)

// Stage names a pipeline step
type Stage string

const (
	StageConfig      Stage = "config"
	StageWorkspace   Stage = "workspace"
	StageAcquire     Stage = "acquire"
	StageVerify      Stage = "verify"
	StageExtract     Stage = "extract"
	StagePatch       Stage = "patch"
	StageProvision   Stage = "provision"
	StageConfigure   Stage = "configure"
	StageCompile     Stage = "compile"
	StageWorkarounds Stage = "workarounds"
	StageTest        Stage = "test"
	StageInstall     Stage = "install"
	StageFingerprint Stage = "fingerprint"
)

// BuildError is the structured failure surfaced by the pipeline
type BuildError struct {
	Stage    Stage
	Category Category
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Category, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// NewBuildError tags err with a stage. The category is taken from a wrapped
// ChecksumMismatchError or ProcessError when present, otherwise fallback is used.
func NewBuildError(stage Stage, fallback Category, err error) *BuildError {
	category := fallback
	var mismatch *ChecksumMismatchError
	var proc *ProcessError
	switch {
	case errors.As(err, &mismatch):
		category = CategoryIntegrity
	case errors.As(err, &proc):
		category = CategoryProcess
	}
	return &BuildError{Stage: stage, Category: category, Err: err}
}

// ChecksumMismatchError is returned when a file's digest differs from the expected one
type ChecksumMismatchError struct {
	File     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.File, e.Expected, e.Actual)
}

// ProcessError is returned when an external command exits nonzero
type ProcessError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with status %d\nStderr: %s", e.Command, e.ExitCode, e.Stderr)
}
