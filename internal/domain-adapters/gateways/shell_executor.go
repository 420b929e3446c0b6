package gateways

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/ochairo/kiln/internal/domain/interfaces"
)

// outputTail is how much of each stream a result keeps
const outputTail = 16 << 10

// CommandRunner runs shell scripts inside the build environment
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) *ExecuteResult
}

// Invocation describes one script run. WorkingDir and Env are applied to the
// child only; the calling process never changes directory or environment.
type Invocation struct {
	Script      string
	WorkingDir  string
	Env         map[string]string
	Timeout     time.Duration
	Description string
}

// ExecuteResult contains the result of script execution
type ExecuteResult struct {
	Success  bool
	ExitCode int
	Stdout   string // tail of standard output
	Stderr   string // tail of standard error
	Duration time.Duration
	Error    error
}

// ShellExecutor runs scripts through the environment's shell
type ShellExecutor struct {
	env            entities.Environment
	defaultTimeout time.Duration
	stdout         io.Writer
	stderr         io.Writer
	logger         interfaces.Logger
}

// ShellOption configures a ShellExecutor
type ShellOption func(*ShellExecutor)

// WithOutput streams child output to the given writers as it is produced
func WithOutput(stdout, stderr io.Writer) ShellOption {
	return func(se *ShellExecutor) {
		se.stdout = stdout
		se.stderr = stderr
	}
}

// WithTimeout changes the per-invocation default timeout
func WithTimeout(d time.Duration) ShellOption {
	return func(se *ShellExecutor) { se.defaultTimeout = d }
}

// WithLogger attaches a logger for command tracing
func WithLogger(logger interfaces.Logger) ShellOption {
	return func(se *ShellExecutor) { se.logger = logger }
}

// NewShellExecutor creates a new shell executor
func NewShellExecutor(env entities.Environment, opts ...ShellOption) *ShellExecutor {
	se := &ShellExecutor{
		env:            env,
		defaultTimeout: 2 * time.Hour,
		stdout:         io.Discard,
		stderr:         io.Discard,
		logger:         &interfaces.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(se)
	}
	return se
}

// Run executes inv.Script with the environment's shell. A nonzero exit yields
// a result whose Error is a *entities.ProcessError.
func (se *ShellExecutor) Run(ctx context.Context, inv Invocation) *ExecuteResult {
	startTime := time.Now()
	result := &ExecuteResult{}

	timeout := inv.Timeout
	if timeout == 0 {
		timeout = se.defaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	flag := "-c"
	if se.env.IsLoginShell() {
		flag = "-lc"
	}

	//nolint:gosec // G204: scripts come from the build configuration
	cmd := exec.CommandContext(execCtx, se.env.Shell, flag, inv.Script)
	cmd.Dir = inv.WorkingDir
	cmd.Env = se.childEnv(inv.Env)
	// grandchildren may hold the output pipes open after a kill
	cmd.WaitDelay = 2 * time.Second

	stdout := &tailBuffer{limit: outputTail}
	stderr := &tailBuffer{limit: outputTail}
	cmd.Stdout = io.MultiWriter(se.stdout, stdout)
	cmd.Stderr = io.MultiWriter(se.stderr, stderr)

	se.logger.Debug("running command",
		interfaces.F("description", inv.Description),
		interfaces.F("script", inv.Script),
		interfaces.F("dir", inv.WorkingDir),
	)

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err == nil {
		result.Success = true
		return result
	}

	result.ExitCode = -1
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr) && execCtx.Err() == nil:
		result.ExitCode = exitErr.ExitCode()
		result.Error = &entities.ProcessError{
			Command:  inv.Script,
			ExitCode: result.ExitCode,
			Stderr:   strings.TrimSpace(result.Stderr),
		}
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Error = fmt.Errorf("%s: timeout after %v", inv.Script, timeout)
	case execCtx.Err() != nil:
		result.Error = fmt.Errorf("%s: %w", inv.Script, execCtx.Err())
	default:
		result.Error = fmt.Errorf("failed to start %s: %w", se.env.Shell, err)
	}
	return result
}

// childEnv is the parent environment plus the build-environment variables and
// the invocation overrides, in that precedence order.
func (se *ShellExecutor) childEnv(overrides map[string]string) []string {
	env := os.Environ()
	env = append(env,
		"MSYSTEM="+se.env.Mode,
		"CHERE_INVOKING=1",
	)

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// ShellPath converts a native path to the form the environment's shell
// expects: C:\a\b becomes /c/a/b. Other paths only get forward slashes.
func ShellPath(p string) string {
	s := strings.ReplaceAll(p, `\`, "/")
	if len(s) >= 2 && s[1] == ':' && isDriveLetter(s[0]) {
		rest := strings.TrimPrefix(s[2:], "/")
		return "/" + strings.ToLower(s[:1]) + "/" + rest
	}
	return s
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit int
	buf   []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
