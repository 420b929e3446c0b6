package gateways

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/ochairo/kiln/internal/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// posixEnv returns an environment whose shell is /bin/sh
func posixEnv(t *testing.T) entities.Environment {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	return entities.ResolveEnvironment(t.TempDir(), "UCRT64", "/bin/sh")
}

func TestShellExecutor_Run_Success(t *testing.T) {
	se := NewShellExecutor(posixEnv(t))

	result := se.Run(context.Background(), Invocation{
		Script:      "echo 'Hello, World!'",
		Description: "test echo",
	})

	require.NoError(t, result.Error)
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "Hello, World!\n", result.Stdout)
}

func TestShellExecutor_Run_Failure(t *testing.T) {
	se := NewShellExecutor(posixEnv(t))

	result := se.Run(context.Background(), Invocation{
		Script:      "echo broken >&2; exit 42",
		Description: "test failure",
	})

	assert.False(t, result.Success)
	assert.Equal(t, 42, result.ExitCode)

	var procErr *entities.ProcessError
	require.True(t, errors.As(result.Error, &procErr))
	assert.Equal(t, 42, procErr.ExitCode)
	assert.Equal(t, "broken", procErr.Stderr)
	assert.Contains(t, procErr.Command, "exit 42")
}

func TestShellExecutor_Run_Environment(t *testing.T) {
	se := NewShellExecutor(posixEnv(t))

	result := se.Run(context.Background(), Invocation{
		Script: `echo "$MSYSTEM $CHERE_INVOKING $TEST_VAR"`,
		Env: map[string]string{
			"TEST_VAR": "test_value",
		},
	})

	require.NoError(t, result.Error)
	assert.Equal(t, "UCRT64 1 test_value\n", result.Stdout)
}

func TestShellExecutor_Run_OverridesWin(t *testing.T) {
	se := NewShellExecutor(posixEnv(t))

	result := se.Run(context.Background(), Invocation{
		Script: `echo "$MSYSTEM"`,
		Env:    map[string]string{"MSYSTEM": "MINGW64"},
	})

	require.NoError(t, result.Error)
	assert.Equal(t, "MINGW64\n", result.Stdout)
}

func TestShellExecutor_Run_DoesNotTouchParent(t *testing.T) {
	se := NewShellExecutor(posixEnv(t))
	dir := t.TempDir()

	cwd, err := os.Getwd()
	require.NoError(t, err)
	_, hadVar := os.LookupEnv("KILN_CHILD_ONLY")

	result := se.Run(context.Background(), Invocation{
		Script:     "pwd",
		WorkingDir: dir,
		Env:        map[string]string{"KILN_CHILD_ONLY": "1"},
	})
	require.NoError(t, result.Error)

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, after)
	_, hasVar := os.LookupEnv("KILN_CHILD_ONLY")
	assert.Equal(t, hadVar, hasVar)
}

func TestShellExecutor_Run_WorkingDirectory(t *testing.T) {
	se := NewShellExecutor(posixEnv(t))
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "test.txt"), []byte("content"), 0600))

	result := se.Run(context.Background(), Invocation{
		Script:     "ls test.txt",
		WorkingDir: tempDir,
	})

	require.NoError(t, result.Error)
	assert.Equal(t, "test.txt\n", result.Stdout)
}

func TestShellExecutor_Run_Timeout(t *testing.T) {
	se := NewShellExecutor(posixEnv(t))

	result := se.Run(context.Background(), Invocation{
		Script:  "sleep 5",
		Timeout: 100 * time.Millisecond,
	})

	assert.False(t, result.Success)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "timeout")
}

func TestShellExecutor_Run_StreamsOutput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	se := NewShellExecutor(posixEnv(t), WithOutput(&stdout, &stderr))

	result := se.Run(context.Background(), Invocation{Script: "echo out; echo err >&2"})

	require.NoError(t, result.Error)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "err\n", stderr.String())
}

func TestShellExecutor_Run_MissingShell(t *testing.T) {
	env := entities.ResolveEnvironment(t.TempDir(), "", filepath.Join(t.TempDir(), "no-such-shell"))
	se := NewShellExecutor(env)

	result := se.Run(context.Background(), Invocation{Script: "true"})

	assert.False(t, result.Success)
	require.Error(t, result.Error)
	var procErr *entities.ProcessError
	assert.False(t, errors.As(result.Error, &procErr))
}

func TestShellPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`C:\msys64\home\build`, "/c/msys64/home/build"},
		{`d:\out\patch-2.7.6`, "/d/out/patch-2.7.6"},
		{`C:/already/forward`, "/c/already/forward"},
		{`C:`, "/c/"},
		{"/usr/local", "/usr/local"},
		{`relative\dir`, "relative/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ShellPath(tt.in))
		})
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 8}

	_, err := b.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, "23456789", b.String())

	_, err = b.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, "456789ab", b.String())
	assert.False(t, strings.Contains(b.String(), "0"))
}
