package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSpawnStreamsStdoutLines(t *testing.T) {
	c := New("sh", zap.NewNop())

	proc, err := c.Spawn(context.Background(), []string{"-c", "echo one; echo two"}, Options{})
	require.NoError(t, err)

	var lines []string
	for line := range proc.Output() {
		lines = append(lines, line)
	}
	res := proc.Wait()

	assert.Equal(t, []string{"one", "two"}, lines)
	assert.Equal(t, 0, res.ExitCode)
	assert.Empty(t, res.Stderr)
}

func TestSpawnStripsANSICodes(t *testing.T) {
	c := New("sh", zap.NewNop())

	proc, err := c.Spawn(context.Background(), []string{"-c", `printf '\033[31mred\033[0m\n'`}, Options{})
	require.NoError(t, err)

	var lines []string
	for line := range proc.Output() {
		lines = append(lines, line)
	}
	proc.Wait()

	require.Len(t, lines, 1)
	assert.Equal(t, "red", lines[0])
}

func TestSpawnCapturesExitCodeAndStderr(t *testing.T) {
	c := New("sh", zap.NewNop())

	proc, err := c.Spawn(context.Background(), []string{"-c", "echo oops >&2; exit 3"}, Options{})
	require.NoError(t, err)

	for range proc.Output() {
	}
	res := proc.Wait()

	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Stderr, "oops")
}

func TestSpawnMissingBinary(t *testing.T) {
	c := New("definitely-not-a-real-binary-4242", zap.NewNop())

	_, err := c.Spawn(context.Background(), []string{"--version"}, Options{})
	require.Error(t, err)
}

func TestSpawnKilledOnContextCancel(t *testing.T) {
	c := New("sleep", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	proc, err := c.Spawn(ctx, []string{"30"}, Options{})
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	for range proc.Output() {
	}
	res := proc.Wait()

	assert.Less(t, time.Since(start), 5*time.Second, "cancel must kill the process")
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestWaitResolvesExactlyOnce(t *testing.T) {
	c := New("sh", zap.NewNop())

	proc, err := c.Spawn(context.Background(), []string{"-c", "exit 7"}, Options{})
	require.NoError(t, err)

	for range proc.Output() {
	}
	first := proc.Wait()
	second := proc.Wait()

	assert.Equal(t, 7, first.ExitCode)
	assert.Equal(t, first, second)
}

func TestSpawnRunsInDir(t *testing.T) {
	dir := t.TempDir()
	c := New("pwd", zap.NewNop())

	proc, err := c.Spawn(context.Background(), nil, Options{Dir: dir})
	require.NoError(t, err)

	var lines []string
	for line := range proc.Output() {
		lines = append(lines, line)
	}
	proc.Wait()

	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], dir)
}
