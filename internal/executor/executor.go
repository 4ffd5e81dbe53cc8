// Package executor spawns the external skills CLI and streams its output.
// The CLI mutates a shared on-disk lockfile and is not safe for concurrent
// invocation; the operation queue is the mutual-exclusion mechanism, this
// package only runs one process per call.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
)

// Result is the terminal outcome of a spawned process. It is produced
// exactly once per process.
type Result struct {
	ExitCode int
	Stderr   string
	Signal   string
}

// Process is a handle to a running CLI invocation.
type Process interface {
	// Output streams line-buffered, ANSI-stripped stdout. The channel is
	// closed when stdout is exhausted.
	Output() <-chan string
	// Wait blocks until the process exits and returns its result. Safe to
	// call multiple times; the result resolves exactly once.
	Wait() Result
	// Kill terminates the process. Wait still returns afterwards.
	Kill()
}

// Options configure a spawn.
type Options struct {
	Dir         string // working directory; empty means inherit
	OperationID string // correlates log lines with a queued operation
}

// Executor spawns CLI processes. The queue and orchestrator depend on this
// interface so tests can substitute a fake.
type Executor interface {
	Spawn(ctx context.Context, args []string, opts Options) (Process, error)
}

// CLI is the real Executor backed by os/exec.
type CLI struct {
	path string
	log  *zap.Logger
}

// New creates a CLI executor for the given executable path.
func New(path string, log *zap.Logger) *CLI {
	return &CLI{path: path, log: log.Named("executor")}
}

// Path returns the configured executable path.
func (c *CLI) Path() string { return c.path }

// Spawn starts the CLI with the given arguments. The process is killed when
// ctx is cancelled; Wait returns only after the kill is acknowledged by the
// OS, so callers never observe a "cancelled" outcome while the process may
// still be writing to disk.
func (c *CLI) Spawn(ctx context.Context, args []string, opts Options) (Process, error) {
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = opts.Dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", c.path, err)
	}
	c.log.Debug("spawned process",
		zap.String("operationId", opts.OperationID),
		zap.Strings("args", args),
		zap.Int("pid", cmd.Process.Pid))

	p := &process{
		cmd:    cmd,
		stderr: &stderr,
		lines:  make(chan string, 64),
	}

	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := ansi.Strip(scanner.Text())
			select {
			case p.lines <- line:
			case <-ctx.Done():
				// Drain remaining output so the pipe does not block the
				// dying process.
			}
		}
	}()

	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	lines  chan string

	waitOnce sync.Once
	result   Result
}

func (p *process) Output() <-chan string { return p.lines }

func (p *process) Wait() Result {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		res := Result{Stderr: p.stderr.String()}
		if err != nil {
			res.ExitCode = -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				res.ExitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					res.Signal = status.Signal().String()
				}
			}
		}
		p.result = res
	})
	return p.result
}

func (p *process) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
