package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"manim-service/ddd/domain/port"
	"manim-service/pkg/logger"
)

const (
	waitDelay  = 5 * time.Second
	maxLineLen = 64 * 1024
)

// CommandRunner implements port.CommandRunner on os/exec. Every invocation
// gets a hard wall-clock budget.
type CommandRunner struct {
	timeout time.Duration
}

var _ port.CommandRunner = (*CommandRunner)(nil)

func NewCommandRunner(timeout time.Duration) *CommandRunner {
	return &CommandRunner{timeout: timeout}
}

// Run streams stdout and stderr into sink.
func (r *CommandRunner) Run(ctx context.Context, sink port.LogSink, name string, args ...string) error {
	_, err := r.exec(ctx, sink, false, name, args...)
	return err
}

// Output returns stdout; only stderr is streamed into sink.
func (r *CommandRunner) Output(ctx context.Context, sink port.LogSink, name string, args ...string) ([]byte, error) {
	return r.exec(ctx, sink, true, name, args...)
}

func (r *CommandRunner) exec(ctx context.Context, sink port.LogSink, captureStdout bool, name string, args ...string) ([]byte, error) {
	if sink == nil {
		sink = port.Discard
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if !captureStdout {
		sink("$ " + cmdline)
	}
	logger.Debugf("exec command=%s", cmdline)

	// 两个流共用一个 sink，串行写入
	var sinkMu sync.Mutex
	emit := func(line string) {
		sinkMu.Lock()
		sink(line)
		sinkMu.Unlock()
	}
	stderr := newLineWriter(emit)

	cmd := exec.Command(name, args...)
	cmd.WaitDelay = waitDelay
	cmd.Stderr = stderr

	var stdout bytes.Buffer
	var stdoutLines *lineWriter
	if captureStdout {
		cmd.Stdout = &stdout
	} else {
		stdoutLines = newLineWriter(emit)
		cmd.Stdout = stdoutLines
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		stderr.Flush()
		if stdoutLines != nil {
			stdoutLines.Flush()
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %s", name, r.timeout)
		}
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return nil, fmt.Errorf("%s exited with code %d", name, exitErr.ExitCode())
			}
			return nil, fmt.Errorf("%s failed: %w", name, err)
		}
		return stdout.Bytes(), nil
	}
}

// lineWriter splits a byte stream into trimmed, non-empty lines.
type lineWriter struct {
	mu   sync.Mutex
	buf  []byte
	emit func(string)
}

func newLineWriter(emit func(string)) *lineWriter {
	return &lineWriter{emit: emit}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.line(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	// ffmpeg redraws progress with \r; cap runaway lines
	if len(w.buf) > maxLineLen {
		w.line(w.buf)
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

// Flush emits a trailing unterminated line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.line(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) line(b []byte) {
	if line := strings.TrimRight(string(b), " \t\r"); line != "" {
		w.emit(line)
	}
}
