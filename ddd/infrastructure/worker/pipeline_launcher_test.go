package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"manim-service/pkg/errno"
)

type blockingRunner struct {
	mu      sync.Mutex
	ran     []string
	release chan struct{}
	started chan string
	ctxErrs []error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{}), started: make(chan string, 8)}
}

func (r *blockingRunner) Run(ctx context.Context, jobID string) {
	r.started <- jobID
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	r.mu.Lock()
	r.ran = append(r.ran, jobID)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	r.mu.Unlock()
}

func TestLaunchRunsInBackground(t *testing.T) {
	r := newBlockingRunner()
	l := NewPipelineLauncher(r, time.Second)

	if err := l.Launch("job-1"); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	<-r.started
	if s := l.Stats(); s.Running != 1 || s.Launched != 1 {
		t.Errorf("stats = %+v", s)
	}

	close(r.release)
	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s := l.Stats(); s.Running != 0 || s.Finished != 1 {
		t.Errorf("stats = %+v", s)
	}
	if r.ctxErrs[0] != nil {
		t.Errorf("completed pipeline saw ctx err %v", r.ctxErrs[0])
	}
}

func TestLaunchAfterShutdown(t *testing.T) {
	l := NewPipelineLauncher(newBlockingRunner(), time.Second)
	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := l.Launch("late"); !errors.Is(err, errno.ErrLauncherShuttingDown) {
		t.Errorf("err = %v", err)
	}
}

func TestShutdownCancelsAfterGrace(t *testing.T) {
	r := newBlockingRunner()
	l := NewPipelineLauncher(r, 50*time.Millisecond)
	_ = l.Launch("slow")
	<-r.started

	if err := l.Stop(); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop err = %v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ran) != 1 || !errors.Is(r.ctxErrs[0], context.Canceled) {
		t.Errorf("ran=%v ctxErrs=%v", r.ran, r.ctxErrs)
	}
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, string) { panic("boom") }

func TestLaunchRecoversPanic(t *testing.T) {
	l := NewPipelineLauncher(panicRunner{}, time.Second)
	_ = l.Launch("p")
	if err := l.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s := l.Stats(); s.Finished != 1 || s.Running != 0 {
		t.Errorf("stats = %+v", s)
	}
}
