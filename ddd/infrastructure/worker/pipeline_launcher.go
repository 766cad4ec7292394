package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"manim-service/pkg/errno"
	"manim-service/pkg/logger"
)

// JobRunner executes one job to a terminal state.
type JobRunner interface {
	Run(ctx context.Context, jobID string)
}

// LauncherStats 启动器统计信息
type LauncherStats struct {
	Launched   uint64
	Finished   uint64
	Running    int
	StartTime  time.Time
	LastLaunch time.Time
}

// PipelineLauncher runs pipelines in background goroutines and keeps a handle
// on each of them so shutdown can wait for them.
type PipelineLauncher struct {
	name   string
	runner JobRunner
	grace  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	stats  LauncherStats
}

func NewPipelineLauncher(runner JobRunner, grace time.Duration) *PipelineLauncher {
	ctx, cancel := context.WithCancel(context.Background())
	return &PipelineLauncher{
		name:   "pipelineLauncher",
		runner: runner,
		grace:  grace,
		ctx:    ctx,
		cancel: cancel,
		stats:  LauncherStats{StartTime: time.Now()},
	}
}

// Launch starts jobID in the background and returns immediately.
func (l *PipelineLauncher) Launch(jobID string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return errno.ErrLauncherShuttingDown
	}
	l.wg.Add(1)
	l.stats.Launched++
	l.stats.Running++
	l.stats.LastLaunch = time.Now()
	l.mu.Unlock()

	go func() {
		defer l.finish()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Pipeline goroutine panicked", map[string]interface{}{
					"job_id": jobID,
					"panic":  fmt.Sprint(r),
				})
			}
		}()
		l.runner.Run(l.ctx, jobID)
	}()
	return nil
}

func (l *PipelineLauncher) finish() {
	l.mu.Lock()
	l.stats.Running--
	l.stats.Finished++
	l.mu.Unlock()
	l.wg.Done()
}

func (l *PipelineLauncher) Stats() LauncherStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Shutdown refuses new launches and waits for running pipelines until ctx is
// done. Pipelines still running then are cancelled and awaited; they record
// their own failure.
func (l *PipelineLauncher) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	running := l.stats.Running
	l.mu.Unlock()

	if running > 0 {
		logger.Infof("Waiting for %d running pipeline(s)", running)
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.cancel()
		return nil
	case <-ctx.Done():
		logger.Warnf("Shutdown grace exceeded, cancelling %d pipeline(s)", l.Stats().Running)
		l.cancel()
		<-done
		return ctx.Err()
	}
}

// Name, Start and Stop let the launcher be registered as a background task.
func (l *PipelineLauncher) Name() string { return l.name }

func (l *PipelineLauncher) Start(context.Context) error {
	logger.Infof("Pipeline launcher ready grace=%s", l.grace)
	return nil
}

func (l *PipelineLauncher) Stop() error {
	ctx := context.Background()
	if l.grace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.grace)
		defer cancel()
	}
	return l.Shutdown(ctx)
}
