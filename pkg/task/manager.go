package task

import (
	"context"
	"sync"

	"manim-service/pkg/logger"
)

// BackgroundTask represents a long-running background process (consumer, launcher, registry lease).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type manager struct {
	tasks   []BackgroundTask
	started int
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

var (
	defaultManager = &manager{tasks: make([]BackgroundTask, 0)}
)

// Register adds a background task; should be called during init/assembly before StartAll.
func Register(task BackgroundTask) {
	if task == nil {
		return
	}
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.tasks = append(defaultManager.tasks, task)
}

// StartAll starts all registered tasks once. On failure the tasks already
// started stay running; call StopAll.
func StartAll(ctx context.Context) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		return nil
	}
	defaultManager.ctx, defaultManager.cancel = context.WithCancel(ctx)
	for _, t := range defaultManager.tasks {
		if err := t.Start(defaultManager.ctx); err != nil {
			return err
		}
		defaultManager.started++
		logger.Infof("Background task started name=%s", t.Name())
	}
	return nil
}

// StopAll stops started tasks in reverse order. Tasks are stopped before the
// shared context is cancelled so each can drain on its own terms.
func StopAll() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	for i := defaultManager.started - 1; i >= 0; i-- {
		t := defaultManager.tasks[i]
		if err := t.Stop(); err != nil {
			logger.Warnf("Background task stop failed name=%s error=%v", t.Name(), err)
		}
	}
	if defaultManager.cancel != nil {
		defaultManager.cancel()
	}
	defaultManager.cancel = nil
	defaultManager.started = 0
}

// Reset drops every registered task. Tests only.
func Reset() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.tasks = defaultManager.tasks[:0]
	defaultManager.started = 0
	defaultManager.cancel = nil
}

// funcTask adapts Start/Stop functions to the BackgroundTask interface.
type funcTask struct {
	name      string
	startFunc func(ctx context.Context) error
	stopFunc  func() error
}

// New wraps plain functions as a BackgroundTask. stop may be nil.
func New(name string, start func(ctx context.Context) error, stop func() error) BackgroundTask {
	return &funcTask{name: name, startFunc: start, stopFunc: stop}
}

func (f *funcTask) Name() string                    { return f.name }
func (f *funcTask) Start(ctx context.Context) error { return f.startFunc(ctx) }
func (f *funcTask) Stop() error {
	if f.stopFunc == nil {
		return nil
	}
	return f.stopFunc()
}
