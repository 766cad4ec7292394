package discovery

import (
	"context"
	"errors"
	"testing"

	"manim-service/pkg/config"
	"manim-service/pkg/errno"
)

type stubResolver struct {
	addr string
	err  error
	name string
}

func (s *stubResolver) GetServiceAddress(_ context.Context, name string) (string, error) {
	s.name = name
	return s.addr, s.err
}

func TestStaticWorkerLocator(t *testing.T) {
	url, err := NewStaticWorkerLocator(" http://worker:8083/api/manim/ ").WorkerURL(context.Background())
	if err != nil || url != "http://worker:8083/api/manim" {
		t.Errorf("url = %q, err = %v", url, err)
	}

	_, err = NewStaticWorkerLocator("").WorkerURL(context.Background())
	if !errors.Is(err, errno.ErrWorkerNotConfigured) {
		t.Errorf("err = %v", err)
	}
}

func TestEtcdWorkerLocator(t *testing.T) {
	r := &stubResolver{addr: "10.0.0.7:8083"}
	url, err := NewEtcdWorkerLocator(r, "manim-worker", "/api/manim").WorkerURL(context.Background())
	if err != nil || url != "http://10.0.0.7:8083/api/manim" {
		t.Errorf("url = %q, err = %v", url, err)
	}
	if r.name != "manim-worker" {
		t.Errorf("resolved %q", r.name)
	}

	r = &stubResolver{addr: "https://worker.internal/"}
	url, _ = NewEtcdWorkerLocator(r, "manim-worker", "").WorkerURL(context.Background())
	if url != "https://worker.internal" {
		t.Errorf("url = %q", url)
	}

	r = &stubResolver{addr: "worker-without-port"}
	if _, err := NewEtcdWorkerLocator(r, "manim-worker", "").WorkerURL(context.Background()); !errors.Is(err, errno.ErrWorkerUnreachable) {
		t.Errorf("malformed address err = %v", err)
	}

	r = &stubResolver{err: errors.New("no available instances for service manim-worker")}
	if _, err := NewEtcdWorkerLocator(r, "manim-worker", "").WorkerURL(context.Background()); !errors.Is(err, errno.ErrWorkerUnreachable) {
		t.Errorf("err = %v", err)
	}
}

func TestNewWorkerLocator(t *testing.T) {
	r := &stubResolver{addr: "w:1"}

	cfg := config.RunnerConfig{WorkerURL: "http://static"}
	cfg.Discovery.Enabled = true
	if _, ok := NewWorkerLocator(cfg, r).(*StaticWorkerLocator); !ok {
		t.Error("static url must win")
	}

	cfg.WorkerURL = ""
	if _, ok := NewWorkerLocator(cfg, r).(*EtcdWorkerLocator); !ok {
		t.Error("discovery expected")
	}
	if _, ok := NewWorkerLocator(cfg, nil).(*StaticWorkerLocator); !ok {
		t.Error("missing resolver falls back to static")
	}

	if !Configured(cfg) || Configured(config.RunnerConfig{}) {
		t.Error("Configured mismatch")
	}
}
