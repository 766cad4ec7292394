package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"manim-service/ddd/domain/entity"
	"manim-service/ddd/domain/repo"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisJobStore(t *testing.T) {
	runJobStoreContract(t, func(t *testing.T) repo.JobStore {
		_, rdb := newMiniredis(t)
		return NewRedisJobStore(rdb, "test", 5, 0)
	})
}

func TestRedisJobStoreKeys(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisJobStore(rdb, "manim", 5, 0)
	ctx := context.Background()

	job := entity.NewRenderJob("client-1", "p")
	if err := s.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	s.AppendLog(ctx, job.ID(), "hello")

	if got, _ := mr.Get("manim:active:client-1"); got != job.ID() {
		t.Errorf("active key = %q", got)
	}
	if got := mr.HGet("manim:job:"+job.ID(), "step"); got != "queued" {
		t.Errorf("step field = %q", got)
	}
	if list, _ := mr.List("manim:job:" + job.ID() + ":logs"); len(list) != 1 || list[0] != "hello" {
		t.Errorf("logs = %v", list)
	}
}

func TestRedisJobStoreTTL(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisJobStore(rdb, "manim", 5, time.Hour)
	ctx := context.Background()

	job := entity.NewRenderJob("client-1", "p")
	_ = s.CreateJob(ctx, job)
	s.AppendLog(ctx, job.ID(), "first")

	if ttl := mr.TTL("manim:job:" + job.ID()); ttl != time.Hour {
		t.Errorf("job ttl = %v", ttl)
	}
	if ttl := mr.TTL("manim:job:" + job.ID() + ":logs"); ttl <= 0 {
		t.Errorf("logs ttl = %v, want positive", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := s.GetJob(ctx, job.ID()); ok {
		t.Error("expected job to expire")
	}
}

func TestRedisJobStoreUnavailable(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisJobStore(rdb, "manim", 5, 0)
	mr.Close()

	ctx := context.Background()
	if err := s.CreateJob(ctx, entity.NewRenderJob("c", "p")); err == nil {
		t.Error("CreateJob must report an unreachable backend")
	}
	// the remaining operations degrade to no-ops
	s.AppendLog(ctx, "x", "y")
	s.RetireJob(ctx, "x")
	if _, ok := s.GetJob(ctx, "x"); ok {
		t.Error("unexpected job")
	}
}
