package middleware

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"manim-service/pkg/config"
	"manim-service/pkg/errno"
	"manim-service/pkg/restapi"
)

// limiterIdleTTL is how long a caller's limiter survives without requests.
const limiterIdleTTL = 5 * time.Minute

type cachedLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// limiterSet holds one token bucket per caller and drops idle ones.
type limiterSet struct {
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	limiters  sync.Map // caller -> *cachedLimiter
	lastSweep atomic.Int64
}

func newLimiterSet(cfg config.RateLimitConfig, ttl time.Duration) *limiterSet {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{limit: rate.Limit(cfg.RPS), burst: burst, ttl: ttl}
}

// get returns the caller's limiter; at most once per ttl it also sweeps
// limiters idle for longer than ttl.
func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.maybeSweep(now)

	if v, ok := s.limiters.Load(key); ok {
		cached := v.(*cachedLimiter)
		if now.Sub(time.Unix(0, cached.lastSeen.Load())) < s.ttl {
			cached.lastSeen.Store(now.UnixNano())
			return cached.limiter
		}
		s.limiters.CompareAndDelete(key, cached)
	}

	fresh := &cachedLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
	fresh.lastSeen.Store(now.UnixNano())
	v, _ := s.limiters.LoadOrStore(key, fresh)
	return v.(*cachedLimiter).limiter
}

func (s *limiterSet) maybeSweep(now time.Time) {
	last := s.lastSweep.Load()
	if now.UnixNano()-last < int64(s.ttl) || !s.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	s.limiters.Range(func(k, v interface{}) bool {
		cached := v.(*cachedLimiter)
		if now.Sub(time.Unix(0, cached.lastSeen.Load())) >= s.ttl {
			s.limiters.CompareAndDelete(k, cached)
		}
		return true
	})
}

func (s *limiterSet) size() int {
	n := 0
	s.limiters.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// RateLimit throttles requests per caller. The caller is the X-Client-ID
// header when present, the remote IP otherwise. A disabled config passes
// everything through.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiters := newLimiterSet(cfg, limiterIdleTTL)
	return func(c *gin.Context) {
		key := c.GetString(ContextClientID)
		if key == "" {
			key = c.GetHeader(HeaderClientID)
		}
		if key == "" {
			key = c.ClientIP()
		}
		if !limiters.get(key, time.Now()).Allow() {
			c.Header("Retry-After", "1")
			restapi.Failed(c, errno.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
