package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/camdenwatts/teamspace/internal/cache"
	"github.com/camdenwatts/teamspace/pkg/response"
)

// RateLimit limits requests per (clientIP, path) within a fixed window,
// counting through the shared cache store so limits hold across instances.
// A nil store falls back to an in-process counter suitable for
// single-instance deployments and tests.
func RateLimit(store cache.Store, maxRequests int, window time.Duration) gin.HandlerFunc {
	if store == nil {
		store = newMemoryCounterStore()
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:" + c.ClientIP() + "|" + c.FullPath()
		count, resetIn, err := store.IncrementWithTTL(c.Request.Context(), key, window)
		if err != nil {
			// The limiter is advisory: a broken counter never blocks traffic.
			c.Next()
			return
		}

		remaining := maxRequests - int(count)
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(maxInt(0, remaining)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if int(count) > maxRequests {
			response.RateLimited(c, resetIn)
			c.Abort()
			return
		}

		c.Next()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// memoryCounterStore is a minimal in-process cache.Store used when no shared
// cache is configured. Only IncrementWithTTL is exercised by the limiter.
type memoryCounterStore struct {
	mu   sync.Mutex
	data map[string]*memoryCounter
}

type memoryCounter struct {
	count     int64
	windowEnd time.Time
}

func newMemoryCounterStore() *memoryCounterStore {
	return &memoryCounterStore{data: make(map[string]*memoryCounter)}
}

func (s *memoryCounterStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup keeps the map bounded without a sweeper goroutine.
	for k, v := range s.data {
		if now.After(v.windowEnd) {
			delete(s.data, k)
		}
	}

	ct, ok := s.data[key]
	if !ok || now.After(ct.windowEnd) {
		ct = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = ct
	}
	ct.count++

	return ct.count, time.Until(ct.windowEnd), nil
}

func (s *memoryCounterStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (s *memoryCounterStore) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *memoryCounterStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
