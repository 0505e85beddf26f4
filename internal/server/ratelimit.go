package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// rateLimit enforces a per-client-IP request budget per minute. Counters live
// in Redis (atomic INCR + EXPIRE) so the limit holds across replicas; when
// Redis is down the middleware falls back to a per-process counter rather
// than failing open entirely.
func (s *Server) rateLimit() gin.HandlerFunc {
	if !s.cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	local := newLocalCounter()

	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:%s:%s", c.ClientIP(), time.Now().Format("200601021504"))

		var count int64
		if s.cache.Connected() {
			ctx := c.Request.Context()
			rdb := s.cache.Redis()
			n, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				s.logger.Warn("ratelimit INCR failed, using local counter", zap.Error(err))
				count = local.incr(key)
			} else {
				count = n
				if n == 1 {
					if err := rdb.Expire(ctx, key, time.Minute).Err(); err != nil {
						s.logger.Warn("ratelimit EXPIRE failed", zap.Error(err))
					}
				}
			}
		} else {
			count = local.incr(key)
		}

		if count > int64(s.cfg.RequestsPerMinute) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// localCounter is the in-process fallback: minute-bucketed counts, stale
// buckets dropped on rollover.
type localCounter struct {
	mu     sync.Mutex
	bucket string
	counts map[string]int64
}

func newLocalCounter() *localCounter {
	return &localCounter{counts: make(map[string]int64)}
}

func (l *localCounter) incr(key string) int64 {
	bucket := key[len(key)-12:]
	l.mu.Lock()
	defer l.mu.Unlock()
	if bucket != l.bucket {
		l.bucket = bucket
		l.counts = make(map[string]int64)
	}
	l.counts[key]++
	return l.counts[key]
}
