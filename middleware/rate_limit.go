package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/blogfeed/utils"
)

const limiterIdle = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per client key.
type limiterSet struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newLimiterSet(perMinute int, now func() time.Time) *limiterSet {
	if perMinute < 1 {
		perMinute = 1
	}
	burst := perMinute / 2
	if burst < 1 {
		burst = 1
	}
	return &limiterSet{
		clients:   map[string]*clientLimiter{},
		limit:     rate.Every(time.Minute / time.Duration(perMinute)),
		burst:     burst,
		now:       now,
		lastSweep: now(),
	}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > limiterIdle {
		s.sweep(now)
	}
	c, ok := s.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// sweep evicts clients idle for longer than limiterIdle. Callers hold mu.
func (s *limiterSet) sweep(now time.Time) {
	for k, c := range s.clients {
		if now.Sub(c.lastSeen) > limiterIdle {
			delete(s.clients, k)
		}
	}
	s.lastSweep = now
}

// RateLimit throttles each client IP to perMinute requests with a burst of half that.
func RateLimit(perMinute int) gin.HandlerFunc {
	set := newLimiterSet(perMinute, time.Now)
	return func(ctx *gin.Context) {
		if !set.allow(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
