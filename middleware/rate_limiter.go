package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter allows each client IP limit requests per window, refilled
// continuously. Idle clients are forgotten after one window.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	lastGC   time.Time
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// allow reports whether ip may make another request now.
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastGC) >= rl.window {
		for key, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.window {
				delete(rl.visitors, key)
			}
		}
		rl.lastGC = now
	}

	v, ok := rl.visitors[ip]
	if !ok {
		every := rl.window / time.Duration(rl.limit)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), rl.limit)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			ip = c.ClientIP()
		}

		if !rl.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"details": "Rate limit exceeded. Please wait before making more requests.",
			})
			return
		}

		c.Next()
	}
}
