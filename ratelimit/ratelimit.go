// Package ratelimit provides per-client request rate limiting.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Config controls the limiter. RequestsPerMinute <= 0 disables limiting.
type Config struct {
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   time.Duration
}

// Limiter tracks a token bucket per client IP.
type Limiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter and starts its cleanup loop.
func New(cfg Config) *Limiter {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 10
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	l := &Limiter{
		limit:   rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:   cfg.BurstSize,
		clients: make(map[string]*client),
	}
	if cfg.RequestsPerMinute > 0 {
		go l.cleanup(cfg.CleanupInterval)
	}
	return l
}

// Middleware rejects clients that exceed their bucket with 429.
func (l *Limiter) Middleware() gin.HandlerFunc {
	if l.limit <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(ip string) bool {
	l.mu.Lock()
	cl, ok := l.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = time.Now()
	l.mu.Unlock()

	return cl.limiter.Allow()
}

// cleanup evicts buckets for clients not seen recently so the map does
// not grow without bound.
func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-3 * interval)
		l.mu.Lock()
		for ip, cl := range l.clients {
			if cl.lastSeen.Before(cutoff) {
				delete(l.clients, ip)
			}
		}
		l.mu.Unlock()
	}
}
