// Package ratelimit provides request rate limiting behind a single
// interface with an in-memory backend for single-node deployments and a
// redis backend for shared state across replicas. The backend is chosen by
// configuration and injected - there is no module-level fallback state.
package ratelimit

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a fixed-window counter held in process memory.
type MemoryLimiter struct {
	limit  int
	window time.Duration

	mu      sync.Mutex
	windows map[string]*windowCount
}

type windowCount struct {
	start time.Time
	count int
}

// NewMemoryLimiter allows limit requests per key per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*windowCount),
	}
}

// Allow implements Limiter.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.window {
		m.windows[key] = &windowCount{start: now, count: 1}
		return true, nil
	}

	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Middleware wraps a handler with per-client-IP rate limiting. A limiter
// failure (e.g. redis unreachable) lets the request through - availability
// over strictness.
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				log.Printf("⚠️  Rate limiter error, allowing request: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from headers or remote addr
func clientIP(r *http.Request) string {
	// Priority: X-Forwarded-For → X-Real-IP → RemoteAddr
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
