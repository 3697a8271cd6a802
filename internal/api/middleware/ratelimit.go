package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"Fedgate/internal/api/handlers"
)

// RateLimiter is a fixed-window, in-memory limiter keyed by client IP. It
// guards the token and challenge endpoints, which each cost an upstream call.
type RateLimiter struct {
	clients  map[string]*clientLimit
	requests int
	window   time.Duration
	now      func() time.Time
	mu       sync.Mutex
}

type clientLimit struct {
	resetTime time.Time
	count     int
}

// NewRateLimiter allows requests per window for each client. Expired entries
// are swept every window until ctx is done.
func NewRateLimiter(ctx context.Context, requests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*clientLimit),
		requests: requests,
		window:   window,
		now:      time.Now,
	}
	go rl.sweep(ctx)
	return rl
}

// Middleware returns a rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := rl.allow(clientIP(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			handlers.WriteError(w, http.StatusTooManyRequests, "RateLimitExceeded", "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow counts a request and reports whether it is within the limit, and if
// not, how long until the client's window resets.
func (rl *RateLimiter) allow(clientID string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, exists := rl.clients[clientID]
	if !exists || !now.Before(client.resetTime) {
		rl.clients[clientID] = &clientLimit{count: 1, resetTime: now.Add(rl.window)}
		return true, 0
	}

	if client.count < rl.requests {
		client.count++
		return true, 0
	}
	return false, client.resetTime.Sub(now)
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for id, client := range rl.clients {
				if !now.Before(client.resetTime) {
					delete(rl.clients, id)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// clientIP uses the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's address without port.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
