package middleware

import (
	"net/http"
	"sync"
	"time"
)

// RateLimit caps each client IP at rate requests per second with the
// given burst, answering 429 beyond that. Chi's RealIP middleware should
// run earlier in the chain so the client address is the real one.
func RateLimit(rate float64, burst int) func(http.Handler) http.Handler {
	l := newIPLimiter(rate, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r), time.Now()) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

const (
	limiterSweepEvery = time.Minute
	limiterStaleAfter = 10 * time.Minute
)

// ipLimiter is a token-bucket limiter keyed by client IP. Buckets idle
// past limiterStaleAfter are swept during allow calls, so the limiter
// holds no background goroutine.
type ipLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*tokenBucket
	rate      float64
	burst     float64
	lastSweep time.Time
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

func newIPLimiter(rate float64, burst int) *ipLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		visitors: make(map[string]*tokenBucket),
		rate:     rate,
		burst:    float64(burst),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= limiterSweepEvery {
		l.sweep(now)
	}

	b, ok := l.visitors[ip]
	if !ok {
		l.visitors[ip] = &tokenBucket{tokens: l.burst - 1, seen: now}
		return true
	}

	b.tokens += now.Sub(b.seen).Seconds() * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *ipLimiter) sweep(now time.Time) {
	for ip, b := range l.visitors {
		if now.Sub(b.seen) > limiterStaleAfter {
			delete(l.visitors, ip)
		}
	}
	l.lastSweep = now
}
