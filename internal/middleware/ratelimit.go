package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepInterval = 5 * time.Minute
	clientTTL     = 10 * time.Minute
)

// RateLimit allows each client (by remote IP) `requests` requests per
// `per`, with bursts up to `requests`. Excess requests get 429.
//
// Mount it on the unauthenticated endpoints only (login, register): they are
// the ones worth brute-forcing. Place chi's RealIP before it when running
// behind a proxy, so RemoteAddr is the real client.
func RateLimit(requests int, per time.Duration) func(http.Handler) http.Handler {
	l := newLimiter(requests, per, time.Now)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests, try again later"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiter keeps one token bucket per client. Idle clients are swept out
// lazily on the request path, so there is no background goroutine to stop.
type limiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	every     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newLimiter(requests int, per time.Duration, now func() time.Time) *limiter {
	if requests < 1 {
		requests = 1
	}
	return &limiter{
		clients:   make(map[string]*client),
		every:     rate.Every(per / time.Duration(requests)),
		burst:     requests,
		now:       now,
		lastSweep: now(),
	}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > sweepInterval {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > clientTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
