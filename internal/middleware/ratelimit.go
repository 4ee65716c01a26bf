package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Idle clients are dropped from the limiter table after this long.
const clientIdleTTL = 10 * time.Minute

// clientLimiters hands out one token bucket per client IP so a single
// misbehaving client cannot lock everyone else out of the auth endpoints.
type clientLimiters struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rps     rate.Limit
	burst   int
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	cl := &clientLimiters{
		clients: make(map[string]*clientEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
	go cl.sweep()
	return cl
}

// allow records the client as seen and reports whether its bucket still has
// a token.
func (cl *clientLimiters) allow(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	entry, ok := cl.clients[ip]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(cl.rps, cl.burst)}
		cl.clients[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

func (cl *clientLimiters) sweep() {
	ticker := time.NewTicker(clientIdleTTL)
	for range ticker.C {
		cl.prune(time.Now().Add(-clientIdleTTL))
	}
}

// prune drops clients not seen since the cutoff.
func (cl *clientLimiters) prune(cutoff time.Time) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	for ip, entry := range cl.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(cl.clients, ip)
		}
	}
}

// RateLimit returns middleware that throttles requests per client IP. rps is
// the sustained rate, burst the bucket size; both come from configuration.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiters := newClientLimiters(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(clientIP(r)) {
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
