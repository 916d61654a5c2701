package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	applog "github.com/Andrew-O39/expense-vista/internal/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

// userIDFrom returns the authenticated user ID placed in the context by
// requireAuth.
func userIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// requireAuth validates the Bearer token and stores the user ID in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		userID, err := s.issuer.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// withObservability wraps the whole mux with request ID generation, access
// logging, security headers and per-IP rate limiting.
func (s *Server) withObservability(next http.Handler) http.Handler {
	httpLog := applog.NewHTTPLogger(s.log)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = newRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		logger := s.log.With(applog.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), applog.LoggerContextKey, logger)
		r = r.WithContext(ctx)

		setSecurityHeaders(w)

		if !s.limiter.allow(clientIP) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			httpLog.LogEnd(ctx, r, http.StatusTooManyRequests, time.Since(start).Milliseconds(), clientIP)
			return
		}

		httpLog.LogStart(ctx, r, clientIP)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpLog.LogEnd(ctx, r, rec.status, time.Since(start).Milliseconds(), clientIP)
	})
}

func setSecurityHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(buf)
}

// trustedProxies are the networks allowed to set forwarding headers.
var trustedProxies = []*net.IPNet{
	mustCIDR("127.0.0.0/8"),
	mustCIDR("10.0.0.0/8"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("192.168.0.0/16"),
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("bad trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

func isTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP returns the real client IP, honoring forwarding headers
// only when the direct peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}
	return directIP
}

// rateLimiter is a fixed-window per-IP limiter.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*clientWindow
	stop      chan struct{}
	stopOnce  sync.Once
}

type clientWindow struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*clientWindow),
		stop:      make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.dropStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *rateLimiter) dropStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) shutdown() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.lastRequest) > time.Minute {
		rl.clients[clientIP] = &clientWindow{lastRequest: now, requests: 1}
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= rl.perMinute
}
