// Copyright 2025 James Ross
package httpapi

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// AuthMiddleware compares the X-API-Key header against the configured key
// using a constant-time comparison. An empty configured key disables
// enforcement entirely, matching the source's opt-in P1_API_KEY behavior.
func AuthMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-API-Key")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
				writeError(w, http.StatusUnauthorized, "AUTH_INVALID", "invalid or missing X-API-Key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// slidingWindowLimiter tracks, per key, the timestamps of requests inside
// the trailing window, evicting stale entries on each check.
type slidingWindowLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	max     int
	window  time.Duration
}

func newSlidingWindowLimiter(max int, window time.Duration) *slidingWindowLimiter {
	return &slidingWindowLimiter{
		buckets: make(map[string][]time.Time),
		max:     max,
		window:  window,
	}
}

func (l *slidingWindowLimiter) allow(key string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)
	q := l.buckets[key]

	evicted := q[:0]
	for _, ts := range q {
		if ts.After(cutoff) {
			evicted = append(evicted, ts)
		}
	}
	q = evicted

	if len(q) >= l.max {
		l.buckets[key] = q
		return false, 0
	}
	q = append(q, now)
	l.buckets[key] = q
	return true, l.max - len(q)
}

// RateLimitMiddleware enforces a sliding-window request cap per API key (or
// remote address when no key is presented), grounded on the source's
// deque-based RateLimitMiddleware.
func RateLimitMiddleware(max int, window time.Duration) func(http.Handler) http.Handler {
	limiter := newSlidingWindowLimiter(max, window)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = getClientIP(r)
			}

			ok, remaining := limiter.allow(key)
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", max))
			if !ok {
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeError(w, http.StatusTooManyRequests, "RATE_LIMIT", "rate limit exceeded")
				return
			}
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware appends one AuditEntry per handled request, in the exact
// shape the source's AuditLogMiddleware writes.
func AuditMiddleware(auditLog *AuditLogger, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			entry := AuditEntry{
				Timestamp: nowISO8601Z(),
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    rw.statusCode,
				LatencyMS: time.Since(start).Milliseconds(),
				Client:    getClientIP(r),
				HasAPIKey: r.Header.Get("X-API-Key") != "",
			}
			if err := auditLog.Log(entry); err != nil {
				logger.Error("failed to write audit log", zap.Error(err))
			}
		})
	}
}

// RequestIDMiddleware stamps every request with an X-Request-ID, generating
// one if the caller did not supply it.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = generateID()
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RecoveryMiddleware converts a panic in any downstream handler into a 500
// response instead of crashing the process.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method))
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		parts := strings.Split(ip, ",")
		return strings.TrimSpace(parts[0])
	}
	return r.RemoteAddr
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
