// Package server implements the vizedit-server HTTP handlers and middleware.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/vizedit/internal/remote"
)

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyCaller    contextKey = "caller"
	contextKeyLogFields contextKey = "log_fields"
)

// logFields collects attributes inner middleware learns about a request,
// for the access log line written on the way out.
type logFields struct {
	tokenID string
}

// caller is the authenticated token behind a request.
type caller struct {
	TokenID    string
	Permission string
}

func callerFrom(ctx context.Context) (caller, bool) {
	c, ok := ctx.Value(contextKeyCaller).(caller)
	return c, ok
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// requestIDMiddleware tags each request with a UUID. A well-formed
// X-Request-ID sent by the client is kept so calls can be traced end to end.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), contextKeyRequestID, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs request method, path, status, and latency.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			fields := &logFields{}

			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), contextKeyLogFields, fields)))

			level := slog.LevelInfo
			if rw.statusCode >= 500 {
				level = slog.LevelWarn
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"latency_ms", time.Since(start).Milliseconds(),
				"request_id", requestID(r.Context()),
			}
			if fields.tokenID != "" {
				attrs = append(attrs, "token_id", fields.tokenID)
			}
			logger.Log(r.Context(), level, "request", attrs...)
		})
	}
}

// recoveryMiddleware catches panics and returns 500.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, statusCode: 0}
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", "error", rec, "request_id", requestID(r.Context()))
					if rw.statusCode == 0 {
						writeError(rw, http.StatusInternalServerError, "internal_error", "internal server error")
					}
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// authMiddleware resolves the bearer token to a caller. Last-used stamps are
// written in the background, at most 20 at a time; extra stamps are dropped.
func authMiddleware(tokens TokenStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		sem := make(chan struct{}, 20)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || rawToken == "" {
				writeError(w, http.StatusUnauthorized, "auth_failed", "missing or invalid Authorization header")
				return
			}

			info, err := tokens.GetByHash(HashToken(rawToken))
			if err != nil || info == nil {
				writeError(w, http.StatusUnauthorized, "auth_failed", "invalid token")
				return
			}

			select {
			case sem <- struct{}{}:
				go func() {
					defer func() { <-sem }()
					if err := tokens.UpdateLastUsed(info.ID); err != nil {
						logger.Warn("failed to update token last_used_at", "error", err, "token_id", info.ID)
					}
				}()
			default:
			}

			ctx := context.WithValue(r.Context(), contextKeyCaller, caller{TokenID: info.ID, Permission: info.Permission})
			if f, ok := ctx.Value(contextKeyLogFields).(*logFields); ok {
				f.tokenID = info.ID
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireWrite rejects callers whose token is read-only.
func requireWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, _ := callerFrom(r.Context()); c.Permission != remote.PermissionReadWrite {
			writeError(w, http.StatusForbidden, "forbidden", "read-only token cannot perform write operations")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter allows a fixed number of requests per caller per minute.
// Callers are keyed by token id, or by client address before auth.
type rateLimiter struct {
	limit int
	now   func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	swept   time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// sweepEvery bounds how often expired windows are dropped.
const sweepEvery = 5 * time.Minute

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	return &rateLimiter{
		limit:   requestsPerMinute,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// allow counts one request for key. When the window is exhausted it reports
// how long until the window resets.
func (rl *rateLimiter) allow(key string) (remaining int, wait time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.swept) >= sweepEvery {
		for k, w := range rl.windows {
			if !now.Before(w.resetAt) {
				delete(rl.windows, k)
			}
		}
		rl.swept = now
	}

	w := rl.windows[key]
	if w == nil || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(time.Minute)}
		rl.windows[key] = w
	}
	w.count++
	if w.count > rl.limit {
		return 0, w.resetAt.Sub(now), false
	}
	return rl.limit - w.count, 0, true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		remaining, wait, ok := rl.allow(rateLimitKey(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitKey(r *http.Request) string {
	if c, ok := callerFrom(r.Context()); ok {
		return "token:" + c.TokenID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// HashToken returns the SHA256 hex digest of a raw token string.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
