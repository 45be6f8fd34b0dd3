package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger tags each request with an id and logs method, path, status
// and duration on completion.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			w.Header().Set("X-Request-Id", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.Info("request",
				zap.String("id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}

// UploadSecret gates a route behind a shared secret carried in the
// X-Upload-Secret header. An empty configured secret disables the check.
func UploadSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				got := r.Header.Get("X-Upload-Secret")
				if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					json.NewEncoder(w).Encode(map[string]string{"error": "invalid upload secret"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// RateLimit applies a per-IP token bucket to the wrapped route. perMinute <=
// 0 disables it.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	var (
		mu       sync.Mutex
		limiters = map[string]*clientLimiter{}
	)

	return func(next http.Handler) http.Handler {
		if perMinute <= 0 {
			return next
		}
		limit := rate.Every(time.Minute / time.Duration(perMinute))
		burst := perMinute/2 + 1

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			mu.Lock()
			now := time.Now()
			for key, cl := range limiters {
				if now.After(cl.expires) {
					delete(limiters, key)
				}
			}
			cl, ok := limiters[ip]
			if !ok {
				cl = &clientLimiter{limiter: rate.NewLimiter(limit, burst)}
				limiters[ip] = cl
			}
			cl.expires = now.Add(5 * time.Minute)
			allowed := cl.limiter.Allow()
			mu.Unlock()

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
