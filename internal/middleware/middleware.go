package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/EmpoweredVote/geofence-backend/internal/logging"
	"github.com/EmpoweredVote/geofence-backend/internal/utils"
)

// DeviceParam is the chi URL parameter holding the device id.
const DeviceParam = "device"

var allowed = map[string]struct{}{
	"http://localhost:5173": {},
	"http://localhost:5174": {},
}

// AllowOrigin adds an origin to the CORS allow-list. Call before serving.
func AllowOrigin(origin string) {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin != "" {
		allowed[origin] = struct{}{}
	}
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if _, ok := allowed[origin]; ok {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods",
				"GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers",
				"Content-Type, Authorization, X-Device-Token")
		}

		w.Header().Set("Access-Control-Expose-Headers", "Server-Timing, Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DeviceMiddleware puts the {device} URL parameter into the request context.
func DeviceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(chi.URLParam(r, DeviceParam))
		if deviceID == "" {
			http.Error(w, "Missing device id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(utils.WithDeviceID(r.Context(), deviceID)))
	})
}

// TokenMiddleware checks the device token against a bcrypt hash. Accepted
// tokens are remembered for a few minutes so bcrypt runs once per token, not
// once per request. An empty hash disables the check.
func TokenMiddleware(hash string) func(http.Handler) http.Handler {
	verified := cache.New(5*time.Minute, 10*time.Minute)
	log := logging.Component("auth")

	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				http.Error(w, "Missing device token", http.StatusUnauthorized)
				return
			}
			if _, ok := verified.Get(token); !ok {
				if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
					log.WithField("path", r.URL.Path).Warn("rejected device token")
					http.Error(w, "Invalid device token", http.StatusUnauthorized)
					return
				}
				verified.SetDefault(token, struct{}{})
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Device-Token"))
}

// RateLimiter hands out one token bucket per device. Idle buckets expire.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.Cache
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: cache.New(10*time.Minute, 20*time.Minute),
	}
}

// Allow spends one event from deviceID's budget.
func (l *RateLimiter) Allow(deviceID string) bool {
	return l.limiter(deviceID).Allow()
}

func (l *RateLimiter) limiter(deviceID string) *rate.Limiter {
	if v, ok := l.buckets.Get(deviceID); ok {
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	// Add fails when another request created the bucket first.
	if err := l.buckets.Add(deviceID, lim, cache.DefaultExpiration); err != nil {
		if v, ok := l.buckets.Get(deviceID); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Middleware rejects requests over the device's budget with 429. It needs
// DeviceMiddleware to have run first.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID, ok := utils.GetDeviceIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Missing device id", http.StatusBadRequest)
			return
		}
		if !l.Allow(deviceID) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many events", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
