package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/solvera/ojt-core/internal/domain/account"
	"github.com/solvera/ojt-core/pkg/logger"
)

// ErrorWriter renders an error response in the caller's envelope format.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// PlainErrorWriter writes a minimal JSON error body.
func PlainErrorWriter(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}`))
}

// ══════════════════════════════════════════════════════════════════════════════
// API KEY AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// APIKeyAuth guards the staff API with static keys.
type APIKeyAuth struct {
	headerName string
	validKeys  [][]byte
	onError    ErrorWriter
	mu         sync.RWMutex
}

// NewAPIKeyAuth creates a new API key authenticator. Empty keys are ignored.
func NewAPIKeyAuth(headerName string, keys []string, onError ErrorWriter) *APIKeyAuth {
	if headerName == "" {
		headerName = "X-API-Key"
	}
	if onError == nil {
		onError = PlainErrorWriter
	}
	a := &APIKeyAuth{headerName: headerName, onError: onError}
	for _, key := range keys {
		a.AddKey(key)
	}
	return a
}

// AddKey adds a valid API key.
func (a *APIKeyAuth) AddKey(key string) {
	if key == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validKeys = append(a.validKeys, []byte(key))
}

// IsValid checks if an API key is valid.
func (a *APIKeyAuth) IsValid(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, k := range a.validKeys {
		if subtle.ConstantTimeCompare(k, []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// Middleware rejects requests without a valid key in the configured header
// or a Bearer Authorization header.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(a.headerName)
		if key == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				key = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if key == "" {
			a.onError(w, r, http.StatusUnauthorized, "missing_api_key", "API key is required")
			return
		}
		if !a.IsValid(key) {
			a.onError(w, r, http.StatusUnauthorized, "invalid_api_key", "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTAL (BASIC) AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// Authenticator verifies portal credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (*account.User, error)
}

type userKey struct{}

// WithUser stores the authenticated portal user in ctx.
func WithUser(ctx context.Context, u *account.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated portal user, if any.
func UserFromContext(ctx context.Context) (*account.User, bool) {
	u, ok := ctx.Value(userKey{}).(*account.User)
	return u, ok && u != nil
}

// BasicAuth authenticates portal users with HTTP Basic credentials.
type BasicAuth struct {
	auth  Authenticator
	realm string
	log   *logger.Logger
}

// NewBasicAuth creates the portal authenticator middleware.
func NewBasicAuth(auth Authenticator, realm string, log *logger.Logger) *BasicAuth {
	if realm == "" {
		realm = "Restricted"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &BasicAuth{auth: auth, realm: realm, log: log}
}

// Middleware challenges unauthenticated requests and stores the user in the
// request context otherwise.
func (b *BasicAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		if !ok || b.auth == nil {
			b.challenge(w)
			return
		}
		u, err := b.auth.Authenticate(r.Context(), login, password)
		if err != nil {
			b.log.Debug("portal login rejected",
				logger.String("login", account.NormalizeLogin(login)),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			)
			b.challenge(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

func (b *BasicAuth) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+b.realm+`", charset="UTF-8"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST LOGGING & RECOVERY
// ══════════════════════════════════════════════════════════════════════════════

// RequestLogger logs every request with its status and latency.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.WithRequestID(middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context(), reqLog)))

			reqLog.Info("http request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Latency(time.Since(start)),
				logger.String("ip", r.RemoteAddr),
				logger.String("user_agent", r.UserAgent()),
			)
		})
	}
}

// Recoverer turns panics into 500 responses.
func Recoverer(log *logger.Logger, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = PlainErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic recovered",
						logger.Any("error", rec),
						logger.String("path", r.URL.Path),
						logger.String("request_id", middleware.GetReqID(r.Context())),
					)
					onError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CORS
// ══════════════════════════════════════════════════════════════════════════════

// CORS answers preflight requests and sets headers for allowed origins.
// "*" allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITING
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiter is a sliding-window limiter keyed by client address.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	once     sync.Once
}

// NewRateLimiter allows limit requests per window and key. A background
// sweep drops idle keys until Close is called.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow records a request for key and reports whether it is under the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.prune(rl.requests[key], now.Add(-rl.window))
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

func (rl *RateLimiter) prune(requests []time.Time, windowStart time.Time) []time.Time {
	valid := requests[:0]
	for _, t := range requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	return valid
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			windowStart := rl.now().Add(-rl.window)
			for key, requests := range rl.requests {
				if valid := rl.prune(requests, windowStart); len(valid) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the background sweep.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

// Middleware answers 429 once a client exceeds the limit. Pair it with
// chi's RealIP so RemoteAddr carries the forwarded client address.
func (rl *RateLimiter) Middleware(onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = PlainErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientKey(r.RemoteAddr)) {
				w.Header().Set("Retry-After", formatSeconds(rl.window))
				onError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey strips the port from a remote address.
func clientKey(addr string) string {
	if strings.HasPrefix(addr, "[") {
		if idx := strings.LastIndex(addr, "]"); idx != -1 {
			return addr[1:idx]
		}
	}
	if strings.Count(addr, ":") == 1 {
		return addr[:strings.LastIndex(addr, ":")]
	}
	return addr
}

// ══════════════════════════════════════════════════════════════════════════════
// SECURITY & CACHING HEADERS
// ══════════════════════════════════════════════════════════════════════════════

// SecurityHeadersMiddleware adds security-related headers. Pages may use
// inline styles and data: images (QR codes) but no scripts.
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'none'; img-src 'self' data:; style-src 'unsafe-inline'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// NoCacheMiddleware prevents caching. Check-in links must hit the server every time.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// RequestSizeLimitMiddleware limits the size of request bodies.
func RequestSizeLimitMiddleware(maxBytes int64, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = PlainErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				onError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// formatSeconds formats a duration as whole seconds for headers.
func formatSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
