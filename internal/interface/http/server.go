// Package http implements the REST API of Kumotsudai: registration and
// login, offerings, prayers, guidance, rankings, search, and notifications.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kumotsudai/kumotsudai-hub/internal/application/command"
	"github.com/kumotsudai/kumotsudai-hub/internal/application/query"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/auth"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxBodyBytes limits request body size.
	MaxBodyBytes int64

	// RateLimitPerMinute is requests per minute per client (0 = disabled).
	RateLimitPerMinute int

	// AllowedOrigins for CORS. "*" allows everything.
	AllowedOrigins []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxBodyBytes:       1 << 20,
		RateLimitPerMinute: 120,
		AllowedOrigins:     []string{"*"},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains everything the HTTP handlers need.
type Dependencies struct {
	// Command handlers (write side)
	RegisterUser     *command.RegisterUserHandler
	AuthenticateUser *command.AuthenticateUserHandler
	CreateOffering   *command.CreateOfferingHandler
	TogglePrayer     *command.TogglePrayerHandler
	AddGuidance      *command.AddGuidanceHandler
	UpdateProfile    *command.UpdateProfileHandler

	// Query handlers (read side)
	GetOffering      *query.GetOfferingHandler
	GetRanking       *query.GetRankingHandler
	SearchOfferings  *query.SearchOfferingsHandler
	GetUserOfferings *query.GetUserOfferingsHandler
	GetNotifications *query.GetNotificationsHandler

	// NotificationRepo backs the mark-read endpoints.
	NotificationRepo notification.Repository

	// UserRepo backs the profile endpoint.
	UserRepo user.Repository

	// Tokens signs and verifies access tokens.
	Tokens *auth.TokenManager

	// HealthCheck reports readiness of the backing stores. Optional.
	HealthCheck func(ctx context.Context) error

	// Logger for request logging.
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP server.
type Server struct {
	config Config
	deps   Dependencies
	log    *logger.Logger

	httpServer  *http.Server
	router      *http.ServeMux
	rateLimiter *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a Server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		log:    deps.Logger,
	}
	if s.log == nil {
		s.log = logger.Default()
	}
	s.log = s.log.With(logger.Component("http"))

	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      s.buildMiddlewareChain(s.router),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router. Applied in reverse order, so the
// rate limiter sees the request first and the request ID is set innermost.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	h := handler
	h = s.requestIDMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.recoveryMiddleware(h)
	h = s.corsMiddleware(h)
	if s.rateLimiter != nil {
		h = s.rateLimitMiddleware(h)
	}
	return h
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.log.Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
			logger.String("request_id", requestID(r.Context())),
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", requestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, o := range s.config.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}
		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("starting HTTP server", logger.String("addr", s.config.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wired handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// apiResponse is the envelope for every JSON response.
type apiResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *apiError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// apiError carries a machine-readable code and a human-readable message.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyUserID    contextKey = "user_id"
)

// responseWriter captures the status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIP extracts the client IP, honoring forwarding headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// requestID extracts the request ID from context.
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// queryParam returns a query parameter or the default.
func queryParam(r *http.Request, key, defaultValue string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultValue
}

// queryParamInt returns an integer query parameter or the default.
func queryParamInt(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(v, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// rateLimiter is a sliding-window per-client limiter.
type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow reports whether the client may make another request.
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := time.Now().Add(-rl.window)

	valid := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, time.Now())
	return true
}

// Stop terminates the cleanup goroutine. Safe to call more than once.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.mu.Lock()
			windowStart := time.Now().Add(-rl.window)
			for key, requests := range rl.requests {
				valid := requests[:0]
				for _, t := range requests {
					if t.After(windowStart) {
						valid = append(valid, t)
					}
				}
				if len(valid) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}
