// Package server wires the escrow release engine, the provider callback
// ingress and the guest access gate into a single HTTP process.
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/stayzen/stayzen/internal/access"
	"github.com/stayzen/stayzen/internal/booking"
	"github.com/stayzen/stayzen/internal/circuitbreaker"
	"github.com/stayzen/stayzen/internal/config"
	"github.com/stayzen/stayzen/internal/health"
	"github.com/stayzen/stayzen/internal/joblock"
	"github.com/stayzen/stayzen/internal/ledger"
	"github.com/stayzen/stayzen/internal/logging"
	"github.com/stayzen/stayzen/internal/metrics"
	"github.com/stayzen/stayzen/internal/notify"
	"github.com/stayzen/stayzen/internal/payment"
	"github.com/stayzen/stayzen/internal/provider"
	"github.com/stayzen/stayzen/internal/ratelimit"
	"github.com/stayzen/stayzen/internal/realtime"
	"github.com/stayzen/stayzen/internal/realtor"
	"github.com/stayzen/stayzen/internal/scheduler"
	"github.com/stayzen/stayzen/internal/security"
	"github.com/stayzen/stayzen/internal/validation"
	"github.com/stayzen/stayzen/internal/webhook"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg        *config.Config
	bookings   booking.Store
	payments   payment.Store
	escrow     *ledger.Ledger
	states     *ledger.StateMachine
	locks      *joblock.Manager
	deliveries webhook.DeliveryStore
	reconciler *webhook.Reconciler
	provider   provider.Client
	engine     *scheduler.Engine
	sweeper    *scheduler.Scheduler
	dispatcher *notify.Dispatcher
	properties *access.MemoryDirectory
	realtors   realtor.Store
	hub        *realtime.Hub
	checks     *health.Registry

	rateLimiter    *ratelimit.Limiter
	webhookLimiter *ratelimit.Limiter

	db           *sql.DB       // nil if using in-memory
	redis        *redis.Client // nil if locks are not Redis-backed
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithProviderClient sets a custom payment provider client (for testing)
func WithProviderClient(c provider.Client) Option {
	return func(s *Server) {
		s.provider = c
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set provider/logger)
	for _, opt := range opts {
		opt(s)
	}

	var (
		eventStore ledger.EventStore
		lockStore  joblock.Store
	)

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.bookings = booking.NewPostgresStore(db)
		s.payments = payment.NewPostgresStore(db)
		eventStore = ledger.NewPostgresStore(db)
		s.deliveries = webhook.NewPostgresDeliveryStore(db)
		lockStore = joblock.NewPostgresStore(db)
		s.realtors = realtor.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.bookings = booking.NewMemoryStore()
		s.payments = payment.NewMemoryStore()
		eventStore = ledger.NewMemoryStore()
		s.deliveries = webhook.NewMemoryDeliveryStore()
		lockStore = joblock.NewMemoryStore()
		s.realtors = realtor.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Redis-backed job locks when configured. The escrow lock must be
	// shared across replicas, so any multi-instance deployment sets
	// REDIS_URL (or runs on Postgres, whose lock store is also shared).
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		s.redis = redis.NewClient(redisOpts)
		lockStore = joblock.NewRedisStore(s.redis)
		s.logger.Info("using Redis job locks", "addr", redisOpts.Addr)
	}
	s.locks = joblock.NewManager(lockStore, cfg.LockTTL)

	// Outbound state-transition notices. An empty NOTIFY_URL leaves the
	// dispatcher in drop mode, so the wiring below is unconditional.
	s.dispatcher = notify.NewDispatcher(cfg.NotifyURL, cfg.NotifySecret, s.logger)
	if cfg.NotifyURL != "" {
		s.logger.Info("state-transition notices enabled", "url", cfg.NotifyURL)
	}

	// Realtime hub feeds the operator escrow timeline over WebSocket
	s.hub = realtime.NewHub(s.logger)

	// Escrow ledger and the payment status cache it drives
	s.escrow = ledger.New(eventStore).WithSink(s.hub)
	s.states = ledger.NewStateMachine(eventStore, s.payments, s.bookings).
		WithAlerter(s.dispatcher).
		WithNotifier(s.dispatcher)

	// Payment provider (Stripe if configured, otherwise the in-process fake)
	if s.provider == nil {
		if cfg.StripeAPIKey != "" {
			s.provider = provider.NewStripeClient(cfg.StripeAPIKey)
			s.logger.Info("payment provider enabled", "provider", "stripe")
		} else {
			s.provider = provider.NewFake()
			s.logger.Warn("no STRIPE_API_KEY set, using fake payment provider")
		}
	}

	// Each provider operation runs behind its own circuit so a degraded
	// endpoint fails fast instead of stalling release sweeps.
	breaker := circuitbreaker.New(5, 30*time.Second)
	breaker.OnTransition(func(key string, from, to circuitbreaker.State) {
		s.logger.Warn("provider circuit state changed",
			"operation", key, "from", from.String(), "to", to.String())
	})
	s.provider = provider.WithBreaker(s.provider, breaker)

	// Release engine and its sweep loop. Per-realtor commission terms come
	// from the realtor directory; unknown accounts use the platform default.
	s.engine = scheduler.NewEngine(
		s.bookings, s.payments, s.escrow, s.states, s.locks,
		s.provider, cfg.ReleaseOffset, s.logger,
	).WithPayoutPolicy(realtor.NewDirectory(s.realtors))
	s.sweeper = scheduler.New(s.engine, cfg.SchedulerInterval, s.logger)

	// Provider callback ingress
	var verifier webhook.Verifier
	if cfg.ProviderWebhookSecret != "" {
		verifier = webhook.NewHMACVerifier(cfg.ProviderWebhookSecret)
	} else {
		verifier = webhook.NoopVerifier{}
		s.logger.Warn("PROVIDER_WEBHOOK_SECRET not set, callback signatures are not verified")
	}
	s.reconciler = webhook.NewReconciler(verifier, s.deliveries, s.escrow, s.states, s.locks, s.logger)

	// Property directory for the guest access gate. The listings service
	// owns the catalog; this process keeps a synced in-process copy.
	s.properties = access.NewMemoryDirectory()

	s.setupHealthChecks()

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func (s *Server) setupHealthChecks() {
	s.checks = health.NewRegistry()
	if s.db != nil {
		s.checks.Register("database", health.DatabaseChecker(s.db))
	}
	if s.redis != nil {
		s.checks.Register("redis", health.RedisChecker(s.redis))
	}
	s.checks.Register("scheduler", health.SchedulerChecker(s.sweeper))
	s.checks.Register("ledger", health.LedgerChecker("ledger", func(ctx context.Context) error {
		_, err := s.escrow.Counters(ctx)
		return err
	}))
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting. The webhook ingress gets its own limiter with a
	// redelivery-friendly profile, applied per-route in setupRoutes.
	cfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		cfg.RequestsPerSecond = float64(s.cfg.RateLimitRPS)
	}
	s.rateLimiter = ratelimit.New(cfg)
	s.webhookLimiter = ratelimit.New(ratelimit.WebhookConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/healthz", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/readyz", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :id URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.BookingIDParamMiddleware())

	// Escrow timeline and health counters
	ledgerHandler := ledger.NewHandler(s.escrow)
	ledgerHandler.RegisterRoutes(v1)

	// Guest access gate (redacted booking view until payment confirms)
	accessHandler := access.NewHandler(s.bookings, s.payments, s.properties)
	accessHandler.RegisterRoutes(v1)

	// Provider callback ingress with its own rate limit profile
	webhookHandler := webhook.NewHandler(s.reconciler)
	callbacks := v1.Group("")
	callbacks.Use(s.webhookLimiter.Middleware())
	webhookHandler.RegisterRoutes(callbacks)

	// Admin routes (lock visibility, stuck-lock recovery, realtor management)
	admin := v1.Group("/admin")
	admin.Use(security.AdminAuthMiddleware(s.cfg.AdminSecret))
	lockHandler := joblock.NewHandler(s.locks)
	lockHandler.RegisterAdminRoutes(admin)
	realtorHandler := realtor.NewHandler(s.realtors)
	realtorHandler.RegisterAdminRoutes(admin)

	// WebSocket escrow event feed for operator dashboards
	v1.GET("/ws/escrow-feed", func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request)
	})
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, statuses := s.checks.CheckAll(ctx)

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Start release sweep loop
	go s.sweeper.Start(runCtx)

	// Collect database pool stats
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, sweep loop)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop release sweep loop
	s.sweeper.Stop()
	s.logger.Info("release scheduler stopped")

	// Stop rate limiter cleanup goroutines
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.webhookLimiter != nil {
		s.webhookLimiter.Stop()
	}

	// Close Redis connection
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Bookings returns the booking store (for seeding in tests and tools)
func (s *Server) Bookings() booking.Store {
	return s.bookings
}

// Payments returns the payment store (for seeding in tests and tools)
func (s *Server) Payments() payment.Store {
	return s.payments
}

// Properties returns the property directory used by the access gate
func (s *Server) Properties() *access.MemoryDirectory {
	return s.properties
}

// Engine returns the release engine (for manual sweeps in tools)
func (s *Server) Engine() *scheduler.Engine {
	return s.engine
}

// Realtors returns the realtor store (for seeding in tests and tools)
func (s *Server) Realtors() realtor.Store {
	return s.realtors
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
