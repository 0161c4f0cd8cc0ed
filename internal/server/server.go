// Package server sets up the HTTP server with all routes
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
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/pressly/goose/v3"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/activity"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/analytics"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/auth"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/billing"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/circuitbreaker"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/config"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/documents"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/entitlement"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/health"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/metrics"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/organization"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/ratelimit"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/realtime"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/security"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/summaries"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/tenant"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/traces"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/users"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/validation"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/migrations"
)

// Generation retry and breaker policy.
const (
	generatorAttempts  = 3
	generatorDelay     = 250 * time.Millisecond
	generatorTimeout   = 20 * time.Second
	generatorThreshold = 5
	generatorCooldown  = 30 * time.Second
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg       *config.Config
	version   string
	provider  billing.Provider
	generator summaries.Generator

	authMgr    *auth.Manager
	users      *users.Service
	orgs       *organization.Service
	ledger     *entitlement.Ledger
	recorder   *activity.Recorder
	documents  *documents.Service
	summaries  *summaries.Service
	reconciler *billing.Reconciler
	billing    *billing.Service
	analytics  *analytics.Service

	realtimeHub     *realtime.Hub
	rateLimiter     *ratelimit.Limiter
	health          *health.Registry
	db              *sql.DB // nil if using in-memory
	router          *gin.Engine
	httpSrv         *http.Server
	logger          *slog.Logger
	shutdownTracing func(context.Context) error
	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run

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

// WithVersion sets the build version reported by /health and traces.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithBillingProvider replaces the Stripe provider (for testing).
func WithBillingProvider(p billing.Provider) Option {
	return func(s *Server) {
		s.provider = p
	}
}

// WithGenerator replaces the summary generator (for testing).
func WithGenerator(g summaries.Generator) Option {
	return func(s *Server) {
		s.generator = g
	}
}

// storeSet is every store the services are built on.
type storeSet struct {
	tenants      tenant.Store
	users        users.Store
	tokens       auth.Store
	entitlements entitlement.Store
	activity     activity.Store
	documents    documents.Store
	summaries    summaries.Store
	events       billing.EventLog
	// purgers mimic ON DELETE CASCADE for in-memory stores
	purgers []organization.Purger
}

func postgresStores(db *sql.DB) storeSet {
	return storeSet{
		tenants:      tenant.NewPostgresStore(db),
		users:        users.NewPostgresStore(db),
		tokens:       auth.NewPostgresStore(db),
		entitlements: entitlement.NewPostgresStore(db),
		activity:     activity.NewPostgresStore(db),
		documents:    documents.NewPostgresStore(db),
		summaries:    summaries.NewPostgresStore(db),
		events:       billing.NewPostgresEventLog(db),
	}
}

func memoryStores() storeSet {
	userStore := users.NewMemoryStore()
	tokenStore := auth.NewMemoryStore()
	entitlementStore := entitlement.NewMemoryStore()
	activityStore := activity.NewMemoryStore()
	documentStore := documents.NewMemoryStore()
	summaryStore := summaries.NewMemoryStore()
	return storeSet{
		tenants:      tenant.NewMemoryStore(),
		users:        userStore,
		tokens:       tokenStore,
		entitlements: entitlementStore,
		activity:     activityStore,
		documents:    documentStore,
		summaries:    summaryStore,
		events:       billing.NewMemoryEventLog(),
		purgers: []organization.Purger{
			summaryStore, documentStore, activityStore, tokenStore, userStore, entitlementStore,
		},
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		version: "dev",
		logger:  logging.New(cfg.LogLevel, cfg.LogFormat),
		health:  health.NewRegistry(2 * time.Second),
	}
	if cfg.StripeSecretKey != "" {
		s.provider = billing.NewStripeProvider(cfg.StripeSecretKey)
	}

	// Apply options first (may set logger/provider/generator)
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	shutdown, err := traces.Init(ctx, traces.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Version:     s.version,
		Environment: cfg.Env,
		SampleRatio: cfg.TraceSampleRatio,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	s.shutdownTracing = shutdown

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var stores storeSet
	if cfg.DatabaseURL != "" {
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.db = db
		stores = postgresStores(db)
		s.health.Register("database", health.Database(db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		stores = memoryStores()
		s.logger.Warn("DATABASE_URL not set, using in-memory storage; data is lost on restart")
	}

	blobs, err := documents.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	s.health.Register("uploads", health.Directory("uploads", blobs.Root()))

	// Core services
	s.realtimeHub = realtime.NewHub(s.logger, cfg.CORSAllowedOrigins...)
	s.recorder = activity.NewRecorder(stores.activity, s.realtimeHub)
	s.ledger = entitlement.NewLedger(stores.entitlements,
		entitlement.NewCatalogue(cfg.BasicSummariesPerMonth, cfg.ProSummariesPerMonth, cfg.TrialSummariesLimit))
	s.authMgr = auth.NewManager(stores.tokens, auth.DefaultTTL)

	purgers := append(stores.purgers, blobs)
	s.orgs = organization.NewService(stores.tenants, s.recorder, purgers...)
	s.users = users.NewService(stores.users, s.orgs, s.ledger, s.authMgr, s.recorder)

	s.documents = documents.NewService(stores.documents, blobs, documents.PlainTextExtractor{}, s.recorder, cfg.MaxFileSizeBytes())
	s.documents.AddDependent(stores.summaries)

	if s.generator == nil {
		breaker := circuitbreaker.New(generatorThreshold, generatorCooldown)
		breaker.OnTransition(func(key string, from, to circuitbreaker.State) {
			s.logger.Warn("generator circuit changed", "backend", key, "from", from.String(), "to", to.String())
		})
		gen := summaries.NewBreakerGenerator(
			summaries.NewRetryingGenerator(summaries.ExtractiveGenerator{}, generatorAttempts, generatorDelay, generatorTimeout),
			"extractive", breaker)
		s.health.Register("generator", func(context.Context) health.Status {
			if !gen.Ready() {
				return health.Status{Name: "generator", Healthy: false, Detail: "circuit open"}
			}
			return health.Status{Name: "generator", Healthy: true}
		})
		s.generator = gen
	}
	s.summaries = summaries.NewService(stores.summaries, s.documents, entitlement.NewGate(s.ledger),
		s.generator, s.recorder, s.realtimeHub)

	s.analytics = analytics.NewService(stores.documents, stores.summaries, s.users, s.ledger)

	s.reconciler = billing.NewReconciler(billing.NewVerifier(cfg.StripeWebhookSecret, 0), s.ledger, stores.events)
	s.billing = billing.NewService(s.ledger, s.provider, billing.ServiceConfig{
		PriceIDs: map[entitlement.Tier]string{
			entitlement.TierBasic: cfg.StripePriceIDBasic,
			entitlement.TierPro:   cfg.StripePriceIDPro,
		},
		FrontendURL: cfg.FrontendURL,
	})
	if s.provider == nil {
		s.logger.Warn("STRIPE_SECRET_KEY not set, checkout and cancel are disabled")
	}

	// Setup Gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(max(1, cfg.MaxOpenConns/5))
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return db, nil
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

// billingContact resolves the caller's email and workspace name for the
// provider customer record.
func (s *Server) billingContact(ctx context.Context, scope tenant.Scope) (string, string, error) {
	u, err := s.users.Get(ctx, scope, scope.PrincipalID())
	if err != nil {
		return "", "", err
	}
	org, err := s.orgs.Get(ctx, scope)
	if err != nil {
		return "", "", err
	}
	return u.Email, org.Name, nil
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

	s.router.Use(security.HeadersMiddleware(s.cfg.IsProduction()))
	s.router.Use(security.CORSMiddleware(s.cfg.CORSAllowedOrigins))

	// Request ID and logging run before anything that can reject
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(metrics.Middleware())

	s.router.Use(s.requestSizeMiddleware())
	s.router.Use(s.timeoutMiddleware())

	// Resolve the bearer token; anonymous requests pass through
	s.router.Use(auth.Middleware(s.authMgr, s.users))

	// Rate limiting keys on the principal, so it runs after auth
	s.rateLimiter = ratelimit.New(ratelimit.ConfigForRPM(s.cfg.RateLimitRPM))
	s.router.Use(s.rateLimiter.Middleware())
}

// requestSizeMiddleware applies the JSON body limit everywhere except the
// upload route, which enforces its own larger limit.
func (s *Server) requestSizeMiddleware() gin.HandlerFunc {
	limit := validation.RequestSizeMiddleware(validation.MaxRequestSize)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost && c.FullPath() == "/v1/documents" {
			c.Next()
			return
		}
		limit(c)
	}
}

// timeoutMiddleware bounds each request's context. The live feed is
// long-lived and exempt.
func (s *Server) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.RequestTimeout <= 0 || c.FullPath() == "/v1/activity/stream" {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 64 {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

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

		// c.Request carries the tenant once auth has run
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
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")

	// Public: account entry points and the provider webhook
	usersHandler := users.NewHandler(s.users)
	usersHandler.RegisterPublicRoutes(v1)
	billingHandler := billing.NewHandler(s.reconciler, s.billing, s.billingContact)
	billingHandler.RegisterRoutes(v1)

	// Operator: identity broker
	admin := v1.Group("")
	admin.Use(auth.RequireAdminSecret(s.cfg.AdminSecret))
	usersHandler.RegisterAdminRoutes(admin)

	// Tenant-scoped
	protected := v1.Group("")
	protected.Use(auth.RequireAuth())
	usersHandler.RegisterProtectedRoutes(protected)
	organization.NewHandler(s.orgs).RegisterRoutes(protected)
	activity.NewHandler(s.recorder).RegisterRoutes(protected)
	documents.NewHandler(s.documents).RegisterRoutes(protected)
	summaries.NewHandler(s.summaries).RegisterRoutes(protected)
	billingHandler.RegisterProtectedRoutes(protected)
	analytics.NewHandler(s.analytics).RegisterRoutes(protected)
	protected.GET("/activity/stream", s.realtimeHub.HandleWebSocket)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Feed      map[string]any  `json:"feed,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ok, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !ok {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   s.version,
		Checks:    checks,
		Feed:      s.realtimeHub.Stats(),
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
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       time.Minute, // uploads
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.ready.Store(true)
	s.logger.Info("server ready")

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		cancel()
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

	// Stops the hub, which closes feed connections
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Error("tracing shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return shutdownErr
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
