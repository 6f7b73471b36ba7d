package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Aidin1998/botcontrol/common/apiutil"
	"github.com/Aidin1998/botcontrol/internal/audit"
	"github.com/Aidin1998/botcontrol/internal/database"
	"github.com/Aidin1998/botcontrol/internal/identities"
	"github.com/Aidin1998/botcontrol/internal/markets"
	"github.com/Aidin1998/botcontrol/internal/servicecontrol"
	"github.com/Aidin1998/botcontrol/pkg/models"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// IdentityService authenticates operators
type IdentityService interface {
	Login(ctx context.Context, username, password string) (*identities.LoginResult, error)
	ParseToken(token string) (*identities.Claims, error)
	Verify(ctx context.Context, token string) (*models.UserInfo, error)
	Profile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// MarketService answers market queries
type MarketService interface {
	List(ctx context.Context, q markets.ListQuery) (*models.MarketPage, error)
	Top(ctx context.Context, limit int) ([]models.FormattedMarket, error)
	Monitored(ctx context.Context, limit int) ([]models.FormattedMarket, error)
	Stats(ctx context.Context) (*models.MarketStats, error)
	SetMonitoring(ctx context.Context, id string, monitored *bool) (*models.FormattedMarket, error)
}

// ServiceMonitor reports worker status
type ServiceMonitor interface {
	Status(ctx context.Context) servicecontrol.Status
	Watch() (<-chan struct{}, func())
}

// CommandSender sends control commands to the worker
type CommandSender interface {
	Restart(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, command string, data map[string]interface{}) error
}

// Options holds server settings
type Options struct {
	Environment    string
	Version        string
	FrontendURL    string
	LoginPerMinute int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	StatusInterval time.Duration
	DB             database.Pinger
	Audit          *audit.Recorder
	// TracerProvider defaults to the global provider
	TracerProvider trace.TracerProvider
}

// Server represents the API server
type Server struct {
	router       *gin.Engine
	logger       *zap.Logger
	identities   IdentityService
	markets      MarketService
	monitor      ServiceMonitor
	commands     CommandSender
	opts         Options
	validator    *apiutil.Validator
	loginLimiter *ipLimiter
	httpServer   *http.Server
}

// NewServer creates a new API server with injected service interfaces
func NewServer(
	logger *zap.Logger,
	identities IdentityService,
	markets MarketService,
	monitor ServiceMonitor,
	commands CommandSender,
	opts Options,
) *Server {
	if opts.Environment == "" {
		opts.Environment = "development"
	}
	if opts.FrontendURL == "" {
		opts.FrontendURL = "http://localhost:3000"
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 5 * time.Second
	}

	server := &Server{
		logger:       logger,
		identities:   identities,
		markets:      markets,
		monitor:      monitor,
		commands:     commands,
		opts:         opts,
		validator:    apiutil.NewValidator(),
		loginLimiter: newIPLimiter(opts.LoginPerMinute, time.Minute),
	}

	router := gin.New()

	otelOpts := []otelgin.Option{otelgin.WithPropagators(apiutil.Propagator())}
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}

	// Add middleware. Query tokens are removed before anything logs or traces the URL.
	router.Use(liftQueryToken())
	router.Use(otelgin.Middleware("botcontrol-api", otelOpts...))
	router.Use(apiutil.TraceMiddleware())
	router.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("trace_id", apiutil.GetTraceID(c))}
		},
	}))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(apiutil.MetricsMiddleware())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{opts.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", apiutil.TraceHeader},
		ExposeHeaders:    []string{"Content-Length", apiutil.TraceHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves HTTP on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}
	s.logger.Info("Starting API server", zap.String("addr", addr), zap.String("environment", s.opts.Environment))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/login", s.loginLimiter.middleware(), s.login)
		auth.GET("/verify", s.verify)
		auth.GET("/profile", s.authMiddleware(false), s.profile)
		auth.POST("/logout", s.logout)
	}

	market := api.Group("/markets", s.authMiddleware(false))
	{
		market.GET("", s.listMarkets)
		market.GET("/top", s.topMarkets)
		market.GET("/monitored", s.monitoredMarkets)
		market.GET("/stats", s.marketStats)
		market.PUT("/:id/monitoring", s.setMonitoring)
	}

	services := api.Group("/services/" + servicecontrol.ServiceName)
	{
		services.GET("/status", s.authMiddleware(false), s.serviceStatus)
		services.GET("/ws", s.authMiddleware(true), s.statusStream)
		services.POST("/restart", s.authMiddleware(false), s.restartService)
		services.POST("/stop", s.authMiddleware(false), s.stopService)
		services.POST("/command", s.authMiddleware(false), s.sendCommand)
	}

	s.router.NoRoute(s.notFound)
}

func (s *Server) healthCheck(c *gin.Context) {
	dbState := "Disconnected"
	if s.opts.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.DB.Ping(ctx); err == nil {
			dbState = "Connected"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"database":    dbState,
		"environment": s.opts.Environment,
		"version":     s.opts.Version,
	})
}

func (s *Server) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "Endpoint not found",
		"path":  c.Request.URL.Path,
	})
}

// internalError logs err and writes a 500, exposing the message only in development
func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.logger.Error("Request failed",
		zap.String("op", op),
		zap.String("trace_id", apiutil.GetTraceID(c)),
		zap.Error(err))
	apiutil.WriteInternalError(c, err, s.opts.Environment == "development")
}

// auditLog records an operator action
func (s *Server) auditLog(c *gin.Context, action, target, outcome string, details map[string]interface{}) {
	s.opts.Audit.Record(c.Request.Context(), audit.Event{
		Actor:    c.GetString(ctxUsername),
		Action:   action,
		Target:   target,
		Outcome:  outcome,
		ClientIP: c.ClientIP(),
		TraceID:  apiutil.GetTraceID(c),
		Details:  details,
	})
}
