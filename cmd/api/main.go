package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/proyecty/proyecty-backend/internal/config"
	"github.com/proyecty/proyecty-backend/internal/handler"
	"github.com/proyecty/proyecty-backend/internal/middleware"
	"github.com/proyecty/proyecty-backend/internal/repository/postgres"
	"github.com/proyecty/proyecty-backend/internal/repository/storage"
	"github.com/proyecty/proyecty-backend/internal/service"
	"github.com/proyecty/proyecty-backend/internal/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Connect to database
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	// Verify database connection
	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(pool)
	propertyRepo := postgres.NewPropertyRepository(pool)
	loanRepo := postgres.NewLoanRepository(pool)
	investmentRepo := postgres.NewInvestmentRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)

	// Document storage is optional: without credentials the upload endpoints
	// answer 503 instead of failing startup.
	var documentService *service.DocumentService
	if cfg.S3.AccessKeyID != "" {
		documentRepo, err := storage.NewS3DocumentRepository(context.Background(), cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize document storage")
		}
		documentService = service.NewDocumentService(documentRepo, transactionRepo, propertyRepo)
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Document storage enabled")
	} else {
		log.Warn().Msg("Document storage disabled: no S3 credentials configured")
	}

	// Initialize services
	locker := service.NewLoanLocker()
	distributionService := service.NewDistributionService(transactionRepo)
	loanService := service.NewLoanService(loanRepo, propertyRepo, userRepo, investmentRepo, transactionRepo, locker)
	investmentService := service.NewInvestmentService(investmentRepo, loanRepo, userRepo, locker)
	transactionService := service.NewTransactionService(transactionRepo, loanRepo, userRepo, distributionService, locker)

	// WebSocket hub broadcasts loan, investment, and ledger changes to the
	// operator console.
	hub := websocket.NewHub()
	loanService.SetEventPublisher(hub)
	investmentService.SetEventPublisher(hub)
	transactionService.SetEventPublisher(hub)

	wsValidator, err := websocket.NewAuth0JWTValidator(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create websocket token validator")
	}

	// Initialize auth middleware
	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}

	// Idempotency replay protection is optional: it needs Redis.
	var idempotency echo.MiddlewareFunc
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		idempotency = middleware.IdempotencyMiddleware(rdb, middleware.DefaultIdempotencyTTL)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Idempotency store enabled")
	} else {
		log.Warn().Msg("Idempotency store disabled: no REDIS_ADDR configured")
	}

	// Initialize handlers
	loanHandler := handler.NewLoanHandler(loanService, transactionService)
	investmentHandler := handler.NewInvestmentHandler(investmentService)
	transactionHandler := handler.NewTransactionHandler(transactionService)
	documentHandler := handler.NewDocumentHandler(documentService)
	wsHandler := handler.NewWebSocketHandler(hub, wsValidator, cfg.CORSOrigins)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.IdempotencyKeyHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	// Per-caller rate limiting
	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()
	e.Use(middleware.RateLimitMiddleware(rateLimiter))

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Register API routes
	handler.RegisterRoutes(e, authMiddleware, idempotency, loanHandler, investmentHandler, transactionHandler, documentHandler, wsHandler)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
