package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/rs/zerolog"

	"ordermart/internal/caching"
	"ordermart/internal/config"
	"ordermart/internal/handlers"
	"ordermart/internal/jobs"
	"ordermart/internal/jobs/background"
	"ordermart/internal/middleware"
	"ordermart/internal/repositories"
	"ordermart/internal/services"
	"ordermart/internal/storage"
	"ordermart/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "ordermart").Logger()

	pool, err := database.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret = random.String(32) // Generate random secret for development
		log.Printf("WARNING: Using generated JWT secret")
	}

	// Create repositories
	userRepo := repositories.NewUserRepo(pool)
	tenantRepo := repositories.NewTenantRepo(pool)
	orderRepo := repositories.NewOrderRepo(pool)
	invoiceRepo := repositories.NewInvoiceRepo(pool)

	// Create cache service
	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	// Task queue client (redis-backed, at-least-once)
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	// Invoice document storage
	docStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("Failed to initialize document storage: %v", err)
	}
	if err := docStore.EnsureBucketExists(context.Background(), cfg.InvoiceBucket); err != nil {
		logger.Warn().Err(err).Str("bucket", cfg.InvoiceBucket).Msg("invoice bucket check failed")
	}

	// Invoice worker
	generator := jobs.NewDocumentInvoiceGenerator(docStore, cfg.InvoiceBucket)
	processor := jobs.NewInvoiceProcessor(generator, invoiceRepo, logger)
	workerSrv, workerMux := jobs.NewWorkerServer(redisOpt, processor, logger)
	go func() {
		if err := workerSrv.Run(workerMux); err != nil {
			log.Fatalf("Invoice worker failed: %v", err)
		}
	}()

	// Background scheduler (invoice reconciliation sweep)
	scheduler, err := background.NewJobScheduler(orderRepo, queueClient, logger)
	if err != nil {
		log.Fatalf("Failed to create job scheduler: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create services
	orderSvc := services.NewOrderService(orderRepo, invoiceRepo, queueClient, cacheSvc, docStore, cfg.InvoiceBucket, logger)
	tenantSvc := services.NewTenantService(tenantRepo, userRepo, logger)

	// Create handlers
	orderHandlers := handlers.NewOrderHandlers(orderSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc)

	// Create Echo instance
	e := echo.New()

	// Global middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)

	// API routes
	v1 := e.Group("/v1")

	// Tenant onboarding (no JWT: happens before any actor exists)
	v1.POST("/tenants", tenantHandlers.CreateTenant)

	// Protected routes (require JWT)
	protected := v1.Group("")
	protected.Use(middleware.JWTMiddleware(userRepo, jwtSecret))

	protected.POST("/orders", orderHandlers.CreateOrder)
	protected.GET("/orders", orderHandlers.ListOrders)
	protected.GET("/orders/:id", orderHandlers.GetOrder)
	protected.GET("/orders/:id/invoices", orderHandlers.ListOrderInvoices)
	protected.GET("/tenants/:id", tenantHandlers.GetTenant)
	protected.GET("/tenants/:id/orders", orderHandlers.ListTenantOrders)

	log.Printf("Ordermart server v%s starting on port %d", version, cfg.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", cfg.Port)))
}
