package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/config"
	"github.com/kendall-kelly/gestion-ventes-api/controllers"
	"github.com/kendall-kelly/gestion-ventes-api/middleware"
	"github.com/kendall-kelly/gestion-ventes-api/repository"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"gorm.io/gorm"
)

func main() {
	log.Println("Starting gestion-ventes API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	app, err := newApp(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer app.close()

	router := newRouter(cfg, db, app.handlers, app.auth.RequireAuth())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server is running on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shut down: %v", err)
	}
}

// app holds the wired services and the background workers to stop on exit
type app struct {
	handlers *controllers.Handlers
	auth     *middleware.Authenticator
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires every service from the configuration. Redis, Kafka and the AI
// service are optional: without them orders are not deduplicated, events are
// dropped and recommendations fall back to rules only.
func newApp(ctx context.Context, cfg *config.Config, db *gorm.DB) (*app, error) {
	a := &app{}
	store := repository.New(db)

	var images services.ImageStore
	uploadDir := ""
	switch cfg.StorageBackend {
	case config.StorageS3:
		objects, err := services.NewS3ObjectStore(ctx, services.S3Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.AWSS3Bucket,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		images = services.NewS3ImageStore(objects)
		log.Printf("Images stored in S3 bucket %s", cfg.AWSS3Bucket)
	default:
		local, err := services.NewLocalImageStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		images = local
		uploadDir = local.Dir()
		log.Printf("Images stored under %s", uploadDir)
	}

	var (
		cache       services.AnalyticsCache
		idempotency services.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		rdb, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Redis unavailable, running without cache: %v", err)
		} else {
			cache = services.NewRedisAnalyticsCache(rdb, cfg.AnalyticsCacheTTL)
			idempotency = services.NewRedisIdempotency(rdb)
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			log.Println("Redis connected")
		}
	}

	var events services.EventPublisher = services.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 256)
		publisher.Start()
		events = publisher
		a.closers = append(a.closers, func() {
			publisher.Close()
			publisher.WaitClosed()
		})
		log.Printf("Order events published to %s", cfg.KafkaOrderTopic)
	}

	var (
		ai      services.AIClient
		indexer *services.ProductIndexer
	)
	if cfg.AIServiceURL != "" {
		client := services.NewAIClient(cfg.AIServiceURL, cfg.AITimeout)
		ai = client
		indexer = services.NewProductIndexer(client, 128, cfg.AITimeout)
		indexer.Start()
		a.closers = append(a.closers, indexer.Close)
		log.Printf("AI service at %s", cfg.AIServiceURL)
	}

	tokens := services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTExpiration)
	authService := services.NewAuthService(store, tokens)
	if _, err := authService.EnsureDefaultAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, err
	}

	auth, err := middleware.NewAuthenticator(middleware.TokenOptions{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		CookieName: cfg.JWTCookieName,
	}, store)
	if err != nil {
		return nil, err
	}
	a.auth = auth

	analytics := services.NewAnalyticsService(store, cache, cfg.Location())
	a.handlers = &controllers.Handlers{
		Users: controllers.NewUserController(authService, controllers.CookieOptions{
			Name:   cfg.JWTCookieName,
			Secure: cfg.JWTCookieSecure,
			TTL:    tokens.TTL(),
		}),
		Catalog:    controllers.NewCatalogController(services.NewCatalogService(store), images),
		Carts:      controllers.NewCartController(services.NewCartService(store)),
		Orders:     controllers.NewOrderController(services.NewOrderService(store, events, idempotency)),
		Reviews:    controllers.NewReviewController(services.NewReviewService(store)),
		Listings:   controllers.NewListingController(services.NewSellerProductService(store, indexer), images),
		Moderation: controllers.NewModerationController(services.NewModerationService(store, indexer)),
		Analytics:  controllers.NewAnalyticsController(analytics, services.NewRecommendationService(analytics, store, ai)),
		CSV:        controllers.NewCSVController(services.NewCSVImportService(store, cfg.Location())),
		Uploads:    controllers.NewUploadController(images, uploadDir),
	}
	return a, nil
}

// newRouter mounts CORS, the health endpoints and the API
func newRouter(cfg *config.Config, db *gorm.DB, handlers *controllers.Handlers, authenticate gin.HandlerFunc) *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = 10 << 20

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", controllers.IdempotencyHeader},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/api/health", healthCheck)
	router.GET("/api/database/status", databaseStatus(db))

	controllers.RegisterRoutes(router, handlers, authenticate)
	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Gestion ventes API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	store := repository.New(db)
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		tables, err := db.Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
