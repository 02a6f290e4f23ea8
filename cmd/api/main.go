package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"certifica/cert-portal/cert-portal-backend/internal/audit"
	"certifica/cert-portal/cert-portal-backend/internal/certificates"
	"certifica/cert-portal/cert-portal-backend/internal/config"
	"certifica/cert-portal/cert-portal-backend/internal/formula"
	"certifica/cert-portal/cert-portal-backend/internal/participants"
	"certifica/cert-portal/cert-portal-backend/internal/templates"
	"certifica/cert-portal/cert-portal-backend/pkg/pdfstamp"
	"certifica/cert-portal/cert-portal-backend/pkg/qr"
	"certifica/cert-portal/cert-portal-backend/pkg/storage"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// .env is optional; real deployments set environment variables directly
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		logger.Warn("Failed to load config file, using defaults and environment variables", zap.Error(err))
		cfg = config.DefaultConfig()
	}

	// Connect to database
	dbURL := cfg.Database.GetDatabaseURL()
	logger.Info("Connecting to database", zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// File storage backend
	files, err := newFileStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to initialize file storage", zap.Error(err))
	}

	// Shared infrastructure
	qrLevel, err := qr.ParseLevel(cfg.QRProcessing.ErrorCorrection)
	if err != nil {
		logger.Fatal("Invalid QR error correction level", zap.Error(err))
	}
	qrgen := qr.NewGenerator(cfg.QRProcessing.CanonicalSize)
	stamper := pdfstamp.NewStamper()
	validator := formula.NewValidator()
	auditRec := audit.NewRecorder(db, logger)

	// Repositories
	participantsRepo := participants.NewRepository(db)
	templatesRepo := templates.NewRepository(db)
	certsRepo := certificates.NewRepository(db)

	// Certificate pipeline
	engine := templates.NewEngine(validator, qrgen, qrLevel, cfg.QRProcessing.BoxSize, cfg.QRProcessing.Border)
	composer := certificates.NewComposer(engine, qrgen, cfg.QRProcessing)
	certsService := certificates.NewService(
		certsRepo, participantsRepo, templatesRepo,
		composer, qrgen, files, auditRec, cfg.QRProcessing, logger)
	processor := certificates.NewProcessor(
		certsRepo, participantsRepo, files,
		qrgen, stamper, auditRec, cfg.QRProcessing, logger)
	signer := certificates.NewSigningClient(certsRepo, files, auditRec, cfg.Signing, logger)
	bundler := certificates.NewBundler(certsRepo, participantsRepo, files, auditRec, logger)
	registry := certificates.NewRegistryExporter(certsRepo, participantsRepo)

	certsHandler := certificates.NewHandler(certsService, processor, signer, bundler, registry, participantsRepo)
	templatesHandler := templates.NewHandler(templatesRepo)
	formulaHandler := formula.NewHandler(validator)

	// Setup Router
	gin.SetMode(gin.DebugMode)
	router := gin.Default()
	router.MaxMultipartMemory = cfg.QRProcessing.MaxUploadBytes

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		certsHandler.RegisterRoutes(api)
		templatesHandler.RegisterRoutes(api)
		formulaHandler.RegisterRoutes(api)
	}
	certsHandler.RegisterVerification(router)

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:    cfg.Server.GetServerAddr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// newFileStore selects the storage backend from configuration.
func newFileStore(cfg config.StorageConfig, logger *zap.Logger) (storage.FileStore, error) {
	switch cfg.Backend {
	case "s3":
		logger.Info("Using S3 file storage", zap.String("bucket", cfg.S3Bucket), zap.String("region", cfg.S3Region))
		return storage.NewS3Store(context.Background(), cfg.S3Bucket, cfg.S3Region)
	default:
		logger.Info("Using local file storage", zap.String("dir", cfg.LocalDir))
		return storage.NewLocalStore(cfg.LocalDir)
	}
}
