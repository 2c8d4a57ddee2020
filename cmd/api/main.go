package main

import (
	"os"
	"strconv"
	"time"

	_ "taxaudit/api/swagger" // swagger docs
	"taxaudit/internal/cnpjws"
	"taxaudit/internal/database"
	"taxaudit/internal/handler"
	"taxaudit/internal/middleware"
	"taxaudit/internal/repository"
	"taxaudit/internal/service"
	"taxaudit/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// @title           Retention Audit API
// @version         1.0
// @description     Back-office API for withholding-tax payment auditing and recovery reports.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Environment variables may be set externally; a missing file is fine.
	_ = godotenv.Load("configs/.env")

	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	dbHost := getenv("DB_HOST", "localhost")
	dbPort := getenv("DB_PORT", "5432")
	dbUser := getenv("DB_USER", "postgres")
	dbPassword := getenv("DB_PASSWORD", "postgres")
	dbName := getenv("DB_NAME", "taxaudit")
	dbSslMode := getenv("DB_SSLMODE", "disable")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL")

	// CNPJ registry client
	timeoutSeconds, _ := strconv.Atoi(getenv("CNPJWS_TIMEOUT_SECONDS", "5"))
	registry := cnpjws.NewClient(
		os.Getenv("CNPJWS_BASE_URL"),
		os.Getenv("CNPJWS_API_KEY"),
		time.Duration(timeoutSeconds)*time.Second,
	)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	supplierRepo := repository.NewSupplierRepository(db)
	rateRepo := repository.NewRetentionRateRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewRetentionAuditRepository(db)

	userService := service.NewUserService(userRepo)
	directoryService := service.NewDirectoryService(supplierRepo, registry, logger)
	clientService := service.NewClientService(clientRepo)
	supplierService := service.NewSupplierService(supplierRepo, directoryService)
	rateService := service.NewRateService(rateRepo)
	auditService := service.NewAuditService(paymentRepo, auditRepo, rateRepo, clientRepo, directoryService, txManager, wsHub, logger)
	reportService := service.NewReportService(auditRepo)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(userService)
	clientHandler := handler.NewClientHandler(clientService)
	supplierHandler := handler.NewSupplierHandler(supplierService)
	rateHandler := handler.NewRateHandler(rateService)
	paymentHandler := handler.NewPaymentHandler(auditService)
	reportHandler := handler.NewReportHandler(reportService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""))
	clientHandler.RegisterRoutes(router.Group(""))
	supplierHandler.RegisterRoutes(router.Group(""))
	rateHandler.RegisterRoutes(router.Group(""))
	paymentHandler.RegisterRoutes(router.Group(""))
	reportHandler.RegisterRoutes(router.Group(""))

	port := getenv("PORT", "8080")

	logger.Info("server listening", zap.String("port", port))
	if err := router.Run(":" + port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
