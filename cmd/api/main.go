package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "parcel-audit/docs"
	"parcel-audit/internal/audit"
	"parcel-audit/internal/config"
	"parcel-audit/internal/handler"
	"parcel-audit/internal/middleware"
	"parcel-audit/internal/rules"
	"parcel-audit/internal/store"
	"parcel-audit/internal/upload"
	"parcel-audit/pkg/logger"
)

// @title Parcel Audit API
// @version 1.0
// @description API for reconciling carrier shipping invoices against point-of-sale shipping records
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@parcel-audit.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel)
	logger.GetLogger().Info("Starting Parcel Audit Service")

	// Load audit rule tables (built-in defaults plus optional override file)
	ruleset, err := rules.Load(cfg.Audit.RulesFile)
	if err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to load audit rules")
	}

	// Initialize stores
	slotStore := store.NewSlotStore()
	runStore := store.NewRunStore()

	// Initialize services
	uploadService := upload.NewService(slotStore)
	auditService := audit.NewService(slotStore, runStore, ruleset, cfg.Audit.Tolerance)

	// Initialize handlers
	uploadHandler := handler.NewUploadHandler(uploadService)
	auditHandler := handler.NewAuditHandler(auditService)
	exportHandler := handler.NewExportHandler(auditService)

	// Setup router
	router := setupRouter(cfg, uploadHandler, auditHandler, exportHandler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.GetLogger().WithField("address", addr).Info("Server starting")

	if err := router.Run(addr); err != nil {
		logger.GetLogger().WithError(err).Fatal("Failed to start server")
	}
}

func setupRouter(
	cfg *config.Config,
	uploadHandler *handler.UploadHandler,
	auditHandler *handler.AuditHandler,
	exportHandler *handler.ExportHandler,
) *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	// Global middleware
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(gin.Recovery())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		uploads := v1.Group("/uploads")
		{
			uploads.POST("/:slot", uploadHandler.Upload)
			uploads.GET("", uploadHandler.List)
			uploads.DELETE("/:slot", uploadHandler.Clear)
		}

		audits := v1.Group("/audits")
		{
			audits.POST("", auditHandler.RunAudit)
			audits.GET("/:run_id", auditHandler.GetRun)
			audits.GET("/:run_id/export/csv", exportHandler.ExportCSV)
			audits.GET("/:run_id/export/pdf", exportHandler.ExportPDF)
		}
	}

	return router
}
