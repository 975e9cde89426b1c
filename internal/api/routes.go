package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	bulk := v1.Group("/admin/bulk-upload", AdminAuthMiddleware(handler.cfg.Auth.Admins))
	{
		bulk.GET("/template", handler.DownloadTemplate)
		bulk.POST("/upload", handler.UploadWorkbook)
		bulk.GET("/staged", handler.ListStagedUploads)
		bulk.GET("/staged/:id", handler.GetStagedUpload)
		bulk.DELETE("/staged/:id", handler.DeleteStagedUpload)
		bulk.GET("/staged/:id/summary", handler.GetSummary)
		bulk.GET("/staged/:id/sheet/:sheet", handler.GetSheet)
		bulk.GET("/staged/:id/relationships", handler.GetRelationships)
		bulk.GET("/staged/:id/events", handler.GetEvents)
		bulk.GET("/staged/:id/original", handler.DownloadOriginal)

		// Moderation
		bulk.PATCH("/staged/:id/status", handler.SetItemStatus)
		bulk.PATCH("/staged/:id/item", handler.EditItem)
		bulk.DELETE("/staged/:id/item", handler.DeleteItem)
		bulk.POST("/staged/:id/approve", handler.BulkApprove)
		bulk.POST("/staged/:id/reject", handler.BulkReject)
	}
}

// NewRouter builds the gin engine with the standard middleware stack.
func NewRouter(handler *Handler) *gin.Engine {
	if handler.cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware())
	router.Use(CORSMiddleware(handler.cfg.Server.AllowedOrigins))
	router.Use(LoggingMiddleware())
	router.MaxMultipartMemory = handler.cfg.Staging.MaxFileSize + 1<<20

	SetupRoutes(router, handler)
	return router
}
