package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/auth"
	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/entities"
)

const hstsMaxAge = 365 * 24 * 60 * 60

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLoggerMiddleware())

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.AuthConfig.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(hstsMaxAge))
	}

	localAuth := cfg.AuthConfig.Mode == config.AuthModeLocal

	// CSRF runs before the session so the session context survives the
	// request replacement done by gorilla/csrf.
	if localAuth && len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies, cfg.AuthService))
	}
	if localAuth && cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}
	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	}

	checks := map[string]Pinger{"database": cfg.Database}
	if cfg.TaskDatabase != nil {
		checks["tasks"] = cfg.TaskDatabase
	}
	health := NewHealthController(cfg.Version, checks)
	router.GET("/health", health.Status)

	api := router.Group("/api")

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(api.Group("/auth"))
	}

	if cfg.Importer != nil {
		importController := NewImportController(cfg.Importer, cfg.Auditor, cfg.MaxImportFileSize)
		api.POST("/import", importController.Import)
	}

	if cfg.Library != nil {
		library := NewLibraryController(cfg.Library, cfg.Auditor)
		api.GET("/library", library.List)
		api.GET("/library/stats", library.Stats)
		api.GET("/library/export", library.Export)
	}

	if cfg.Enricher != nil && cfg.Library != nil {
		metadataController := NewMetadataController(cfg.Enricher, cfg.Library, cfg.SyncProgress, cfg.TaskQueue, cfg.Auditor)
		api.POST("/books/:id/enrich", metadataController.EnrichBook)
		api.POST("/books/enrich-all", metadataController.EnrichAllMissing)
		api.GET("/books/enrich-all/status", metadataController.GetSyncStatus)
	}

	if cfg.TaskStatus != nil {
		tasksController := NewTasksController(cfg.TaskStatus)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
	}

	if cfg.Auditor != nil {
		auditController := NewAuditController(cfg.Auditor)
		api.GET("/audit", auditController.ListEvents)
		if cfg.AuthMiddleware != nil {
			api.GET("/admin/audit", cfg.AuthMiddleware.RequireRole(entities.UserRoleAdmin), auditController.ListEvents)
		}
	}

	return router
}
