package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/audit"
	"github.com/mrlokans/bookie/internal/auth"
	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/database"
	auditRepo "github.com/mrlokans/bookie/internal/database/audit"
	"github.com/mrlokans/bookie/internal/database/books"
	syncRepo "github.com/mrlokans/bookie/internal/database/sync"
	"github.com/mrlokans/bookie/internal/database/users"
	http_controllers "github.com/mrlokans/bookie/internal/http"
	"github.com/mrlokans/bookie/internal/importers"
	"github.com/mrlokans/bookie/internal/logging"
	"github.com/mrlokans/bookie/internal/metadata"
	"github.com/mrlokans/bookie/internal/scheduler"
	"github.com/mrlokans/bookie/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts down
// within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info().Dur("timeout", timeout).Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting uploads before the queue and the database go away.
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("server shutdown")
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	logging.Info().Msg("server exiting")
}

// NewMetadataProvider builds the Google Books client, or returns nil when
// enrichment is disabled.
func NewMetadataProvider(cfg *config.Config) metadata.Provider {
	if !cfg.Import.Enrich {
		return nil
	}
	return metadata.NewGoogleBooksClient(metadata.GoogleBooksConfig{
		BaseURL:           cfg.GoogleBooks.BaseURL,
		APIKey:            cfg.GoogleBooks.APIKey,
		Language:          cfg.GoogleBooks.Language,
		MaxResults:        cfg.GoogleBooks.MaxResults,
		RequestsPerSecond: cfg.GoogleBooks.RequestsPerSecond,
		Timeout:           cfg.GoogleBooks.Timeout,
		BreakerFailures:   cfg.GoogleBooks.BreakerFailures,
		BreakerTimeout:    cfg.GoogleBooks.BreakerTimeout,
	})
}

// NewImportPipeline wires the merge step over repo with the configured
// worker count and metadata provider.
func NewImportPipeline(cfg *config.Config, repo *books.Repository, provider metadata.Provider) *importers.Pipeline {
	return importers.NewPipeline(repo, provider, importers.Config{
		Workers:    cfg.Import.Workers,
		RowTimeout: cfg.Import.RowTimeout,
	})
}

// csrfSecret decodes AUTH_SESSION_SECRET, falling back to a generated one
// that only lives as long as the process.
func csrfSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	generated, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("generate CSRF secret: %w", err)
	}
	logging.Warn().Msg("generated session secret, set AUTH_SESSION_SECRET to keep sessions across restarts")
	return hex.DecodeString(generated)
}

func Run(cfg *config.Config, version string) {
	logging.Info().Str("version", version).Msg("starting bookie")

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing database")
		}
	}()

	bookRepo := books.NewRepository(db.DB)
	auditService := audit.NewService(auditRepo.NewRepository(db.DB))

	provider := NewMetadataProvider(cfg)
	if provider == nil {
		logging.Warn().Msg("metadata enrichment disabled, set IMPORT_ENRICH=true to enable Google Books lookups")
	}
	pipeline := NewImportPipeline(cfg, bookRepo, provider)

	syncProgress := syncRepo.NewRepository(db.DB)
	var enricher *metadata.Enricher
	if provider != nil {
		enricher = metadata.NewEnricher(provider, bookRepo)
		enricher.SetProgressReporter(syncProgress)
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize task queue")
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				logging.Error().Err(err).Msg("error closing task client")
			}
		}()

		taskClient.Register(tasks.NewCleanupAuditEventsQueue(auditService))
		if enricher != nil {
			taskClient.Register(
				tasks.NewEnrichBookQueue(enricher),
				tasks.NewEnrichMissingQueue(enricher),
			)
		}

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	cron := scheduler.New()
	maintenance := scheduler.Maintenance{Cleaner: auditService}
	if enricher != nil {
		maintenance.Enricher = enricher
	}
	if taskClient != nil {
		maintenance.Queue = taskClient
	}
	if err := scheduler.RegisterMaintenance(cron, cfg.Scheduler, cfg.Audit, maintenance); err != nil {
		logging.Fatal().Err(err).Msg("failed to register scheduled jobs")
	}
	cron.Start(context.Background())

	routerCfg := http_controllers.RouterConfig{
		Importer:          pipeline,
		Library:           bookRepo,
		Database:          db,
		Auditor:           auditService,
		MaxImportFileSize: cfg.Import.MaxFileSize,
		SyncProgress:      syncProgress,
		AuthConfig:        cfg.Auth,
		Version:           version,
	}
	if enricher != nil {
		routerCfg.Enricher = enricher
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
		routerCfg.TaskStatus = taskClient
		routerCfg.TaskDatabase = taskClient
	}

	var limiter *auth.RateLimiter
	if cfg.Auth.Mode == config.AuthModeLocal {
		logging.Info().Msg("authentication mode: local")

		authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)

		sqlDB, err := db.DB.DB()
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to get SQL DB for sessions")
		}
		sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to initialize session manager")
		}

		secret, err := csrfSecret(cfg.Auth.SessionSecret)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to prepare CSRF secret")
		}

		limits := auth.DefaultRateLimitConfig()
		if cfg.Auth.MaxFailedLogins > 0 {
			limits.MaxAttempts = cfg.Auth.MaxFailedLogins
		}
		if cfg.Auth.LockoutDuration > 0 {
			limits.LockoutDuration = cfg.Auth.LockoutDuration
		}
		limiter = auth.NewRateLimiter(limits)

		routerCfg.AuthService = authService
		routerCfg.SessionManager = sessionManager
		routerCfg.CSRFSecret = secret
		routerCfg.AuthMiddleware = auth.NewMiddleware(authService, sessionManager, cfg.Auth, nil)
		routerCfg.AuthController = auth.NewAuthController(authService, sessionManager, limiter, auditService)

		if hasUsers, _ := authService.HasUsers(); !hasUsers {
			logging.Warn().Msg("no users found, POST /api/auth/setup to create an administrator")
		}
	} else {
		defaultUser, err := db.EnsureUser(cfg.Auth.DefaultUsername)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to prepare default user")
		}
		logging.Info().Str("user", defaultUser.Username).Msg("authentication mode: none")
		routerCfg.AuthMiddleware = auth.NewMiddleware(nil, nil, cfg.Auth, defaultUser)
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		cron.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		if limiter != nil {
			limiter.Stop()
		}
		auditService.Close()
	}

	Serve(router, cfg, onShutdown)
}
