package http

import (
	"github.com/mrlokans/bookie/internal/auth"
	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/scheduler"
)

// RouterConfig contains all dependencies and configuration needed to
// create the HTTP router. Optional parts may be left nil.
type RouterConfig struct {
	// Core dependencies
	Importer FileImporter
	Library  LibraryStore
	Database Pinger
	Auditor  Auditor

	MaxImportFileSize int64

	// Metadata enrichment
	Enricher     BookEnricher
	SyncProgress SyncStatusReader

	// Task queue
	TaskQueue    scheduler.Enqueuer
	TaskStatus   TaskStatusReader
	TaskDatabase Pinger

	// Authentication. AuthMiddleware is required; the others only matter
	// in local mode.
	AuthConfig     config.Auth
	AuthMiddleware *auth.Middleware
	AuthController *auth.AuthController
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	CSRFSecret     []byte

	// Application info
	Version string
}
