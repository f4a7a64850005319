package http

import (
	"context"
	"time"

	"github.com/mrlokans/bookie/internal/audit"
	auditRepo "github.com/mrlokans/bookie/internal/database/audit"
	"github.com/mrlokans/bookie/internal/database/books"
	syncRepo "github.com/mrlokans/bookie/internal/database/sync"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/importers"
	"github.com/mrlokans/bookie/internal/metadata"
)

// Each controller depends only on the methods it calls. The assertions
// below tie the interfaces to their production implementations.

// FileImporter turns an uploaded file into library entries.
type FileImporter interface {
	ImportFile(ctx context.Context, userID uint, filename string, data []byte) (importers.ImportResult, error)
}

// LibraryStore reads a user's library.
type LibraryStore interface {
	ListLibrary(userID uint, filter books.LibraryFilter) ([]entities.UserBook, int64, error)
	CountByStatus(userID uint) (map[entities.ReadingStatus]int64, error)
	GetLibraryForExport(userID uint) ([]entities.UserBook, error)
	FindUserBook(userID, bookID uint) (*entities.UserBook, error)
}

// BookEnricher fills catalog metadata for one book.
type BookEnricher interface {
	EnrichBook(ctx context.Context, bookID uint) (*metadata.EnrichmentResult, error)
}

// SyncStatusReader reports the progress of the bulk backfill.
type SyncStatusReader interface {
	GetSyncProgress() (*entities.SyncProgress, error)
	IsSyncRunning() (bool, error)
}

// Auditor records user activity and reads it back.
type Auditor interface {
	LogImport(userID uint, req audit.RequestInfo, filename, format string, result importers.ImportResult, elapsed time.Duration, err error)
	LogExport(userID uint, req audit.RequestInfo, format string, count int, err error)
	LogMetadata(userID uint, req audit.RequestInfo, bookID uint, description string, err error)
	GetEvents(filter auditRepo.EventFilter) ([]entities.AuditEvent, int64, error)
}

// Pinger checks storage liveness.
type Pinger interface {
	Ping() error
}

var (
	_ FileImporter     = (*importers.Pipeline)(nil)
	_ LibraryStore     = (*books.Repository)(nil)
	_ BookEnricher     = (*metadata.Enricher)(nil)
	_ SyncStatusReader = (*syncRepo.Repository)(nil)
	_ Auditor          = (*audit.Service)(nil)
)
