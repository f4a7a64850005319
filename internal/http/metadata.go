package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/audit"
	"github.com/mrlokans/bookie/internal/database/books"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
	"github.com/mrlokans/bookie/internal/scheduler"
	"github.com/mrlokans/bookie/internal/tasks"
)

const enrichTimeout = 30 * time.Second

// MetadataController handles book metadata enrichment endpoints.
type MetadataController struct {
	enricher     BookEnricher
	library      LibraryStore
	syncProgress SyncStatusReader
	queue        scheduler.Enqueuer
	auditor      Auditor
}

// NewMetadataController creates the controller. syncProgress, queue and
// auditor may be nil; without a queue the backfill endpoint answers 503.
func NewMetadataController(enricher BookEnricher, library LibraryStore, syncProgress SyncStatusReader, queue scheduler.Enqueuer, auditor Auditor) *MetadataController {
	return &MetadataController{
		enricher:     enricher,
		library:      library,
		syncProgress: syncProgress,
		queue:        queue,
		auditor:      auditor,
	}
}

// EnrichBookResponse is the response for an enrichment operation.
type EnrichBookResponse struct {
	Success       bool           `json:"success"`
	Book          *entities.Book `json:"book,omitempty"`
	FieldsUpdated []string       `json:"fields_updated"`
	Matched       bool           `json:"matched"`
	Source        string         `json:"source,omitempty"`
	SearchMethod  string         `json:"search_method,omitempty"`
}

// EnrichBook handles POST /api/books/:id/enrich. Only books in the
// caller's library can be enriched.
func (mc *MetadataController) EnrichBook(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	owned, err := mc.library.FindUserBook(userID, bookID)
	if err != nil {
		respondInternalError(c, err, "find user book")
		return
	}
	if owned == nil {
		respondNotFound(c, "book")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), enrichTimeout)
	defer cancel()

	result, err := mc.enricher.EnrichBook(ctx, bookID)
	if err != nil {
		mc.logMetadata(c, userID, bookID, "Enrichissement échoué", err)
		if errors.Is(err, books.ErrBookNotFound) {
			respondNotFound(c, "book")
			return
		}
		logging.Warn().Err(err).Uint("book_id", bookID).Msg("enrichment failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "metadata lookup failed", Code: "enrichment_failed"})
		return
	}

	mc.logMetadata(c, userID, bookID, "Métadonnées mises à jour", nil)
	c.JSON(http.StatusOK, EnrichBookResponse{
		Success:       true,
		Book:          result.Book,
		FieldsUpdated: result.FieldsUpdated,
		Matched:       result.Matched,
		Source:        result.Source,
		SearchMethod:  result.SearchMethod,
	})
}

// EnrichAllMissing handles POST /api/books/enrich-all by queueing the
// backfill of every book never looked up.
func (mc *MetadataController) EnrichAllMissing(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	if mc.queue == nil {
		respondError(c, http.StatusServiceUnavailable, "task queue is not enabled")
		return
	}

	if mc.syncProgress != nil {
		running, err := mc.syncProgress.IsSyncRunning()
		if err == nil && running {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "metadata sync is already in progress", Code: "sync_running"})
			return
		}
	}

	ids, err := mc.queue.Enqueue(tasks.EnrichMissingTask{TriggeredBy: userID})
	if err != nil {
		respondInternalError(c, err, "enqueue enrich_missing")
		return
	}
	logging.Info().Str("task_id", ids[0]).Uint("user_id", userID).Msg("metadata backfill enqueued")

	respondAccepted(c, "metadata sync started", gin.H{"task_id": ids[0]})
}

// SyncStatusResponse represents the metadata sync status.
type SyncStatusResponse struct {
	Running     bool    `json:"running"`
	Status      string  `json:"status,omitempty"`
	TotalItems  int     `json:"total_items"`
	Processed   int     `json:"processed"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	CurrentItem string  `json:"current_item,omitempty"`
	Progress    float64 `json:"progress"` // 0-100 percentage
}

// GetSyncStatus handles GET /api/books/enrich-all/status
func (mc *MetadataController) GetSyncStatus(c *gin.Context) {
	resp := SyncStatusResponse{}

	if mc.syncProgress != nil {
		progress, err := mc.syncProgress.GetSyncProgress()
		if err != nil {
			respondInternalError(c, err, "get sync progress")
			return
		}
		if progress != nil {
			resp.Running = progress.Running()
			resp.Status = string(progress.Status)
			resp.TotalItems = progress.TotalItems
			resp.Processed = progress.Processed
			resp.Succeeded = progress.Succeeded
			resp.Failed = progress.Failed
			resp.Skipped = progress.Skipped
			resp.CurrentItem = progress.CurrentItem
			resp.Progress = progress.Percent()
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (mc *MetadataController) logMetadata(c *gin.Context, userID, bookID uint, description string, err error) {
	if mc.auditor == nil {
		return
	}
	mc.auditor.LogMetadata(userID, audit.RequestInfoFromGin(c), bookID, description, err)
}
