package http

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/audit"
	"github.com/mrlokans/bookie/internal/database/books"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/exporters"
)

// LibraryController serves the caller's library.
type LibraryController struct {
	store   LibraryStore
	auditor Auditor
	now     func() time.Time
}

// NewLibraryController creates the controller. auditor may be nil.
func NewLibraryController(store LibraryStore, auditor Auditor) *LibraryController {
	return &LibraryController{
		store:   store,
		auditor: auditor,
		now:     time.Now,
	}
}

// List handles GET /api/library?status=&q=&limit=&offset=
func (controller *LibraryController) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	status := entities.ReadingStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		respondBadRequest(c, "invalid status")
		return
	}

	page := parsePage(c)
	entries, total, err := controller.store.ListLibrary(userID, books.LibraryFilter{
		Status: status,
		Query:  c.Query("q"),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		respondInternalError(c, err, "list library")
		return
	}

	c.JSON(http.StatusOK, newPaginatedResponse(entries, total, page))
}

// Stats handles GET /api/library/stats with the per-status counts.
func (controller *LibraryController) Stats(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	counts, err := controller.store.CountByStatus(userID)
	if err != nil {
		respondInternalError(c, err, "count library")
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "by_status": counts})
}

// Export handles GET /api/library/export?format=csv|xlsx
func (controller *LibraryController) Export(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	exporter, err := exporters.ForFormat(c.Query("format"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	format := exporter.Extension()[1:]

	var buf bytes.Buffer
	result, err := exporters.ExportLibrary(controller.store, exporter, userID, &buf)
	if controller.auditor != nil {
		controller.auditor.LogExport(userID, audit.RequestInfoFromGin(c), format, result.BooksProcessed, err)
	}
	if err != nil {
		respondInternalError(c, err, "export library")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+exporters.FileName(exporter, controller.now())+`"`)
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}
