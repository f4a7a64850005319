package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/audit"
	"github.com/mrlokans/bookie/internal/importers"
	"github.com/mrlokans/bookie/internal/logging"
)

// multipartOverhead allows for boundaries and part headers around the file.
const multipartOverhead = 1 << 20

// ImportController handles library file uploads.
type ImportController struct {
	importer    FileImporter
	auditor     Auditor
	maxFileSize int64
	now         func() time.Time
}

// NewImportController creates the controller. auditor may be nil.
func NewImportController(importer FileImporter, auditor Auditor, maxFileSize int64) *ImportController {
	return &ImportController{
		importer:    importer,
		auditor:     auditor,
		maxFileSize: maxFileSize,
		now:         time.Now,
	}
}

// ImportResponse is returned once the file has been processed.
type ImportResponse struct {
	Success       bool     `json:"success"`
	Imported      int      `json:"imported"`
	Skipped       int      `json:"skipped"`
	Duplicates    int      `json:"duplicates"`
	Errors        int      `json:"errors"`
	Total         int      `json:"total"`
	Dropped       int      `json:"dropped"`
	ErrorMessages []string `json:"errorMessages"`
	Message       string   `json:"message"`
}

func newImportResponse(result importers.ImportResult) ImportResponse {
	messages := result.ErrorMessages
	if messages == nil {
		messages = []string{}
	}
	return ImportResponse{
		Success:       true,
		Imported:      result.Imported,
		Skipped:       result.Skipped,
		Duplicates:    result.Duplicates,
		Errors:        result.Errors,
		Total:         result.Total,
		Dropped:       result.Dropped,
		ErrorMessages: messages,
		Message:       result.Summary(),
	}
}

// Import handles POST /api/import with a multipart "file" field holding a
// CSV, TSV or XLSX export.
func (ic *ImportController) Import(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if ic.maxFileSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ic.maxFileSize+multipartOverhead)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ic.respondTooLarge(c)
			return
		}
		respondBadRequest(c, "no file uploaded: expected multipart field \"file\"")
		return
	}
	if ic.maxFileSize > 0 && fileHeader.Size > ic.maxFileSize {
		ic.respondTooLarge(c)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondInternalError(c, err, "open uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondInternalError(c, err, "read uploaded file")
		return
	}

	started := ic.now()
	format := string(importers.DetectFormat(fileHeader.Filename, data))
	// A started import runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := ic.importer.ImportFile(ctx, userID, fileHeader.Filename, data)
	elapsed := ic.now().Sub(started)
	ic.audit(c, userID, fileHeader.Filename, format, result, elapsed, err)

	switch {
	case errors.Is(err, importers.ErrNoRows):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Aucun livre trouvé dans le fichier",
			Code:    "no_rows",
			Details: gin.H{"dropped": result.Dropped},
		})
		return
	case err != nil:
		logging.Error().Err(err).Str("filename", fileHeader.Filename).Uint("user_id", userID).Msg("import failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Impossible de lire le fichier", Code: "unreadable_file"})
		return
	}

	c.JSON(http.StatusOK, newImportResponse(result))
}

func (ic *ImportController) respondTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
		Error:   "file too large",
		Code:    "file_too_large",
		Details: gin.H{"max_bytes": ic.maxFileSize},
	})
}

func (ic *ImportController) audit(c *gin.Context, userID uint, filename, format string, result importers.ImportResult, elapsed time.Duration, err error) {
	if ic.auditor == nil {
		return
	}
	ic.auditor.LogImport(userID, audit.RequestInfoFromGin(c), filename, format, result, elapsed, err)
}
