package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/logging"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`    // machine-readable error code
	Details any    `json:"details,omitempty"` // additional context (validation errors, etc.)
}

// SuccessResponse is a standard success response with optional data.
type SuccessResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Data       any   `json:"data"`
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasMore    bool  `json:"has_more"`
	TotalPages int   `json:"total_pages,omitempty"`
}

func newPaginatedResponse(data any, total int64, page pageParams) PaginatedResponse {
	totalPages := int((total + int64(page.Limit) - 1) / int64(page.Limit))
	return PaginatedResponse{
		Data:       data,
		Total:      total,
		Limit:      page.Limit,
		Offset:     page.Offset,
		HasMore:    int64(page.Offset+page.Limit) < total,
		TotalPages: totalPages,
	}
}

// --- Error Response Helpers ---

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: resource + " not found"})
}

func respondUnauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "unauthorized"})
}

// respondInternalError logs the error and sends a 500. The cause is not
// exposed to the client.
func respondInternalError(c *gin.Context, err error, context string) {
	logging.Error().Err(err).Str("context", context).Str("request_id", c.GetString(requestIDKey)).Msg("internal error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondAccepted sends a 202 for work handed to the task queue.
func respondAccepted(c *gin.Context, message string, data any) {
	c.JSON(http.StatusAccepted, SuccessResponse{Message: message, Data: data})
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

type pageParams struct {
	Limit  int
	Offset int
}

// parsePage reads limit and offset, clamping both to sane bounds.
func parsePage(c *gin.Context) pageParams {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	offset, err := strconv.Atoi(c.Query("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return pageParams{Limit: min(limit, maxPageSize), Offset: offset}
}

// requireUser returns the caller's id or answers 401.
func requireUser(c *gin.Context) (uint, bool) {
	userID := GetUserID(c)
	if userID == 0 {
		respondUnauthorized(c)
		return 0, false
	}
	return userID, true
}
