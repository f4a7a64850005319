package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookie/internal/auth"
	auditRepo "github.com/mrlokans/bookie/internal/database/audit"
	"github.com/mrlokans/bookie/internal/entities"
)

type AuditController struct {
	auditor Auditor
}

func NewAuditController(auditor Auditor) *AuditController {
	return &AuditController{
		auditor: auditor,
	}
}

// ListEvents handles GET /api/audit?type=&limit=&offset=
// Readers see their own events. Admins may pass user_id, or user_id=0 for
// every user.
func (ac *AuditController) ListEvents(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	filterUser := userID
	if raw, set := c.GetQuery("user_id"); set {
		if auth.GetUserRole(c) != entities.UserRoleAdmin {
			respondError(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid user_id")
			return
		}
		filterUser = uint(id)
	}

	page := parsePage(c)
	events, total, err := ac.auditor.GetEvents(auditRepo.EventFilter{
		UserID:    filterUser,
		EventType: entities.AuditEventType(c.Query("type")),
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		respondInternalError(c, err, "list audit events")
		return
	}

	c.JSON(http.StatusOK, newPaginatedResponse(events, total, page))
}
