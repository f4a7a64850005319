package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// HealthController pings every named dependency on each request.
type HealthController struct {
	checks  map[string]Pinger
	names   []string
	version string
}

// NewHealthController creates the controller. A nil Pinger is reported as
// "not configured" and does not make the service unhealthy.
func NewHealthController(version string, checks map[string]Pinger) *HealthController {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return &HealthController{
		checks:  checks,
		names:   names,
		version: version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	results := make(map[string]string, len(h.names))
	healthy := true

	for _, name := range h.names {
		pinger := h.checks[name]
		if pinger == nil {
			results[name] = "not configured"
			continue
		}
		if err := pinger.Ping(); err != nil {
			results[name] = "error: " + err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	response := HealthResponse{
		Status:  "healthy",
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  results,
	}
	statusCode := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, response)
}
