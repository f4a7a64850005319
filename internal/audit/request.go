package audit

import "github.com/gin-gonic/gin"

// RequestIDKey is the gin context key under which the request ID is stored.
const RequestIDKey = "request_id"

// RequestInfoFromGin collects the request details of c.
func RequestInfoFromGin(c *gin.Context) RequestInfo {
	return RequestInfo{
		RequestID: c.GetString(RequestIDKey),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
