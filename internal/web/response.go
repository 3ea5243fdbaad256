package web

import (
	"net/http"
	"time"

	"faclassifier/internal/classifier"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the JSON envelope of every API endpoint.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *MetaInfo  `json:"meta"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type MetaInfo struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

func newMeta(c *gin.Context) *MetaInfo {
	requestID := c.GetString(requestIDKey)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	return &MetaInfo{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
}

func respondSuccess(c *gin.Context, status int, data any) {
	c.JSON(status, Response{
		Success: true,
		Data:    data,
		Meta:    newMeta(c),
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
		Meta: newMeta(c),
	})
}

// outcomeStatus maps an unsuccessful outcome to an HTTP status and error code.
func outcomeStatus(o classifier.Outcome) (int, string) {
	switch o.Kind {
	case classifier.KindMissingText:
		return http.StatusBadRequest, "MISSING_TEXT"
	case classifier.KindMissingCredential:
		return http.StatusBadRequest, "MISSING_CREDENTIAL"
	case classifier.KindConfiguration:
		return http.StatusBadGateway, "CONFIGURATION_FAILURE"
	default:
		return http.StatusBadGateway, "PROVIDER_CALL_FAILURE"
	}
}
