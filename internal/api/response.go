package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the envelope of every failed request.
type ErrorResponse struct {
	Success   bool        `json:"success"`
	Error     ErrorDetail `json:"error"`
	Timestamp string      `json:"timestamp"`
	Path      string      `json:"path"`
	Method    string      `json:"method"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Hint    string      `json:"hint,omitempty"`
}

// SuccessResponse is the envelope of every successful JSON response.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Message   string      `json:"message,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// Error codes.
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	ErrCodeUnprocessableEntity = "UNPROCESSABLE_ENTITY"
	ErrCodeInternalServer      = "INTERNAL_SERVER_ERROR"
	ErrCodeServiceUnavail      = "SERVICE_UNAVAILABLE"

	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeNoData           = "NO_DATA"
)

func (s *Server) timestamp() string {
	return s.clock().UTC().Format(time.RFC3339)
}

// respondError writes an error envelope and aborts the chain.
func (s *Server) respondError(c *gin.Context, status int, code, message string, details interface{}, hint string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
			Hint:    hint,
		},
		Timestamp: s.timestamp(),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

func (s *Server) respondSuccess(c *gin.Context, status int, data interface{}, message string, warnings []string) {
	c.JSON(status, SuccessResponse{
		Success:   true,
		Data:      data,
		Message:   message,
		Warnings:  warnings,
		Timestamp: s.timestamp(),
	})
}

func (s *Server) badRequest(c *gin.Context, message string, details interface{}) {
	s.respondError(c, http.StatusBadRequest, ErrCodeBadRequest, message, details,
		"Check the request parameters")
}

func (s *Server) sessionNotFound(c *gin.Context, id string) {
	s.respondError(c, http.StatusNotFound, ErrCodeSessionNotFound, "session not found",
		gin.H{"session_id": id},
		"Sessions expire when idle; create a new one with POST /api/sessions")
}

func (s *Server) internalError(c *gin.Context, message string, err error) {
	s.logger.WithFields(logrus.Fields{
		"module": "api",
		"path":   c.FullPath(),
	}).WithError(err).Error(message)
	s.respondError(c, http.StatusInternalServerError, ErrCodeInternalServer, message,
		gin.H{"error": err.Error()}, "")
}
