package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bridgekit/llm-bridge/internal/json"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/upstream"
)

// dialectError writes an error body shaped for the client's dialect, so
// SDK error parsing keeps working through the gateway.
func (s *Server) dialectError(c *gin.Context, source provider.Format, status int, message string) {
	switch source {
	case provider.FormatClaude:
		c.JSON(status, gin.H{
			"type": "error",
			"error": gin.H{
				"type":    claudeErrorType(status),
				"message": message,
			},
		})
	case provider.FormatGemini, provider.FormatAntigravity:
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    status,
				"message": message,
				"status":  googleStatus(status),
			},
		})
	default:
		c.JSON(status, gin.H{
			"error": gin.H{
				"type":    openAIErrorType(status),
				"message": message,
				"code":    strconv.Itoa(status),
			},
		})
	}
}

// upstreamError maps a failed upstream call to a client-facing error,
// passing the upstream's status through when it carried one.
func (s *Server) upstreamError(c *gin.Context, source provider.Format, err error) {
	if err == nil {
		s.dialectError(c, source, http.StatusBadGateway, "no upstream available")
		return
	}
	if se, ok := err.(*upstream.StatusError); ok {
		s.dialectError(c, source, se.StatusCode, se.Message)
		return
	}
	s.dialectError(c, source, http.StatusBadGateway, err.Error())
}

func claudeErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable:
		return "overloaded_error"
	}
	return "api_error"
}

func openAIErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	}
	return "api_error"
}

func googleStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	}
	return "INTERNAL"
}

func quoteJSON(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `"stream error"`
	}
	return string(data)
}
