package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleListModels serves /v1/models for both OpenAI and Anthropic
// clients; the anthropic-version header marks the latter.
func (s *Server) handleListModels(c *gin.Context) {
	if c.GetHeader("anthropic-version") != "" {
		c.JSON(http.StatusOK, s.catalog.ClaudeList())
		return
	}
	c.JSON(http.StatusOK, s.catalog.OpenAIList())
}

func (s *Server) handleGeminiModels(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.GeminiList())
}
