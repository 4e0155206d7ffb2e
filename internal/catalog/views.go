package catalog

import "strings"

// Dialect-shaped renderings of the catalog for the model-list endpoints.
// Each dialect wants its own envelope and field names, so the handlers ask
// for the view matching the surface they serve.

func renderOpenAI(m ModelInfo) map[string]any {
	result := map[string]any{
		"id":       m.ID,
		"object":   "model",
		"owned_by": m.OwnedBy,
	}
	if m.Created > 0 {
		result["created"] = m.Created
	}
	if m.DisplayName != "" {
		result["display_name"] = m.DisplayName
	}
	if m.ContextLength > 0 {
		result["context_length"] = m.ContextLength
	}
	if m.MaxTokens > 0 {
		result["max_completion_tokens"] = m.MaxTokens
	}
	return result
}

func renderClaude(m ModelInfo) map[string]any {
	result := map[string]any{
		"id":   m.ID,
		"type": "model",
	}
	if m.DisplayName != "" {
		result["display_name"] = m.DisplayName
	}
	if m.Created > 0 {
		result["created_at"] = m.Created
	}
	return result
}

func renderGemini(m ModelInfo) map[string]any {
	name := m.ID
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}
	result := map[string]any{
		"name":                       name,
		"supportedGenerationMethods": []string{"generateContent", "streamGenerateContent"},
	}
	if m.DisplayName != "" {
		result["displayName"] = m.DisplayName
	}
	if m.ContextLength > 0 {
		result["inputTokenLimit"] = m.ContextLength
	}
	if m.MaxTokens > 0 {
		result["outputTokenLimit"] = m.MaxTokens
	}
	return result
}

// OpenAIList renders the catalog as an OpenAI /v1/models response.
func (c *Catalog) OpenAIList() map[string]any {
	models := c.List()
	data := make([]map[string]any, 0, len(models))
	for _, m := range models {
		data = append(data, renderOpenAI(m))
	}
	return map[string]any{"object": "list", "data": data}
}

// ClaudeList renders the catalog as an Anthropic /v1/models response.
func (c *Catalog) ClaudeList() map[string]any {
	models := c.List()
	data := make([]map[string]any, 0, len(models))
	for _, m := range models {
		data = append(data, renderClaude(m))
	}
	return map[string]any{
		"data":     data,
		"has_more": false,
		"first_id": firstID(models),
		"last_id":  lastID(models),
	}
}

// GeminiList renders the catalog as a Gemini /v1beta/models response.
func (c *Catalog) GeminiList() map[string]any {
	models := c.List()
	data := make([]map[string]any, 0, len(models))
	for _, m := range models {
		data = append(data, renderGemini(m))
	}
	return map[string]any{"models": data}
}

func firstID(models []ModelInfo) string {
	if len(models) == 0 {
		return ""
	}
	return models[0].ID
}

func lastID(models []ModelInfo) string {
	if len(models) == 0 {
		return ""
	}
	return models[len(models)-1].ID
}
