package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bridgekit/llm-bridge/internal/streamutil"
)

func newStreamPipeline(c *gin.Context) *streamutil.Pipeline {
	return streamutil.NewPipeline(c.Request.Context(), streamutil.PipelineConfig{})
}

// writeSSE drains the pipeline into the response. Frames arrive already
// SSE-framed from the converters; a terminal error after bytes have been
// written becomes an error event, since the status line is gone.
func writeSSE(c *gin.Context, pipe *streamutil.Pipeline) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	flusher, _ := c.Writer.(http.Flusher)
	for chunk := range pipe.Output() {
		if chunk.Err != nil {
			errFrame := []byte("event: error\ndata: {\"error\":{\"message\":" +
				quoteJSON(chunk.Err.Error()) + "}}\n\n")
			_, _ = c.Writer.Write(errFrame)
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
		if _, err := c.Writer.Write(chunk.Data); err != nil {
			pipe.Cancel()
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
