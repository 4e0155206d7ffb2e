package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/bridgekit/llm-bridge/internal/logging"
	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/router"
	"github.com/bridgekit/llm-bridge/internal/streamutil"
	"github.com/bridgekit/llm-bridge/internal/translator"
	"github.com/bridgekit/llm-bridge/internal/translator/ir"
	"github.com/bridgekit/llm-bridge/internal/translator/responses"
	"github.com/bridgekit/llm-bridge/internal/upstream"
)

const maxRequestBody = 32 << 20

func (s *Server) handleChatCompletions(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	source := provider.FormatOpenAI
	if gjson.GetBytes(body, "prompt").IsArray() && !gjson.GetBytes(body, "messages").Exists() {
		source = provider.FormatAISDK
	}
	s.complete(c, source, gjson.GetBytes(body, "model").String(), gjson.GetBytes(body, "stream").Bool(), body)
}

func (s *Server) handleResponses(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	s.complete(c, provider.FormatOpenAIResponses, gjson.GetBytes(body, "model").String(), gjson.GetBytes(body, "stream").Bool(), body)
}

func (s *Server) handleMessages(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	s.complete(c, provider.FormatClaude, gjson.GetBytes(body, "model").String(), gjson.GetBytes(body, "stream").Bool(), body)
}

// handleGemini serves /v1beta/models/{model}:{action}. The colon lives
// inside one path segment, so gin sees a single param.
func (s *Server) handleGemini(c *gin.Context) {
	param := c.Param("modelAction")
	idx := strings.LastIndexByte(param, ':')
	if idx <= 0 {
		s.dialectError(c, provider.FormatGemini, http.StatusNotFound, "unknown action")
		return
	}
	model, action := param[:idx], param[idx+1:]

	var stream bool
	switch action {
	case "generateContent":
	case "streamGenerateContent":
		stream = true
	default:
		s.dialectError(c, provider.FormatGemini, http.StatusNotFound, "unsupported action "+action)
		return
	}

	body, ok := s.readBody(c)
	if !ok {
		return
	}
	s.complete(c, provider.FormatGemini, model, stream, body)
}

func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil || len(body) == 0 {
		s.dialectError(c, provider.FormatOpenAI, http.StatusBadRequest, "empty request body")
		return nil, false
	}
	return body, true
}

// complete routes one request and walks the resolution's targets until one
// upstream accepts it.
func (s *Server) complete(c *gin.Context, source provider.Format, model string, stream bool, body []byte) {
	res := s.routes.Resolve(c.Request.Context(), model)
	targets := append([]router.Target{{Provider: res.Provider, Model: res.Model}}, res.Fallbacks...)
	logging.Debugf("routing %q via %s to %s/%s (%d fallbacks)",
		model, res.Source, res.Provider, res.Model, len(res.Fallbacks))

	var lastErr error
	for i, target := range targets {
		if i > 0 {
			logging.Infof("falling back to %s/%s after: %v", target.Provider, target.Model, lastErr)
		}
		var err error
		if stream {
			err = s.streamOnce(c, source, target, body)
		} else {
			err = s.completeOnce(c, source, target, body)
		}
		if err == nil {
			return
		}
		lastErr = err
		if !fallbackWorthy(err) {
			break
		}
	}
	s.upstreamError(c, source, lastErr)
}

// fallbackWorthy reports whether the next target should be tried. Client
// mistakes will fail everywhere; provider trouble may not.
func fallbackWorthy(err error) bool {
	if se, ok := err.(*upstream.StatusError); ok {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

func (s *Server) completeOnce(c *gin.Context, source provider.Format, target router.Target, body []byte) error {
	upstreamBody, err := s.buildUpstreamRequest(source, target, body, false)
	if err != nil {
		s.dialectError(c, source, http.StatusBadRequest, err.Error())
		return nil
	}

	raw, err := s.client.Complete(c.Request.Context(), target.Provider, target.Model, upstreamBody)
	if err != nil {
		return err
	}

	out, usage, err := s.renderResponse(source, target, raw)
	if err != nil {
		s.dialectError(c, source, http.StatusBadGateway, "upstream response could not be translated")
		return nil
	}
	s.recordUsage(c, target, false, usage)
	c.Data(http.StatusOK, "application/json", out)
	return nil
}

// buildUpstreamRequest rewrites the client payload into the target
// provider's dialect. A Responses client in front of a Chat upstream takes
// the byte-level bridge; everything else goes through the IR.
func (s *Server) buildUpstreamRequest(source provider.Format, target router.Target, body []byte, stream bool) ([]byte, error) {
	if source == provider.FormatOpenAIResponses && target.Provider == provider.FormatOpenAI {
		bridged, err := responses.RequestToChat(body)
		if err != nil {
			return nil, err
		}
		bridged, err = sjson.SetBytes(bridged, "model", target.Model)
		if err != nil {
			return nil, err
		}
		if stream {
			if bridged, err = sjson.SetBytes(bridged, "stream", true); err != nil {
				return nil, err
			}
		}
		return bridged, nil
	}
	out, err := translator.TransformRequest(body, translator.Options{
		From:  source,
		To:    target.Provider,
		Model: target.Model,
	})
	if err != nil {
		return nil, err
	}
	if stream && streamFlagInBody(target.Provider) {
		if out, err = sjson.SetBytes(out, "stream", true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// streamFlagInBody reports whether the provider dialect signals streaming
// in the payload rather than the URL.
func streamFlagInBody(p provider.Format) bool {
	switch p {
	case provider.FormatGemini, provider.FormatAntigravity:
		return false
	}
	return true
}

// renderResponse translates the upstream response into the client dialect
// and extracts usage for accounting.
func (s *Server) renderResponse(source provider.Format, target router.Target, raw []byte) ([]byte, *ir.Usage, error) {
	if source == provider.FormatOpenAIResponses && target.Provider == provider.FormatOpenAI {
		out, err := responses.ChatResponseToResponses(raw)
		if err != nil {
			return nil, nil, err
		}
		return out, usageFromChatResponse(raw), nil
	}

	parser, err := translator.GetRegistry().ToIR(target.Provider)
	if err != nil {
		return nil, nil, err
	}
	converter, err := translator.GetRegistry().FromIR(source)
	if err != nil {
		return nil, nil, err
	}
	resp, err := parser.ParseResponse(raw)
	if err != nil {
		return nil, nil, err
	}
	out, err := converter.TransformResponse(resp)
	if err != nil {
		return nil, nil, err
	}
	return out, resp.Usage, nil
}

func usageFromChatResponse(raw []byte) *ir.Usage {
	u := gjson.GetBytes(raw, "usage")
	if !u.Exists() {
		return nil
	}
	return &ir.Usage{
		InputTokens:  int(u.Get("prompt_tokens").Int()),
		OutputTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:  int(u.Get("total_tokens").Int()),
	}
}

func (s *Server) recordUsage(c *gin.Context, target router.Target, failed bool, u *ir.Usage) {
	if s.tracker == nil {
		return
	}
	apiKey, _ := c.Get("api_key")
	key, _ := apiKey.(string)
	s.tracker.RecordRequest(string(target.Provider), target.Model, key, failed, u, nil, nil)
	s.events.broadcast(event{
		Type: "usage.recorded",
		Time: time.Now().UTC(),
		Payload: map[string]any{
			"provider": string(target.Provider),
			"model":    target.Model,
			"failed":   failed,
		},
	})
}

// streamOnce opens the upstream stream and, once the stream is admitted,
// serves it to completion. Errors before the first byte allow fallback;
// after that the stream is committed.
func (s *Server) streamOnce(c *gin.Context, source provider.Format, target router.Target, body []byte) error {
	upstreamBody, err := s.buildUpstreamRequest(source, target, body, true)
	if err != nil {
		s.dialectError(c, source, http.StatusBadRequest, err.Error())
		return nil
	}

	handle, err := s.client.Stream(c.Request.Context(), target.Provider, target.Model, upstreamBody)
	if err != nil {
		return err
	}

	if source == provider.FormatOpenAIResponses && target.Provider == provider.FormatOpenAI {
		s.serveBridgedStream(c, target, handle)
		return nil
	}
	s.serveStream(c, source, target, handle)
	return nil
}

func (s *Server) serveStream(c *gin.Context, source provider.Format, target router.Target, handle *upstream.StreamHandle) {
	parser, perr := translator.GetRegistry().ToIR(target.Provider)
	converter, cerr := translator.GetRegistry().FromIR(source)
	if perr != nil || cerr != nil {
		handle.Finish(false)
		s.dialectError(c, source, http.StatusBadGateway, "no adapter for stream translation")
		return
	}

	runner := upstream.NewStreamRunner(handle, parser, converter)
	runner.OnUsage = func(u ir.Usage) {
		s.recordUsage(c, target, false, &u)
	}

	pipe := newStreamPipeline(c)
	pipe.Go(func(ctx context.Context) error {
		return runner.Run(ctx, pipe, ir.GenMessageID("chatcmpl"), target.Model)
	})
	pipe.Start()
	writeSSE(c, pipe)
}

// serveBridgedStream runs the byte-level Chat-to-Responses bridge: raw chat
// chunks in, Responses lifecycle events out, no IR in between.
func (s *Server) serveBridgedStream(c *gin.Context, target router.Target, handle *upstream.StreamHandle) {
	pipe := newStreamPipeline(c)
	transformer := responses.NewStreamTransformer(target.Model)

	pipe.Go(func(ctx context.Context) error {
		success := false
		defer func() { handle.Finish(success) }()

		framer := streamutil.NewFramer(handle.Body, translator.StreamSSEStandard)
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			payload, err := framer.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
			if streamutil.IsDone(payload) {
				break
			}
			frames, terr := transformer.Transform(payload)
			if terr != nil {
				return terr
			}
			for _, frame := range frames {
				if !pipe.SendData(frame) {
					return ctx.Err()
				}
			}
		}
		success = true
		return nil
	})
	pipe.Start()
	writeSSE(c, pipe)
}
