package usage

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/bridgekit/llm-bridge/internal/translator/ir"
)

// Token estimation for upstreams that omit usage. Counts are approximate:
// BPE encodings differ per model family, and non-OpenAI models use their
// own tokenizers, but cl100k/o200k are close enough for accounting.

const (
	perMessageOverhead = 4
	imageTokenCost     = 258
)

var (
	codecOnce sync.Once
	codecMu   sync.RWMutex
	codecs    map[tokenizer.Encoding]tokenizer.Codec
)

func codecFor(model string) tokenizer.Codec {
	codecOnce.Do(func() { codecs = make(map[tokenizer.Encoding]tokenizer.Codec) })

	encoding := tokenizer.Cl100kBase
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt-4o"),
		strings.HasPrefix(lower, "gpt-4.1"),
		strings.HasPrefix(lower, "gpt-5"),
		strings.HasPrefix(lower, "o1"),
		strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"),
		strings.HasPrefix(lower, "codex"):
		encoding = tokenizer.O200kBase
	}

	codecMu.RLock()
	codec, ok := codecs[encoding]
	codecMu.RUnlock()
	if ok {
		return codec
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil
	}
	codecMu.Lock()
	codecs[encoding] = codec
	codecMu.Unlock()
	return codec
}

// CountTextTokens counts tokens in plain text, falling back to a chars/4
// heuristic if the encoding is unavailable.
func CountTextTokens(model, text string) int {
	if text == "" {
		return 0
	}
	if codec := codecFor(model); codec != nil {
		if n, err := codec.Count(text); err == nil {
			return n
		}
	}
	return (len(text) + 3) / 4
}

// CountRequestTokens estimates the input-token cost of a request: system
// prompt, every message part, and tool schemas.
func CountRequestTokens(model string, req *ir.UnifiedRequest) int {
	if req == nil {
		return 0
	}
	var sb strings.Builder
	sb.WriteString(req.System)
	for _, block := range req.SystemBlocks {
		sb.WriteString(block.Text)
	}
	for _, tool := range req.Tools {
		sb.WriteString(tool.Name)
		sb.WriteString(tool.Description)
	}

	total := CountTextTokens(model, sb.String())
	for _, msg := range req.Messages {
		total += perMessageOverhead
		for _, part := range msg.Parts {
			total += countPartTokens(model, part)
		}
	}
	return total
}

// CountResponseTokens estimates the output-token cost of a response.
func CountResponseTokens(model string, resp *ir.UnifiedResponse) int {
	if resp == nil {
		return 0
	}
	total := 0
	for _, part := range resp.Content {
		total += countPartTokens(model, part)
	}
	return total
}

func countPartTokens(model string, part ir.ContentPart) int {
	switch part.Type {
	case ir.ContentTypeText:
		return CountTextTokens(model, part.Text)
	case ir.ContentTypeThinking:
		return CountTextTokens(model, part.Thinking)
	case ir.ContentTypeToolCall:
		return CountTextTokens(model, part.Name) + CountTextTokens(model, part.Args)
	case ir.ContentTypeToolResult:
		return CountTextTokens(model, part.Result)
	case ir.ContentTypeImage:
		return imageTokenCost
	}
	return 0
}
