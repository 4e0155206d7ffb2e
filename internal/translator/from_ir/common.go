package from_ir

import (
	"time"

	"github.com/bridgekit/llm-bridge/internal/provider"
	"github.com/bridgekit/llm-bridge/internal/translator"
)

func init() {
	translator.RegisterFromIR(&OpenAIConverter{})
	translator.RegisterFromIR(&ResponsesConverter{})
	translator.RegisterFromIR(&ClaudeConverter{})
	translator.RegisterFromIR(&GeminiConverter{})
	translator.RegisterFromIR(&AntigravityConverter{})
	translator.RegisterFromIR(&AISDKConverter{})

	// Dialects that reuse another dialect's wire format under their own name.
	translator.RegisterAlias(provider.FormatOpencodeZen, provider.FormatOpenAI)
	translator.RegisterAlias(provider.FormatOpenAIWeb, provider.FormatOpenAIResponses)
}

func nowUnix() int64 { return time.Now().Unix() }
