package to_ir

import "github.com/bridgekit/llm-bridge/internal/translator"

func init() {
	translator.RegisterToIR(&OpenAIParser{})
	translator.RegisterToIR(&ResponsesParser{})
	translator.RegisterToIR(&ClaudeParser{})
	translator.RegisterToIR(&GeminiParser{})
	translator.RegisterToIR(&AntigravityParser{})
	translator.RegisterToIR(&AISDKParser{})
}
