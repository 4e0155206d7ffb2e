package main

import (
	"github.com/bridgekit/llm-bridge/internal/cli"

	// Adapter self-registration.
	_ "github.com/bridgekit/llm-bridge/internal/translator/from_ir"
	_ "github.com/bridgekit/llm-bridge/internal/translator/to_ir"
)

func main() {
	cli.Execute()
}
