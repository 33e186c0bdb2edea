package main

import (
	"os"

	// adapters register themselves with the llm factory
	_ "github.com/nulzo/anthropic-gateway/internal/llm/anthropic"
	_ "github.com/nulzo/anthropic-gateway/internal/llm/bedrock"
	_ "github.com/nulzo/anthropic-gateway/internal/llm/vertex"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
