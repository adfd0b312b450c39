// Command dialogic serves chatbot dialogs over Alice, Telegram, Discord,
// WebSocket and MCP, or talks to them in a terminal.
package main

import (
	"fmt"
	"os"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dialogic: %v\n", err)
		os.Exit(1)
	}
}
