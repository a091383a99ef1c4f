// Agent Console: agent registry with draft/publish versioning, chat
// sessions with streamed replies, and judged evaluation suites.
package main

import (
	"os"

	"github.com/agentoven/console/cmd/console/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
