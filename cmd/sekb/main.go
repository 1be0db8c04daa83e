// Command sekb is the entry point for the systems engineering knowledge
// base. It provides a CLI interface (via Cobra) for searching, ingesting,
// and inspecting the knowledge corpus, and an HTTP server exposing the
// same operations as a REST API.
package main

import (
	"fmt"
	"os"

	"github.com/ddunnock/sekb-go/cmd/sekb/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
