// Command gridsync runs editing sessions against a listing store, the store
// itself, and the sync scenario runner.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/gridsync/internal/cli"
)

// Set via ldflags: -X main.version=...
var version = "dev"

func main() {
	root := cli.NewRootCommand()
	root.Version = version

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
