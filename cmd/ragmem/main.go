// Command ragmem imports local documents into a memory on disk and answers
// questions from them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/custodia-labs/ragmem/internal/adapters/driving/cli"
	"github.com/custodia-labs/ragmem/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	slog.SetDefault(logger.Slog())
	cli.SetVersion(version)
	cli.SetOpener(open)

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
