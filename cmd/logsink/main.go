package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/logsink/internal/cli"
	"github.com/ppiankov/logsink/internal/config"
)

var version = "dev"

var cfg *config.Config

func main() {
	cfg = config.Load()
	if err := execute(); err != nil {
		cli.FormatError(os.Stderr, err, false)
		os.Exit(cli.ExitCode(err))
	}
}

func execute() error {
	root := &cobra.Command{
		Use:     "logsink",
		Short:   "Syslog receiver with a live dashboard and rotating JSONL storage",
		Version: version,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newUploadCmd())
	return root.Execute()
}
