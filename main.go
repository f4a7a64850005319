package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/bookie/internal/cli"
	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/entrypoint"
	"github.com/mrlokans/bookie/internal/logging"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

// command is implemented by every subcommand in internal/cli.
type command interface {
	ParseFlags(args []string) error
	Run() error
}

func main() {
	cfg := config.NewConfig()
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	// If no arguments or "serve" command, run the HTTP server
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		entrypoint.Run(cfg, Version+" ("+Commit+")")
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "import":
		cmd = cli.NewImportCommand()
	case "create-user":
		cmd = cli.NewCreateUserCommand()
	case "export":
		cmd = cli.NewExportCommand()
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve         Start the HTTP server (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  import        Import a CSV, TSV or XLSX reading list into a user's library\n")
	fmt.Fprintf(os.Stderr, "  create-user   Create an account for local authentication\n")
	fmt.Fprintf(os.Stderr, "  export        Export a user's library as CSV or XLSX\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
