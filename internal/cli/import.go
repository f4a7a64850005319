package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/database/books"
	"github.com/mrlokans/bookie/internal/entrypoint"
	"github.com/mrlokans/bookie/internal/importers"
)

// ImportCommand imports a CSV, TSV or XLSX library export from disk.
type ImportCommand struct {
	FilePath     string
	DatabasePath string
	Username     string
	Workers      int
	NoEnrich     bool
	DryRun       bool

	out io.Writer
}

func NewImportCommand() *ImportCommand {
	return &ImportCommand{out: os.Stdout}
}

func (cmd *ImportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Path to the library export (.csv, .tsv, .txt or .xlsx) (required)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.Username, "user", "", "Account that receives the books (required)")
	fs.IntVar(&cmd.Workers, "workers", 1, "Rows merged concurrently; 1 keeps file order")
	fs.BoolVar(&cmd.NoEnrich, "no-enrich", false, "Skip Google Books lookups for new books")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Parse and map the file without writing to the database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s import -file <path> -user <username> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import a reading list exported from Babelio, Livraddict, Goodreads or a spreadsheet.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s import -file livraddict.csv -user camille\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s import -file bibliotheque.xlsx -user camille -dry-run\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}
	if cmd.Username == "" && !cmd.DryRun {
		return fmt.Errorf("required flag -user not provided")
	}
	if cmd.Workers < 1 {
		return fmt.Errorf("-workers must be at least 1")
	}
	return nil
}

func (cmd *ImportCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := os.ReadFile(cmd.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cmd.FilePath, err)
	}

	if cmd.DryRun {
		return cmd.preview(data)
	}

	db, err := openDatabase(cmd.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := lookupUser(db, cmd.Username)
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.Import.Workers = cmd.Workers
	if cmd.NoEnrich {
		cfg.Import.Enrich = false
	}
	pipeline := entrypoint.NewImportPipeline(cfg, books.NewRepository(db.DB), entrypoint.NewMetadataProvider(cfg))

	fmt.Fprintf(cmd.out, "Importing %s for %s...\n", cmd.FilePath, user.Username)
	started := time.Now()
	result, err := pipeline.ImportFile(ctx, user.ID, cmd.FilePath, data)
	if errors.Is(err, importers.ErrNoRows) {
		return fmt.Errorf("no books found in %s (%d lines without a title)", cmd.FilePath, result.Dropped)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.printResult(result, time.Since(started))
	return nil
}

func (cmd *ImportCommand) preview(data []byte) error {
	parsed, format, err := importers.ParseFile(cmd.FilePath, data)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.out, "DRY RUN: %s file, %d books, %d lines dropped\n", format, len(parsed.Rows), parsed.Dropped)
	for i, row := range parsed.Rows {
		b := importers.MapRow(row)
		author := b.Author
		if author == "" {
			author = "(no author)"
		}
		fmt.Fprintf(cmd.out, "%d. %q by %s [%s]\n", i+1, b.DisplayTitle(), author, b.Status)
	}
	return nil
}

func (cmd *ImportCommand) printResult(result importers.ImportResult, elapsed time.Duration) {
	fmt.Fprintln(cmd.out, "\n=== Import Summary ===")
	fmt.Fprintln(cmd.out, result.Summary())
	fmt.Fprintf(cmd.out, "Rows: %d, dropped lines: %d, took %s\n", result.Total, result.Dropped, elapsed.Round(time.Millisecond))

	if len(result.ErrorMessages) > 0 {
		fmt.Fprintf(cmd.out, "\n%d errors occurred:\n", result.Errors)
		for _, msg := range result.ErrorMessages {
			fmt.Fprintf(cmd.out, "  [ERROR] %s\n", msg)
		}
	}
}
