package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/database/books"
	"github.com/mrlokans/bookie/internal/exporters"
)

// ExportCommand writes a user's library to a CSV or XLSX file that can be
// imported again.
type ExportCommand struct {
	DatabasePath string
	Username     string
	Format       string
	OutputPath   string

	out io.Writer
}

func NewExportCommand() *ExportCommand {
	return &ExportCommand{out: os.Stdout}
}

func (cmd *ExportCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the database file")
	fs.StringVar(&cmd.Username, "user", "", "Account whose library is exported (required)")
	fs.StringVar(&cmd.Format, "format", "csv", "Output format: csv or xlsx")
	fs.StringVar(&cmd.OutputPath, "out", "", "Output file (default bookie-<date>.<format> in the current directory)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s export -user <username> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.Username == "" {
		return fmt.Errorf("required flag -user not provided")
	}
	if _, err := exporters.ForFormat(cmd.Format); err != nil {
		return err
	}
	return nil
}

func (cmd *ExportCommand) Run() error {
	exporter, err := exporters.ForFormat(cmd.Format)
	if err != nil {
		return err
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

	outPath := cmd.OutputPath
	if outPath == "" {
		outPath = exporters.FileName(exporter, time.Now())
	}
	outPath, err = filepath.Abs(outPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for output: %w", err)
	}

	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}

	result, err := exporters.ExportLibrary(books.NewRepository(db.DB), exporter, user.ID, file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cmd.out, "Exported %d books to %s\n", result.BooksProcessed, outPath)
	if result.BooksFailed > 0 {
		fmt.Fprintf(cmd.out, "%d books could not be written\n", result.BooksFailed)
	}
	return nil
}
