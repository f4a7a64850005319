package exporters

import (
	"fmt"
	"io"

	"github.com/mrlokans/bookie/internal/database/books"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
)

// LibraryReader loads everything a user owns. *books.Repository satisfies it.
type LibraryReader interface {
	GetLibraryForExport(userID uint) ([]entities.UserBook, error)
}

var _ LibraryReader = (*books.Repository)(nil)

// ExportLibrary loads userID's library and writes it with exporter.
func ExportLibrary(reader LibraryReader, exporter LibraryExporter, userID uint, w io.Writer) (ExportResult, error) {
	entries, err := reader.GetLibraryForExport(userID)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to load library: %w", err)
	}

	result, err := exporter.Export(w, entries)
	if err != nil {
		return result, err
	}

	logging.Info().
		Uint("user_id", userID).
		Str("format", exporter.Extension()).
		Int("books", result.BooksProcessed).
		Int("failed", result.BooksFailed).
		Msg("library exported")
	return result, nil
}
