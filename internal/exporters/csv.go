package exporters

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/mrlokans/bookie/internal/entities"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter writes semicolon-separated UTF-8 with a byte order mark, the
// shape spreadsheet tools in French locales open without a wizard.
type CSVExporter struct{}

func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (e *CSVExporter) Extension() string { return ".csv" }

func (e *CSVExporter) Export(w io.Writer, entries []entities.UserBook) (ExportResult, error) {
	result := ExportResult{}

	if _, err := w.Write(utf8BOM); err != nil {
		return result, fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(Columns); err != nil {
		return result, fmt.Errorf("failed to write header: %w", err)
	}

	for _, entry := range entries {
		if err := cw.Write(record(entry)); err != nil {
			result.BooksFailed++
			continue
		}
		result.BooksProcessed++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return result, fmt.Errorf("failed to flush csv: %w", err)
	}
	return result, nil
}
