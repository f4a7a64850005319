package exporters

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/mrlokans/bookie/internal/entities"
)

const sheetName = "Bibliothèque"

// XLSXExporter writes a single-sheet workbook with a bold header row.
type XLSXExporter struct{}

func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return ".xlsx" }

func (e *XLSXExporter) Export(w io.Writer, entries []entities.UserBook) (ExportResult, error) {
	result := ExportResult{}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return result, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, 1, Columns); err != nil {
		return result, err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)
	}

	for i, entry := range entries {
		if err := setRow(f, i+2, record(entry)); err != nil {
			result.BooksFailed++
			continue
		}
		result.BooksProcessed++
	}

	if _, err := f.WriteTo(w); err != nil {
		return result, fmt.Errorf("failed to write workbook: %w", err)
	}
	return result, nil
}

func setRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}
