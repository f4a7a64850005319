package importers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoRows is returned when a file yields no importable row.
var ErrNoRows = errors.New("no importable rows found")

// Format identifies an import file type.
type Format string

const (
	FormatDelimited Format = "csv"
	FormatWorkbook  Format = "xlsx"
)

var zipMagic = []byte("PK\x03\x04")

// DetectFormat decides how to read a file from its name and first bytes.
func DetectFormat(filename string, data []byte) Format {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") || bytes.HasPrefix(data, zipMagic) {
		return FormatWorkbook
	}
	return FormatDelimited
}

// ParseFile reads an uploaded export in any supported format.
func ParseFile(filename string, data []byte) (ParsedFile, Format, error) {
	format := DetectFormat(filename, data)
	if format == FormatWorkbook {
		parsed, err := ParseWorkbook(bytes.NewReader(data))
		return parsed, format, err
	}
	return ParseDelimited(DecodeText(data)), format, nil
}

// ParseWorkbook reads the first sheet of an Excel workbook. The first
// non-empty row is the header; the same title rule as delimited text decides
// which rows are kept.
func ParseWorkbook(r io.Reader) (ParsedFile, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ParsedFile{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParsedFile{}, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ParsedFile{}, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	var parsed ParsedFile
	headerSeen := false
	for _, cells := range rows {
		if isBlankRecord(cells) {
			continue
		}
		for i := range cells {
			cells[i] = strings.TrimSpace(FixEncoding(cells[i]))
		}
		if !headerSeen {
			parsed.Header = make([]string, len(cells))
			for i, c := range cells {
				parsed.Header[i] = normalizeColumn(c)
			}
			headerSeen = true
			continue
		}
		row := zipRow(parsed.Header, cells)
		if !row.hasTitle() {
			parsed.Dropped++
			continue
		}
		parsed.Rows = append(parsed.Rows, row)
	}
	return parsed, nil
}

func isBlankRecord(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
