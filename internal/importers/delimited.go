package importers

import (
	"strings"
)

// Row maps a lower-cased column name to its raw cell value.
type Row map[string]string

// Field returns the first non-blank value among candidates, matching column
// names case-insensitively, or "" when none match.
func (r Row) Field(candidates ...string) string {
	for _, name := range candidates {
		if v, ok := r[strings.ToLower(name)]; ok {
			if strings.TrimSpace(v) != "" {
				return v
			}
			continue
		}
		for key, v := range r {
			if strings.EqualFold(key, name) && strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	return ""
}

// hasTitle reports whether any title column carries a value.
func (r Row) hasTitle() bool {
	return strings.TrimSpace(r.Field(titleColumns...)) != ""
}

// ParsedFile is the outcome of reading an import file.
type ParsedFile struct {
	Header    []string
	Rows      []Row
	Dropped   int  // data lines discarded for lacking a title
	Delimiter rune // zero for workbooks
}

// DetectDelimiter picks the field separator from the header line:
// semicolon, then tab, then comma.
func DetectDelimiter(header string) rune {
	switch {
	case strings.ContainsRune(header, ';'):
		return ';'
	case strings.ContainsRune(header, '\t'):
		return '\t'
	default:
		return ','
	}
}

// ParseDelimited reads CSV, semicolon or tab separated text with a header
// row. Quoted fields may contain the delimiter and "" escapes, but every
// record must fit on one physical line.
func ParseDelimited(text string) ParsedFile {
	text = FixEncoding(strings.TrimPrefix(text, utf8BOM))

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ParsedFile{}
	}

	delim := DetectDelimiter(lines[0])
	header := parseHeader(lines[0], delim)
	parsed := ParsedFile{Header: header, Delimiter: delim}

	for _, line := range lines[1:] {
		row := zipRow(header, splitLine(line, delim))
		if !row.hasTitle() {
			parsed.Dropped++
			continue
		}
		parsed.Rows = append(parsed.Rows, row)
	}
	return parsed
}

func parseHeader(line string, delim rune) []string {
	parts := strings.Split(line, string(delim))
	header := make([]string, len(parts))
	for i, p := range parts {
		header[i] = normalizeColumn(p)
	}
	return header
}

func normalizeColumn(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	return strings.ToLower(strings.TrimSpace(name))
}

// splitLine tokenizes one record. A quote toggles quoted mode; inside
// quotes a doubled quote yields a literal one.
func splitLine(line string, delim rune) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(runes) && runes[i+1] == '"' {
				current.WriteRune('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case ch == delim && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

// zipRow pairs header names with values by position. Missing trailing
// values become "". For repeated column names the first non-blank wins.
func zipRow(header, values []string) Row {
	row := make(Row, len(header))
	for i, name := range header {
		var v string
		if i < len(values) {
			v = values[i]
		}
		if prev, ok := row[name]; ok && strings.TrimSpace(prev) != "" {
			continue
		}
		row[name] = v
	}
	return row
}
