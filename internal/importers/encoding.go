package importers

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// mojibakeTable lists UTF-8 byte pairs for French accented letters as they
// appear after being decoded as Windows-1252, in application order.
// The replacement character fallback must stay last.
var mojibakeTable = [][2]string{
	{"Ã©", "é"},
	{"Ã¨", "è"},
	{"Ãª", "ê"},
	{"Ã«", "ë"},
	{"Ã\u00a0", "à"},
	{"Ã¢", "â"},
	{"Ã´", "ô"},
	{"Ã¹", "ù"},
	{"Ã»", "û"},
	{"Ã®", "î"},
	{"Ã¯", "ï"},
	{"Ã§", "ç"},
	{"Å“", "œ"},
	{"Ã‰", "É"},
	{"Ãˆ", "È"},
	{"ÃŠ", "Ê"},
	{"Ã‹", "Ë"},
	{"Ã€", "À"},
	{"Ã‚", "Â"},
	{"Ã”", "Ô"},
	{"Ã™", "Ù"},
	{"Ã›", "Û"},
	{"ÃŽ", "Î"},
	{"Ã\u008f", "Ï"},
	{"Ã‡", "Ç"},
	{"Å’", "Œ"},
	{"\ufffd", "e"},
}

var mojibakeReplacer = newMojibakeReplacer()

func newMojibakeReplacer() *strings.Replacer {
	pairs := make([]string, 0, len(mojibakeTable)*2)
	for _, p := range mojibakeTable {
		pairs = append(pairs, p[0], p[1])
	}
	return strings.NewReplacer(pairs...)
}

// FixEncoding repairs text whose UTF-8 bytes were decoded as Windows-1252.
// Unknown sequences pass through unchanged. The result is stable under
// repeated application.
func FixEncoding(text string) string {
	return mojibakeReplacer.Replace(text)
}

const utf8BOM = "\ufeff"

// DecodeText turns raw file bytes into repaired text. Input that is not
// valid UTF-8 is treated as Windows-1252.
func DecodeText(data []byte) string {
	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else if decoded, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
		text = string(decoded)
	} else {
		text = strings.ToValidUTF8(string(data), "\ufffd")
	}
	return FixEncoding(strings.TrimPrefix(text, utf8BOM))
}
