package exporters

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/bookie/internal/entities"
)

// LibraryExporter writes a user's library in one file format.
type LibraryExporter interface {
	Export(w io.Writer, entries []entities.UserBook) (ExportResult, error)
	ContentType() string
	Extension() string
}

type ExportResult struct {
	BooksProcessed int `json:"books_processed"`
	BooksFailed    int `json:"books_failed"`
}

// Columns are the header names written by every exporter. Each is an alias
// the importer recognises, so an export can be fed back in.
var Columns = []string{
	"titre", "auteur", "isbn", "editeur", "pages", "annee",
	"note", "statut", "date de lecture", "genres", "commentaire",
}

// statusLabels are chosen so the importer maps each back to its status.
var statusLabels = map[entities.ReadingStatus]string{
	entities.StatusRead:     "lu",
	entities.StatusReading:  "en cours",
	entities.StatusPAL:      "pal",
	entities.StatusWishlist: "souhaité",
	entities.StatusToRead:   "à lire",
}

// StatusLabel returns the French label written for status.
func StatusLabel(status entities.ReadingStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return statusLabels[entities.StatusToRead]
}

// ForFormat returns the exporter for "csv" or "xlsx".
func ForFormat(format string) (LibraryExporter, error) {
	switch strings.ToLower(format) {
	case "", "csv":
		return NewCSVExporter(), nil
	case "xlsx":
		return NewXLSXExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// FileName builds a dated download name such as bookie-2024-06-01.csv.
func FileName(exporter LibraryExporter, now time.Time) string {
	return "bookie-" + now.Format("2006-01-02") + exporter.Extension()
}

// record flattens one entry into Columns order. Line breaks are folded
// because the importer reads one record per line.
func record(entry entities.UserBook) []string {
	book := entry.Book
	values := []string{
		book.Title,
		book.Author,
		derefString(book.ISBN),
		book.Publisher,
		formatInt(book.Pages),
		formatInt(book.Year),
		formatRating(entry.Rating),
		StatusLabel(entry.Status),
		formatDate(entry.DateRead),
		strings.Join(book.GenreList(), ", "),
		entry.Review,
	}
	for i, v := range values {
		values[i] = flattenLines(v)
	}
	return values
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// formatRating uses a decimal comma, e.g. 15,5.
func formatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strings.Replace(strconv.FormatFloat(*r, 'f', -1, 64), ".", ",", 1)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	if t.Hour() != 0 || t.Minute() != 0 {
		return t.Format("02/01/2006 15:04")
	}
	return t.Format("02/01/2006")
}

var lineFolder = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func flattenLines(s string) string {
	return lineFolder.Replace(s)
}
