package importers

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/bookie/internal/entities"
)

// MappedBook is one import row normalized onto the library schema.
type MappedBook struct {
	Title        *string // nil when the row has no usable title
	Author       string
	ISBN         *string
	Publisher    string
	Pages        *int
	Year         *int
	Rating       *float64 // 0-20
	Status       entities.ReadingStatus
	DateRead     string
	DatePurchase string
	Review       string
	Notes        string
	Genres       []string
	Language     string
	Collection   string
	BookType     string
}

// HasTitle reports whether the row can become a catalog entry.
func (b MappedBook) HasTitle() bool {
	return b.Title != nil && strings.TrimSpace(*b.Title) != ""
}

// DisplayTitle is used in error messages and logs.
func (b MappedBook) DisplayTitle() string {
	if b.HasTitle() {
		return *b.Title
	}
	return "(sans titre)"
}

// MapRow normalizes a row using DefaultAliases.
func MapRow(row Row) MappedBook {
	return DefaultAliases.MapRow(row)
}

// MapRow normalizes a row using the receiver's alias lists.
func (a AliasTable) MapRow(row Row) MappedBook {
	get := func(names []string) string {
		return strings.TrimSpace(row.Field(names...))
	}

	b := MappedBook{
		Author:       get(a.Author),
		ISBN:         SanitizeISBN(get(a.ISBN)),
		Publisher:    get(a.Publisher),
		Pages:        parseLeadingInt(get(a.Pages)),
		Year:         ParseYear(get(a.Year)),
		DateRead:     get(a.DateRead),
		DatePurchase: get(a.DatePurchase),
		Review:       get(a.Review),
		Notes:        get(a.Notes),
		Language:     get(a.Language),
		Collection:   get(a.Collection),
		BookType:     get(a.BookType),
	}

	if title := get(a.Title); title != "" {
		b.Title = &title
	}
	if b.Author == "" {
		b.Author = entities.UnknownAuthor
	}

	rating := get(a.Rating)
	if rating == "" {
		rating = get(a.RatingSecondary)
	}
	b.Rating = ParseRating(rating)

	genres := get(a.Genres)
	if genres == "" {
		genres = joinNonBlank(", ", get(a.Genre1), get(a.Genre2))
	}
	b.Genres = SplitGenres(genres)

	b.Status = MapStatus(get(a.Status), b.DateRead)
	return b
}

// SanitizeISBN keeps digits and the ISBN-10 check character X. Results
// outside 10 to 13 characters are rejected.
func SanitizeISBN(raw string) *string {
	var sb strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == 'x' || r == 'X':
			sb.WriteByte('X')
		}
	}
	isbn := sb.String()
	if len(isbn) < 10 || len(isbn) > 13 {
		return nil
	}
	return &isbn
}

var leadingNumber = regexp.MustCompile(`^[-+]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][-+]?\d+)?`)

// ParseRating reads a score on the 0-20 scale. A comma decimal separator is
// accepted, trailing text such as "/20" is ignored, and values are clamped.
func ParseRating(raw string) *float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	m := leadingNumber.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if (err != nil && !errors.Is(err, strconv.ErrRange)) || math.IsNaN(v) {
		return nil
	}
	v = math.Max(0, math.Min(20, v))
	return &v
}

// SplitGenres splits on comma, semicolon or slash and drops empty parts.
func SplitGenres(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '/'
	})
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			genres = append(genres, p)
		}
	}
	return genres
}

type statusRule struct {
	status   entities.ReadingStatus
	contains []string
}

// statusRules are checked in order against the lower-cased status label.
var statusRules = []statusRule{
	{entities.StatusRead, []string{"lu", "read", "terminé"}},
	{entities.StatusReading, []string{"cours", "reading", "en cours"}},
	{entities.StatusPAL, []string{"pal", "pile"}},
	{entities.StatusWishlist, []string{"souhait", "wish"}},
}

// MapStatus derives the reading status. A completion date always means the
// book was read, whatever the status label says.
func MapStatus(label, dateRead string) entities.ReadingStatus {
	if strings.TrimSpace(dateRead) != "" {
		return entities.StatusRead
	}
	label = strings.ToLower(label)
	for _, rule := range statusRules {
		for _, needle := range rule.contains {
			if strings.Contains(label, needle) {
				return rule.status
			}
		}
	}
	return entities.StatusToRead
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// ParseYear extracts the first four-digit run, e.g. from "2005-03-01".
func ParseYear(raw string) *int {
	m := yearPattern.FindString(raw)
	if m == "" {
		return nil
	}
	y, err := strconv.Atoi(m)
	if err != nil || y == 0 {
		return nil
	}
	return &y
}

var leadingInt = regexp.MustCompile(`^\d+`)

func parseLeadingInt(raw string) *int {
	m := leadingInt.FindString(strings.TrimSpace(raw))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

var readDatePattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(\d{1,2}):(\d{2}))?$`)

// ParseReadDate accepts DD/MM/YYYY with an optional HH:MM. Anything else,
// including impossible dates such as 31/02, yields nil.
func ParseReadDate(raw string) *time.Time {
	m := readDatePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return nil
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	var hour, minute int
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	if month < 1 || month > 12 || hour > 23 || minute > 59 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}

// ComposeNotes appends the fields that have no dedicated column to the
// row's own notes, one "Label: value" line each.
func ComposeNotes(b MappedBook) string {
	var lines []string
	if b.Notes != "" {
		lines = append(lines, b.Notes)
	}
	extra := []struct{ label, value string }{
		{"Type", b.BookType},
		{"Collection", b.Collection},
		{"Langue", b.Language},
		{"Date d'achat", b.DatePurchase},
	}
	for _, e := range extra {
		if e.value != "" {
			lines = append(lines, e.label+": "+e.value)
		}
	}
	return strings.Join(lines, "\n")
}

func joinNonBlank(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
