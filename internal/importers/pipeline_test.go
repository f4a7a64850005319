package importers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/metadata"
)

// memoryStore is an in-memory LibraryStore with the same uniqueness rules
// as the database: one book per ISBN, one per (title, author) without ISBN,
// one reading record per (user, book).
type memoryStore struct {
	mu        sync.Mutex
	books     []*entities.Book
	userBooks []*entities.UserBook
	updates   map[uint]metadata.BookUpdateFields

	createBookCalls int
	findBookErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{updates: make(map[uint]metadata.BookUpdateFields)}
}

func (m *memoryStore) match(isbn *string, title, author string) *entities.Book {
	for _, b := range m.books {
		if isbn != nil && b.ISBN != nil && *b.ISBN == *isbn {
			return b
		}
		if b.Title == title && b.Author == author {
			return b
		}
	}
	return nil
}

func (m *memoryStore) FindBook(isbn *string, title, author string) (*entities.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findBookErr != nil {
		return nil, m.findBookErr
	}
	if b := m.match(isbn, title, author); b != nil {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryStore) CreateBook(book *entities.Book) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createBookCalls++
	if existing := m.match(book.ISBN, book.Title, book.Author); existing != nil {
		*book = *existing
		return false, nil
	}
	book.ID = uint(len(m.books) + 1)
	cp := *book
	m.books = append(m.books, &cp)
	return true, nil
}

func (m *memoryStore) UpdateBookMetadata(id uint, fields metadata.BookUpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[id] = fields
	for _, b := range m.books {
		if b.ID != id {
			continue
		}
		if fields.CoverURL != nil {
			b.CoverURL = *fields.CoverURL
		}
		if fields.Pages != nil {
			b.Pages = fields.Pages
		}
		b.MetadataFetchedAt = fields.MetadataFetchedAt
	}
	return nil
}

func (m *memoryStore) FindUserBook(userID, bookID uint) (*entities.UserBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ub := range m.userBooks {
		if ub.UserID == userID && ub.BookID == bookID {
			return ub, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) CreateUserBook(ub *entities.UserBook) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.userBooks {
		if existing.UserID == ub.UserID && existing.BookID == ub.BookID {
			return false, nil
		}
	}
	ub.ID = uint(len(m.userBooks) + 1)
	m.userBooks = append(m.userBooks, ub)
	return true, nil
}

func (m *memoryStore) bookCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.books)
}

// stubProvider answers every query with meta, or fails for titles in failFor.
type stubProvider struct {
	mu      sync.Mutex
	meta    *metadata.BookMetadata
	failFor map[string]bool
	queries []metadata.BookQuery
	delay   time.Duration
}

func (s *stubProvider) Enrich(ctx context.Context, q metadata.BookQuery) (*metadata.BookMetadata, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.failFor[q.Title] {
		return nil, errors.New("upstream unavailable")
	}
	return s.meta, nil
}

func mapped(title, author string, isbn *string) MappedBook {
	b := MappedBook{Author: author, ISBN: isbn, Status: entities.StatusToRead}
	if title != "" {
		b.Title = &title
	}
	return b
}

func TestPipeline_ImportFile_EndToEnd(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, nil, Config{Workers: 1})
	csv := "titre;auteur;isbn;note;date de lecture\n" +
		"1984;George Orwell;978-0-452-28423-4;16;15/03/2024\n" +
		";Personne;;;\n" +
		"Dune;Frank Herbert;;18,5;\n"

	result, err := p.ImportFile(context.Background(), 1, "livraddict.csv", []byte(csv))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Duplicates)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 1, result.Dropped)
	assert.Empty(t, result.ErrorMessages)

	require.Len(t, store.userBooks, 2)
	first := store.userBooks[0]
	assert.Equal(t, entities.StatusRead, first.Status)
	require.NotNil(t, first.DateRead)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *first.DateRead)
	assert.Equal(t, "csv", first.Source)
	require.NotNil(t, store.userBooks[1].Rating)
	assert.Equal(t, 18.5, *store.userBooks[1].Rating)

	require.NotNil(t, store.books[0].ISBN)
	assert.Equal(t, "9780452284234", *store.books[0].ISBN)
}

func TestPipeline_ImportFile_NoRows(t *testing.T) {
	p := NewPipeline(newMemoryStore(), nil, Config{})

	result, err := p.ImportFile(context.Background(), 1, "empty.csv", []byte("titre;auteur\n;x\n"))

	assert.ErrorIs(t, err, ErrNoRows)
	assert.Equal(t, 1, result.Dropped)
}

func TestPipeline_Import_IsIdempotent(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, nil, Config{Workers: 1})
	books := []MappedBook{
		mapped("1984", "George Orwell", strPtr("9780452284234")),
		mapped("Dune", "Frank Herbert", nil),
	}

	first := p.Import(context.Background(), 7, books, "csv")
	second := p.Import(context.Background(), 7, books, "csv")

	assert.Equal(t, 2, first.Imported)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Errors)
	assert.Len(t, store.books, 2)
	assert.Len(t, store.userBooks, 2)
}

func TestPipeline_Import_SharesCanonicalBookAcrossUsers(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, nil, Config{Workers: 1})
	books := []MappedBook{mapped("Dune", "Frank Herbert", nil)}

	p.Import(context.Background(), 1, books, "csv")
	result := p.Import(context.Background(), 2, books, "csv")

	assert.Equal(t, 1, result.Imported)
	assert.Len(t, store.books, 1)
	assert.Len(t, store.userBooks, 2)
}

func TestPipeline_Import_MatchesByISBNBeforeTitle(t *testing.T) {
	store := newMemoryStore()
	p := NewPipeline(store, nil, Config{Workers: 1})

	p.Import(context.Background(), 1, []MappedBook{mapped("1984", "George Orwell", strPtr("9780452284234"))}, "csv")
	result := p.Import(context.Background(), 1, []MappedBook{mapped("Nineteen Eighty-Four", "Orwell", strPtr("9780452284234"))}, "csv")

	assert.Equal(t, 1, result.Duplicates)
	assert.Len(t, store.books, 1)
}

func TestPipeline_Import_EnrichmentFailureIsolated(t *testing.T) {
	store := newMemoryStore()
	provider := &stubProvider{failFor: map[string]bool{"Broken": true}}
	p := NewPipeline(store, provider, Config{Workers: 1})
	books := []MappedBook{
		mapped("Dune", "Frank Herbert", nil),
		mapped("Broken", "Someone", nil),
		mapped("1984", "George Orwell", nil),
	}

	result := p.Import(context.Background(), 1, books, "csv")

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorMessages, 1)
	assert.True(t, strings.HasPrefix(result.ErrorMessages[0], "Broken: "))
	assert.Contains(t, result.ErrorMessages[0], "upstream unavailable")
	assert.Len(t, store.userBooks, 2)
}

func TestPipeline_Import_EnrichmentFillsNewBooksOnly(t *testing.T) {
	store := newMemoryStore()
	cover := "https://books.google.com/cover.jpg"
	pages := 412
	provider := &stubProvider{meta: &metadata.BookMetadata{CoverURL: &cover, PageCount: &pages}}
	p := NewPipeline(store, provider, Config{Workers: 1})

	book := mapped("Dune", "Frank Herbert", nil)
	book.Pages = intPtr(600)
	p.Import(context.Background(), 1, []MappedBook{book}, "csv")
	p.Import(context.Background(), 2, []MappedBook{book}, "csv")

	require.Len(t, provider.queries, 1)
	assert.Equal(t, "Dune", provider.queries[0].Title)

	fields := store.updates[1]
	assert.Equal(t, &cover, fields.CoverURL)
	assert.Nil(t, fields.Pages, "imported page count must not be overwritten")
	assert.NotNil(t, fields.MetadataFetchedAt)
	assert.Equal(t, 600, *store.books[0].Pages)
}

func TestPipeline_Import_UnknownAuthorNotSentToProvider(t *testing.T) {
	provider := &stubProvider{}
	p := NewPipeline(newMemoryStore(), provider, Config{Workers: 1})

	p.Import(context.Background(), 1, []MappedBook{mapped("Anonyme", entities.UnknownAuthor, nil)}, "csv")

	require.Len(t, provider.queries, 1)
	assert.Equal(t, "", provider.queries[0].Author)
}

func TestPipeline_Import_RowsWithoutTitleAreSkippedSilently(t *testing.T) {
	p := NewPipeline(newMemoryStore(), nil, Config{Workers: 1})

	result := p.Import(context.Background(), 1, []MappedBook{mapped("", "Nobody", nil), mapped("Dune", "Frank Herbert", nil)}, "csv")

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.ErrorMessages)
}

func TestPipeline_Import_StoreErrorRecorded(t *testing.T) {
	store := newMemoryStore()
	store.findBookErr = errors.New("database is locked")
	p := NewPipeline(store, nil, Config{Workers: 1})

	result := p.Import(context.Background(), 1, []MappedBook{mapped("Dune", "Frank Herbert", nil)}, "csv")

	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorMessages, 1)
	assert.Contains(t, result.ErrorMessages[0], "database is locked")
}

func TestPipeline_Import_ErrorMessagesCapped(t *testing.T) {
	failFor := make(map[string]bool)
	var books []MappedBook
	for i := 0; i < MaxErrorMessages+5; i++ {
		title := fmt.Sprintf("Broken %d", i)
		failFor[title] = true
		books = append(books, mapped(title, "Someone", nil))
	}
	p := NewPipeline(newMemoryStore(), &stubProvider{failFor: failFor}, Config{Workers: 3})

	result := p.Import(context.Background(), 1, books, "csv")

	assert.Equal(t, MaxErrorMessages+5, result.Errors)
	assert.Len(t, result.ErrorMessages, MaxErrorMessages)
}

func TestPipeline_Import_ConcurrentRowsDoNotDuplicateBooks(t *testing.T) {
	store := newMemoryStore()
	provider := &stubProvider{delay: 5 * time.Millisecond}
	p := NewPipeline(store, provider, Config{Workers: 8})

	var books []MappedBook
	for i := 0; i < 20; i++ {
		books = append(books, mapped("Dune", "Frank Herbert", nil))
		books = append(books, mapped("1984", "George Orwell", strPtr("9780452284234")))
	}

	result := p.Import(context.Background(), 1, books, "csv")

	assert.Equal(t, 40, result.Total)
	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 38, result.Duplicates)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 2, store.bookCount())
	assert.Len(t, provider.queries, 2)
}

func TestPipeline_Import_RowTimeout(t *testing.T) {
	provider := &stubProvider{delay: time.Second}
	p := NewPipeline(newMemoryStore(), provider, Config{Workers: 1, RowTimeout: 10 * time.Millisecond})

	result := p.Import(context.Background(), 1, []MappedBook{mapped("Slow", "Someone", nil)}, "csv")

	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorMessages, 1)
	assert.Contains(t, result.ErrorMessages[0], context.DeadlineExceeded.Error())
}

func TestPipeline_Import_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newMemoryStore()
	p := NewPipeline(store, nil, Config{Workers: 2})

	result := p.Import(ctx, 1, []MappedBook{mapped("A", "x", nil), mapped("B", "y", nil)}, "csv")

	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Errors)
	assert.Zero(t, store.bookCount())
}

func TestImportResult_Summary(t *testing.T) {
	r := ImportResult{Imported: 12, Duplicates: 3, Errors: 1}

	assert.Equal(t, "12 livres importés, 3 doublons, 1 erreurs", r.Summary())
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.LockAll("a", "b")
	assert.Len(t, k.locks, 2)
	unlock()
	assert.Empty(t, k.locks)
}
