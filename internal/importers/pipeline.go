package importers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
	"github.com/mrlokans/bookie/internal/metadata"
)

// LibraryStore is the persistence the merge step needs.
type LibraryStore interface {
	// FindBook matches by ISBN or by exact (title, author); nil when absent.
	FindBook(isbn *string, title, author string) (*entities.Book, error)
	// CreateBook inserts book. When another writer already holds the same
	// unique key it loads that row into book and returns false.
	CreateBook(book *entities.Book) (bool, error)
	UpdateBookMetadata(id uint, fields metadata.BookUpdateFields) error
	// FindUserBook returns nil when the user has no record for the book.
	FindUserBook(userID, bookID uint) (*entities.UserBook, error)
	// CreateUserBook inserts ub and returns false if (user, book) already exists.
	CreateUserBook(ub *entities.UserBook) (bool, error)
}

// Config tunes the merge step.
type Config struct {
	// Workers is the number of rows merged concurrently. 1 processes rows
	// strictly in file order.
	Workers int
	// RowTimeout bounds one row including the metadata lookup. Zero disables it.
	RowTimeout time.Duration
}

// Pipeline merges mapped rows into a user's library:
// parse → map → find or create book → enrich → create reading record.
type Pipeline struct {
	store    LibraryStore
	enricher metadata.Provider
	cfg      Config
	locks    *keyedMutex
	now      func() time.Time
}

// NewPipeline creates a pipeline. enricher may be nil to skip metadata lookups.
func NewPipeline(store LibraryStore, enricher metadata.Provider, cfg Config) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Pipeline{
		store:    store,
		enricher: enricher,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// ImportFile parses raw file bytes and imports every kept row for userID.
// It returns ErrNoRows when the file holds nothing importable.
func (p *Pipeline) ImportFile(ctx context.Context, userID uint, filename string, data []byte) (ImportResult, error) {
	parsed, format, err := ParseFile(filename, data)
	if err != nil {
		return ImportResult{}, err
	}
	if len(parsed.Rows) == 0 {
		return ImportResult{Dropped: parsed.Dropped}, ErrNoRows
	}

	books := make([]MappedBook, len(parsed.Rows))
	for i, row := range parsed.Rows {
		books[i] = MapRow(row)
	}

	result := p.Import(ctx, userID, books, string(format))
	result.Dropped = parsed.Dropped
	return result, nil
}

// Import merges books into the library of userID. A failing row is
// recorded and never stops the others.
func (p *Pipeline) Import(ctx context.Context, userID uint, books []MappedBook, source string) ImportResult {
	importID := uuid.NewString()
	log := logging.With().Str("import_id", importID).Uint("user_id", userID).Logger()
	log.Info().Int("rows", len(books)).Int("workers", p.cfg.Workers).Str("source", source).Msg("import started")
	started := p.now()

	stats := &ImportStats{}
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)
	for _, b := range books {
		g.Go(func() error {
			p.importRow(ctx, userID, b, source, stats)
			return nil
		})
	}
	_ = g.Wait()

	result := stats.Result(len(books), 0)
	log.Info().
		Int("imported", result.Imported).
		Int("duplicates", result.Duplicates).
		Int("errors", result.Errors).
		Dur("elapsed", time.Since(started)).
		Msg("import finished")
	return result
}

type rowOutcome int

const (
	rowImported rowOutcome = iota
	rowDuplicate
)

func (p *Pipeline) importRow(ctx context.Context, userID uint, b MappedBook, source string, stats *ImportStats) {
	if !b.HasTitle() {
		stats.recordSkipped()
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("title", b.DisplayTitle()).Msg("import row panicked")
			stats.recordFailure(b.DisplayTitle(), fmt.Errorf("internal error: %v", r))
		}
	}()

	if p.cfg.RowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RowTimeout)
		defer cancel()
	}

	outcome, err := p.mergeRow(ctx, userID, b, source)
	switch {
	case err != nil:
		logging.Warn().Err(err).Str("title", b.DisplayTitle()).Msg("import row failed")
		stats.recordFailure(b.DisplayTitle(), err)
	case outcome == rowDuplicate:
		stats.recordDuplicate()
	default:
		stats.recordImported()
	}
}

func (p *Pipeline) mergeRow(ctx context.Context, userID uint, b MappedBook, source string) (rowOutcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	book, err := p.resolveBook(ctx, b)
	if err != nil {
		return 0, err
	}

	existing, err := p.store.FindUserBook(userID, book.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up reading record: %w", err)
	}
	if existing != nil {
		return rowDuplicate, nil
	}

	ub := &entities.UserBook{
		UserID:   userID,
		BookID:   book.ID,
		Status:   b.Status,
		Rating:   b.Rating,
		Review:   b.Review,
		Notes:    ComposeNotes(b),
		DateRead: ParseReadDate(b.DateRead),
		Source:   source,
	}
	created, err := p.store.CreateUserBook(ub)
	if err != nil {
		return 0, fmt.Errorf("failed to create reading record: %w", err)
	}
	if !created {
		return rowDuplicate, nil
	}
	return rowImported, nil
}

// resolveBook finds the canonical book for b or creates and enriches it.
// Lookup and insert run under per-key locks so concurrent rows cannot both
// create the same book.
func (p *Pipeline) resolveBook(ctx context.Context, b MappedBook) (*entities.Book, error) {
	title := *b.Title

	unlock := p.locks.LockAll(bookLockKeys(title, b.Author, b.ISBN)...)
	book, created, err := p.findOrCreateBook(title, b)
	unlock()
	if err != nil {
		return nil, err
	}

	if created && p.enricher != nil {
		if err := p.enrichNewBook(ctx, book); err != nil {
			return nil, fmt.Errorf("metadata enrichment failed: %w", err)
		}
	}
	return book, nil
}

func (p *Pipeline) findOrCreateBook(title string, b MappedBook) (*entities.Book, bool, error) {
	book, err := p.store.FindBook(b.ISBN, title, b.Author)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up book: %w", err)
	}
	if book != nil {
		return book, false, nil
	}

	book = &entities.Book{
		Title:     title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		Publisher: b.Publisher,
		Pages:     b.Pages,
		Year:      b.Year,
		Genres:    strings.Join(b.Genres, ", "),
		Language:  b.Language,
	}
	created, err := p.store.CreateBook(book)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create book: %w", err)
	}
	return book, created, nil
}

// enrichNewBook fills the gaps of a freshly created book. Data supplied by
// the import always wins over the provider.
func (p *Pipeline) enrichNewBook(ctx context.Context, book *entities.Book) error {
	meta, err := p.enricher.Enrich(ctx, metadata.NewBookQuery(book.ISBN, book.Title, book.Author))
	if err != nil {
		return err
	}

	updates, fields := metadata.BuildUpdates(book, meta)
	now := p.now()
	updates.MetadataFetchedAt = &now
	if err := p.store.UpdateBookMetadata(book.ID, updates); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	if len(fields) > 0 {
		logging.Debug().Uint("book_id", book.ID).Strs("fields", fields).Msg("book enriched")
	}
	return nil
}

// bookLockKeys always starts with the title/author key so every caller
// acquires locks in the same order.
func bookLockKeys(title, author string, isbn *string) []string {
	keys := []string{"ta:" + title + "\x00" + author}
	if isbn != nil {
		keys = append(keys, "isbn:"+*isbn)
	}
	return keys
}
