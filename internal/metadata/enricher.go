package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/logging"
)

// ErrSyncRunning is returned when a bulk enrichment is already in progress.
var ErrSyncRunning = errors.New("metadata sync is already in progress")

// Provider looks up metadata for a book.
type Provider interface {
	Enrich(ctx context.Context, q BookQuery) (*BookMetadata, error)
}

// BookUpdater defines the interface for updating books in the database.
type BookUpdater interface {
	GetBookByID(id uint) (*entities.Book, error)
	UpdateBookMetadata(id uint, fields BookUpdateFields) error
	GetBooksMissingMetadata() ([]entities.Book, error)
}

// ProgressReporter reports sync progress updates.
type ProgressReporter interface {
	StartSync(totalItems int) error
	UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error
	CompleteSync(succeeded bool, errorMsg string) error
	IsSyncRunning() (bool, error)
}

// BookUpdateFields lists the catalog fields enrichment may set. Nil means
// leave unchanged.
type BookUpdateFields struct {
	CoverURL          *string
	Description       *string
	Pages             *int
	Year              *int
	MetadataFetchedAt *time.Time
}

// IsEmpty reports whether no field would change.
func (f BookUpdateFields) IsEmpty() bool {
	return f.CoverURL == nil && f.Description == nil && f.Pages == nil && f.Year == nil && f.MetadataFetchedAt == nil
}

// BuildUpdates returns the fields meta can fill on book. Populated fields
// are never overwritten.
func BuildUpdates(book *entities.Book, meta *BookMetadata) (BookUpdateFields, []string) {
	var updates BookUpdateFields
	var fieldsUpdated []string
	if meta == nil {
		return updates, nil
	}

	if book.CoverURL == "" && meta.CoverURL != nil {
		updates.CoverURL = meta.CoverURL
		fieldsUpdated = append(fieldsUpdated, "cover_url")
	}
	if book.Description == "" && meta.Description != nil {
		updates.Description = meta.Description
		fieldsUpdated = append(fieldsUpdated, "description")
	}
	if book.Pages == nil && meta.PageCount != nil {
		updates.Pages = meta.PageCount
		fieldsUpdated = append(fieldsUpdated, "pages")
	}
	if book.Year == nil {
		if year := meta.PublishedYear(); year != nil {
			updates.Year = year
			fieldsUpdated = append(fieldsUpdated, "year")
		}
	}
	return updates, fieldsUpdated
}

// EnrichmentResult contains the result of an enrichment operation.
type EnrichmentResult struct {
	Book          *entities.Book `json:"book"`
	FieldsUpdated []string       `json:"fields_updated"`
	Source        string         `json:"source"`
	SearchMethod  string         `json:"search_method,omitempty"`
	Matched       bool           `json:"matched"`
}

// Enricher fills missing catalog metadata for books already in the database.
type Enricher struct {
	provider         Provider
	db               BookUpdater
	progressReporter ProgressReporter
	now              func() time.Time
}

// NewEnricher creates a new Enricher with the given metadata provider and database.
func NewEnricher(provider Provider, db BookUpdater) *Enricher {
	return &Enricher{
		provider: provider,
		db:       db,
		now:      time.Now,
	}
}

// SetProgressReporter sets the progress reporter for bulk operations (optional).
func (e *Enricher) SetProgressReporter(reporter ProgressReporter) {
	e.progressReporter = reporter
}

// EnrichBook looks the book up and fills whatever is still empty. The book
// is stamped as fetched even when nothing matched.
func (e *Enricher) EnrichBook(ctx context.Context, bookID uint) (*EnrichmentResult, error) {
	book, err := e.db.GetBookByID(bookID)
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}

	meta, err := e.provider.Enrich(ctx, NewBookQuery(book.ISBN, book.Title, book.Author))
	if err != nil {
		return nil, fmt.Errorf("metadata search failed: %w", err)
	}

	updates, fieldsUpdated := BuildUpdates(book, meta)
	now := e.now()
	updates.MetadataFetchedAt = &now

	if err := e.db.UpdateBookMetadata(bookID, updates); err != nil {
		return nil, fmt.Errorf("update book metadata: %w", err)
	}

	if len(fieldsUpdated) > 0 {
		book, err = e.db.GetBookByID(bookID)
		if err != nil {
			return nil, fmt.Errorf("refresh book: %w", err)
		}
	}

	result := &EnrichmentResult{
		Book:          book,
		FieldsUpdated: fieldsUpdated,
		Source:        "google_books",
		Matched:       meta != nil,
	}
	if meta != nil {
		result.SearchMethod = meta.Strategy
	}
	return result, nil
}

// BulkEnrichmentResult contains the summary of a bulk enrichment operation.
type BulkEnrichmentResult struct {
	TotalBooks int      `json:"total_books"`
	Enriched   int      `json:"enriched"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
}

// EnrichAllMissing enriches every book never looked up before.
func (e *Enricher) EnrichAllMissing(ctx context.Context) (*BulkEnrichmentResult, error) {
	if e.progressReporter != nil {
		running, err := e.progressReporter.IsSyncRunning()
		if err != nil {
			return nil, fmt.Errorf("check sync status: %w", err)
		}
		if running {
			return nil, ErrSyncRunning
		}
	}

	books, err := e.db.GetBooksMissingMetadata()
	if err != nil {
		return nil, fmt.Errorf("get books missing metadata: %w", err)
	}

	result := &BulkEnrichmentResult{TotalBooks: len(books)}

	if e.progressReporter != nil {
		if err := e.progressReporter.StartSync(len(books)); err != nil {
			return nil, fmt.Errorf("start sync progress: %w", err)
		}
	}

	for i, book := range books {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, "operation cancelled")
			if e.progressReporter != nil {
				_ = e.progressReporter.CompleteSync(false, "operation cancelled")
			}
			return result, err
		}

		if e.progressReporter != nil {
			_ = e.progressReporter.UpdateProgress(i, result.Enriched, result.Failed, result.Skipped, book.Title)
		}

		enrichResult, err := e.EnrichBook(ctx, book.ID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", book.Title, err))
			logging.Warn().Err(err).Uint("book_id", book.ID).Msg("backfill enrichment failed")
			continue
		}

		if len(enrichResult.FieldsUpdated) > 0 {
			result.Enriched++
		} else {
			result.Skipped++
		}
	}

	if e.progressReporter != nil {
		errorMsg := ""
		if len(result.Errors) > 0 {
			errorMsg = fmt.Sprintf("%d errors occurred", len(result.Errors))
		}
		_ = e.progressReporter.CompleteSync(result.Failed == 0, errorMsg)
	}

	logging.Info().
		Int("total", result.TotalBooks).
		Int("enriched", result.Enriched).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("metadata backfill finished")

	return result, nil
}
