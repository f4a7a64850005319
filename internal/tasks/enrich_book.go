package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookie/internal/logging"
	"github.com/mrlokans/bookie/internal/metadata"
)

// BookEnricher is the part of metadata.Enricher the queues need.
type BookEnricher interface {
	EnrichBook(ctx context.Context, bookID uint) (*metadata.EnrichmentResult, error)
	EnrichAllMissing(ctx context.Context) (*metadata.BulkEnrichmentResult, error)
}

var _ BookEnricher = (*metadata.Enricher)(nil)

// EnrichBookTask fills missing metadata for a single book.
type EnrichBookTask struct {
	BookID uint `json:"book_id"`
	UserID uint `json:"user_id"`
}

// Config returns the queue configuration for book enrichment tasks.
func (t EnrichBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_book",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention:   finishedRetention(),
	}
}

// EnrichBookProcessor creates a processor function for EnrichBookTask.
func EnrichBookProcessor(enricher BookEnricher) backlite.QueueProcessor[EnrichBookTask] {
	return func(ctx context.Context, task EnrichBookTask) error {
		if enricher == nil {
			return fmt.Errorf("enricher not configured")
		}

		result, err := enricher.EnrichBook(ctx, task.BookID)
		if err != nil {
			return fmt.Errorf("enrich book %d: %w", task.BookID, err)
		}

		event := logging.Info().Uint("book_id", task.BookID).Str("title", result.Book.Title)
		if len(result.FieldsUpdated) > 0 {
			event.Strs("fields", result.FieldsUpdated).Str("method", result.SearchMethod).Msg("book enriched")
		} else {
			event.Bool("matched", result.Matched).Msg("no metadata updates needed")
		}
		return nil
	}
}

// NewEnrichBookQueue creates a backlite queue for book enrichment tasks.
func NewEnrichBookQueue(enricher BookEnricher) backlite.Queue {
	return backlite.NewQueue(EnrichBookProcessor(enricher))
}

// EnrichMissingTask backfills every book that has never been enriched.
type EnrichMissingTask struct {
	TriggeredBy uint `json:"triggered_by"`
}

// Config returns the queue configuration for the backfill. A long run is
// not retried; the next schedule picks up what is left.
func (t EnrichMissingTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "enrich_missing",
		MaxAttempts: 1,
		Timeout:     60 * time.Minute,
		Retention:   finishedRetention(),
	}
}

// EnrichMissingProcessor creates a processor function for EnrichMissingTask.
func EnrichMissingProcessor(enricher BookEnricher) backlite.QueueProcessor[EnrichMissingTask] {
	return func(ctx context.Context, task EnrichMissingTask) error {
		if enricher == nil {
			return fmt.Errorf("enricher not configured")
		}

		result, err := enricher.EnrichAllMissing(ctx)
		if errors.Is(err, metadata.ErrSyncRunning) {
			logging.Info().Msg("metadata backfill already running, skipping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("enrich missing books: %w", err)
		}

		logging.Info().
			Uint("triggered_by", task.TriggeredBy).
			Int("total", result.TotalBooks).
			Int("enriched", result.Enriched).
			Int("failed", result.Failed).
			Int("skipped", result.Skipped).
			Msg("metadata backfill finished")
		return nil
	}
}

// NewEnrichMissingQueue creates a backlite queue for the metadata backfill.
func NewEnrichMissingQueue(enricher BookEnricher) backlite.Queue {
	return backlite.NewQueue(EnrichMissingProcessor(enricher))
}
