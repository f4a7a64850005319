package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/metadata"
)

type fakeEnricher struct {
	bookIDs   []uint
	bookErr   error
	bulkCalls int
	bulkErr   error
}

func (f *fakeEnricher) EnrichBook(ctx context.Context, bookID uint) (*metadata.EnrichmentResult, error) {
	f.bookIDs = append(f.bookIDs, bookID)
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &metadata.EnrichmentResult{
		Book:          &entities.Book{Title: "Germinal"},
		FieldsUpdated: []string{"cover_url"},
		Matched:       true,
	}, nil
}

func (f *fakeEnricher) EnrichAllMissing(ctx context.Context) (*metadata.BulkEnrichmentResult, error) {
	f.bulkCalls++
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	return &metadata.BulkEnrichmentResult{TotalBooks: 2, Enriched: 2}, nil
}

type fakeCleaner struct {
	retention time.Duration
	err       error
}

func (f *fakeCleaner) DeleteOldEvents(retention time.Duration) (int64, error) {
	f.retention = retention
	return 3, f.err
}

func TestEnrichBookProcessor(t *testing.T) {
	enricher := &fakeEnricher{}
	process := EnrichBookProcessor(enricher)

	require.NoError(t, process(context.Background(), EnrichBookTask{BookID: 7}))
	assert.Equal(t, []uint{7}, enricher.bookIDs)
}

func TestEnrichBookProcessor_ErrorIsRetried(t *testing.T) {
	process := EnrichBookProcessor(&fakeEnricher{bookErr: errors.New("quota exceeded")})

	err := process(context.Background(), EnrichBookTask{BookID: 7})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "enrich book 7")
}

func TestEnrichBookProcessor_NilEnricher(t *testing.T) {
	err := EnrichBookProcessor(nil)(context.Background(), EnrichBookTask{BookID: 1})
	assert.Error(t, err)
}

func TestEnrichMissingProcessor(t *testing.T) {
	enricher := &fakeEnricher{}

	require.NoError(t, EnrichMissingProcessor(enricher)(context.Background(), EnrichMissingTask{}))
	assert.Equal(t, 1, enricher.bulkCalls)
}

func TestEnrichMissingProcessor_AlreadyRunningIsNotAFailure(t *testing.T) {
	enricher := &fakeEnricher{bulkErr: metadata.ErrSyncRunning}

	assert.NoError(t, EnrichMissingProcessor(enricher)(context.Background(), EnrichMissingTask{}))
}

func TestEnrichMissingProcessor_Error(t *testing.T) {
	enricher := &fakeEnricher{bulkErr: errors.New("database is locked")}

	assert.Error(t, EnrichMissingProcessor(enricher)(context.Background(), EnrichMissingTask{}))
}

func TestCleanupAuditEventsProcessor(t *testing.T) {
	tests := []struct {
		name string
		days int
		want time.Duration
	}{
		{"explicit retention", 30, 30 * 24 * time.Hour},
		{"default retention", 0, DefaultAuditRetentionDays * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaner := &fakeCleaner{}

			err := CleanupAuditEventsProcessor(cleaner)(context.Background(), CleanupAuditEventsTask{RetentionDays: tt.days})

			require.NoError(t, err)
			assert.Equal(t, tt.want, cleaner.retention)
		})
	}
}

func TestCleanupAuditEventsProcessor_Error(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("disk full")}

	assert.Error(t, CleanupAuditEventsProcessor(cleaner)(context.Background(), CleanupAuditEventsTask{}))
}
