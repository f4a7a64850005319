package scheduler

import (
	"context"
	"fmt"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookie/internal/config"
	"github.com/mrlokans/bookie/internal/tasks"
)

const (
	JobMetadataBackfill = "metadata_backfill"
	JobAuditCleanup     = "audit_cleanup"
)

// Enqueuer hands tasks to the background queue. *tasks.Client satisfies it.
type Enqueuer interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
}

var _ Enqueuer = (*tasks.Client)(nil)

// Maintenance holds what the periodic jobs act on. When Queue is nil the
// jobs run the work inline through the task processors.
type Maintenance struct {
	Queue    Enqueuer
	Enricher tasks.BookEnricher
	Cleaner  tasks.AuditEventCleaner
}

// RegisterMaintenance schedules the metadata backfill (when enabled) and
// the audit cleanup.
func RegisterMaintenance(s *Scheduler, cfg config.Scheduler, auditCfg config.Audit, m Maintenance) error {
	if cfg.MetadataBackfillEnabled && m.Enricher != nil {
		if err := s.Add(JobMetadataBackfill, cfg.MetadataBackfillSchedule, m.backfillJob()); err != nil {
			return err
		}
	}

	if m.Cleaner != nil && cfg.AuditCleanupSchedule != "" {
		if err := s.Add(JobAuditCleanup, cfg.AuditCleanupSchedule, m.cleanupJob(auditCfg.RetentionDays)); err != nil {
			return err
		}
	}
	return nil
}

func (m Maintenance) backfillJob() Job {
	return func(ctx context.Context) error {
		task := tasks.EnrichMissingTask{}
		if m.Queue != nil {
			return m.enqueue(task)
		}
		return tasks.EnrichMissingProcessor(m.Enricher)(ctx, task)
	}
}

func (m Maintenance) cleanupJob(retentionDays int) Job {
	return func(ctx context.Context) error {
		task := tasks.CleanupAuditEventsTask{RetentionDays: retentionDays}
		if m.Queue != nil {
			return m.enqueue(task)
		}
		return tasks.CleanupAuditEventsProcessor(m.Cleaner)(ctx, task)
	}
}

func (m Maintenance) enqueue(task backlite.Task) error {
	if _, err := m.Queue.Enqueue(task); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Config().Name, err)
	}
	return nil
}
