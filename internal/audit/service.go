// Package audit records user-visible activity: imports, exports, metadata
// lookups and logins.
//
// Writes go through a buffered channel drained by one goroutine so request
// handlers never wait on the database. Close flushes what is queued.
package audit

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	auditRepo "github.com/mrlokans/bookie/internal/database/audit"
	"github.com/mrlokans/bookie/internal/entities"
	"github.com/mrlokans/bookie/internal/importers"
	"github.com/mrlokans/bookie/internal/logging"
)

const queueSize = 256

// RequestInfo carries the request details stored with an event.
type RequestInfo struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// Service provides high-level audit logging functionality.
type Service struct {
	repo   *auditRepo.Repository
	queue  chan *entities.AuditEvent
	done   chan struct{}
	closed bool
	mu     sync.RWMutex
}

// NewService creates a new audit service and starts its writer.
func NewService(repo *auditRepo.Repository) *Service {
	s := &Service{
		repo:  repo,
		queue: make(chan *entities.AuditEvent, queueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Service) run() {
	defer close(s.done)
	for event := range s.queue {
		if err := s.repo.LogEvent(event); err != nil {
			logging.Error().Err(err).Str("action", event.Action).Msg("failed to write audit event")
		}
	}
}

// Close stops accepting events and waits until queued ones are written.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

// Log records an event synchronously.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync queues an event. When the queue is full the event is written
// inline rather than dropped.
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logging.Warn().Str("action", event.Action).Msg("audit service closed, event dropped")
		return
	}
	select {
	case s.queue <- event:
	default:
		if err := s.repo.LogEvent(event); err != nil {
			logging.Error().Err(err).Str("action", event.Action).Msg("failed to write audit event")
		}
	}
}

// LogImport records the outcome of one import run.
func (s *Service) LogImport(userID uint, req RequestInfo, filename, format string, result importers.ImportResult, elapsed time.Duration, err error) {
	event := newEvent(userID, req, entities.AuditEventImport, format+"_import")
	event.EntityType = "user_book"
	event.DurationMs = elapsed.Milliseconds()
	event.Metadata = marshalMetadata(map[string]any{
		"filename":   filename,
		"imported":   result.Imported,
		"duplicates": result.Duplicates,
		"errors":     result.Errors,
		"total":      result.Total,
		"dropped":    result.Dropped,
	})

	switch {
	case err != nil:
		event.Status = entities.AuditStatusFailed
		event.Description = fmt.Sprintf("Import de %s échoué", filename)
		event.ErrorMsg = truncate(err.Error(), 500)
	case result.Errors > 0:
		event.Status = entities.AuditStatusPartial
		event.Description = result.Summary()
		if len(result.ErrorMessages) > 0 {
			event.ErrorMsg = truncate(result.ErrorMessages[0], 500)
		}
	default:
		event.Description = result.Summary()
	}

	s.LogAsync(event)
}

// LogExport records a library export.
func (s *Service) LogExport(userID uint, req RequestInfo, format string, count int, err error) {
	event := newEvent(userID, req, entities.AuditEventExport, format+"_export")
	event.Description = fmt.Sprintf("Exported %d books as %s", count, format)
	event.Metadata = marshalMetadata(map[string]any{"books_count": count})
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(event)
}

// LogMetadata records a metadata enrichment of one book or a backfill run
// (bookID zero).
func (s *Service) LogMetadata(userID uint, req RequestInfo, bookID uint, description string, err error) {
	event := newEvent(userID, req, entities.AuditEventMetadata, "book_enrich")
	event.Description = description
	event.EntityType = "book"
	if bookID > 0 {
		event.EntityID = &bookID
	} else {
		event.Action = "metadata_backfill"
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(event)
}

// LogLogin records a login attempt. userID is zero for unknown accounts.
func (s *Service) LogLogin(userID uint, req RequestInfo, username string, success bool) {
	event := newEvent(userID, req, entities.AuditEventAuth, "login")
	event.Description = "Login as " + username
	if !success {
		event.Status = entities.AuditStatusFailed
	}
	s.LogAsync(event)
}

// LogLogout records a logout.
func (s *Service) LogLogout(userID uint, req RequestInfo) {
	s.LogAsync(newEvent(userID, req, entities.AuditEventAuth, "logout"))
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(filter auditRepo.EventFilter) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(filter)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func newEvent(userID uint, req RequestInfo, eventType entities.AuditEventType, action string) *entities.AuditEvent {
	return &entities.AuditEvent{
		RequestID: req.RequestID,
		UserID:    userID,
		EventType: eventType,
		Action:    action,
		IPAddress: req.IPAddress,
		UserAgent: truncate(req.UserAgent, 500),
		Status:    entities.AuditStatusSuccess,
		CreatedAt: time.Now(),
	}
}

func marshalMetadata(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
