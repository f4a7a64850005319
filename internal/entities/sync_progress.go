package entities

import "time"

// SyncType names a long-running background job whose progress is persisted.
type SyncType string

// SyncTypeEnrichment is the Google Books backfill over unenriched books.
const SyncTypeEnrichment SyncType = "enrichment"

type SyncStatus string

const (
	SyncStatusRunning   SyncStatus = "running"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncProgress is the single persisted row per SyncType. It survives restarts
// so a stale "running" row can be detected and failed on startup.
type SyncProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	SyncType    SyncType   `gorm:"size:50;uniqueIndex" json:"sync_type"`
	Status      SyncStatus `gorm:"size:20" json:"status"`
	TotalItems  int        `json:"total_items"`
	Processed   int        `json:"processed"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	Skipped     int        `json:"skipped"`
	CurrentItem string     `gorm:"size:512" json:"current_item,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (SyncProgress) TableName() string {
	return "sync_progress"
}

func (p *SyncProgress) Running() bool {
	return p.Status == SyncStatusRunning
}

// Percent returns processed items as 0-100, or 0 before the total is known.
func (p *SyncProgress) Percent() float64 {
	if p.TotalItems <= 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.TotalItems) * 100
}
