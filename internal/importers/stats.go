package importers

import (
	"fmt"
	"sync"
)

// MaxErrorMessages bounds the row failures reported back to the user.
const MaxErrorMessages = 10

// ImportResult summarizes one import run. It is returned to the caller and
// never stored.
type ImportResult struct {
	Imported      int      `json:"imported"`
	Skipped       int      `json:"skipped"`    // includes duplicates
	Duplicates    int      `json:"duplicates"` // already in the user's library
	Errors        int      `json:"errors"`     // skipped minus duplicates
	Total         int      `json:"total"`      // rows handed to the merge step
	Dropped       int      `json:"dropped"`    // lines discarded by the parser
	ErrorMessages []string `json:"errorMessages"`
}

// ImportStats accumulates row outcomes. Safe for concurrent use.
type ImportStats struct {
	mu         sync.Mutex
	imported   int
	skipped    int
	duplicates int
	messages   []string
}

func (s *ImportStats) recordImported() {
	s.mu.Lock()
	s.imported++
	s.mu.Unlock()
}

func (s *ImportStats) recordDuplicate() {
	s.mu.Lock()
	s.duplicates++
	s.skipped++
	s.mu.Unlock()
}

func (s *ImportStats) recordSkipped() {
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()
}

// recordFailure counts the row as skipped and keeps its message while
// fewer than MaxErrorMessages have been collected.
func (s *ImportStats) recordFailure(title string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
	if len(s.messages) < MaxErrorMessages {
		s.messages = append(s.messages, fmt.Sprintf("%s: %v", title, err))
	}
}

// Result snapshots the counters.
func (s *ImportStats) Result(total, dropped int) ImportResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]string, len(s.messages))
	copy(messages, s.messages)
	return ImportResult{
		Imported:      s.imported,
		Skipped:       s.skipped,
		Duplicates:    s.duplicates,
		Errors:        s.skipped - s.duplicates,
		Total:         total,
		Dropped:       dropped,
		ErrorMessages: messages,
	}
}

// Summary renders the counters the way the UI shows them.
func (r ImportResult) Summary() string {
	return fmt.Sprintf("%d livres importés, %d doublons, %d erreurs", r.Imported, r.Duplicates, r.Errors)
}
