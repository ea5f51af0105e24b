package script

import (
	"fmt"
	"sync"
	"time"
)

// Revision is one entry of the version log.
type Revision struct {
	Version   int       `json:"version"`
	Notes     []string  `json:"notes"`
	Strategy  string    `json:"strategy,omitempty"` // "rules", "model" or "" for the initial script
	CreatedAt time.Time `json:"created_at"`
	Script    Script    `json:"script"`
}

// VersionLog is an append-only record of script versions. Appends must
// arrive in version order; the log never truncates or reorders.
type VersionLog struct {
	mu        sync.RWMutex
	revisions []Revision
	now       func() time.Time
}

// NewVersionLog starts a log with the initial script as its first revision.
func NewVersionLog(initial Script) *VersionLog {
	l := &VersionLog{now: time.Now}
	l.revisions = append(l.revisions, Revision{
		Version:   initial.Version,
		Notes:     []string{},
		CreatedAt: l.now(),
		Script:    initial.Clone(),
	})
	return l
}

// Append records next as the successor of the current script. The notes
// recorded are the log entries next added on top of its predecessor.
func (l *VersionLog) Append(next Script, strategy string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.revisions[len(l.revisions)-1].Script
	if next.Version != cur.Version+1 {
		return fmt.Errorf("version log: expected version %d, got %d", cur.Version+1, next.Version)
	}
	if len(next.ImprovementLog) < len(cur.ImprovementLog) {
		return fmt.Errorf("version log: improvement log shrank from %d to %d entries",
			len(cur.ImprovementLog), len(next.ImprovementLog))
	}
	for i, note := range cur.ImprovementLog {
		if next.ImprovementLog[i] != note {
			return fmt.Errorf("version log: improvement log entry %d was rewritten", i)
		}
	}

	added := append([]string{}, next.ImprovementLog[len(cur.ImprovementLog):]...)
	l.revisions = append(l.revisions, Revision{
		Version:   next.Version,
		Notes:     added,
		Strategy:  strategy,
		CreatedAt: l.now(),
		Script:    next.Clone(),
	})
	return nil
}

// Current returns the latest script.
func (l *VersionLog) Current() Script {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revisions[len(l.revisions)-1].Script.Clone()
}

// Revisions returns a copy of every revision, oldest first.
func (l *VersionLog) Revisions() []Revision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Revision, len(l.revisions))
	for i, r := range l.revisions {
		r.Notes = append([]string{}, r.Notes...)
		r.Script = r.Script.Clone()
		out[i] = r
	}
	return out
}

// Len returns the number of recorded versions.
func (l *VersionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.revisions)
}
