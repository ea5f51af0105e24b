package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/apresai/callcoach/internal/llm"
)

// EventCount is the number of model calls with one purpose and status.
type EventCount struct {
	Purpose string `json:"purpose"`
	Status  string `json:"status"`
	Count   int    `json:"count"`
}

// RecordEvent stores one model-call audit event. Prompts and replies are not
// stored.
func (s *Store) RecordEvent(ctx context.Context, ev llm.Event) error {
	status, msg := "ok", ""
	if ev.Err != nil {
		status, msg = "error", ev.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO llm_events (created_at_utc, provider, purpose, duration_ms, status, error)
VALUES (?, ?, ?, ?, ?, ?)`,
		ev.StartedAt.UTC().Format(timeLayout), ev.Provider, ev.Purpose, ev.Duration.Milliseconds(), status, msg)
	if err != nil {
		return fmt.Errorf("insert llm event: %w", err)
	}
	return nil
}

// Observer returns an llm.Observer that records every model call. Write
// failures are logged and never reach the caller.
func (s *Store) Observer(logger *slog.Logger) llm.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, ev llm.Event) {
		// The call context may already be cancelled; the audit row is still wanted.
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.RecordEvent(wctx, ev); err != nil {
			logger.Warn("audit write failed", "purpose", ev.Purpose, "error", err)
		}
	}
}

// EventCounts summarizes the audit log.
func (s *Store) EventCounts(ctx context.Context) ([]EventCount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT purpose, status, COUNT(*) FROM llm_events
GROUP BY purpose, status ORDER BY purpose, status`)
	if err != nil {
		return nil, fmt.Errorf("query llm events: %w", err)
	}
	defer rows.Close()

	var out []EventCount
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.Purpose, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scan llm event count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
