package postgres

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
)

// Audit event types recorded around an ingestion attempt.
const (
	EventSubmissionStarted = "form_submission_started"
	EventSubmissionSuccess = "form_submission_success"
	EventSubmissionError   = "form_submission_error"
)

// LogEvent appends one audit record. It runs on its own pooled connection,
// never inside the ingestion transaction, so audit entries survive a
// rollback of the main write.
func (s *Store) LogEvent(ctx context.Context, sessionID, eventType string, data map[string]any, ip, userAgent string) error {
	var payload *string
	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		str := string(b)
		payload = &str
	}

	_, err := s.db.Pool.Exec(ctx, `
INSERT INTO event_logs (session_id, event_type, event_data, ip_address, user_agent)
VALUES ($1,$2,$3,$4,$5)`,
		nullIfEmpty(sessionID), eventType, payload, nullIfEmpty(ip), nullIfEmpty(userAgent),
	)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
