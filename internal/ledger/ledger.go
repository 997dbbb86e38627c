// Package ledger provides an append-only history of bridge operations for
// auditing.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of operation in the ledger
type EventType string

const (
	EventLightControl EventType = "light_control"
	EventRoomControl  EventType = "room_control"
	EventStateQuery   EventType = "state_query"
	EventBridgeCheck  EventType = "bridge_check"
)

// Entry represents a single operation in the ledger
type Entry struct {
	ID        int64          `json:"id"`
	OpID      string         `json:"op_id"`
	EventType EventType      `json:"event_type"`
	Target    string         `json:"target"` // e.g. "light:3", "room:kitchen", "bridge"
	Success   bool           `json:"success"`
	ErrorType string         `json:"error_type,omitempty"`
	Message   string         `json:"message,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Ledger provides append-only operation logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds an entry. A missing OpID is generated and a zero Timestamp is
// set to now; both are written back to e along with the row ID.
func (l *Ledger) Append(ctx context.Context, e *Entry) error {
	if e.OpID == "" {
		e.OpID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var payloadJSON []byte
	if e.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	result, err := l.db.ExecContext(ctx, `
		INSERT INTO operation_ledger (op_id, event_type, target, success, error_type, message, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.OpID, string(e.EventType), e.Target, e.Success, e.ErrorType, e.Message, string(payloadJSON), e.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ledger entry id: %w", err)
	}
	e.ID = id
	return nil
}

// Recent returns the newest entries first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, op_id, event_type, target, success, error_type, message, payload, timestamp
		FROM operation_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// ByTarget returns entries for one target, newest first
func (l *Ledger) ByTarget(ctx context.Context, target string, limit int) ([]*Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, op_id, event_type, target, success, error_type, message, payload, timestamp
		FROM operation_ledger
		WHERE target = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, target, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM operation_ledger WHERE timestamp < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var payloadStr, errorType, message sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.OpID, &entry.EventType, &entry.Target, &entry.Success,
			&errorType, &message, &payloadStr, &timestamp,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		entry.ErrorType = errorType.String
		entry.Message = message.String

		if payloadStr.Valid && payloadStr.String != "" {
			entry.Payload = make(map[string]any)
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
