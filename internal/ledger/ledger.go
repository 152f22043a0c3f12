// Package ledger keeps an append-only history of hub dispatches for auditing.
package ledger

import (
	"database/sql"
	"time"
)

// Outcome of a dispatch attempt
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeFailed     Outcome = "failed"
)

// Entry represents a single dispatch in the ledger
type Entry struct {
	ID        int64     `json:"id"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
	EventID   string    `json:"event_id"`
	EntityID  string    `json:"entity_id"`
	Color     string    `json:"color"`
	Error     string    `json:"error,omitempty"`
}

// Ledger provides append-only dispatch logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new entry. Timestamp defaults to now.
func (l *Ledger) Append(entry Entry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	_, err := l.db.Exec(`
		INSERT INTO dispatch_ledger (outcome, timestamp, event_id, entity_id, color, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(entry.Outcome), ts.UTC().UnixMilli(), entry.EventID, entry.EntityID, entry.Color, errText)

	return err
}

// Recent returns the newest entries first
func (l *Ledger) Recent(limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, outcome, timestamp, event_id, entity_id, color, error
		FROM dispatch_ledger
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByEntity returns the newest entries for one hub entity
func (l *Ledger) GetByEntity(entityID string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, outcome, timestamp, event_id, entity_id, color, error
		FROM dispatch_ledger
		WHERE entity_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the specified duration (retention policy)
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().UnixMilli()
	result, err := l.db.Exec(`
		DELETE FROM dispatch_ledger WHERE timestamp < ?
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
		var errText sql.NullString
		var timestamp int64

		err := rows.Scan(
			&entry.ID, &entry.Outcome, &timestamp, &entry.EventID, &entry.EntityID, &entry.Color, &errText,
		)
		if err != nil {
			return nil, err
		}

		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		if errText.Valid {
			entry.Error = errText.String
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
