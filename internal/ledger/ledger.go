// Package ledger provides an append-only history of per-device link events
// for auditing and the /devices/{id}/events API.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event in the ledger
type EventType string

const (
	EventLinkOnline     EventType = "link_online"
	EventLinkOffline    EventType = "link_offline"
	EventStatusReceived EventType = "status_received"
)

// Entry represents a single event in the ledger
type Entry struct {
	ID        int64          `json:"-"`
	EventID   string         `json:"event_id"`
	EventType EventType      `json:"event_type"`
	DeviceID  string         `json:"device_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Ledger provides append-only event logging
type Ledger struct {
	db *sql.DB
}

// New creates a new Ledger using the provided database connection
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append adds a new event to the ledger. Each entry gets a unique event ID.
func (l *Ledger) Append(eventType EventType, deviceID string, payload map[string]any) error {
	var payloadJSON []byte
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
	}

	now := time.Now().UTC().Unix()

	_, err = l.db.Exec(`
		INSERT INTO event_ledger (event_id, event_type, device_id, timestamp, payload)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), string(eventType), deviceID, now, string(payloadJSON))

	return err
}

// GetByDevice returns the most recent entries for a device, newest first.
func (l *Ledger) GetByDevice(deviceID string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, event_type, device_id, timestamp, payload
		FROM event_ledger
		WHERE device_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// GetByType returns entries filtered by event type, newest first.
func (l *Ledger) GetByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_id, event_type, device_id, timestamp, payload
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return l.scanEntries(rows)
}

// DeleteOlderThan removes entries older than the retention period.
// Returns the number of deleted entries.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()

	res, err := l.db.Exec(`DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (l *Ledger) scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry

	for rows.Next() {
		var entry Entry
		var ts int64
		var payloadStr sql.NullString

		if err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventType, &entry.DeviceID, &ts, &payloadStr); err != nil {
			return nil, err
		}

		entry.Timestamp = time.Unix(ts, 0).UTC()
		if payloadStr.Valid && payloadStr.String != "" {
			if err := json.Unmarshal([]byte(payloadStr.String), &entry.Payload); err != nil {
				// Payload is informational only, keep the entry
				entry.Payload = nil
			}
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
