// Package ledger keeps an append-only history of device commands.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a ledger entry.
type EventType string

const (
	EventCommandApplied   EventType = "command_applied"
	EventCommandFailed    EventType = "command_failed"
	EventDeviceDiscovered EventType = "device_discovered"
)

// Entry is one ledger row.
type Entry struct {
	ID        int64          `json:"id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Serial    string         `json:"serial,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Ledger appends to and queries the event_ledger table.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a ledger on an open database.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Append records one event.
func (l *Ledger) Append(eventType EventType, serial string, payload map[string]any) error {
	var encoded sql.NullString
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		encoded = sql.NullString{String: string(b), Valid: true}
	}

	_, err := l.db.Exec(
		`INSERT INTO event_ledger (event_type, timestamp, serial, payload) VALUES (?, ?, ?, ?)`,
		string(eventType), l.now().UTC().Unix(), serial, encoded,
	)
	return err
}

// BySerial returns the newest entries for one device.
func (l *Ledger) BySerial(serial string, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, serial, payload
		FROM event_ledger
		WHERE serial = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, serial, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scan(rows)
}

// ByType returns the newest entries of one type.
func (l *Ledger) ByType(eventType EventType, limit int) ([]*Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, event_type, timestamp, serial, payload
		FROM event_ledger
		WHERE event_type = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scan(rows)
}

// DeleteOlderThan drops entries older than retention and returns how many
// were removed.
func (l *Ledger) DeleteOlderThan(retention time.Duration) (int64, error) {
	cutoff := l.now().Add(-retention).UTC().Unix()
	res, err := l.db.Exec(`DELETE FROM event_ledger WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scan(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		var (
			e       Entry
			ts      int64
			serial  sql.NullString
			payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EventType, &ts, &serial, &payload); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0).UTC()
		e.Serial = serial.String
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("decode payload of entry %d: %w", e.ID, err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
