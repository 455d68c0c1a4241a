package models

import "time"

// EventKind is the kind of a history log entry.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventMoved   EventKind = "moved"
)

// FieldChange records one field of an "updated" event diff.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// CardEvent is one entry of the append-only card history log. The log is the
// sole input to the metrics engine and the sole trigger source for
// automation. Events are never updated or deleted, and timestamps are
// monotonically increasing per card.
type CardEvent struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Kind         EventKind `gorm:"index;not null" json:"kind"`
	CardID       string    `gorm:"index;not null" json:"cardId"`
	BoardID      string    `gorm:"index;not null" json:"boardId"`
	FromColumnID string    `json:"fromColumnId,omitempty"`
	ToColumnID   string    `json:"toColumnId,omitempty"`
	Actor        string    `json:"actor"`

	// Changes holds the field-level diff for "updated" events and the initial
	// field snapshot for "created" events, keyed by field name.
	Changes map[string]FieldChange `gorm:"serializer:json" json:"changes,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}
