package models

import "time"

// BoardStatus is the lifecycle state of a board.
type BoardStatus string

const (
	BoardActive   BoardStatus = "active"
	BoardArchived BoardStatus = "archived"
)

// Board is a kanban board. Archived boards keep their history but are
// excluded from automation and metrics.
type Board struct {
	ID              string      `gorm:"primaryKey" json:"id"`
	Name            string      `gorm:"not null" json:"name"`
	Status          BoardStatus `gorm:"default:active" json:"status"`
	ExternalGroupID string      `json:"externalGroupId,omitempty"`

	// ColumnToStatus maps column IDs to external task statuses; StatusToColumn
	// is its inverse. Both are only consulted by the task sync bridge.
	ColumnToStatus map[string]string `gorm:"serializer:json" json:"columnToStatus,omitempty"`
	StatusToColumn map[string]string `gorm:"serializer:json" json:"statusToColumn,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Column is a vertical lane on a board. Position is a total order within the
// board. A WIPLimit of 0 means unlimited.
type Column struct {
	ID       string `gorm:"primaryKey" json:"id"`
	BoardID  string `gorm:"index;not null" json:"boardId"`
	Name     string `gorm:"not null" json:"name"`
	Position int    `json:"position"`
	WIPLimit int    `gorm:"default:0" json:"wipLimit"`
	Color    string `json:"color,omitempty"`

	// IsTerminal marks a "done-like" column for lead time and cumulative flow.
	// Set explicitly at creation; never inferred from the column name.
	IsTerminal bool `gorm:"default:false" json:"isTerminal"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
