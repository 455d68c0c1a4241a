package models

import "time"

// Priority buckets for cards.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the known buckets.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// CardStatus is the lifecycle state of a card. Cards are never deleted;
// removal is the terminal "removed" status so history stays intact.
type CardStatus string

const (
	CardActive  CardStatus = "active"
	CardRemoved CardStatus = "removed"
)

// Card is a unit of work on a board. Position orders cards within their
// column; values are dense but not required to be contiguous.
type Card struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	BoardID        string     `gorm:"index;not null" json:"boardId"`
	ColumnID       string     `gorm:"index;not null" json:"columnId"`
	Title          string     `gorm:"not null" json:"title"`
	Description    string     `json:"description,omitempty"`
	Priority       Priority   `gorm:"default:medium" json:"priority"`
	Assignee       string     `json:"assignee,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	Labels         []string   `gorm:"serializer:json" json:"labels,omitempty"`
	Position       int        `json:"position"`
	ExternalTaskID string     `json:"externalTaskId,omitempty"`
	Status         CardStatus `gorm:"default:active" json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// HasLabel reports whether the card carries the given label.
func (c *Card) HasLabel(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}
