package models

import "time"

// Trigger identifies the lifecycle event a rule listens for.
type Trigger string

const (
	TriggerCardCreated         Trigger = "card:created"
	TriggerCardUpdated         Trigger = "card:updated"
	TriggerCardMoved           Trigger = "card:moved"
	TriggerDeadlineApproaching Trigger = "deadline:approaching"
)

// ValidTrigger reports whether t is a known trigger.
func ValidTrigger(t Trigger) bool {
	switch t {
	case TriggerCardCreated, TriggerCardUpdated, TriggerCardMoved, TriggerDeadlineApproaching:
		return true
	}
	return false
}

// TriggerForEvent maps a history event kind to its trigger.
func TriggerForEvent(kind EventKind) Trigger {
	return Trigger("card:" + string(kind))
}

// ActionType identifies what a rule does when it fires.
type ActionType string

const (
	ActionMoveCard    ActionType = "move_card"
	ActionAddLabel    ActionType = "add_label"
	ActionRemoveLabel ActionType = "remove_label"
	ActionAssignUser  ActionType = "assign_user"
	ActionNotify      ActionType = "notify"
)

// ValidActionType reports whether a is a known action type.
func ValidActionType(a ActionType) bool {
	switch a {
	case ActionMoveCard, ActionAddLabel, ActionRemoveLabel, ActionAssignUser, ActionNotify:
		return true
	}
	return false
}

// RuleStatus is the lifecycle state of an automation rule.
type RuleStatus string

const (
	RuleActive   RuleStatus = "active"
	RuleDisabled RuleStatus = "disabled"
)

// AutomationRule is a trigger/condition/action tuple owned by a board.
// Rules are evaluated in creation order so outcomes are reproducible.
type AutomationRule struct {
	ID      string  `gorm:"primaryKey" json:"id"`
	BoardID string  `gorm:"index;not null" json:"boardId"`
	Name    string  `gorm:"not null" json:"name"`
	Trigger Trigger `gorm:"not null" json:"trigger"`

	// Condition is a boolean expression over the card/event context; empty
	// means the rule always fires on a trigger match.
	Condition string `json:"condition,omitempty"`

	ActionType   ActionType     `gorm:"not null" json:"actionType"`
	ActionParams map[string]any `gorm:"serializer:json" json:"actionParams,omitempty"`
	Status       RuleStatus     `gorm:"default:active" json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
