package engine

import (
	"context"
	"fmt"

	"github.com/flowboard/flowboard/internal/condition"
	"github.com/flowboard/flowboard/internal/models"
	"github.com/google/uuid"
)

// SaveRule validates and persists an automation rule. Unknown triggers,
// unknown action types and conditions outside the grammar are rejected up
// front so a bad rule can never reach dispatch.
func (e *Engine) SaveRule(ctx context.Context, rule models.AutomationRule) (*models.AutomationRule, error) {
	if _, err := e.store.Board(ctx, rule.BoardID); err != nil {
		return nil, err
	}
	if !models.ValidTrigger(rule.Trigger) {
		return nil, fmt.Errorf("unknown trigger %q: %w", rule.Trigger, ErrInvalidRuleDefinition)
	}
	if !models.ValidActionType(rule.ActionType) {
		return nil, fmt.Errorf("unknown action %q: %w", rule.ActionType, ErrInvalidRuleDefinition)
	}
	if rule.Condition != "" {
		if _, err := condition.Parse(rule.Condition); err != nil {
			return nil, fmt.Errorf("condition %q: %v: %w", rule.Condition, err, ErrInvalidRuleDefinition)
		}
	}
	if err := validateActionParams(rule.ActionType, rule.ActionParams); err != nil {
		return nil, err
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
		if rule.Status == "" {
			rule.Status = models.RuleActive
		}
		if err := e.store.Insert(ctx, &rule); err != nil {
			return nil, fmt.Errorf("save rule: %w", err)
		}
		return &rule, nil
	}
	existing, err := e.store.Rule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	if existing.BoardID != rule.BoardID {
		return nil, fmt.Errorf("rule %s belongs to board %s: %w", rule.ID, existing.BoardID, ErrInvalidRuleDefinition)
	}
	if rule.Status == "" {
		rule.Status = existing.Status
	}
	// Rules are evaluated in creation order; an update must not reset it.
	rule.CreatedAt = existing.CreatedAt
	if err := e.store.Update(ctx, &rule); err != nil {
		return nil, fmt.Errorf("save rule: %w", err)
	}
	return &rule, nil
}

func validateActionParams(action models.ActionType, params map[string]any) error {
	requireString := func(key string) error {
		v, ok := params[key]
		if !ok {
			return fmt.Errorf("action %s requires param %q: %w", action, key, ErrInvalidRuleDefinition)
		}
		if s, ok := v.(string); !ok || s == "" {
			return fmt.Errorf("action %s param %q must be a non-empty string: %w", action, key, ErrInvalidRuleDefinition)
		}
		return nil
	}

	switch action {
	case models.ActionMoveCard:
		return requireString("columnId")
	case models.ActionAddLabel, models.ActionRemoveLabel:
		return validateLabelsParam(action, params)
	case models.ActionAssignUser:
		return requireString("assignee")
	case models.ActionNotify:
		return requireString("message")
	}
	return nil
}

// validateLabelsParam accepts the same shapes the dispatcher does: a single
// string, or a non-empty list of strings. Anything else would silently
// no-op at dispatch time, so it is rejected here.
func validateLabelsParam(action models.ActionType, params map[string]any) error {
	badShape := fmt.Errorf("action %s param \"labels\" must be a string or a list of strings: %w", action, ErrInvalidRuleDefinition)

	v, ok := params["labels"]
	if !ok {
		return fmt.Errorf("action %s requires param \"labels\": %w", action, ErrInvalidRuleDefinition)
	}
	switch labels := v.(type) {
	case string:
		if labels == "" {
			return badShape
		}
	case []string:
		if len(labels) == 0 {
			return badShape
		}
	case []any:
		if len(labels) == 0 {
			return badShape
		}
		for _, l := range labels {
			if s, isStr := l.(string); !isStr || s == "" {
				return badShape
			}
		}
	default:
		return badShape
	}
	return nil
}
