// Package automation reacts to committed card events: it matches rules by
// trigger, evaluates their conditions and dispatches actions through the
// same guarded mutation paths as any direct caller.
package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowboard/flowboard/internal/condition"
	"github.com/flowboard/flowboard/internal/engine"
	"github.com/flowboard/flowboard/internal/models"
	"go.uber.org/zap"
)

// DefaultCascadeLimit bounds how many automation-initiated events may chain
// off one external mutation. An action that moves a card retriggers rules;
// without a bound two move rules can ping-pong a card forever.
const DefaultCascadeLimit = 5

// ErrCascadeLimitExceeded marks a dispatch chain cut off at the cascade
// limit. It is logged and observed, never returned to the caller of the
// original mutation.
var ErrCascadeLimitExceeded = errors.New("automation cascade limit exceeded")

// Engine evaluates automation rules. Wire it to the board engine with
// core.SetEventHandler(a.HandleEvent).
type Engine struct {
	core         *engine.Engine
	cascadeLimit int
}

// Option configures the automation engine.
type Option func(*Engine)

// WithCascadeLimit overrides the cascade depth bound.
func WithCascadeLimit(limit int) Option {
	return func(a *Engine) {
		if limit > 0 {
			a.cascadeLimit = limit
		}
	}
}

// New creates an automation engine over the board engine.
func New(core *engine.Engine, opts ...Option) *Engine {
	a := &Engine{
		core:         core,
		cascadeLimit: DefaultCascadeLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HandleEvent runs the rules for one committed card event. Rule evaluation
// follows Idle -> Matched -> ConditionChecked -> ActionDispatched ->
// Completed|Failed per rule; failures are isolated per rule and never
// propagate to the caller of the triggering mutation.
func (a *Engine) HandleEvent(ctx context.Context, event *models.CardEvent, card *models.Card) {
	depth := depthFrom(ctx)
	if depth >= a.cascadeLimit {
		zap.L().Warn("Automation cascade limit reached",
			zap.String("boardId", event.BoardID),
			zap.String("cardId", event.CardID),
			zap.Int("limit", a.cascadeLimit),
			zap.Error(ErrCascadeLimitExceeded))
		a.core.Sink().Emit(engine.ObsCascadeLimit, map[string]any{
			"boardId": event.BoardID,
			"cardId":  event.CardID,
			"limit":   a.cascadeLimit,
		})
		return
	}

	a.run(ctx, models.TriggerForEvent(event.Kind), event, card, depth)
}

// run evaluates every active rule of the board whose trigger matches, in
// creation order.
func (a *Engine) run(ctx context.Context, trigger models.Trigger, event *models.CardEvent, card *models.Card, depth int) {
	store := a.core.Store()

	board, err := store.Board(ctx, event.BoardID)
	if err != nil {
		zap.L().Error("Automation: board lookup failed", zap.String("boardId", event.BoardID), zap.Error(err))
		return
	}
	if board.Status == models.BoardArchived {
		return
	}

	rules, err := store.Rules(ctx, event.BoardID)
	if err != nil {
		zap.L().Error("Automation: rule lookup failed", zap.String("boardId", event.BoardID), zap.Error(err))
		return
	}

	evalCtx := buildContext(card, trigger, event)
	childCtx := withDepth(ctx, depth+1)

	for _, rule := range rules {
		if rule.Status != models.RuleActive || rule.Trigger != trigger {
			continue
		}

		if rule.Condition != "" {
			pass, err := condition.Evaluate(rule.Condition, evalCtx)
			if err != nil {
				// Fail closed: the rule does not fire, the error goes to the
				// audit sink, the triggering mutation is unaffected.
				zap.L().Warn("Automation: condition failed closed",
					zap.String("ruleId", rule.ID),
					zap.String("condition", rule.Condition),
					zap.Error(err))
				a.core.Sink().Emit(engine.ObsConditionError, map[string]any{
					"boardId":   rule.BoardID,
					"ruleId":    rule.ID,
					"condition": rule.Condition,
					"error":     err.Error(),
				})
				continue
			}
			if !pass {
				continue
			}
		}

		if err := a.dispatch(childCtx, rule, card); err != nil {
			// An action failure aborts only this rule's dispatch.
			zap.L().Warn("Automation: action failed",
				zap.String("ruleId", rule.ID),
				zap.String("action", string(rule.ActionType)),
				zap.Error(err))
			continue
		}

		a.core.Sink().Emit(engine.ObsAutomationTriggered, map[string]any{
			"boardId": rule.BoardID,
			"ruleId":  rule.ID,
			"cardId":  card.ID,
			"action":  string(rule.ActionType),
		})
	}
}

func (a *Engine) dispatch(ctx context.Context, rule models.AutomationRule, card *models.Card) error {
	actor := "automation:" + rule.ID

	switch rule.ActionType {
	case models.ActionMoveCard:
		columnID, _ := rule.ActionParams["columnId"].(string)
		pos, err := resolvePosition(rule.ActionParams["position"])
		if err != nil {
			return err
		}
		_, _, err = a.core.MoveCard(ctx, card.ID, columnID, pos, actor)
		return err

	case models.ActionAddLabel:
		_, _, err := a.core.AddLabels(ctx, card.ID, paramLabels(rule.ActionParams), actor)
		return err

	case models.ActionRemoveLabel:
		_, _, err := a.core.RemoveLabels(ctx, card.ID, paramLabels(rule.ActionParams), actor)
		return err

	case models.ActionAssignUser:
		assignee, _ := rule.ActionParams["assignee"].(string)
		_, _, err := a.core.AssignUser(ctx, card.ID, assignee, actor)
		return err

	case models.ActionNotify:
		message, _ := rule.ActionParams["message"].(string)
		a.core.Sink().Notify(paramRecipients(rule.ActionParams, card), expand(message, card), map[string]any{
			"boardId": card.BoardID,
			"cardId":  card.ID,
			"ruleId":  rule.ID,
		})
		return nil
	}
	return fmt.Errorf("unknown action %q: %w", rule.ActionType, engine.ErrInvalidRuleDefinition)
}

// resolvePosition maps a symbolic move_card position to a concrete one:
// "top" is 0, "bottom" (or absent) is the end of the column, a number is
// taken as-is.
func resolvePosition(v any) (*int, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case string:
		switch p {
		case "top":
			zero := 0
			return &zero, nil
		case "bottom", "":
			return nil, nil
		}
		return nil, fmt.Errorf("unknown position %q: %w", p, engine.ErrInvalidRuleDefinition)
	case float64:
		n := int(p)
		return &n, nil
	case int:
		n := p
		return &n, nil
	}
	return nil, fmt.Errorf("unknown position type %T: %w", v, engine.ErrInvalidRuleDefinition)
}

func paramLabels(params map[string]any) []string {
	switch labels := params["labels"].(type) {
	case []string:
		return labels
	case []any:
		out := make([]string, 0, len(labels))
		for _, l := range labels {
			if s, ok := l.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{labels}
	}
	return nil
}

func paramRecipients(params map[string]any, card *models.Card) []string {
	switch r := params["recipients"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{r}
	}
	if card.Assignee != "" {
		return []string{card.Assignee}
	}
	return nil
}
