package automation

import (
	"context"
	"strings"
	"time"

	"github.com/flowboard/flowboard/internal/condition"
	"github.com/flowboard/flowboard/internal/models"
)

type depthKey struct{}

// withDepth records the automation cascade depth on the context so actions
// that commit new events carry it into the next round of dispatch.
func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

func depthFrom(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// buildContext assembles the fixed evaluation context a condition can see:
// the card's fields (also exposed at the top level for short expressions
// like `priority == "urgent"`), the trigger kind and the event fields.
func buildContext(card *models.Card, trigger models.Trigger, event *models.CardEvent) condition.Context {
	cardMap := map[string]any{
		"id":          card.ID,
		"boardId":     card.BoardID,
		"columnId":    card.ColumnID,
		"title":       card.Title,
		"description": card.Description,
		"priority":    string(card.Priority),
		"assignee":    card.Assignee,
		"labels":      card.Labels,
		"position":    float64(card.Position),
		"status":      string(card.Status),
	}
	if card.DueDate != nil {
		cardMap["dueDate"] = card.DueDate.UTC().Format(time.RFC3339)
	} else {
		cardMap["dueDate"] = nil
	}

	eventMap := map[string]any{
		"trigger": string(trigger),
		"actor":   "",
	}
	if event != nil {
		eventMap["kind"] = string(event.Kind)
		eventMap["actor"] = event.Actor
		eventMap["fromColumnId"] = event.FromColumnID
		eventMap["toColumnId"] = event.ToColumnID
	}

	ctx := condition.Context{
		"card":  cardMap,
		"event": eventMap,
	}
	for k, v := range cardMap {
		ctx[k] = v
	}
	return ctx
}

// expand substitutes {{field}} placeholders in a notify message template
// with card fields.
func expand(template string, card *models.Card) string {
	r := strings.NewReplacer(
		"{{id}}", card.ID,
		"{{title}}", card.Title,
		"{{assignee}}", card.Assignee,
		"{{priority}}", string(card.Priority),
	)
	return r.Replace(template)
}
