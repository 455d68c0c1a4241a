package engine

import (
	"github.com/flowboard/flowboard/internal/models"
)

// CardState is the field state derived by folding a card's history log.
type CardState struct {
	ColumnID    string
	Title       string
	Description string
	Priority    models.Priority
	Assignee    string
	DueDate     string // RFC3339, empty when unset
	Labels      []string
	Status      models.CardStatus
}

// ReplayCard folds a card's ordered event log back into its field state.
// The history log is the source of truth: for any card, replaying its
// events reproduces the current column and field values exactly.
func ReplayCard(events []models.CardEvent) CardState {
	state := CardState{
		Priority: models.PriorityMedium,
		Status:   models.CardActive,
	}
	for _, ev := range events {
		switch ev.Kind {
		case models.EventCreated:
			state.ColumnID = ev.ToColumnID
			applyChanges(&state, ev.Changes)
		case models.EventUpdated:
			applyChanges(&state, ev.Changes)
		case models.EventMoved:
			state.ColumnID = ev.ToColumnID
		}
	}
	return state
}

// applyChanges applies the "to" side of a field diff. Values may have been
// round-tripped through JSON, so slices arrive as []any.
func applyChanges(state *CardState, changes map[string]models.FieldChange) {
	for field, change := range changes {
		switch field {
		case "title":
			state.Title = asString(change.To)
		case "description":
			state.Description = asString(change.To)
		case "priority":
			state.Priority = models.Priority(asString(change.To))
		case "assignee":
			state.Assignee = asString(change.To)
		case "dueDate":
			state.DueDate = asString(change.To)
		case "labels":
			state.Labels = asStringSlice(change.To)
		case "status":
			state.Status = models.CardStatus(asString(change.To))
		}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}
