package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/flowboard/flowboard/internal/models"
	"github.com/google/uuid"
)

// CardDraft holds the caller-supplied fields for a new card.
type CardDraft struct {
	Title          string
	Description    string
	Priority       models.Priority
	Assignee       string
	DueDate        *time.Time
	Labels         []string
	ExternalTaskID string
}

// CardPatch is a partial card update. Nil pointers leave the field alone.
type CardPatch struct {
	Title        *string
	Description  *string
	Priority     *models.Priority
	Assignee     *string
	DueDate      *time.Time
	ClearDueDate bool
	Labels       *[]string
}

// CreateCard creates a card at the end of the given column and appends a
// "created" event carrying the initial field snapshot. Admission into the
// column is subject to its WIP limit.
func (e *Engine) CreateCard(ctx context.Context, boardID, columnID string, draft CardDraft, actor string) (*models.Card, *models.CardEvent, error) {
	unlock := e.lockBoard(boardID)

	card, event, err := e.createCardLocked(ctx, boardID, columnID, draft, actor)
	unlock()
	if err != nil {
		return nil, nil, err
	}

	e.sink.Emit(ObsCardCreated, map[string]any{
		"boardId": boardID,
		"cardId":  card.ID,
		"actor":   actor,
	})
	e.dispatch(ctx, event, card)
	return card, event, nil
}

func (e *Engine) createCardLocked(ctx context.Context, boardID, columnID string, draft CardDraft, actor string) (*models.Card, *models.CardEvent, error) {
	if _, err := e.activeBoard(ctx, boardID); err != nil {
		return nil, nil, fmt.Errorf("create card: %w", err)
	}

	col, err := e.store.Column(ctx, columnID)
	if err != nil {
		return nil, nil, err
	}
	if col.BoardID != boardID {
		return nil, nil, fmt.Errorf("create card in column %s: %w", columnID, ErrCrossBoardMove)
	}

	if draft.Priority == "" {
		draft.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(draft.Priority) {
		return nil, nil, fmt.Errorf("create card: unknown priority %q", draft.Priority)
	}

	resident, err := e.store.ColumnCards(ctx, columnID)
	if err != nil {
		return nil, nil, err
	}
	if !checkAdmission(col.WIPLimit, len(resident)) {
		return nil, nil, fmt.Errorf("column %s at limit %d: %w", columnID, col.WIPLimit, ErrWIPLimitExceeded)
	}

	now := e.now()
	card := &models.Card{
		ID:             uuid.NewString(),
		BoardID:        boardID,
		ColumnID:       columnID,
		Title:          draft.Title,
		Description:    draft.Description,
		Priority:       draft.Priority,
		Assignee:       draft.Assignee,
		DueDate:        draft.DueDate,
		Labels:         normalizeLabels(draft.Labels),
		Position:       endPosition(resident),
		ExternalTaskID: draft.ExternalTaskID,
		Status:         models.CardActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	event := &models.CardEvent{
		ID:         uuid.NewString(),
		Kind:       models.EventCreated,
		CardID:     card.ID,
		BoardID:    boardID,
		ToColumnID: columnID,
		Actor:      actor,
		Changes:    snapshotChanges(card),
		CreatedAt:  now,
	}

	err = e.store.Transaction(ctx, func(tx Store) error {
		if err := tx.Insert(ctx, card); err != nil {
			return err
		}
		return tx.Insert(ctx, event)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create card: %w", err)
	}
	return card, event, nil
}

// UpdateCard applies a partial update and appends an "updated" event with a
// field-level diff. An empty diff is a no-op and commits nothing.
func (e *Engine) UpdateCard(ctx context.Context, cardID string, patch CardPatch, actor string) (*models.Card, *models.CardEvent, error) {
	card, err := e.store.Card(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}

	unlock := e.lockBoard(card.BoardID)
	card, event, err := e.updateCardLocked(ctx, cardID, patch, actor)
	unlock()
	if err != nil {
		return nil, nil, err
	}
	if event == nil {
		return card, nil, nil
	}

	e.sink.Emit(ObsCardUpdated, map[string]any{
		"boardId": card.BoardID,
		"cardId":  card.ID,
		"actor":   actor,
	})
	e.dispatch(ctx, event, card)
	return card, event, nil
}

func (e *Engine) updateCardLocked(ctx context.Context, cardID string, patch CardPatch, actor string) (*models.Card, *models.CardEvent, error) {
	card, err := e.store.Card(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.activeBoard(ctx, card.BoardID); err != nil {
		return nil, nil, fmt.Errorf("update card %s: %w", cardID, err)
	}

	changes := map[string]models.FieldChange{}

	if patch.Title != nil && *patch.Title != card.Title {
		changes["title"] = models.FieldChange{From: card.Title, To: *patch.Title}
		card.Title = *patch.Title
	}
	if patch.Description != nil && *patch.Description != card.Description {
		changes["description"] = models.FieldChange{From: card.Description, To: *patch.Description}
		card.Description = *patch.Description
	}
	if patch.Priority != nil && *patch.Priority != card.Priority {
		if !models.ValidPriority(*patch.Priority) {
			return nil, nil, fmt.Errorf("update card %s: unknown priority %q", cardID, *patch.Priority)
		}
		changes["priority"] = models.FieldChange{From: string(card.Priority), To: string(*patch.Priority)}
		card.Priority = *patch.Priority
	}
	if patch.Assignee != nil && *patch.Assignee != card.Assignee {
		changes["assignee"] = models.FieldChange{From: card.Assignee, To: *patch.Assignee}
		card.Assignee = *patch.Assignee
	}
	if patch.ClearDueDate {
		if card.DueDate != nil {
			changes["dueDate"] = models.FieldChange{From: formatDue(card.DueDate), To: nil}
			card.DueDate = nil
		}
	} else if patch.DueDate != nil && (card.DueDate == nil || !card.DueDate.Equal(*patch.DueDate)) {
		changes["dueDate"] = models.FieldChange{From: formatDue(card.DueDate), To: formatDue(patch.DueDate)}
		due := *patch.DueDate
		card.DueDate = &due
	}
	if patch.Labels != nil {
		next := normalizeLabels(*patch.Labels)
		if !sameLabels(card.Labels, next) {
			changes["labels"] = models.FieldChange{From: card.Labels, To: next}
			card.Labels = next
		}
	}

	if len(changes) == 0 {
		return card, nil, nil
	}
	event, err := e.commitCardUpdate(ctx, card, changes, actor)
	if err != nil {
		return nil, nil, err
	}
	return card, event, nil
}

// RemoveCard retires a card. The row is kept and the status change is
// recorded in the history log; nothing is erased. The removal is a
// committed "updated" event like any other, so rules and sinks see it.
func (e *Engine) RemoveCard(ctx context.Context, cardID, actor string) (*models.CardEvent, error) {
	card, err := e.store.Card(ctx, cardID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockBoard(card.BoardID)
	card, event, err := e.removeCardLocked(ctx, cardID, actor)
	unlock()
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}

	e.sink.Emit(ObsCardUpdated, map[string]any{
		"boardId": card.BoardID,
		"cardId":  card.ID,
		"actor":   actor,
	})
	e.dispatch(ctx, event, card)
	return event, nil
}

func (e *Engine) removeCardLocked(ctx context.Context, cardID, actor string) (*models.Card, *models.CardEvent, error) {
	card, err := e.store.Card(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.activeBoard(ctx, card.BoardID); err != nil {
		return nil, nil, fmt.Errorf("remove card %s: %w", cardID, err)
	}
	if card.Status == models.CardRemoved {
		return card, nil, nil
	}

	changes := map[string]models.FieldChange{
		"status": {From: string(models.CardActive), To: string(models.CardRemoved)},
	}
	card.Status = models.CardRemoved
	event, err := e.commitCardUpdate(ctx, card, changes, actor)
	if err != nil {
		return nil, nil, err
	}
	return card, event, nil
}

// commitCardUpdate persists the mutated card together with its "updated"
// event as one transaction. Callers hold the board lock.
func (e *Engine) commitCardUpdate(ctx context.Context, card *models.Card, changes map[string]models.FieldChange, actor string) (*models.CardEvent, error) {
	now := e.now()
	card.UpdatedAt = now
	event := &models.CardEvent{
		ID:        uuid.NewString(),
		Kind:      models.EventUpdated,
		CardID:    card.ID,
		BoardID:   card.BoardID,
		Actor:     actor,
		Changes:   changes,
		CreatedAt: now,
	}
	err := e.store.Transaction(ctx, func(tx Store) error {
		if err := tx.Update(ctx, card); err != nil {
			return err
		}
		return tx.Insert(ctx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("update card %s: %w", card.ID, err)
	}
	return event, nil
}

// snapshotChanges builds the initial field snapshot stored on a "created"
// event. Replaying it against an empty state reproduces the card.
func snapshotChanges(card *models.Card) map[string]models.FieldChange {
	return map[string]models.FieldChange{
		"title":       {To: card.Title},
		"description": {To: card.Description},
		"priority":    {To: string(card.Priority)},
		"assignee":    {To: card.Assignee},
		"dueDate":     {To: formatDue(card.DueDate)},
		"labels":      {To: card.Labels},
	}
}

func formatDue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// normalizeLabels drops duplicates and sorts. Label order carries no meaning,
// so a canonical order keeps diffs and comparisons stable.
func normalizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// endPosition is the position for a card appended to a column: one past the
// highest live position, or 0 for an empty column.
func endPosition(resident []models.Card) int {
	max := -1
	for _, c := range resident {
		if c.Position > max {
			max = c.Position
		}
	}
	return max + 1
}
