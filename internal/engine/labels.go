package engine

import (
	"context"
	"fmt"

	"github.com/flowboard/flowboard/internal/models"
)

// AddLabels unions the given labels into the card's label set. A no-op when
// every label is already present.
func (e *Engine) AddLabels(ctx context.Context, cardID string, labels []string, actor string) (*models.Card, *models.CardEvent, error) {
	return e.mutateLabels(ctx, cardID, actor, func(current []string) []string {
		return normalizeLabels(append(append([]string{}, current...), labels...))
	})
}

// RemoveLabels removes the given labels from the card's label set. A no-op
// when none are present.
func (e *Engine) RemoveLabels(ctx context.Context, cardID string, labels []string, actor string) (*models.Card, *models.CardEvent, error) {
	drop := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		drop[l] = struct{}{}
	}
	return e.mutateLabels(ctx, cardID, actor, func(current []string) []string {
		out := make([]string, 0, len(current))
		for _, l := range current {
			if _, gone := drop[l]; !gone {
				out = append(out, l)
			}
		}
		return out
	})
}

// AssignUser sets the card's assignee.
func (e *Engine) AssignUser(ctx context.Context, cardID, assignee, actor string) (*models.Card, *models.CardEvent, error) {
	return e.UpdateCard(ctx, cardID, CardPatch{Assignee: &assignee}, actor)
}

func (e *Engine) mutateLabels(ctx context.Context, cardID, actor string, apply func([]string) []string) (*models.Card, *models.CardEvent, error) {
	card, err := e.store.Card(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}

	unlock := e.lockBoard(card.BoardID)
	card, event, err := func() (*models.Card, *models.CardEvent, error) {
		card, err := e.store.Card(ctx, cardID)
		if err != nil {
			return nil, nil, err
		}
		if _, err := e.activeBoard(ctx, card.BoardID); err != nil {
			return nil, nil, fmt.Errorf("update card %s: %w", cardID, err)
		}
		next := apply(card.Labels)
		if sameLabels(card.Labels, next) {
			return card, nil, nil
		}
		changes := map[string]models.FieldChange{
			"labels": {From: card.Labels, To: next},
		}
		card.Labels = next
		event, err := e.commitCardUpdate(ctx, card, changes, actor)
		if err != nil {
			return nil, nil, err
		}
		return card, event, nil
	}()
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
