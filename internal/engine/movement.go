package engine

import (
	"context"
	"fmt"

	"github.com/flowboard/flowboard/internal/models"
	"github.com/google/uuid"
)

// MoveCard moves a card to a target column on the same board and appends a
// "moved" event. If position is nil the card lands at the end of the target
// column. The WIP check and the commit happen under the board lock, so a
// committed move can never push a column past its limit.
//
// Direct callers and automation use this same path; the engine records the
// actor and does not otherwise distinguish them.
func (e *Engine) MoveCard(ctx context.Context, cardID, targetColumnID string, position *int, actor string) (*models.Card, *models.CardEvent, error) {
	card, err := e.store.Card(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}

	unlock := e.lockBoard(card.BoardID)
	card, event, err := e.moveCardLocked(ctx, cardID, targetColumnID, position, actor)
	unlock()
	if err != nil {
		return nil, nil, err
	}

	e.sink.Emit(ObsCardMoved, map[string]any{
		"boardId":      card.BoardID,
		"cardId":       card.ID,
		"fromColumnId": event.FromColumnID,
		"toColumnId":   event.ToColumnID,
		"actor":        actor,
	})
	e.dispatch(ctx, event, card)
	return card, event, nil
}

func (e *Engine) moveCardLocked(ctx context.Context, cardID, targetColumnID string, position *int, actor string) (*models.Card, *models.CardEvent, error) {
	card, err := e.store.Card(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.activeBoard(ctx, card.BoardID); err != nil {
		return nil, nil, fmt.Errorf("move card %s: %w", cardID, err)
	}
	target, err := e.store.Column(ctx, targetColumnID)
	if err != nil {
		return nil, nil, err
	}
	if target.BoardID != card.BoardID {
		return nil, nil, fmt.Errorf("move card %s to column %s: %w", cardID, targetColumnID, ErrCrossBoardMove)
	}

	resident, err := e.store.ColumnCards(ctx, targetColumnID)
	if err != nil {
		return nil, nil, err
	}

	entering := card.ColumnID != targetColumnID
	if entering && !checkAdmission(target.WIPLimit, len(resident)) {
		return nil, nil, fmt.Errorf("column %s at limit %d: %w", targetColumnID, target.WIPLimit, ErrWIPLimitExceeded)
	}

	// Resident set without the card itself, for same-column repositioning.
	others := resident[:0:0]
	for _, c := range resident {
		if c.ID != card.ID {
			others = append(others, c)
		}
	}

	pos := endPosition(others)
	if position != nil {
		pos = *position
		if pos < 0 {
			pos = 0
		}
		if end := endPosition(others); pos > end {
			pos = end
		}
	}

	now := e.now()
	fromColumn := card.ColumnID
	event := &models.CardEvent{
		ID:           uuid.NewString(),
		Kind:         models.EventMoved,
		CardID:       card.ID,
		BoardID:      card.BoardID,
		FromColumnID: fromColumn,
		ToColumnID:   targetColumnID,
		Actor:        actor,
		CreatedAt:    now,
	}

	err = e.store.Transaction(ctx, func(tx Store) error {
		// Shift residents at or past the insertion point so positions stay
		// a total order.
		for i := range others {
			if others[i].Position >= pos {
				others[i].Position++
				if err := tx.Update(ctx, &others[i]); err != nil {
					return err
				}
			}
		}
		card.ColumnID = targetColumnID
		card.Position = pos
		card.UpdatedAt = now
		if err := tx.Update(ctx, card); err != nil {
			return err
		}
		return tx.Insert(ctx, event)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("move card %s: %w", cardID, err)
	}
	return card, event, nil
}
