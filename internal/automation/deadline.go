package automation

import (
	"context"
	"time"

	"github.com/flowboard/flowboard/internal/models"
	"go.uber.org/zap"
)

// SweepDeadlines fires deadline:approaching rules for every active card
// whose due date falls within the window from now. It synthesizes trigger
// contexts only; nothing is appended to the history log. Callers run it on
// a schedule.
func (a *Engine) SweepDeadlines(ctx context.Context, now time.Time, window time.Duration) {
	store := a.core.Store()

	boards, err := store.Boards(ctx)
	if err != nil {
		zap.L().Error("Deadline sweep: board list failed", zap.Error(err))
		return
	}

	for _, board := range boards {
		if board.Status == models.BoardArchived {
			continue
		}

		columns, err := store.Columns(ctx, board.ID)
		if err != nil {
			zap.L().Error("Deadline sweep: column list failed", zap.String("boardId", board.ID), zap.Error(err))
			continue
		}
		terminal := make(map[string]bool)
		for _, col := range columns {
			if col.IsTerminal {
				terminal[col.ID] = true
			}
		}

		cards, err := store.BoardCards(ctx, board.ID)
		if err != nil {
			zap.L().Error("Deadline sweep: card list failed", zap.String("boardId", board.ID), zap.Error(err))
			continue
		}

		for i := range cards {
			card := &cards[i]
			if card.Status != models.CardActive || card.DueDate == nil {
				continue
			}
			if terminal[card.ColumnID] {
				continue
			}
			due := *card.DueDate
			if due.Before(now) || due.After(now.Add(window)) {
				continue
			}

			synthetic := &models.CardEvent{
				CardID:    card.ID,
				BoardID:   board.ID,
				Actor:     "system:deadline",
				CreatedAt: now,
			}
			a.run(ctx, models.TriggerDeadlineApproaching, synthetic, card, 0)
		}
	}
}
