package engine

import (
	"context"
	"fmt"

	"github.com/flowboard/flowboard/internal/metrics"
	"github.com/flowboard/flowboard/internal/models"
)

// Snapshot reads a consistent point-in-time view of a board for the
// metrics engine. All record sets are read inside one transaction so the
// view never interleaves with an in-flight mutation. Archived boards are
// excluded from metrics.
func (e *Engine) Snapshot(ctx context.Context, boardID string) (*metrics.Snapshot, error) {
	var snap metrics.Snapshot
	err := e.store.Transaction(ctx, func(tx Store) error {
		board, err := tx.Board(ctx, boardID)
		if err != nil {
			return err
		}
		if board.Status == models.BoardArchived {
			return fmt.Errorf("snapshot of board %s: %w", boardID, ErrBoardArchived)
		}
		snap.Board = *board

		if snap.Columns, err = tx.Columns(ctx, boardID); err != nil {
			return err
		}
		if snap.Cards, err = tx.BoardCards(ctx, boardID); err != nil {
			return err
		}
		snap.Events, err = tx.BoardEvents(ctx, boardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	snap.Now = e.now()
	return &snap, nil
}
