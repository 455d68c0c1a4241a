package engine

import (
	"context"
	"fmt"

	"github.com/flowboard/flowboard/internal/models"
	"github.com/google/uuid"
)

// CreateBoard creates a board with the given columns, in order. Column
// positions are assigned from the slice order.
func (e *Engine) CreateBoard(ctx context.Context, name string, columns []models.Column) (*models.Board, error) {
	board := &models.Board{
		ID:     uuid.NewString(),
		Name:   name,
		Status: models.BoardActive,
	}

	err := e.store.Transaction(ctx, func(tx Store) error {
		if err := tx.Insert(ctx, board); err != nil {
			return err
		}
		for i := range columns {
			col := columns[i]
			col.ID = uuid.NewString()
			col.BoardID = board.ID
			col.Position = i
			if err := tx.Insert(ctx, &col); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}

	e.sink.Emit(ObsBoardCreated, map[string]any{
		"boardId": board.ID,
		"name":    board.Name,
	})
	return board, nil
}

// ArchiveBoard marks a board archived. Its history is retained; automation
// and metrics skip it from then on.
func (e *Engine) ArchiveBoard(ctx context.Context, boardID string) error {
	unlock := e.lockBoard(boardID)
	defer unlock()

	board, err := e.store.Board(ctx, boardID)
	if err != nil {
		return err
	}
	board.Status = models.BoardArchived
	if err := e.store.Update(ctx, board); err != nil {
		return fmt.Errorf("archive board %s: %w", boardID, err)
	}
	return nil
}

// activeBoard resolves a board and refuses mutations on archived ones.
// Archived boards keep their history readable but frozen.
func (e *Engine) activeBoard(ctx context.Context, boardID string) (*models.Board, error) {
	board, err := e.store.Board(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if board.Status == models.BoardArchived {
		return nil, fmt.Errorf("board %s: %w", boardID, ErrBoardArchived)
	}
	return board, nil
}

// SetStatusMapping replaces the board's column-to-external-status mapping
// and derives its inverse. Only the task sync bridge consults these.
func (e *Engine) SetStatusMapping(ctx context.Context, boardID string, columnToStatus map[string]string) error {
	unlock := e.lockBoard(boardID)
	defer unlock()

	board, err := e.store.Board(ctx, boardID)
	if err != nil {
		return err
	}
	inverse := make(map[string]string, len(columnToStatus))
	for col, status := range columnToStatus {
		inverse[status] = col
	}
	board.ColumnToStatus = columnToStatus
	board.StatusToColumn = inverse
	if err := e.store.Update(ctx, board); err != nil {
		return fmt.Errorf("set status mapping for board %s: %w", boardID, err)
	}
	return nil
}

// AddColumn appends a column at the end of the board.
func (e *Engine) AddColumn(ctx context.Context, boardID string, col models.Column) (*models.Column, error) {
	unlock := e.lockBoard(boardID)
	defer unlock()

	if _, err := e.activeBoard(ctx, boardID); err != nil {
		return nil, fmt.Errorf("add column: %w", err)
	}

	existing, err := e.store.Columns(ctx, boardID)
	if err != nil {
		return nil, err
	}

	col.ID = uuid.NewString()
	col.BoardID = boardID
	col.Position = len(existing)
	if err := e.store.Insert(ctx, &col); err != nil {
		return nil, fmt.Errorf("add column: %w", err)
	}
	return &col, nil
}

// ReorderColumns sets the board's column order to the given ID sequence.
// Every column of the board must appear exactly once.
func (e *Engine) ReorderColumns(ctx context.Context, boardID string, orderedIDs []string) error {
	unlock := e.lockBoard(boardID)
	defer unlock()

	if _, err := e.activeBoard(ctx, boardID); err != nil {
		return fmt.Errorf("reorder columns: %w", err)
	}

	columns, err := e.store.Columns(ctx, boardID)
	if err != nil {
		return err
	}
	if len(orderedIDs) != len(columns) {
		return fmt.Errorf("reorder columns: got %d ids, board has %d columns", len(orderedIDs), len(columns))
	}
	byID := make(map[string]*models.Column, len(columns))
	for i := range columns {
		byID[columns[i].ID] = &columns[i]
	}

	return e.store.Transaction(ctx, func(tx Store) error {
		for pos, id := range orderedIDs {
			col, ok := byID[id]
			if !ok {
				return fmt.Errorf("reorder columns: column %s: %w", id, ErrNotFound)
			}
			col.Position = pos
			if err := tx.Update(ctx, col); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetWIPLimit changes a column's WIP limit. Lowering the limit below the
// column's live occupancy never evicts cards; it emits a wip_limit:exceeded
// observation instead so collaborators can react.
func (e *Engine) SetWIPLimit(ctx context.Context, columnID string, limit int) error {
	if limit < 0 {
		return fmt.Errorf("set wip limit: negative limit %d", limit)
	}

	col, err := e.store.Column(ctx, columnID)
	if err != nil {
		return err
	}

	unlock := e.lockBoard(col.BoardID)
	defer unlock()

	col, err = e.store.Column(ctx, columnID)
	if err != nil {
		return err
	}
	if _, err := e.activeBoard(ctx, col.BoardID); err != nil {
		return fmt.Errorf("set wip limit: %w", err)
	}
	col.WIPLimit = limit
	if err := e.store.Update(ctx, col); err != nil {
		return fmt.Errorf("set wip limit on column %s: %w", columnID, err)
	}

	cards, err := e.store.ColumnCards(ctx, columnID)
	if err != nil {
		return err
	}
	if limit > 0 && len(cards) > limit {
		e.sink.Emit(ObsWIPLimitExceeded, map[string]any{
			"boardId":  col.BoardID,
			"columnId": col.ID,
			"limit":    limit,
			"count":    len(cards),
		})
	}
	return nil
}
