package integrations

import (
	"context"
	"fmt"

	"github.com/flowboard/flowboard/internal/engine"
	"go.uber.org/zap"
)

// SyncActor is the actor recorded on moves initiated by external task
// updates.
const SyncActor = "system:tasksync"

// TaskSyncBridge translates between column membership and the external
// tracker's status vocabulary. Outbound it consumes card:moved observations
// and pushes the mapped status; inbound it maps a status back to a column
// and moves the card through the same movement controller as everyone else.
// A board without a mapping is a no-op in both directions.
type TaskSyncBridge struct {
	Core   *engine.Engine
	Client *TaskClient
}

// Emit implements engine.Sink. The push is fire-and-forget: a tracker
// failure never blocks or fails the originating mutation.
func (b *TaskSyncBridge) Emit(event string, payload map[string]any) {
	if event != engine.ObsCardMoved {
		return
	}
	boardID, _ := payload["boardId"].(string)
	cardID, _ := payload["cardId"].(string)
	toColumnID, _ := payload["toColumnId"].(string)
	actor, _ := payload["actor"].(string)

	// Moves we initiated ourselves must not echo back out.
	if actor == SyncActor {
		return
	}

	go func() {
		if err := b.pushMove(context.Background(), boardID, cardID, toColumnID); err != nil {
			zap.L().Warn("Task sync push failed",
				zap.String("boardId", boardID),
				zap.String("cardId", cardID),
				zap.Error(err))
		}
	}()
}

// Notify implements engine.Sink; the bridge has no notification role.
func (b *TaskSyncBridge) Notify(recipients []string, message string, data map[string]any) {}

func (b *TaskSyncBridge) pushMove(ctx context.Context, boardID, cardID, toColumnID string) error {
	store := b.Core.Store()

	board, err := store.Board(ctx, boardID)
	if err != nil {
		return err
	}
	status, mapped := board.ColumnToStatus[toColumnID]
	if !mapped {
		return nil
	}

	card, err := store.Card(ctx, cardID)
	if err != nil {
		return err
	}
	if card.ExternalTaskID == "" {
		return nil
	}

	if err := b.Client.UpdateTaskStatus(card.ExternalTaskID, status); err != nil {
		return fmt.Errorf("push status %q for task %s: %w", status, card.ExternalTaskID, err)
	}
	zap.L().Info("Pushed task status",
		zap.String("taskId", card.ExternalTaskID),
		zap.String("status", status))
	return nil
}

// ApplyExternalStatus handles an inbound task update: the status is mapped
// through the board's StatusToColumn and the linked card is moved. An
// unmapped status or an unlinked task is a no-op, not an error.
func (b *TaskSyncBridge) ApplyExternalStatus(ctx context.Context, boardID, externalTaskID, status string) error {
	store := b.Core.Store()

	board, err := store.Board(ctx, boardID)
	if err != nil {
		return err
	}
	columnID, mapped := board.StatusToColumn[status]
	if !mapped {
		return nil
	}

	card, err := store.CardByExternalID(ctx, boardID, externalTaskID)
	if err != nil {
		return err
	}
	if card.ColumnID == columnID {
		return nil
	}

	_, _, err = b.Core.MoveCard(ctx, card.ID, columnID, nil, SyncActor)
	return err
}
