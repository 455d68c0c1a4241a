package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/flowboard/flowboard/internal/engine"
	"github.com/flowboard/flowboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordSink captures observations for assertions.
type recordSink struct {
	mu       sync.Mutex
	events   []string
	payloads []map[string]any
}

func (s *recordSink) Emit(event string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	s.payloads = append(s.payloads, payload)
}

func (s *recordSink) Notify(recipients []string, message string, data map[string]any) {}

func (s *recordSink) has(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e == event {
			return true
		}
	}
	return false
}

// stepClock hands out strictly increasing timestamps so event ordering is
// deterministic.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestEngine(t *testing.T, opts ...engine.Option) (*engine.Engine, *recordSink) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Board{},
		&models.Column{},
		&models.Card{},
		&models.CardEvent{},
		&models.AutomationRule{},
	))

	sink := &recordSink{}
	opts = append([]engine.Option{engine.WithSink(sink), engine.WithClock(stepClock())}, opts...)
	return engine.New(engine.NewStore(db), opts...), sink
}

// seedBoard creates a board with Backlog, In Progress (WIP 2) and Done
// (terminal) columns.
func seedBoard(t *testing.T, e *engine.Engine) (*models.Board, []models.Column) {
	t.Helper()
	board, err := e.CreateBoard(context.Background(), "Release board", []models.Column{
		{Name: "Backlog"},
		{Name: "In Progress", WIPLimit: 2},
		{Name: "Done", IsTerminal: true},
	})
	require.NoError(t, err)

	columns, err := e.Store().Columns(context.Background(), board.ID)
	require.NoError(t, err)
	require.Len(t, columns, 3)
	return board, columns
}

func mkCard(t *testing.T, e *engine.Engine, boardID, columnID, title string) *models.Card {
	t.Helper()
	card, _, err := e.CreateCard(context.Background(), boardID, columnID, engine.CardDraft{Title: title}, "tester")
	require.NoError(t, err)
	return card
}

func TestCreateBoardAndColumns(t *testing.T) {
	e, sink := newTestEngine(t)
	board, columns := seedBoard(t, e)

	assert.Equal(t, models.BoardActive, board.Status)
	assert.True(t, sink.has(engine.ObsBoardCreated))
	for i, col := range columns {
		assert.Equal(t, i, col.Position)
		assert.Equal(t, board.ID, col.BoardID)
	}
	assert.True(t, columns[2].IsTerminal)
}

func TestWIPLimitBlocksAdmission(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	backlog, inProgress := columns[0], columns[1]

	mkCard(t, e, board.ID, inProgress.ID, "one")
	mkCard(t, e, board.ID, inProgress.ID, "two")
	card3 := mkCard(t, e, board.ID, backlog.ID, "three")

	_, _, err := e.MoveCard(context.Background(), card3.ID, inProgress.ID, nil, "tester")
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrWIPLimitExceeded)

	// Move atomicity: the failed move left the card untouched.
	after, err := e.Store().Card(context.Background(), card3.ID)
	require.NoError(t, err)
	assert.Equal(t, backlog.ID, after.ColumnID)
	assert.Equal(t, card3.Position, after.Position)

	// Creating directly into the full column is refused the same way.
	_, _, err = e.CreateCard(context.Background(), board.ID, inProgress.ID, engine.CardDraft{Title: "four"}, "tester")
	assert.ErrorIs(t, err, engine.ErrWIPLimitExceeded)
}

func TestWIPInvariantUnderConcurrentMoves(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	backlog, inProgress := columns[0], columns[1]

	cards := make([]*models.Card, 6)
	for i := range cards {
		cards[i] = mkCard(t, e, board.ID, backlog.ID, "card")
	}

	var wg sync.WaitGroup
	for _, c := range cards {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			e.MoveCard(context.Background(), id, inProgress.ID, nil, "tester")
		}(c.ID)
	}
	wg.Wait()

	resident, err := e.Store().ColumnCards(context.Background(), inProgress.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(resident), 2)
}

func TestPositionTotality(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	backlog := columns[0]

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, mkCard(t, e, board.ID, backlog.ID, "card").ID)
	}

	// Reposition a few cards to the top and middle.
	top := 0
	_, _, err := e.MoveCard(context.Background(), ids[4], backlog.ID, &top, "tester")
	require.NoError(t, err)
	mid := 2
	_, _, err = e.MoveCard(context.Background(), ids[0], backlog.ID, &mid, "tester")
	require.NoError(t, err)

	resident, err := e.Store().ColumnCards(context.Background(), backlog.ID)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, c := range resident {
		assert.False(t, seen[c.Position], "duplicate position %d", c.Position)
		seen[c.Position] = true
	}
}

func TestMoveCardRejectsCrossBoard(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)

	other, err := e.CreateBoard(context.Background(), "Other board", []models.Column{{Name: "Inbox"}})
	require.NoError(t, err)
	otherCols, err := e.Store().Columns(context.Background(), other.ID)
	require.NoError(t, err)

	card := mkCard(t, e, board.ID, columns[0].ID, "stay home")
	_, _, err = e.MoveCard(context.Background(), card.ID, otherCols[0].ID, nil, "tester")
	assert.ErrorIs(t, err, engine.ErrCrossBoardMove)
}

func TestMoveCardNotFound(t *testing.T) {
	e, _ := newTestEngine(t)
	_, columns := seedBoard(t, e)

	_, _, err := e.MoveCard(context.Background(), "missing", columns[0].ID, nil, "tester")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestLoweringWIPLimitKeepsCards(t *testing.T) {
	e, sink := newTestEngine(t)
	board, columns := seedBoard(t, e)
	backlog := columns[0]

	for i := 0; i < 3; i++ {
		mkCard(t, e, board.ID, backlog.ID, "card")
	}

	require.NoError(t, e.SetWIPLimit(context.Background(), backlog.ID, 1))

	resident, err := e.Store().ColumnCards(context.Background(), backlog.ID)
	require.NoError(t, err)
	assert.Len(t, resident, 3, "shrinking a limit must not evict cards")
	assert.True(t, sink.has(engine.ObsWIPLimitExceeded))
}

func TestUpdateCardDiffAndEvents(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	card := mkCard(t, e, board.ID, columns[0].ID, "draft title")

	title := "final title"
	prio := models.PriorityUrgent
	_, event, err := e.UpdateCard(context.Background(), card.ID, engine.CardPatch{
		Title:    &title,
		Priority: &prio,
	}, "tester")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, models.EventUpdated, event.Kind)
	assert.Contains(t, event.Changes, "title")
	assert.Contains(t, event.Changes, "priority")
	assert.Equal(t, "draft title", event.Changes["title"].From)

	// A patch that changes nothing commits nothing.
	_, event, err = e.UpdateCard(context.Background(), card.ID, engine.CardPatch{Title: &title}, "tester")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestHistoryReplayRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	ctx := context.Background()

	due := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	card, _, err := e.CreateCard(ctx, board.ID, columns[0].ID, engine.CardDraft{
		Title:    "replayable",
		Priority: models.PriorityHigh,
		Labels:   []string{"infra", "bug"},
		DueDate:  &due,
	}, "tester")
	require.NoError(t, err)

	assignee := "dana"
	_, _, err = e.UpdateCard(ctx, card.ID, engine.CardPatch{Assignee: &assignee}, "tester")
	require.NoError(t, err)
	_, _, err = e.AddLabels(ctx, card.ID, []string{"urgent-fix"}, "tester")
	require.NoError(t, err)
	_, _, err = e.MoveCard(ctx, card.ID, columns[1].ID, nil, "tester")
	require.NoError(t, err)
	_, _, err = e.MoveCard(ctx, card.ID, columns[2].ID, nil, "tester")
	require.NoError(t, err)

	current, err := e.Store().Card(ctx, card.ID)
	require.NoError(t, err)
	events, err := e.Store().CardEvents(ctx, card.ID)
	require.NoError(t, err)

	state := engine.ReplayCard(events)
	assert.Equal(t, current.ColumnID, state.ColumnID)
	assert.Equal(t, current.Title, state.Title)
	assert.Equal(t, current.Priority, state.Priority)
	assert.Equal(t, current.Assignee, state.Assignee)
	assert.Equal(t, current.Labels, state.Labels)
	assert.Equal(t, due.Format(time.RFC3339), state.DueDate)
	assert.Equal(t, current.Status, state.Status)
}

func TestRemoveCardKeepsHistory(t *testing.T) {
	e, sink := newTestEngine(t)
	board, columns := seedBoard(t, e)
	ctx := context.Background()

	card := mkCard(t, e, board.ID, columns[0].ID, "short lived")
	event, err := e.RemoveCard(ctx, card.ID, "tester")
	require.NoError(t, err)
	require.NotNil(t, event)

	// Removal is an "updated" commit like any other: sinks observe it.
	assert.True(t, sink.has(engine.ObsCardUpdated))

	// Removing an already removed card commits nothing.
	event, err = e.RemoveCard(ctx, card.ID, "tester")
	require.NoError(t, err)
	assert.Nil(t, event)

	after, err := e.Store().Card(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardRemoved, after.Status)

	events, err := e.Store().CardEvents(ctx, card.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	state := engine.ReplayCard(events)
	assert.Equal(t, models.CardRemoved, state.Status)
}

func TestSaveRuleValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	ctx := context.Background()

	_, err := e.SaveRule(ctx, models.AutomationRule{
		BoardID:    board.ID,
		Name:       "bad trigger",
		Trigger:    "card:teleported",
		ActionType: models.ActionNotify,
		ActionParams: map[string]any{
			"message": "hi",
		},
	})
	assert.ErrorIs(t, err, engine.ErrInvalidRuleDefinition)

	_, err = e.SaveRule(ctx, models.AutomationRule{
		BoardID:      board.ID,
		Name:         "bad action",
		Trigger:      models.TriggerCardCreated,
		ActionType:   "explode",
		ActionParams: map[string]any{},
	})
	assert.ErrorIs(t, err, engine.ErrInvalidRuleDefinition)

	_, err = e.SaveRule(ctx, models.AutomationRule{
		BoardID:    board.ID,
		Name:       "bad condition",
		Trigger:    models.TriggerCardMoved,
		Condition:  `os.exit(1)`,
		ActionType: models.ActionAddLabel,
		ActionParams: map[string]any{
			"labels": []string{"x"},
		},
	})
	assert.ErrorIs(t, err, engine.ErrInvalidRuleDefinition)

	_, err = e.SaveRule(ctx, models.AutomationRule{
		BoardID:    board.ID,
		Name:       "missing param",
		Trigger:    models.TriggerCardMoved,
		ActionType: models.ActionMoveCard,
	})
	assert.ErrorIs(t, err, engine.ErrInvalidRuleDefinition)

	// Labels must be a string or list of strings, not just present.
	for _, labels := range []any{42, "", []string{}, []any{"ok", 7}} {
		_, err = e.SaveRule(ctx, models.AutomationRule{
			BoardID:    board.ID,
			Name:       "bad labels shape",
			Trigger:    models.TriggerCardMoved,
			ActionType: models.ActionAddLabel,
			ActionParams: map[string]any{
				"labels": labels,
			},
		})
		assert.ErrorIs(t, err, engine.ErrInvalidRuleDefinition, "labels %#v", labels)
	}

	rule, err := e.SaveRule(ctx, models.AutomationRule{
		BoardID:    board.ID,
		Name:       "good",
		Trigger:    models.TriggerCardMoved,
		Condition:  `priority == "urgent"`,
		ActionType: models.ActionMoveCard,
		ActionParams: map[string]any{
			"columnId": columns[1].ID,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RuleActive, rule.Status)
}

func TestSaveRuleUpdateStaysOnItsBoard(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	ctx := context.Background()

	other, err := e.CreateBoard(ctx, "Other board", []models.Column{{Name: "Inbox"}})
	require.NoError(t, err)

	rule, err := e.SaveRule(ctx, models.AutomationRule{
		BoardID:    board.ID,
		Name:       "homebound",
		Trigger:    models.TriggerCardMoved,
		ActionType: models.ActionAddLabel,
		ActionParams: map[string]any{
			"labels": []string{"seen"},
		},
	})
	require.NoError(t, err)

	// An update addressed to a different board must not re-home the rule.
	relocated := *rule
	relocated.BoardID = other.ID
	_, err = e.SaveRule(ctx, relocated)
	assert.ErrorIs(t, err, engine.ErrInvalidRuleDefinition)

	// A legitimate update keeps the rule's place in the evaluation order.
	second, err := e.SaveRule(ctx, models.AutomationRule{
		BoardID:    board.ID,
		Name:       "second",
		Trigger:    models.TriggerCardMoved,
		ActionType: models.ActionMoveCard,
		ActionParams: map[string]any{
			"columnId": columns[1].ID,
		},
	})
	require.NoError(t, err)

	updated := *rule
	updated.Name = "homebound, renamed"
	saved, err := e.SaveRule(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, models.RuleActive, saved.Status)

	rules, err := e.Store().Rules(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, rule.ID, rules[0].ID, "updates keep creation order")
	assert.Equal(t, "homebound, renamed", rules[0].Name)
	assert.Equal(t, second.ID, rules[1].ID)
}

func TestArchivedBoardRejectsMutations(t *testing.T) {
	e, _ := newTestEngine(t)
	board, columns := seedBoard(t, e)
	ctx := context.Background()

	card := mkCard(t, e, board.ID, columns[0].ID, "frozen in time")
	require.NoError(t, e.ArchiveBoard(ctx, board.ID))

	_, _, err := e.CreateCard(ctx, board.ID, columns[0].ID, engine.CardDraft{Title: "late"}, "tester")
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	_, _, err = e.MoveCard(ctx, card.ID, columns[1].ID, nil, "tester")
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	title := "revised"
	_, _, err = e.UpdateCard(ctx, card.ID, engine.CardPatch{Title: &title}, "tester")
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	_, _, err = e.AddLabels(ctx, card.ID, []string{"stale"}, "tester")
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	_, err = e.RemoveCard(ctx, card.ID, "tester")
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	_, err = e.AddColumn(ctx, board.ID, models.Column{Name: "Too late"})
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	err = e.SetWIPLimit(ctx, columns[0].ID, 1)
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	err = e.ReorderColumns(ctx, board.ID, []string{columns[2].ID, columns[1].ID, columns[0].ID})
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	_, err = e.Snapshot(ctx, board.ID)
	assert.ErrorIs(t, err, engine.ErrBoardArchived)

	// The archived card itself is untouched by the refused mutations.
	got, err := e.Store().Card(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "frozen in time", got.Title)
	assert.Equal(t, columns[0].ID, got.ColumnID)
	assert.Equal(t, models.CardActive, got.Status)
}
