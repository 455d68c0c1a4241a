package engine

import "errors"

// Error taxonomy for engine mutations. Callers should test with errors.Is;
// all engine errors wrap one of these sentinels.
var (
	// ErrNotFound is returned when a board, column, card or rule does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCrossBoardMove is returned when a move targets a column on a
	// different board. Cross-board moves are a configuration error, never
	// retried.
	ErrCrossBoardMove = errors.New("target column belongs to a different board")

	// ErrWIPLimitExceeded is returned when admission into a column would
	// exceed its WIP limit. The requested mutation leaves no partial state.
	ErrWIPLimitExceeded = errors.New("wip limit exceeded")

	// ErrInvalidRuleDefinition is returned when saving a rule with an unknown
	// trigger, an unknown action type, or a condition outside the grammar.
	ErrInvalidRuleDefinition = errors.New("invalid rule definition")

	// ErrBoardArchived is returned for mutations against an archived board.
	ErrBoardArchived = errors.New("board is archived")
)
