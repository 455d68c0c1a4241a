// Package engine implements the kanban board core: the board/column/card
// state model, WIP enforcement, the card movement protocol and the
// append-only history log. Automation and metrics build on top of it.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/flowboard/flowboard/internal/models"
)

// EventHandler is invoked after every committed CardEvent. The automation
// engine registers itself here; the handler runs synchronously with respect
// to the triggering mutation, after the mutation has committed.
type EventHandler func(ctx context.Context, event *models.CardEvent, card *models.Card)

// Engine owns all board mutations. Mutations against one board are
// serialized by a per-board lock so a WIP check and its commit form one
// atomic unit. Construct with New; the zero value is not usable.
type Engine struct {
	store   Store
	sink    Sink
	now     func() time.Time
	onEvent EventHandler

	locks sync.Map // board id -> *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink sets the observation/notification sink.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		sink:  LogSink{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the engine's record store.
func (e *Engine) Store() Store { return e.store }

// Sink returns the engine's observation sink.
func (e *Engine) Sink() Sink { return e.sink }

// SetEventHandler registers the handler called after each committed event.
// Must be called before the engine starts serving mutations.
func (e *Engine) SetEventHandler(h EventHandler) { e.onEvent = h }

// lockBoard acquires the mutation lock for a board and returns the release
// function.
func (e *Engine) lockBoard(boardID string) func() {
	v, _ := e.locks.LoadOrStore(boardID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// dispatch forwards a committed event to the registered handler. It runs
// outside the board lock so handler-initiated mutations re-enter through
// the same guarded path as any other caller.
func (e *Engine) dispatch(ctx context.Context, event *models.CardEvent, card *models.Card) {
	if e.onEvent != nil {
		e.onEvent(ctx, event, card)
	}
}
