package condition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() Context {
	return Context{
		"priority": "urgent",
		"assignee": "dana",
		"position": float64(3),
		"labels":   []string{"bug", "backend"},
		"title":    "Fix login timeout",
		"dueDate":  nil,
		"card": map[string]any{
			"priority": "urgent",
			"position": float64(3),
		},
		"event": map[string]any{
			"kind":         "moved",
			"toColumnId":   "col-b",
			"fromColumnId": "col-a",
		},
	}
}

func TestEvaluateComparisons(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`priority == "urgent"`, true},
		{`priority == 'urgent'`, true},
		{`priority != "low"`, true},
		{`position > 2`, true},
		{`position >= 3`, true},
		{`position < 3`, false},
		{`position <= 2`, false},
		{`assignee == "dana" && priority == "urgent"`, true},
		{`assignee == "bob" || priority == "urgent"`, true},
		{`!(assignee == "bob")`, true},
		{`card.priority == "urgent"`, true},
		{`event.kind == "moved"`, true},
		{`event.toColumnId == "col-b" && event.fromColumnId != "col-b"`, true},
		{`dueDate == null`, true},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.expr, testContext())
		require.NoError(t, err, "expr %q", tt.expr)
		assert.Equal(t, tt.want, got, "expr %q", tt.expr)
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{`position + 1 == 4`, true},
		{`position - 1 == 2`, true},
		{`position * 2 == 6`, true},
		{`position / 3 == 1`, true},
		{`position % 2 == 1`, true},
		{`-position == -3`, true},
		{`1 + 2 * 3 == 7`, true},
		{`(1 + 2) * 3 == 9`, true},
	}
	for _, tt := range tests {
		got, err := Evaluate(tt.expr, testContext())
		require.NoError(t, err, "expr %q", tt.expr)
		assert.Equal(t, tt.want, got, "expr %q", tt.expr)
	}
}

func TestEvaluatePredicates(t *testing.T) {
	ctx := testContext()

	got, err := Evaluate(`includes(labels, "bug")`, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Evaluate(`includes(labels, "frontend")`, ctx)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate(`match(title, "^Fix")`, ctx)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Evaluate(`match(title, "deploy")`, ctx)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestParseRejectsOutsideGrammar(t *testing.T) {
	exprs := []string{
		``,
		`priority ==`,
		`(priority == "urgent"`,
		`priority == "urgent" &&`,
		`delete(labels)`,
		`includes(labels)`,
		`match(title, "x", "y")`,
		`os.exit(1)`,
		`priority = "urgent"`,
		`"unterminated`,
	}
	for _, expr := range exprs {
		_, err := Parse(expr)
		require.Error(t, err, "expr %q", expr)
		assert.ErrorIs(t, err, ErrParse, "expr %q", expr)
	}
}

func TestEvaluationFailsClosed(t *testing.T) {
	tests := []string{
		`nonexistent == "x"`,
		`card.nonexistent == 1`,
		`priority + 1 == 2`,
		`position / 0 == 1`,
		`position % 0 == 1`,
		`!priority`,
		`priority && true`,
		`position < "three"`,
		`includes(priority, "x")`,
		`match(position, "x")`,
		`match(title, "(unclosed")`,
		`position + 1`,
	}
	for _, expr := range tests {
		got, err := Evaluate(expr, testContext())
		require.Error(t, err, "expr %q", expr)
		assert.False(t, got, "expr %q", expr)
		assert.True(t, errors.Is(err, ErrEvaluation), "expr %q should fail closed, got %v", expr, err)
	}
}

func TestShortCircuit(t *testing.T) {
	// The right side would error, but the left side decides.
	got, err := Evaluate(`priority == "low" && nonexistent == 1`, testContext())
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate(`priority == "urgent" || nonexistent == 1`, testContext())
	require.NoError(t, err)
	assert.True(t, got)
}

func TestStringOrdering(t *testing.T) {
	got, err := Evaluate(`assignee < "zed"`, testContext())
	require.NoError(t, err)
	assert.True(t, got)
}
