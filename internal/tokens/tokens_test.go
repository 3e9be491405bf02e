package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountIsPositiveForNonEmptyText(t *testing.T) {
	assert.Greater(t, Count("the quick brown fox"), 0)
	assert.Equal(t, 0, Count(""))
}

func TestTruncateToIsNoOpUnderBudget(t *testing.T) {
	text := "short text"
	assert.Equal(t, text, TruncateTo(text, 1000))
}

func TestTruncateToShrinksLongText(t *testing.T) {
	text := strings.Repeat("word ", 5000)
	out := TruncateTo(text, 10)
	assert.Less(t, len(out), len(text))
}

func TestTruncateToZeroBudgetIsNoOp(t *testing.T) {
	text := "anything at all"
	assert.Equal(t, text, TruncateTo(text, 0))
}

func TestEstimateFastNeverZeroForNonEmpty(t *testing.T) {
	assert.GreaterOrEqual(t, EstimateFast("a"), 1)
}
