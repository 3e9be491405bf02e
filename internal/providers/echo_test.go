package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pharbi/arachnid/internal/domain"
)

func TestEchoCompleteIncludesSystemPromptAndFirstLine(t *testing.T) {
	out, err := Echo{}.Complete(context.Background(), "do the thing\nmore detail", "You are a worker.", 0.5)
	require.NoError(t, err)
	assert.Contains(t, out, "You are a worker.")
	assert.Contains(t, out, "do the thing")
	assert.NotContains(t, out, "more detail")
}

func TestEchoValidateConfirmsNonEmptyOutput(t *testing.T) {
	judgment, _, _, err := Echo{}.Validate(context.Background(), "some output", domain.Context{})
	require.NoError(t, err)
	assert.Equal(t, domain.Confirm, judgment)
}

func TestEchoValidateChallengesEmptyOutput(t *testing.T) {
	judgment, _, _, err := Echo{}.Validate(context.Background(), "   ", domain.Context{})
	require.NoError(t, err)
	assert.Equal(t, domain.Challenge, judgment)
}

func TestHashEmbeddingIsDeterministic(t *testing.T) {
	e := HashEmbedding{Dim: 16}
	v1, err := e.Embed(context.Background(), "build a web scraper")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "build a web scraper")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 16, v1.Dim())
}

func TestHashEmbeddingDistinguishesDistinctText(t *testing.T) {
	e := HashEmbedding{Dim: 16}
	v1, err := e.Embed(context.Background(), "alpha beta gamma")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "completely unrelated words here")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}
