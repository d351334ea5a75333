package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sarierrors "github.com/sari-dev/sari/internal/errors"
	"github.com/sari-dev/sari/internal/types"
)

func TestSnippet_SaveThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snip := types.Snippet{
		Tag: "hot-loop", Path: "root1/main.go", RootID: "root1",
		StartLine: 10, EndLine: 20, Content: "for i := range xs {}", ContentHash: "h1",
	}
	require.NoError(t, s.SaveSnippet(ctx, snip))

	got, err := s.GetSnippet(ctx, "hot-loop")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "for i := range xs {}", got.Content)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSnippet_ResaveArchivesPriorVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag := "hot-loop"
	require.NoError(t, s.SaveSnippet(ctx, types.Snippet{Tag: tag, Content: "v1", ContentHash: "h1"}))
	require.NoError(t, s.SaveSnippet(ctx, types.Snippet{Tag: tag, Content: "v2", ContentHash: "h2"}))

	hist, err := s.SnippetHistory(ctx, tag)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "v1", hist[0].Content)

	current, err := s.GetSnippet(ctx, tag)
	require.NoError(t, err)
	assert.Equal(t, "v2", current.Content)
}

func TestSnippet_GetMissingReturnsNilNotError(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetSnippet(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestContext_SaveThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := types.Context{
		Topic: "auth-migration", Content: "moving to session tokens",
		Tags: []string{"auth", "security"}, RelatedFiles: []string{"root1/auth.go"},
	}
	require.NoError(t, s.SaveContext(ctx, rec))

	got, err := s.GetContext(ctx, "auth-migration")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "moving to session tokens", got.Content)
	assert.ElementsMatch(t, []string{"auth", "security"}, got.Tags)
	assert.False(t, got.Deprecated)
}

func TestContext_ArchiveSetsDeprecatedAndValidUntil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveContext(ctx, types.Context{Topic: "old-topic", Content: "stale"}))
	require.NoError(t, s.ArchiveContext(ctx, "old-topic"))

	got, err := s.GetContext(ctx, "old-topic")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Deprecated)
	require.NotNil(t, got.ValidUntil)
}

func TestContext_ArchiveUnknownTopicIsInvalidArgs(t *testing.T) {
	s := newTestStore(t)
	err := s.ArchiveContext(context.Background(), "never-existed")
	assert.Error(t, err)
	code, ok := sarierrors.AsCode(err)
	require.True(t, ok)
	assert.Equal(t, sarierrors.InvalidArgs, code)
}
