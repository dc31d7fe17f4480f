package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracehq/trace/internal/storage"
	"github.com/tracehq/trace/internal/storage/storagetest"
	"github.com/tracehq/trace/internal/types"
)

func setupTestMemory(t *testing.T) *MemoryStorage {
	t.Helper()
	return New("")
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return setupTestMemory(t)
	})
}

func TestGetIssueReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := setupTestMemory(t)

	issue := &types.Issue{Title: "original", Priority: 2}
	require.NoError(t, store.CreateIssue(ctx, issue, "tester"))
	issue.Title = "mutated by caller"

	got, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)

	got.Title = "mutated again"
	again, err := store.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "", New("").Path())
	assert.Equal(t, "/tmp/x.db", New("/tmp/x.db").Path())
}
