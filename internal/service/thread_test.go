package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/search"
)

func TestSaveAndGetThread(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	thread, err := env.threads.Save(ctx, testSaveRequest(1))
	require.NoError(t, err)
	assert.Equal(t, "gopher", thread.AuthorUsername)

	got, err := env.threads.Get(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, got.ID)

	// Get records the access
	stored, err := env.store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastAccessed.After(thread.LastAccessed))
}

func TestSaveThreadValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	req := testSaveRequest(1)
	req.URL = "not a url"
	_, err := env.threads.Save(ctx, req)
	assert.ErrorIs(t, err, errors.ErrValidation)

	req = testSaveRequest(2)
	req.Posts = nil
	_, err = env.threads.Save(ctx, req)
	assert.ErrorIs(t, err, errors.ErrEmptyThread)
}

func TestUpdateThread(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	thread, err := env.threads.Save(ctx, testSaveRequest(1))
	require.NoError(t, err)

	name := "Renamed Gopher"
	updated, err := env.threads.Update(ctx, thread.ID, UpdateRequest{AuthorName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Gopher", updated.AuthorName)
}

func TestMoveThread(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	thread, err := env.threads.Save(ctx, testSaveRequest(1))
	require.NoError(t, err)

	coll, err := env.colls.Create(ctx, CreateCollectionRequest{Name: "Reading List"})
	require.NoError(t, err)

	require.NoError(t, env.threads.Move(ctx, thread.ID, coll.ID))

	got, err := env.store.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, coll.ID, got.CollectionID)

	err = env.threads.Move(ctx, thread.ID, "")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestExportThread(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	thread, err := env.threads.Save(ctx, testSaveRequest(1))
	require.NoError(t, err)

	result, err := env.threads.Export(ctx, thread.ID, "markdown")
	require.NoError(t, err)
	assert.Contains(t, result.Content, "# Thread by")
	assert.Equal(t, "text/markdown; charset=utf-8", result.ContentType)
	assert.Equal(t, "gopher-thread.md", result.Filename)

	_, err = env.threads.Export(ctx, thread.ID, "xml")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = env.threads.Export(ctx, "thr_missing", "json")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSearchService(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.threads.Save(ctx, testSaveRequest(1))
	require.NoError(t, err)

	results, err := env.search.Search(ctx, "gopher", search.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Blank queries return nothing
	results, err = env.search.Search(ctx, "   ", search.Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStatsService(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.threads.Save(ctx, testSaveRequest(i))
		require.NoError(t, err)
	}

	stats, err := env.search.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalThreads)
	assert.Equal(t, "gopher", stats.TopAuthors[0].Author)
}

func TestSyncServiceAcknowledge(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	_, err := env.threads.Save(ctx, testSaveRequest(1))
	require.NoError(t, err)

	state, err := env.sync.State(ctx)
	require.NoError(t, err)
	assert.Len(t, state.PendingChanges, 1)

	require.NoError(t, env.sync.Acknowledge(ctx))

	state, err = env.sync.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.PendingChanges)
	assert.NotNil(t, state.LastSync)
}

func TestSettingsService(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	prefs, err := env.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "system", prefs.Theme)

	theme := "dark"
	updated, err := env.settings.Update(ctx, UpdatePrefsRequest{Theme: &theme})
	require.NoError(t, err)
	assert.Equal(t, "dark", updated.Theme)
	assert.Equal(t, "markdown", updated.DefaultExportFormat)

	bad := "neon"
	_, err = env.settings.Update(ctx, UpdatePrefsRequest{Theme: &bad})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestTagServiceLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	thread, err := env.threads.Save(ctx, testSaveRequest(1))
	require.NoError(t, err)

	tag, err := env.tags.Create(ctx, CreateTagRequest{Name: "  golang  ", Color: "#00add8"})
	require.NoError(t, err)
	assert.Equal(t, "golang", tag.Name)
	assert.Equal(t, 0, tag.ThreadCount)

	attached, err := env.tags.Attach(ctx, thread.ID, tag.ID)
	require.NoError(t, err)
	assert.True(t, attached)
	got, err := env.tags.Get(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ThreadCount)

	// Attaching again reports no change.
	attached, err = env.tags.Attach(ctx, thread.ID, tag.ID)
	require.NoError(t, err)
	assert.False(t, attached)

	detached, err := env.tags.Detach(ctx, thread.ID, tag.ID)
	require.NoError(t, err)
	assert.True(t, detached)
	got, err = env.tags.Get(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ThreadCount)
}
