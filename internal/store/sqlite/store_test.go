package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/errors"
	"github.com/threadstash/threadstash-server/internal/search"
	"github.com/threadstash/threadstash-server/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func testCapture(n int) *domain.ThreadCapture {
	return &domain.ThreadCapture{
		URL:            fmt.Sprintf("https://example.com/status/%d", n),
		AuthorUsername: "gopher",
		AuthorName:     "The Gopher",
		Posts: []domain.Post{
			{ID: fmt.Sprintf("p%d", n), Text: fmt.Sprintf("post number %d", n), Timestamp: time.Now()},
		},
	}
}

func attachTag(t *testing.T, s *Store, threadID, tagID string) {
	t.Helper()
	_, err := s.AddTagToThread(context.Background(), threadID, tagID)
	require.NoError(t, err)
}

func TestInitializeSeedsDefaults(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrentVersion, meta.Version)
	assert.Equal(t, 0, meta.ThreadCount)

	coll, err := s.GetCollection(ctx, domain.DefaultCollectionID)
	require.NoError(t, err)
	assert.True(t, coll.IsDefault())

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.PendingChanges)

	prefs, err := s.GetPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "system", prefs.Theme)
}

func TestInitializeMigratesOlderVersion(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`UPDATE meta SET version = 0 WHERE id = 1`)
	require.NoError(t, err)

	// Reopening (re-running initialize) brings the stamp back to current.
	require.NoError(t, s.initialize())

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CurrentVersion, meta.Version)
}

func TestSaveThreadRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	got, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, thread.ID, got.ID)
	assert.Equal(t, domain.DefaultCollectionID, got.CollectionID)
	assert.Equal(t, thread.Posts[0].Text, got.Posts[0].Text)
	assert.Equal(t, 1, got.Metadata.PostCount)

	coll, err := s.GetCollection(ctx, domain.DefaultCollectionID)
	require.NoError(t, err)
	assert.True(t, coll.ContainsThread(thread.ID))

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.ThreadCount)
	assert.Positive(t, meta.StorageUsed)
}

func TestSaveThreadEmptyRejected(t *testing.T) {
	s := setupTestStore(t)

	capture := testCapture(1)
	capture.Posts = nil
	_, err := s.SaveThread(context.Background(), capture)
	assert.ErrorIs(t, err, errors.ErrEmptyThread)
}

func TestQuotaEnforced(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath, 2, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.SaveThread(ctx, testCapture(i))
		require.NoError(t, err)
	}

	_, err = s.SaveThread(ctx, testCapture(99))
	assert.ErrorIs(t, err, errors.ErrStorageLimitReached)

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, meta.ThreadCount)

	// Premium lifts the quota.
	require.NoError(t, s.CreateAccount(ctx, &domain.User{
		ID: "user-1", Email: "owner@example.com", PasswordHash: "x",
		IsPremium: true, CreatedAt: time.Now(),
	}))
	_, err = s.SaveThread(ctx, testCapture(100))
	assert.NoError(t, err)
}

func TestDeleteThreadIdempotence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	require.NoError(t, s.DeleteThread(ctx, thread.ID))
	err = s.DeleteThread(ctx, thread.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, meta.ThreadCount)
}

func TestDeleteThreadCascadesTagCounts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	tag := &domain.Tag{ID: "tag-go", Name: "go", CreatedAt: time.Now()}
	require.NoError(t, s.CreateTag(ctx, tag))
	attachTag(t, s, thread.ID, tag.ID)

	require.NoError(t, s.DeleteThread(ctx, thread.ID))

	got, err := s.GetTag(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ThreadCount)
}

func TestTagIdempotenceAndFloor(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	tag := &domain.Tag{ID: "tag-go", Name: "go", CreatedAt: time.Now()}
	require.NoError(t, s.CreateTag(ctx, tag))

	attached, err := s.AddTagToThread(ctx, thread.ID, tag.ID)
	require.NoError(t, err)
	assert.True(t, attached)
	attached, err = s.AddTagToThread(ctx, thread.ID, tag.ID)
	require.NoError(t, err)
	assert.False(t, attached)

	got, err := s.GetTag(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ThreadCount)

	detached, err := s.RemoveTagFromThread(ctx, thread.ID, tag.ID)
	require.NoError(t, err)
	assert.True(t, detached)
	detached, err = s.RemoveTagFromThread(ctx, thread.ID, tag.ID)
	require.NoError(t, err)
	assert.False(t, detached)

	got, err = s.GetTag(ctx, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ThreadCount)

	updated, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.Tags)
}

func TestDeleteTagSweeps(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tag := &domain.Tag{ID: "tag-go", Name: "go", CreatedAt: time.Now()}
	require.NoError(t, s.CreateTag(ctx, tag))

	var ids []string
	for i := 0; i < 3; i++ {
		thread, err := s.SaveThread(ctx, testCapture(i))
		require.NoError(t, err)
		attachTag(t, s, thread.ID, tag.ID)
		ids = append(ids, thread.ID)
	}

	require.NoError(t, s.DeleteTag(ctx, tag.ID))

	for _, threadID := range ids {
		thread, err := s.GetThread(ctx, threadID)
		require.NoError(t, err)
		assert.False(t, thread.HasTag(tag.ID))
	}
}

func TestDefaultCollectionProtected(t *testing.T) {
	s := setupTestStore(t)

	err := s.DeleteCollection(context.Background(), domain.DefaultCollectionID)
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestDeleteCollectionReassigns(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	coll := &domain.Collection{ID: "coll-temp", Name: "Temp", CreatedAt: time.Now()}
	require.NoError(t, s.CreateCollection(ctx, coll))

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)
	require.NoError(t, s.MoveThreadToCollection(ctx, thread.ID, coll.ID))

	require.NoError(t, s.DeleteCollection(ctx, coll.ID))

	got, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCollectionID, got.CollectionID)

	fallback, err := s.GetCollection(ctx, domain.DefaultCollectionID)
	require.NoError(t, err)
	assert.True(t, fallback.ContainsThread(thread.ID))
}

func TestListThreadsFilters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	other := testCapture(2)
	other.AuthorUsername = "someone_else"
	_, err = s.SaveThread(ctx, other)
	require.NoError(t, err)

	byAuthor, err := s.ListThreads(ctx, store.ListFilters{Author: "GOPHER"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, first.ID, byAuthor[0].ID)

	// Author is a substring match, not an exact one.
	byAuthorPart, err := s.ListThreads(ctx, store.ListFilters{Author: "opher"})
	require.NoError(t, err)
	require.Len(t, byAuthorPart, 1)
	assert.Equal(t, first.ID, byAuthorPart[0].ID)

	limited, err := s.ListThreads(ctx, store.ListFilters{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListThreadsSearchAndTagFilters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := testCapture(1)
	first.Posts[0].Text = "Deploying SQLite in production"
	saved1, err := s.SaveThread(ctx, first)
	require.NoError(t, err)

	second := testCapture(2)
	second.Posts[0].Text = "A thread about gardening"
	saved2, err := s.SaveThread(ctx, second)
	require.NoError(t, err)

	_, err = s.SaveThread(ctx, testCapture(3))
	require.NoError(t, err)

	goTag := &domain.Tag{ID: "tag-go", Name: "go", CreatedAt: time.Now()}
	dbTag := &domain.Tag{ID: "tag-db", Name: "databases", CreatedAt: time.Now()}
	require.NoError(t, s.CreateTag(ctx, goTag))
	require.NoError(t, s.CreateTag(ctx, dbTag))
	attachTag(t, s, saved1.ID, dbTag.ID)
	attachTag(t, s, saved2.ID, goTag.ID)

	// Search is a case-insensitive substring over post text.
	bySearch, err := s.ListThreads(ctx, store.ListFilters{Search: "SQLITE IN PROD"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, saved1.ID, bySearch[0].ID)

	none, err := s.ListThreads(ctx, store.ListFilters{Search: "kubernetes"})
	require.NoError(t, err)
	assert.Empty(t, none)

	// Any of the given tags qualifies a thread.
	byTags, err := s.ListThreads(ctx, store.ListFilters{TagIDs: []string{goTag.ID, dbTag.ID}})
	require.NoError(t, err)
	assert.Len(t, byTags, 2)

	// Filters are a conjunction: tag AND search must both hold.
	both, err := s.ListThreads(ctx, store.ListFilters{
		TagIDs: []string{goTag.ID, dbTag.ID},
		Search: "gardening",
	})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, saved2.ID, both[0].ID)
}

func TestUpdateThread(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	name := "Renamed"
	updated, err := s.UpdateThread(ctx, thread.ID, store.ThreadUpdate{AuthorName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.AuthorName)
	assert.False(t, updated.LastModified.IsZero())

	_, err = s.UpdateThread(ctx, thread.ID, store.ThreadUpdate{Posts: []domain.Post{}})
	assert.ErrorIs(t, err, errors.ErrEmptyThread)
}

func TestSearchThreadsFixture(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	capture := &domain.ThreadCapture{
		URL:            "https://example.com/status/1",
		AuthorUsername: "elonmusk",
		AuthorName:     "Elon Musk",
		Posts:          []domain.Post{{ID: "p1", Text: "rockets are fun"}},
	}
	_, err := s.SaveThread(ctx, capture)
	require.NoError(t, err)

	results, err := s.SearchThreads(ctx, "elon", search.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 35, results[0].Score)
	assert.Len(t, results[0].Matches, 2)
}

func TestSyncChangeLog(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)
	require.NoError(t, s.DeleteThread(ctx, thread.ID))

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	require.Len(t, state.PendingChanges, 2)
	assert.Equal(t, domain.ChangeOpSave, state.PendingChanges[0].Op)
	assert.Equal(t, domain.ChangeOpDelete, state.PendingChanges[1].Op)

	require.NoError(t, s.ClearPendingChanges(ctx, time.Now()))
	state, err = s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.PendingChanges)
	assert.NotNil(t, state.LastSync)
}

func TestAccountAndSessions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u := &domain.User{
		ID: "user-1", Email: "owner@example.com", PasswordHash: "hash",
		DisplayName: "Owner", CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateAccount(ctx, u))
	err := s.CreateAccount(ctx, u)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	got, err := s.GetAccountByEmail(ctx, "OWNER@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	sess := &domain.Session{
		ID: "sess-1", UserID: u.ID, RefreshTokenHash: "hash-1",
		CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.CreateSession(ctx, sess))

	byToken, err := s.GetSessionByRefreshToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, byToken.ID)

	require.NoError(t, s.DeleteSession(ctx, sess.ID))
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestGetStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.SaveThread(ctx, testCapture(i))
		require.NoError(t, err)
	}

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalThreads)
	assert.Equal(t, 2, stats.TotalPosts)
	assert.Equal(t, 1, stats.TotalCollections)
	assert.Equal(t, 1, stats.AverageThreadLength)
}
