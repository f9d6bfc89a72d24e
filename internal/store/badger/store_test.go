package badger

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/store"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "threadstash-test-*")
	require.NoError(t, err)

	s, err := Open(tmpDir, 0, nil)
	require.NoError(t, err)
	require.NotNil(t, s)

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

// setupTestStoreWithQuota creates a store with a small quota for quota tests.
func setupTestStoreWithQuota(t *testing.T, maxFree int) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "threadstash-test-*")
	require.NoError(t, err)

	s, err := Open(tmpDir, maxFree, nil)
	require.NoError(t, err)

	cleanups := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}

	return s, cleanups
}

// testCapture builds a minimal valid capture payload.
func testCapture(n int) *domain.ThreadCapture {
	c := &domain.ThreadCapture{
		URL:            fmt.Sprintf("https://example.com/status/%d", n),
		AuthorUsername: "gopher",
		AuthorName:     "The Gopher",
		Likes:          10,
	}
	c.Posts = []domain.Post{
		{ID: fmt.Sprintf("p%d", n), Text: fmt.Sprintf("post number %d", n), Timestamp: time.Now()},
	}
	return c
}

func TestInitializeSeedsDefaults(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.CurrentVersion, meta.Version)
	require.Equal(t, 0, meta.ThreadCount)
	require.False(t, meta.InstalledAt.IsZero())

	coll, err := s.GetCollection(ctx, domain.DefaultCollectionID)
	require.NoError(t, err)
	require.True(t, coll.IsDefault())
	require.Empty(t, coll.ThreadIDs)

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	require.Empty(t, state.PendingChanges)
	require.False(t, state.SyncEnabled)

	prefs, err := s.GetPrefs(ctx)
	require.NoError(t, err)
	require.Equal(t, "system", prefs.Theme)
}

func TestInitializeMigratesOlderVersion(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	meta.Version = 0
	require.NoError(t, s.set(metaKey, meta))

	// Re-running initialize brings the stamp back to current.
	require.NoError(t, s.initialize())

	meta, err = s.GetMeta(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.CurrentVersion, meta.Version)
}

func TestIterateSkipsUnreadableDocuments(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	// Plant a document that is not valid JSON next to the real one.
	require.NoError(t, s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(threadPrefix+"thr-corrupt"), []byte("{not json"))
	}))

	threads, err := s.ListThreads(ctx, store.ListFilters{})
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Equal(t, thread.ID, threads[0].ID)
}

func TestReopenPreservesState(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "threadstash-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	s, err := Open(tmpDir, 0, nil)
	require.NoError(t, err)

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reinitializing must not reset anything.
	s, err = Open(tmpDir, 0, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetThread(ctx, thread.ID)
	require.NoError(t, err)
	require.Equal(t, thread.ID, got.ID)

	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, meta.ThreadCount)
}
