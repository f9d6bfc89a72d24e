package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/store/badger"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := badger.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestService(t *testing.T, st store.Store, backupDir string) *Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, backupDir, "Test Server", "dev", logger)
}

func saveThread(t *testing.T, st store.Store, n int) *domain.Thread {
	t.Helper()

	thread, err := st.SaveThread(context.Background(), &domain.ThreadCapture{
		URL:            fmt.Sprintf("https://example.com/status/%d", n),
		AuthorUsername: "gopher",
		AuthorName:     "The Gopher",
		Posts: []domain.Post{
			{ID: fmt.Sprintf("p%d", n), Text: fmt.Sprintf("post %d", n), Timestamp: time.Now()},
		},
	})
	require.NoError(t, err)
	return thread
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	backupDir := t.TempDir()
	svc := newTestService(t, st, backupDir)

	saveThread(t, st, 1)
	saveThread(t, st, 2)

	info, err := svc.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Greater(t, info.Size, int64(0))

	snapshots, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, info.ID, snapshots[0].ID)

	got, err := svc.Get(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info.Path, got.Path)
}

func TestGetMissingSnapshot(t *testing.T) {
	svc := newTestService(t, newTestStore(t), t.TempDir())

	_, err := svc.Get(context.Background(), "backup-nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestListEmptyDir(t *testing.T) {
	svc := newTestService(t, newTestStore(t), t.TempDir()+"/never-created")

	snapshots, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func TestDeleteSnapshot(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := newTestService(t, st, t.TempDir())
	saveThread(t, st, 1)

	info, err := svc.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, info.ID))
	assert.ErrorIs(t, svc.Delete(ctx, info.ID), ErrSnapshotNotFound)
}

func TestRestoreIntoFreshStore(t *testing.T) {
	ctx := context.Background()
	backupDir := t.TempDir()

	// Populate a source store: two threads, one tagged, one in a custom collection.
	src := newTestStore(t)
	srcSvc := newTestService(t, src, backupDir)

	t1 := saveThread(t, src, 1)
	t2 := saveThread(t, src, 2)

	collID, err := id.Generate(id.PrefixCollection)
	require.NoError(t, err)
	require.NoError(t, src.CreateCollection(ctx, &domain.Collection{
		ID: collID, Name: "Reading List", CreatedAt: time.Now(), ThreadIDs: []string{},
	}))
	require.NoError(t, src.MoveThreadToCollection(ctx, t1.ID, collID))

	tagID, err := id.Generate(id.PrefixTag)
	require.NoError(t, err)
	require.NoError(t, src.CreateTag(ctx, &domain.Tag{ID: tagID, Name: "golang", CreatedAt: time.Now()}))
	_, err = src.AddTagToThread(ctx, t2.ID, tagID)
	require.NoError(t, err)

	info, err := srcSvc.Create(ctx)
	require.NoError(t, err)

	// Restore into an empty store sharing the backup directory.
	dst := newTestStore(t)
	dstSvc := newTestService(t, dst, backupDir)

	result, err := dstSvc.Restore(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported["threads"])
	assert.Equal(t, 1, result.Imported["collections"])
	assert.Equal(t, 1, result.Imported["tags"])
	assert.Empty(t, result.Errors)

	threads, err := dst.ListThreads(ctx, store.ListFilters{})
	require.NoError(t, err)
	require.Len(t, threads, 2)

	// The custom collection exists and owns the moved thread.
	colls, err := dst.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, colls, 2)

	var reading *domain.Collection
	for _, c := range colls {
		if c.Name == "Reading List" {
			reading = c
		}
	}
	require.NotNil(t, reading)
	assert.Len(t, reading.ThreadIDs, 1)

	// The tag came across with its attachment recounted.
	tags, err := dst.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "golang", tags[0].Name)
	assert.Equal(t, 1, tags[0].ThreadCount)
}

func TestRestoreIsIdempotentByURL(t *testing.T) {
	ctx := context.Background()
	backupDir := t.TempDir()
	st := newTestStore(t)
	svc := newTestService(t, st, backupDir)

	saveThread(t, st, 1)

	info, err := svc.Create(ctx)
	require.NoError(t, err)

	// Restoring into the same store skips everything by URL.
	result, err := svc.Restore(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported["threads"])
	assert.Equal(t, 1, result.Skipped["threads"])

	threads, err := st.ListThreads(ctx, store.ListFilters{})
	require.NoError(t, err)
	assert.Len(t, threads, 1)
}
