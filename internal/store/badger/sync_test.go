package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/domain"
)

func TestMutationsAppendChanges(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	thread, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	tag := createTestTag(t, s, "tag-go", "go")
	attachTag(t, s, thread.ID, tag.ID)
	require.NoError(t, s.DeleteThread(ctx, thread.ID))

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	require.Len(t, state.PendingChanges, 4)

	ops := make([]domain.ChangeOp, 0, len(state.PendingChanges))
	for _, c := range state.PendingChanges {
		ops = append(ops, c.Op)
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.At.IsZero())
	}
	assert.Equal(t, []domain.ChangeOp{
		domain.ChangeOpSave,    // thread saved
		domain.ChangeOpSave,    // tag created
		domain.ChangeOpTagAdd,  // tag attached
		domain.ChangeOpDelete,  // thread deleted
	}, ops)
}

func TestClearPendingChanges(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	syncedAt := time.Now()
	require.NoError(t, s.ClearPendingChanges(ctx, syncedAt))

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.PendingChanges)
	require.NotNil(t, state.LastSync)
	assert.WithinDuration(t, syncedAt, *state.LastSync, time.Second)

	// The metadata singleton carries the same stamp.
	meta, err := s.GetMeta(ctx)
	require.NoError(t, err)
	require.NotNil(t, meta.LastSync)
}

func TestSetSyncEnabled(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.SetSyncEnabled(ctx, true))

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.True(t, state.SyncEnabled)

	require.NoError(t, s.SetSyncEnabled(ctx, false))
	state, err = s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.False(t, state.SyncEnabled)
}

func TestFailedSaveAppendsNothing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	capture := testCapture(1)
	capture.Posts = nil
	_, err := s.SaveThread(ctx, capture)
	require.Error(t, err)

	state, err := s.GetSyncState(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.PendingChanges)
}
