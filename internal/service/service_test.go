package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/auth"
	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/store"
	"github.com/threadstash/threadstash-server/internal/store/badger"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// testEnv bundles a real store with every service under test.
type testEnv struct {
	store    store.Store
	auth     *AuthService
	threads  *ThreadService
	colls    *CollectionService
	tags     *TagService
	search   *SearchService
	sync     *SyncService
	settings *SettingsService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := badger.Open(t.TempDir(), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validation.New()

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	return &testEnv{
		store:    st,
		auth:     NewAuthService(st, tokens, v, logger),
		threads:  NewThreadService(st, v, logger),
		colls:    NewCollectionService(st, v, logger),
		tags:     NewTagService(st, v, logger),
		search:   NewSearchService(st, logger),
		sync:     NewSyncService(st, logger),
		settings: NewSettingsService(st, v, logger),
	}
}

func testSaveRequest(n int) SaveRequest {
	return SaveRequest{
		URL:            fmt.Sprintf("https://example.com/status/%d", n),
		AuthorUsername: "gopher",
		AuthorName:     "The Gopher",
		Posts: []domain.Post{
			{ID: fmt.Sprintf("p%d", n), Text: fmt.Sprintf("post number %d", n), Timestamp: time.Now()},
		},
	}
}

func mustSetup(t *testing.T, env *testEnv) *AuthResponse {
	t.Helper()

	resp, err := env.auth.Setup(context.Background(), SetupRequest{
		Email:       "owner@example.com",
		Password:    "password123",
		DisplayName: "Owner",
	})
	require.NoError(t, err)
	return resp
}
