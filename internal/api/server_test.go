package api

import (
	"bytes"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/auth"
	"github.com/threadstash/threadstash-server/internal/backup"
	"github.com/threadstash/threadstash-server/internal/config"
	"github.com/threadstash/threadstash-server/internal/logger"
	"github.com/threadstash/threadstash-server/internal/service"
	"github.com/threadstash/threadstash-server/internal/store/badger"
	"github.com/threadstash/threadstash-server/internal/validation"
)

// setupTestServer creates a server backed by a real badger store.
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	log := logger.New(logger.Config{Writer: io.Discard, Format: "json"})

	st, err := badger.Open(t.TempDir(), 0, slogger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 30*24*time.Hour)
	require.NoError(t, err)

	v := validation.New()
	services := &Services{
		Auth:       service.NewAuthService(st, tokens, v, slogger),
		Thread:     service.NewThreadService(st, v, slogger),
		Collection: service.NewCollectionService(st, v, slogger),
		Tag:        service.NewTagService(st, v, slogger),
		Search:     service.NewSearchService(st, slogger),
		Sync:       service.NewSyncService(st, slogger),
		Settings:   service.NewSettingsService(st, v, slogger),
		Backup:     backup.NewService(st, t.TempDir(), "Test Server", "dev", slogger),
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Name: "Test Server"},
	}

	return NewServer(cfg, st, services, log)
}

// doJSON issues a request with an optional JSON body and bearer token,
// decoding the response body into a generic map.
func doJSON(t *testing.T, server *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	var result map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	}
	return w.Code, result
}

// setupOwner runs first-time setup over HTTP and returns an access token.
func setupOwner(t *testing.T, server *Server) string {
	t.Helper()

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/auth/setup", "", map[string]any{
		"email":        "owner@example.com",
		"password":     "password123",
		"display_name": "Owner",
	})
	require.Equal(t, http.StatusOK, code)

	token, ok := result["access_token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token
}

func saveTestThread(t *testing.T, server *Server, token string, n int) string {
	t.Helper()

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/threads", token, map[string]any{
		"url":             fmt.Sprintf("https://example.com/status/%d", n),
		"author_username": "gopher",
		"author_name":     "The Gopher",
		"posts": []map[string]any{
			{"id": fmt.Sprintf("p%d", n), "text": fmt.Sprintf("post number %d", n), "timestamp": time.Now().Format(time.RFC3339)},
		},
	})
	require.Equal(t, http.StatusOK, code)

	id, ok := result["id"].(string)
	require.True(t, ok)
	return id
}

func TestHealthCheck(t *testing.T) {
	server := setupTestServer(t)

	code, result := doJSON(t, server, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", result["status"])
	assert.Equal(t, apiVersion, result["version"])
}

func TestSetupFlow(t *testing.T) {
	server := setupTestServer(t)

	token := setupOwner(t, server)

	// The instance is single owner, so setup is one-shot.
	code, result := doJSON(t, server, http.MethodPost, "/api/v1/auth/setup", "", map[string]any{
		"email":        "second@example.com",
		"password":     "password123",
		"display_name": "Second",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, result["code"])

	// The token works against a protected endpoint.
	code, result = doJSON(t, server, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "owner@example.com", result["email"])
}

func TestLogin(t *testing.T) {
	server := setupTestServer(t)
	setupOwner(t, server)

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "owner@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, result["access_token"])
	assert.NotEmpty(t, result["refresh_token"])
	assert.Equal(t, "Bearer", result["token_type"])

	code, _ = doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "owner@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogoutAll(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)

	code, login := doJSON(t, server, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "owner@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, code)
	refreshToken := login["refresh_token"].(string)

	code, _ = doJSON(t, server, http.MethodPost, "/api/v1/auth/logout-all", token, nil)
	assert.Equal(t, http.StatusOK, code)

	// Every refresh token is dead afterwards.
	code, _ = doJSON(t, server, http.MethodPost, "/api/v1/auth/refresh", "", map[string]any{
		"refresh_token": refreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuthRequired(t *testing.T) {
	server := setupTestServer(t)
	setupOwner(t, server)

	paths := []string{
		"/api/v1/threads",
		"/api/v1/collections",
		"/api/v1/tags",
		"/api/v1/search?q=go",
		"/api/v1/stats",
		"/api/v1/sync/state",
		"/api/v1/settings",
	}
	for _, path := range paths {
		code, _ := doJSON(t, server, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}

	// Garbage tokens are rejected too.
	code, _ := doJSON(t, server, http.MethodGet, "/api/v1/threads", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestThreadLifecycle(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)

	threadID := saveTestThread(t, server, token, 1)

	// Get.
	code, result := doJSON(t, server, http.MethodGet, "/api/v1/threads/"+threadID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "gopher", result["author_username"])
	assert.Equal(t, "default", result["collection_id"])

	meta, ok := result["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), meta["post_count"])

	// List.
	code, result = doJSON(t, server, http.MethodGet, "/api/v1/threads", token, nil)
	require.Equal(t, http.StatusOK, code)
	threads, ok := result["threads"].([]any)
	require.True(t, ok)
	assert.Len(t, threads, 1)

	// Patch.
	code, result = doJSON(t, server, http.MethodPatch, "/api/v1/threads/"+threadID, token, map[string]any{
		"author_name": "Renamed Gopher",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Renamed Gopher", result["author_name"])

	// Delete, then the thread is gone.
	code, _ = doJSON(t, server, http.MethodDelete, "/api/v1/threads/"+threadID, token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, server, http.MethodGet, "/api/v1/threads/"+threadID, token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListThreadsFilterParams(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)

	firstID := saveTestThread(t, server, token, 1)
	saveTestThread(t, server, token, 2)

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/tags", token, map[string]any{
		"name": "golang",
	})
	require.Equal(t, http.StatusOK, code)
	tagID := result["id"].(string)

	code, _ = doJSON(t, server, http.MethodPost, "/api/v1/threads/"+firstID+"/tags/"+tagID, token, nil)
	require.Equal(t, http.StatusOK, code)

	// Post-text search, case-insensitive.
	code, result = doJSON(t, server, http.MethodGet, "/api/v1/threads?search=NUMBER+1", token, nil)
	require.Equal(t, http.StatusOK, code)
	threads, ok := result["threads"].([]any)
	require.True(t, ok)
	require.Len(t, threads, 1)

	// Repeated tag_id params select threads carrying any of the tags.
	code, result = doJSON(t, server, http.MethodGet,
		"/api/v1/threads?tag_id="+tagID+"&tag_id=tag-nonexistent", token, nil)
	require.Equal(t, http.StatusOK, code)
	threads, ok = result["threads"].([]any)
	require.True(t, ok)
	require.Len(t, threads, 1)

	// Author matches as a substring.
	code, result = doJSON(t, server, http.MethodGet, "/api/v1/threads?author=goph", token, nil)
	require.Equal(t, http.StatusOK, code)
	threads, ok = result["threads"].([]any)
	require.True(t, ok)
	assert.Len(t, threads, 2)
}

func TestSaveThreadRejectsEmpty(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/threads", token, map[string]any{
		"url":             "https://example.com/status/1",
		"author_username": "gopher",
		"posts":           []any{},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "EMPTY_THREAD", result["code"])
}

func TestExportThread(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)
	threadID := saveTestThread(t, server, token, 1)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/threads/"+threadID+"/export?format=markdown", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="gopher-thread.md"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "@gopher")
}

func TestMoveThread(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)
	threadID := saveTestThread(t, server, token, 1)

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/collections", token, map[string]any{
		"name": "Reading List",
	})
	require.Equal(t, http.StatusOK, code)
	collID := result["id"].(string)

	code, result = doJSON(t, server, http.MethodPut, "/api/v1/threads/"+threadID+"/collection", token, map[string]any{
		"collection_id": collID,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, collID, result["collection_id"])
}

func TestDefaultCollectionProtected(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)

	code, result := doJSON(t, server, http.MethodDelete, "/api/v1/collections/default", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", result["code"])
}

func TestTagEndpoints(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)
	threadID := saveTestThread(t, server, token, 1)

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/tags", token, map[string]any{
		"name":  "golang",
		"color": "#00ADD8",
	})
	require.Equal(t, http.StatusOK, code)
	tagID := result["id"].(string)
	assert.Equal(t, float64(0), result["thread_count"])

	code, result = doJSON(t, server, http.MethodPost, "/api/v1/threads/"+threadID+"/tags/"+tagID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Tag added", result["message"])

	// Attaching again is a no-op and says so.
	code, result = doJSON(t, server, http.MethodPost, "/api/v1/threads/"+threadID+"/tags/"+tagID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Tag already present", result["message"])

	code, result = doJSON(t, server, http.MethodGet, "/api/v1/tags/"+tagID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), result["thread_count"])

	code, _ = doJSON(t, server, http.MethodDelete, "/api/v1/threads/"+threadID+"/tags/"+tagID, token, nil)
	require.Equal(t, http.StatusOK, code)

	code, result = doJSON(t, server, http.MethodGet, "/api/v1/tags/"+tagID, token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), result["thread_count"])
}

func TestSearchEndpoint(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)

	code, _ := doJSON(t, server, http.MethodPost, "/api/v1/threads", token, map[string]any{
		"url":             "https://example.com/status/99",
		"author_username": "elonmusk",
		"author_name":     "Elon Musk",
		"posts": []map[string]any{
			{"id": "p1", "text": "Something about rockets", "timestamp": time.Now().Format(time.RFC3339)},
		},
	})
	require.Equal(t, http.StatusOK, code)
	saveTestThread(t, server, token, 2)

	code, result := doJSON(t, server, http.MethodGet, "/api/v1/search?q=elon", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "elon", result["query"])
	assert.Equal(t, float64(1), result["total"])

	results, ok := result["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)

	hit, ok := results[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(35), hit["score"])

	matches, ok := hit["matches"].([]any)
	require.True(t, ok)
	assert.Len(t, matches, 2)
}

func TestStatsEndpoint(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)
	saveTestThread(t, server, token, 1)
	saveTestThread(t, server, token, 2)

	code, result := doJSON(t, server, http.MethodGet, "/api/v1/stats", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), result["total_threads"])
	assert.Equal(t, float64(2), result["total_posts"])
	assert.Equal(t, float64(1), result["total_collections"])
}

func TestSyncEndpoints(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)
	saveTestThread(t, server, token, 1)

	code, result := doJSON(t, server, http.MethodGet, "/api/v1/sync/state", token, nil)
	require.Equal(t, http.StatusOK, code)
	pending, ok := result["pending_changes"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, pending)

	code, result = doJSON(t, server, http.MethodPost, "/api/v1/sync/ack", token, nil)
	require.Equal(t, http.StatusOK, code)
	pending, ok = result["pending_changes"].([]any)
	require.True(t, ok)
	assert.Empty(t, pending)
	assert.NotEmpty(t, result["last_sync"])

	code, result = doJSON(t, server, http.MethodPut, "/api/v1/sync/enabled", token, map[string]any{
		"enabled": true,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, result["sync_enabled"])
}

func TestSettingsEndpoints(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)

	code, result := doJSON(t, server, http.MethodGet, "/api/v1/settings", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "system", result["theme"])

	code, result = doJSON(t, server, http.MethodPatch, "/api/v1/settings", token, map[string]any{
		"theme": "dark",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dark", result["theme"])

	code, result = doJSON(t, server, http.MethodPatch, "/api/v1/settings", token, map[string]any{
		"theme": "neon",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION", result["code"])
}

func TestBackupEndpoints(t *testing.T) {
	server := setupTestServer(t)
	token := setupOwner(t, server)
	saveTestThread(t, server, token, 1)

	code, result := doJSON(t, server, http.MethodPost, "/api/v1/backups", token, nil)
	require.Equal(t, http.StatusOK, code)
	backupID, ok := result["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, backupID)

	code, result = doJSON(t, server, http.MethodGet, "/api/v1/backups", token, nil)
	require.Equal(t, http.StatusOK, code)
	backups, ok := result["backups"].([]any)
	require.True(t, ok)
	assert.Len(t, backups, 1)

	// Restoring into the same store skips the existing thread.
	code, result = doJSON(t, server, http.MethodPost, "/api/v1/backups/"+backupID+"/restore", token, nil)
	require.Equal(t, http.StatusOK, code)
	skipped, ok := result["skipped"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), skipped["threads"])

	code, _ = doJSON(t, server, http.MethodDelete, "/api/v1/backups/"+backupID, token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, server, http.MethodPost, "/api/v1/backups/"+backupID+"/restore", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnknownRoute(t *testing.T) {
	server := setupTestServer(t)

	code, _ := doJSON(t, server, http.MethodGet, "/api/v1/nonexistent", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
