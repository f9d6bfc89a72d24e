package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/search"
)

func TestSearchThreads_AuthorScoring(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	capture := &domain.ThreadCapture{
		URL:            "https://example.com/status/1",
		AuthorUsername: "elonmusk",
		AuthorName:     "Elon Musk",
		Posts: []domain.Post{
			{ID: "p1", Text: "launching a rocket tomorrow", Timestamp: time.Now()},
		},
	}
	_, err := s.SaveThread(ctx, capture)
	require.NoError(t, err)

	results, err := s.SearchThreads(ctx, "elon", search.Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Username (+20) plus display name (+15); no post contains the word.
	assert.Equal(t, 35, results[0].Score)
	assert.Len(t, results[0].Matches, 2)
}

func TestSearchThreads_RanksAndExcludes(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	postMatch := testCapture(1)
	postMatch.AuthorUsername = "ml_fan"
	postMatch.Posts = []domain.Post{{ID: "p1", Text: "machine learning is powerful"}}
	a, err := s.SaveThread(ctx, postMatch)
	require.NoError(t, err)

	nameMatch := testCapture(2)
	nameMatch.AuthorUsername = "other"
	nameMatch.AuthorName = "Learning Machines"
	nameMatch.Posts = []domain.Post{{ID: "p2", Text: "nothing relevant"}}
	b, err := s.SaveThread(ctx, nameMatch)
	require.NoError(t, err)

	noMatch := testCapture(3)
	noMatch.AuthorUsername = "quiet"
	noMatch.Posts = []domain.Post{{ID: "p3", Text: "irrelevant"}}
	_, err = s.SaveThread(ctx, noMatch)
	require.NoError(t, err)

	results, err := s.SearchThreads(ctx, "learning", search.Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, b.ID, results[0].Thread.ID)
	assert.Equal(t, 15, results[0].Score)
	assert.Equal(t, a.ID, results[1].Thread.ID)
	assert.Equal(t, 10, results[1].Score)
}

func TestSearchThreads_EmptyQuery(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, err := s.SaveThread(ctx, testCapture(1))
	require.NoError(t, err)

	results, err := s.SearchThreads(ctx, "", search.Options{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestGetStats(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		capture := testCapture(i)
		capture.Posts = append(capture.Posts, domain.Post{ID: "extra", Text: "second post"})
		_, err := s.SaveThread(ctx, capture)
		require.NoError(t, err)
	}
	createTestTag(t, s, "tag-go", "go")

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalThreads)
	assert.Equal(t, 6, stats.TotalPosts)
	assert.Equal(t, 1, stats.TotalCollections)
	assert.Equal(t, 1, stats.TotalTags)
	assert.Equal(t, 3, stats.SavedLastDay)
	assert.Equal(t, 2, stats.AverageThreadLength)
	assert.Positive(t, stats.StorageUsed)
	require.Len(t, stats.TopAuthors, 1)
	assert.Equal(t, "gopher", stats.TopAuthors[0].Author)
}

func TestGetStats_EmptyStore(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	stats, err := s.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalThreads)
	assert.Equal(t, 0, stats.AverageThreadLength)
}
