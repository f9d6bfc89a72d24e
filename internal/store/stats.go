package store

import (
	"math"
	"sort"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
)

// topAuthorLimit caps the TopAuthors list in computed stats.
const topAuthorLimit = 5

// AuthorCount pairs an author username with their thread count.
type AuthorCount struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
}

// Stats is the store-wide aggregate snapshot.
// TotalThreads and StorageUsed come from the metadata singleton (trusted
// denormalized values); everything else is recomputed per call.
type Stats struct {
	TotalThreads        int           `json:"total_threads"`
	TotalPosts          int           `json:"total_posts"`
	TotalCollections    int           `json:"total_collections"`
	TotalTags           int           `json:"total_tags"`
	StorageUsed         int64         `json:"storage_used"`
	SavedLastDay        int           `json:"saved_last_day"`
	SavedLastWeek       int           `json:"saved_last_week"`
	SavedLastMonth      int           `json:"saved_last_month"`
	TopAuthors          []AuthorCount `json:"top_authors"`
	AverageThreadLength int           `json:"average_thread_length"`
}

// ComputeStats builds a Stats snapshot from the metadata singleton and the
// live entity sets. Both backends share this so the aggregation rules stay
// identical.
func ComputeStats(meta *domain.StoreMeta, threads []*domain.Thread, collectionCount, tagCount int, now time.Time) *Stats {
	dayCutoff := now.Add(-24 * time.Hour)
	weekCutoff := now.Add(-7 * 24 * time.Hour)
	monthCutoff := now.Add(-30 * 24 * time.Hour)

	stats := &Stats{
		TotalThreads:     meta.ThreadCount,
		TotalCollections: collectionCount,
		TotalTags:        tagCount,
		StorageUsed:      meta.StorageUsed,
		TopAuthors:       []AuthorCount{},
	}

	authorCounts := make(map[string]int)
	for _, t := range threads {
		stats.TotalPosts += len(t.Posts)
		authorCounts[t.AuthorUsername]++

		if t.SavedAt.After(dayCutoff) {
			stats.SavedLastDay++
		}
		if t.SavedAt.After(weekCutoff) {
			stats.SavedLastWeek++
		}
		if t.SavedAt.After(monthCutoff) {
			stats.SavedLastMonth++
		}
	}

	for author, count := range authorCounts {
		stats.TopAuthors = append(stats.TopAuthors, AuthorCount{Author: author, Count: count})
	}
	// Count descending, then username for stability.
	sort.Slice(stats.TopAuthors, func(i, j int) bool {
		if stats.TopAuthors[i].Count != stats.TopAuthors[j].Count {
			return stats.TopAuthors[i].Count > stats.TopAuthors[j].Count
		}
		return stats.TopAuthors[i].Author < stats.TopAuthors[j].Author
	})
	if len(stats.TopAuthors) > topAuthorLimit {
		stats.TopAuthors = stats.TopAuthors[:topAuthorLimit]
	}

	if len(threads) > 0 {
		stats.AverageThreadLength = int(math.Round(float64(stats.TotalPosts) / float64(len(threads))))
	}

	return stats
}
