// Package search implements the scored keyword ranking over stored
// threads. It is a deterministic substring scorer, not a full-text
// index: scores and match records are part of the store's contract, so
// both store backends share this implementation.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/threadstash/threadstash-server/internal/domain"
)

// Match record types.
const (
	MatchTypePost       = "post"
	MatchTypeAuthor     = "author"
	MatchTypeAuthorName = "authorName"
)

// Score contributions per match kind.
const (
	scorePostMatch       = 10
	scoreUsernameMatch   = 20
	scoreAuthorNameMatch = 15
)

// Snippet sizing: context around the hit, and fallback prefix length
// when the hit offset cannot be located in the original text.
const (
	snippetContext  = 50
	snippetFallback = 100
)

// Match describes where a query hit a thread.
// Index and Snippet are set for post matches, Value for author matches.
type Match struct {
	Type    string `json:"type"`
	Index   int    `json:"index,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Result is one ranked thread with its score and match records.
type Result struct {
	Thread  *domain.Thread `json:"thread"`
	Score   int            `json:"score"`
	Matches []Match        `json:"matches"`
}

// Options controls result pagination.
// The full result set is scored and sorted before slicing; there is no
// early termination, so cost is always O(threads × posts).
type Options struct {
	Limit  int
	Offset int
}

// Rank scores every thread against the query and returns matching
// threads ordered by descending score. Zero-score threads are excluded.
// The sort is stable, so ties keep the input order. An empty query
// matches nothing.
func Rank(threads []*domain.Thread, query string, opts Options) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Result{}
	}

	results := make([]Result, 0, len(threads))
	for _, t := range threads {
		score, matches := scoreThread(t, q)
		if score == 0 {
			continue
		}
		results = append(results, Result{Thread: t, Score: score, Matches: matches})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return paginate(results, opts)
}

// scoreThread computes the score and match records for one thread.
func scoreThread(t *domain.Thread, q string) (int, []Match) {
	score := 0
	var matches []Match

	for i, p := range t.Posts {
		if strings.Contains(strings.ToLower(p.Text), q) {
			score += scorePostMatch
			matches = append(matches, Match{
				Type:    MatchTypePost,
				Index:   i,
				Snippet: makeSnippet(p.Text, q),
			})
		}
	}

	if strings.Contains(strings.ToLower(t.AuthorUsername), q) {
		score += scoreUsernameMatch
		matches = append(matches, Match{Type: MatchTypeAuthor, Value: t.AuthorUsername})
	}

	if strings.Contains(strings.ToLower(t.AuthorName), q) {
		score += scoreAuthorNameMatch
		matches = append(matches, Match{Type: MatchTypeAuthorName, Value: t.AuthorName})
	}

	return score, matches
}

// makeSnippet extracts the query occurrence with up to snippetContext
// bytes of context on each side, ellipsis-marked when truncated. Cut
// points are moved to rune boundaries so the snippet is always valid
// UTF-8. Lowercasing can change byte offsets for some runes, so offsets
// from the lowered text are only trusted when they land inside the
// original; otherwise it falls back to the text prefix.
func makeSnippet(text, q string) string {
	idx := strings.Index(strings.ToLower(text), q)
	if idx < 0 || idx+len(q) > len(text) {
		return runePrefix(text, snippetFallback)
	}

	start := idx - snippetContext
	if start < 0 {
		start = 0
	}
	end := idx + len(q) + snippetContext
	if end > len(text) {
		end = len(text)
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet += "..."
	}
	return snippet
}

// runePrefix truncates text to at most n bytes without splitting a rune,
// appending an ellipsis when anything was cut.
func runePrefix(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n] + "..."
}

// paginate slices the sorted result set.
func paginate(results []Result, opts Options) []Result {
	if opts.Offset > 0 {
		if opts.Offset >= len(results) {
			return []Result{}
		}
		results = results[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(results) {
		results = results[:opts.Limit]
	}
	return results
}
