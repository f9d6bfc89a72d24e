package domain

import (
	"slices"
	"time"
)

// DefaultLanguage is assumed when a capture does not report one.
const DefaultLanguage = "en"

// Post is one atomic unit of text/media within a thread.
// Post order is reading order and is preserved verbatim from capture.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Media     []string  `json:"media,omitempty"`
	Links     []string  `json:"links,omitempty"`
	IsReply   bool      `json:"is_reply"`
	HasQuote  bool      `json:"has_quote"`
}

// ThreadMetadata is the derived aggregate computed at save time.
type ThreadMetadata struct {
	PostCount int    `json:"post_count"`
	Likes     int    `json:"likes"`
	Retweets  int    `json:"retweets"`
	Replies   int    `json:"replies"`
	HasMedia  bool   `json:"has_media"`
	Language  string `json:"language"`
}

// Thread is a captured post sequence by one author.
// A thread belongs to exactly one collection at any time (single-owner
// membership); Tags is a set stored in insertion order for UI stability.
type Thread struct {
	ID             string         `json:"id"`
	URL            string         `json:"url"`
	AuthorUsername string         `json:"author_username"`
	AuthorName     string         `json:"author_name"`
	AuthorAvatar   string         `json:"author_avatar,omitempty"`
	Posts          []Post         `json:"posts"`
	SavedAt        time.Time      `json:"saved_at"`
	LastAccessed   time.Time      `json:"last_accessed"`
	LastModified   time.Time      `json:"last_modified,omitzero"`
	Tags           []string       `json:"tags"`
	CollectionID   string         `json:"collection_id"`
	Metadata       ThreadMetadata `json:"metadata"`
}

// HasTag checks whether the thread carries the given tag ID.
func (t *Thread) HasTag(tagID string) bool {
	return slices.Contains(t.Tags, tagID)
}

// AddTag appends a tag ID if not already present.
// Returns false when the tag was already there.
func (t *Thread) AddTag(tagID string) bool {
	if slices.Contains(t.Tags, tagID) {
		return false
	}
	t.Tags = append(t.Tags, tagID)
	return true
}

// RemoveTag removes a tag ID from the thread.
// Returns false when the tag was not present.
func (t *Thread) RemoveTag(tagID string) bool {
	before := len(t.Tags)
	t.Tags = slices.DeleteFunc(t.Tags, func(id string) bool {
		return id == tagID
	})
	return len(t.Tags) != before
}

// Touch stamps LastModified.
func (t *Thread) Touch() {
	t.LastModified = time.Now()
}

// ThreadCapture is the raw payload a scraper produces for one thread.
// Engagement counts and language are optional.
type ThreadCapture struct {
	URL            string `json:"url"`
	AuthorUsername string `json:"author_username"`
	AuthorName     string `json:"author_name"`
	AuthorAvatar   string `json:"author_avatar,omitempty"`
	Posts          []Post `json:"posts"`
	Likes          int    `json:"likes,omitempty"`
	Retweets       int    `json:"retweets,omitempty"`
	Replies        int    `json:"replies,omitempty"`
	Language       string `json:"language,omitempty"`
}

// DeriveMetadata computes the thread metadata aggregate from the capture.
func (c *ThreadCapture) DeriveMetadata() ThreadMetadata {
	hasMedia := false
	for _, p := range c.Posts {
		if len(p.Media) > 0 {
			hasMedia = true
			break
		}
	}

	lang := c.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	return ThreadMetadata{
		PostCount: len(c.Posts),
		Likes:     c.Likes,
		Retweets:  c.Retweets,
		Replies:   c.Replies,
		HasMedia:  hasMedia,
		Language:  lang,
	}
}
