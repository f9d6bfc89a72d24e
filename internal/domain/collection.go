package domain

import (
	"slices"
	"time"
)

// DefaultCollectionID is the distinguished collection that always exists.
// It can never be deleted and is the fallback owner for any thread not
// explicitly filed elsewhere.
const DefaultCollectionID = "default"

// Collection is a named, non-overlapping grouping of threads.
// ThreadIDs is the authoritative membership list; every mutating store
// operation keeps it consistent with each member thread's CollectionID.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ParentID    string    `json:"parent_id,omitempty"` // optional hierarchical grouping
	ThreadIDs   []string  `json:"thread_ids"`
}

// IsDefault returns true for the protected default collection.
func (c *Collection) IsDefault() bool {
	return c.ID == DefaultCollectionID
}

// AddThread appends a thread ID to the collection if not already present.
func (c *Collection) AddThread(threadID string) bool {
	if slices.Contains(c.ThreadIDs, threadID) {
		return false
	}
	c.ThreadIDs = append(c.ThreadIDs, threadID)
	return true
}

// RemoveThread removes a thread ID from the collection.
func (c *Collection) RemoveThread(threadID string) bool {
	before := len(c.ThreadIDs)
	c.ThreadIDs = slices.DeleteFunc(c.ThreadIDs, func(id string) bool {
		return id == threadID
	})
	return len(c.ThreadIDs) != before
}

// ContainsThread checks if a thread ID is in this collection.
func (c *Collection) ContainsThread(threadID string) bool {
	return slices.Contains(c.ThreadIDs, threadID)
}

// NewDefaultCollection builds the default collection record.
func NewDefaultCollection() *Collection {
	return &Collection{
		ID:        DefaultCollectionID,
		Name:      "Saved Threads",
		CreatedAt: time.Now(),
		ThreadIDs: []string{},
	}
}
