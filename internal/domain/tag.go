package domain

import "time"

// Tag is a user-defined label with a denormalized usage counter.
// ThreadCount tracks how many threads currently reference this tag and
// is kept in sync by every attach/detach/delete operation, floored at zero.
type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ThreadCount int       `json:"thread_count"`
}
