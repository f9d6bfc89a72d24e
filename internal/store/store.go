// Package store defines the persistence interface for the ThreadStash server.
//
// Two backends implement it: a Badger key-document store (default) and a
// SQLite relational store. Both enforce the same invariants: the free-tier
// thread quota, single-owner collection membership, denormalized tag
// counts, and the append-only sync change log.
package store

import (
	"context"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/search"
)

// DefaultMaxFreeThreads is the free-tier thread quota applied when the
// configuration does not override it. Premium accounts are unlimited.
const DefaultMaxFreeThreads = 50

// ListFilters narrows ListThreads results; filters combine as a strict
// conjunction. Zero values mean "no filter". Author and Search are
// case-insensitive substrings, Author against the author username and
// Search against any post's text. TagIDs matches threads carrying at
// least one of the given tags.
type ListFilters struct {
	CollectionID string
	TagIDs       []string
	Author       string
	Search       string
	Limit        int
	Offset       int
}

// ThreadUpdate is a partial update for a thread. Nil fields are left
// unchanged. Replacing Posts recomputes the post count; an empty
// replacement slice is rejected the same way an empty save is.
type ThreadUpdate struct {
	URL            *string
	AuthorName     *string
	AuthorUsername *string
	AuthorAvatar   *string
	Posts          []domain.Post
}

// Store defines the interface for all persistence operations.
type Store interface {
	// Lifecycle
	Close() error

	// Threads
	SaveThread(ctx context.Context, capture *domain.ThreadCapture) (*domain.Thread, error)
	GetThread(ctx context.Context, id string) (*domain.Thread, error)
	TouchThread(ctx context.Context, id string) error
	ListThreads(ctx context.Context, filters ListFilters) ([]*domain.Thread, error)
	UpdateThread(ctx context.Context, id string, upd ThreadUpdate) (*domain.Thread, error)
	DeleteThread(ctx context.Context, id string) error
	MoveThreadToCollection(ctx context.Context, threadID, collectionID string) error

	// Collections
	CreateCollection(ctx context.Context, c *domain.Collection) error
	GetCollection(ctx context.Context, id string) (*domain.Collection, error)
	ListCollections(ctx context.Context) ([]*domain.Collection, error)
	UpdateCollection(ctx context.Context, c *domain.Collection) error
	DeleteCollection(ctx context.Context, id string) error

	// Tags
	CreateTag(ctx context.Context, t *domain.Tag) error
	GetTag(ctx context.Context, id string) (*domain.Tag, error)
	ListTags(ctx context.Context) ([]*domain.Tag, error)
	UpdateTag(ctx context.Context, t *domain.Tag) error
	DeleteTag(ctx context.Context, id string) error
	// AddTagToThread and RemoveTagFromThread report whether the membership
	// actually changed; tagging an already-tagged thread (or untagging an
	// untagged one) is a no-op returning false, not an error.
	AddTagToThread(ctx context.Context, threadID, tagID string) (bool, error)
	RemoveTagFromThread(ctx context.Context, threadID, tagID string) (bool, error)

	// Search & stats
	SearchThreads(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
	GetStats(ctx context.Context) (*Stats, error)

	// Sync state
	GetSyncState(ctx context.Context) (*domain.SyncState, error)
	ClearPendingChanges(ctx context.Context, syncedAt time.Time) error
	SetSyncEnabled(ctx context.Context, enabled bool) error

	// Store metadata
	GetMeta(ctx context.Context) (*domain.StoreMeta, error)

	// Owner account
	CreateAccount(ctx context.Context, u *domain.User) error
	GetAccount(ctx context.Context) (*domain.User, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateAccount(ctx context.Context, u *domain.User) error

	// Auth sessions
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteAllSessions(ctx context.Context) error
	DeleteExpiredSessions(ctx context.Context) (int, error)

	// User preferences
	GetPrefs(ctx context.Context) (*domain.UserPrefs, error)
	UpdatePrefs(ctx context.Context, p *domain.UserPrefs) error
}
