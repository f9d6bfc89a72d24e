// Package backup provides snapshot and restore functionality for the
// thread store. A snapshot is a single JSON file carrying every thread,
// collection, and tag plus the preferences singleton, so a stash can be
// moved between machines or store backends.
package backup

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/store"
)

// FormatVersion is the snapshot format version. Increment on breaking changes.
const FormatVersion = "1.0"

// snapshotExt is the file suffix for snapshot files.
const snapshotExt = ".threadstash.json"

var (
	// ErrSnapshotNotFound indicates the requested snapshot does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrVersionMismatch indicates the snapshot version is not supported.
	ErrVersionMismatch = errors.New("snapshot version not supported")
)

// Manifest describes snapshot contents and provenance.
type Manifest struct {
	Version    string       `json:"version"`
	CreatedAt  time.Time    `json:"created_at"`
	ServerName string       `json:"server_name"`
	AppVersion string       `json:"app_version"`
	Counts     EntityCounts `json:"counts"`
}

// EntityCounts tracks entity counts for validation and reporting.
type EntityCounts struct {
	Threads     int `json:"threads"`
	Collections int `json:"collections"`
	Tags        int `json:"tags"`
}

// Snapshot is the full serialized state of a thread store.
type Snapshot struct {
	Manifest    Manifest             `json:"manifest"`
	Threads     []*domain.Thread     `json:"threads"`
	Collections []*domain.Collection `json:"collections"`
	Tags        []*domain.Tag        `json:"tags"`
	Prefs       *domain.UserPrefs    `json:"prefs,omitempty"`
}

// Info describes an existing snapshot file.
type Info struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service creates, lists, and restores snapshots.
type Service struct {
	store      store.Store
	backupDir  string
	serverName string
	appVersion string
	logger     *slog.Logger
}

// NewService creates a backup service writing into backupDir.
func NewService(st store.Store, backupDir, serverName, appVersion string, logger *slog.Logger) *Service {
	return &Service{
		store:      st,
		backupDir:  backupDir,
		serverName: serverName,
		appVersion: appVersion,
		logger:     logger,
	}
}

// Create writes a new snapshot of the entire store.
func (s *Service) Create(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	snap, err := s.capture(ctx)
	if err != nil {
		return nil, err
	}

	id := "backup-" + time.Now().Format("2006-01-02-150405")
	path := filepath.Join(s.backupDir, id+snapshotExt)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	if err := json.MarshalWrite(f, snap); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshot created",
		"path", path,
		"size", stat.Size(),
		"threads", snap.Manifest.Counts.Threads,
		"collections", snap.Manifest.Counts.Collections,
		"tags", snap.Manifest.Counts.Tags,
	)

	return &Info{
		ID:        id,
		Path:      path,
		Size:      stat.Size(),
		CreatedAt: snap.Manifest.CreatedAt,
	}, nil
}

// capture reads the full store state into a snapshot.
func (s *Service) capture(ctx context.Context) (*Snapshot, error) {
	threads, err := s.store.ListThreads(ctx, store.ListFilters{})
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	collections, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	prefs, err := s.store.GetPrefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("get prefs: %w", err)
	}

	return &Snapshot{
		Manifest: Manifest{
			Version:    FormatVersion,
			CreatedAt:  time.Now(),
			ServerName: s.serverName,
			AppVersion: s.appVersion,
			Counts: EntityCounts{
				Threads:     len(threads),
				Collections: len(collections),
				Tags:        len(tags),
			},
		},
		Threads:     threads,
		Collections: collections,
		Tags:        tags,
		Prefs:       prefs,
	}, nil
}

// List returns all available snapshots, newest first.
func (s *Service) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snapshots []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Info{
			ID:        strings.TrimSuffix(entry.Name(), snapshotExt),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	return snapshots, nil
}

// Get returns a snapshot by ID.
func (s *Service) Get(ctx context.Context, id string) (*Info, error) {
	path := filepath.Join(s.backupDir, id+snapshotExt)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	return &Info{
		ID:        id,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// Delete removes a snapshot file.
func (s *Service) Delete(ctx context.Context, id string) error {
	path := filepath.Join(s.backupDir, id+snapshotExt)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return err
	}

	return os.Remove(path)
}
