package backup

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/threadstash/threadstash-server/internal/domain"
	"github.com/threadstash/threadstash-server/internal/id"
	"github.com/threadstash/threadstash-server/internal/store"
)

// RestoreResult summarizes a merge-restore run.
type RestoreResult struct {
	Imported map[string]int `json:"imported"`
	Skipped  map[string]int `json:"skipped"`
	Errors   []RestoreError `json:"errors,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// RestoreError describes a non-fatal error during restore.
type RestoreError struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id,omitempty"`
	Error      string `json:"error"`
}

// Restore merges a snapshot into the store. Collections and tags are
// matched by name and reused when they already exist; threads are matched
// by URL and skipped when already present. The free-tier quota applies to
// restored threads the same as to fresh saves.
func (s *Service) Restore(ctx context.Context, snapshotID string) (*RestoreResult, error) {
	info, err := s.Get(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	snap, err := readSnapshot(info.Path)
	if err != nil {
		return nil, err
	}
	if snap.Manifest.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s (want %s)", ErrVersionMismatch, snap.Manifest.Version, FormatVersion)
	}

	start := time.Now()
	result := &RestoreResult{
		Imported: map[string]int{},
		Skipped:  map[string]int{},
	}

	collectionIDs, err := s.restoreCollections(ctx, snap, result)
	if err != nil {
		return nil, err
	}
	tagIDs, err := s.restoreTags(ctx, snap, result)
	if err != nil {
		return nil, err
	}
	if err := s.restoreThreads(ctx, snap, collectionIDs, tagIDs, result); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)

	s.logger.Info("restore complete",
		"snapshot", snapshotID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"errors", len(result.Errors),
		"duration", result.Duration,
	)

	return result, nil
}

func readSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := json.UnmarshalRead(f, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// restoreCollections maps snapshot collection IDs to local ones,
// creating collections that do not exist here yet.
func (s *Service) restoreCollections(ctx context.Context, snap *Snapshot, result *RestoreResult) (map[string]string, error) {
	existing, err := s.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c.ID
	}

	idMap := make(map[string]string, len(snap.Collections))
	for _, c := range snap.Collections {
		if c.IsDefault() {
			idMap[c.ID] = domain.DefaultCollectionID
			continue
		}
		if localID, ok := byName[strings.ToLower(c.Name)]; ok {
			idMap[c.ID] = localID
			result.Skipped["collections"]++
			continue
		}

		newID, err := id.Generate(id.PrefixCollection)
		if err != nil {
			return nil, err
		}
		clone := &domain.Collection{
			ID:          newID,
			Name:        c.Name,
			Description: c.Description,
			Color:       c.Color,
			CreatedAt:   c.CreatedAt,
			ThreadIDs:   []string{},
		}
		if err := s.store.CreateCollection(ctx, clone); err != nil {
			result.Errors = append(result.Errors, RestoreError{
				EntityType: "collection", EntityID: c.ID, Error: err.Error(),
			})
			idMap[c.ID] = domain.DefaultCollectionID
			continue
		}
		idMap[c.ID] = newID
		byName[strings.ToLower(c.Name)] = newID
		result.Imported["collections"]++
	}

	return idMap, nil
}

// restoreTags maps snapshot tag IDs to local ones, creating missing tags
// with fresh zero usage counts (attaches below will recount them).
func (s *Service) restoreTags(ctx context.Context, snap *Snapshot, result *RestoreResult) (map[string]string, error) {
	existing, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]string, len(existing))
	for _, t := range existing {
		byName[strings.ToLower(t.Name)] = t.ID
	}

	idMap := make(map[string]string, len(snap.Tags))
	for _, t := range snap.Tags {
		if localID, ok := byName[strings.ToLower(t.Name)]; ok {
			idMap[t.ID] = localID
			result.Skipped["tags"]++
			continue
		}

		newID, err := id.Generate(id.PrefixTag)
		if err != nil {
			return nil, err
		}
		clone := &domain.Tag{
			ID:        newID,
			Name:      t.Name,
			Color:     t.Color,
			CreatedAt: t.CreatedAt,
		}
		if err := s.store.CreateTag(ctx, clone); err != nil {
			result.Errors = append(result.Errors, RestoreError{
				EntityType: "tag", EntityID: t.ID, Error: err.Error(),
			})
			continue
		}
		idMap[t.ID] = newID
		byName[strings.ToLower(t.Name)] = newID
		result.Imported["tags"]++
	}

	return idMap, nil
}

// restoreThreads re-saves snapshot threads through the normal save path
// so quotas, metadata, and the change log all apply.
func (s *Service) restoreThreads(ctx context.Context, snap *Snapshot, collectionIDs, tagIDs map[string]string, result *RestoreResult) error {
	existing, err := s.store.ListThreads(ctx, store.ListFilters{})
	if err != nil {
		return err
	}
	byURL := make(map[string]bool, len(existing))
	for _, t := range existing {
		byURL[t.URL] = true
	}

	for _, t := range snap.Threads {
		if byURL[t.URL] {
			result.Skipped["threads"]++
			continue
		}

		capture := &domain.ThreadCapture{
			URL:            t.URL,
			AuthorUsername: t.AuthorUsername,
			AuthorName:     t.AuthorName,
			AuthorAvatar:   t.AuthorAvatar,
			Posts:          t.Posts,
			Likes:          t.Metadata.Likes,
			Retweets:       t.Metadata.Retweets,
			Replies:        t.Metadata.Replies,
			Language:       t.Metadata.Language,
		}

		saved, err := s.store.SaveThread(ctx, capture)
		if err != nil {
			result.Errors = append(result.Errors, RestoreError{
				EntityType: "thread", EntityID: t.ID, Error: err.Error(),
			})
			continue
		}
		byURL[t.URL] = true
		result.Imported["threads"]++

		if localColl, ok := collectionIDs[t.CollectionID]; ok && localColl != domain.DefaultCollectionID {
			if err := s.store.MoveThreadToCollection(ctx, saved.ID, localColl); err != nil {
				result.Errors = append(result.Errors, RestoreError{
					EntityType: "thread", EntityID: saved.ID, Error: err.Error(),
				})
			}
		}

		for _, oldTag := range t.Tags {
			localTag, ok := tagIDs[oldTag]
			if !ok {
				continue
			}
			if _, err := s.store.AddTagToThread(ctx, saved.ID, localTag); err != nil {
				result.Errors = append(result.Errors, RestoreError{
					EntityType: "thread", EntityID: saved.ID, Error: err.Error(),
				})
			}
		}
	}

	return nil
}
