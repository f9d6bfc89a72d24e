package domain

import "time"

// CurrentVersion is the store schema version. Initialize stamps it on
// first run and triggers migration when the stored version is older.
const CurrentVersion = 1

// StoreMeta is the store-wide metadata singleton.
// ThreadCount is denormalized and must track the number of threads
// exactly. StorageUsed is a byte-size snapshot refreshed on save/delete,
// so reads between mutations may be stale.
type StoreMeta struct {
	Version     int        `json:"version"`
	InstalledAt time.Time  `json:"installed_at"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	ThreadCount int        `json:"thread_count"`
	StorageUsed int64      `json:"storage_used"`
}

// NewStoreMeta builds a fresh metadata record for first run.
func NewStoreMeta() *StoreMeta {
	return &StoreMeta{
		Version:     CurrentVersion,
		InstalledAt: time.Now(),
	}
}
