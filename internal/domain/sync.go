package domain

import "time"

// ChangeOp identifies the kind of mutation a change record describes.
type ChangeOp string

// Change operations recorded for remote sync.
const (
	ChangeOpSave      ChangeOp = "save"
	ChangeOpUpdate    ChangeOp = "update"
	ChangeOpDelete    ChangeOp = "delete"
	ChangeOpMove      ChangeOp = "move"
	ChangeOpTagAdd    ChangeOp = "tag_add"
	ChangeOpTagRemove ChangeOp = "tag_remove"
)

// ChangeEntity identifies which entity kind a change record touches.
type ChangeEntity string

// Entity kinds appearing in change records.
const (
	ChangeEntityThread     ChangeEntity = "thread"
	ChangeEntityCollection ChangeEntity = "collection"
	ChangeEntityTag        ChangeEntity = "tag"
)

// ChangeRecord is one accumulated local mutation awaiting sync.
type ChangeRecord struct {
	ID       string       `json:"id"`
	Op       ChangeOp     `json:"op"`
	Entity   ChangeEntity `json:"entity"`
	EntityID string       `json:"entity_id"`
	At       time.Time    `json:"at"`
}

// SyncState is the singleton accumulating local changes between syncs.
// PendingChanges is append-only and cleared on successful sync
// acknowledgement; a remote sync service drains it.
type SyncState struct {
	LastSync       *time.Time     `json:"last_sync,omitempty"`
	PendingChanges []ChangeRecord `json:"pending_changes"`
	SyncEnabled    bool           `json:"sync_enabled"`
}

// NewSyncState builds a fresh sync state for first run.
func NewSyncState() *SyncState {
	return &SyncState{
		PendingChanges: []ChangeRecord{},
		SyncEnabled:    false,
	}
}
