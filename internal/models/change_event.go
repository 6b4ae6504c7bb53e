package models

import "strings"

// EventKind is the kind of change a stream record describes
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventModify EventKind = "MODIFY"
	EventRemove EventKind = "REMOVE"
)

// Action is what the index sync applies for a record
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// SoftDeleteField marks a logically deleted item (DataStore conflict detection)
const SoftDeleteField = "_deleted"

// Document is a plain attribute map ready to be indexed
type Document map[string]interface{}

// ChangeRecord represents a single item-level change from the stream
type ChangeRecord struct {
	EventID  string                 `json:"event_id"`
	Kind     EventKind              `json:"kind"`
	Table    string                 `json:"table"`
	NewImage map[string]interface{} `json:"new_image,omitempty"`
	OldImage map[string]interface{} `json:"old_image,omitempty"`
}

// CollectionName returns the index collection the record's table maps to
func (r *ChangeRecord) CollectionName() string {
	return CollectionForTable(r.Table)
}

// ModelName returns the model the record's table stores
func (r *ChangeRecord) ModelName() string {
	return ModelForTable(r.Table)
}

// CollectionForTable maps a table name to its collection name
func CollectionForTable(table string) string {
	return strings.ToLower(table)
}

// ModelForTable returns the leading segment of a generated table name,
// e.g. "Blog" for "Blog-mp6xr657pvbpjbyd4nqbvk44du-dev".
func ModelForTable(table string) string {
	model, _, _ := strings.Cut(table, "-")
	return model
}

// SyncOperation describes one index write derived from a change record
type SyncOperation struct {
	Action     Action `json:"action"`
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Table      string `json:"table"`
	EventID    string `json:"event_id,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}
