package memory

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("memory record not found")

// Source identifies where a record came from.
type Source string

const (
	SourceConversation Source = "conversation"
	SourceDocument     Source = "document"
	SourceObservation  Source = "observation"
	SourceManual       Source = "manual"
	SourceSystem       Source = "system"
)

// Type tags the kind of knowledge a record holds.
type Type string

const (
	TypeFact       Type = "fact"
	TypeEvent      Type = "event"
	TypePreference Type = "preference"
	TypeKnowledge  Type = "knowledge"
	TypeTask       Type = "task"
)

// State is the lifecycle state of a record.
type State string

const (
	StateCreating State = "creating"
	StateActive   State = "active"
	StateUpdating State = "updating"
	StateDeleted  State = "deleted"
)

// Record is one stored memory. Identity is content-hash derived and
// immutable; Importance is always recomputed, never set by callers.
type Record struct {
	ID           string                 `json:"id"`
	Content      string                 `json:"content"`
	Source       Source                 `json:"source"`
	Type         Type                   `json:"type"`
	Priority     int                    `json:"priority"`
	Tags         []string               `json:"tags,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Importance   float64                `json:"importance"`
	State        State                  `json:"state"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	AccessCount  int64                  `json:"access_count"`
	LastAccessed *time.Time             `json:"last_accessed,omitempty"`
	ChunkIDs     []string               `json:"chunk_ids,omitempty"`
	HasEmbedding bool                   `json:"has_embedding"`
	UserID       string                 `json:"user_id,omitempty"`
}

// Chunk is one ordered slice of an over-long record's content.
// Chunks belong to exactly one record and are deleted with it.
type Chunk struct {
	ID       string `json:"id"`
	RecordID string `json:"record_id"`
	Position int    `json:"position"`
	Content  string `json:"content"`
}

// IndexRequest describes one ingestion.
type IndexRequest struct {
	Content      string                 `json:"content"`
	Source       Source                 `json:"source"`
	Type         Type                   `json:"type"`
	Priority     int                    `json:"priority"` // 1 highest .. 5 lowest
	Tags         []string               `json:"tags,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	UserID       string                 `json:"user_id,omitempty"`
	ForceReindex bool                   `json:"force_reindex,omitempty"`
}

// UpdateRequest mutates a record's mutable fields. Nil fields are unchanged.
type UpdateRequest struct {
	Content  *string                `json:"content,omitempty"`
	Priority *int                   `json:"priority,omitempty"`
	Tags     []string               `json:"tags,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// KeywordMatch is one full-text search hit aggregated per record.
type KeywordMatch struct {
	RecordID string
	Score    float64 // positive, higher is better
}

// ListFilter bounds a structured List query.
type ListFilter struct {
	Source        Source
	Type          Type
	Tags          []string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// CleanupResult reports one cleanup pass.
type CleanupResult struct {
	RecordsDeleted int      `json:"records_deleted"`
	ChunksDeleted  int      `json:"chunks_deleted"`
	VectorsDeleted int      `json:"vectors_deleted"`
	DeletedIDs     []string `json:"-"`
}
