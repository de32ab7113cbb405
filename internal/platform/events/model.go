package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Label classifies what an event records about its subject.
type Label string

const (
	LabelCreate   Label = "create"
	LabelUpdate   Label = "update"
	LabelDelete   Label = "delete"
	LabelExport   Label = "export"
	LabelImport   Label = "import"
	LabelDownload Label = "download"
)

// Event is one immutable entry in a subject's history. Snapshot holds the
// full serialized entity after the write; Diff is field-wise post minus pre,
// empty on create. Events are append-only and totally ordered per subject.
type Event struct {
	ID           uuid.UUID              `db:"id" json:"id"`
	ResourceType string                 `db:"resource_type" json:"resourceType"`
	ResourceID   uuid.UUID              `db:"resource_id" json:"resourceId"`
	Label        Label                  `db:"label" json:"label"`
	Author       string                 `db:"author" json:"author"`
	URL          string                 `db:"url" json:"url,omitempty"`
	Snapshot     json.RawMessage        `db:"snapshot" json:"snapshot,omitempty"`
	Diff         json.RawMessage        `db:"diff" json:"diff,omitempty"`
	Context      map[string]interface{} `db:"context" json:"context,omitempty"`
	CreatedAt    time.Time              `db:"created_at" json:"createdAt"`
}

// Meta is the event-derived header every entity response carries.
type Meta struct {
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"`
	UpdatedBy []string   `json:"updatedBy,omitempty"`
}
