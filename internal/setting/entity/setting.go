package entity

import "encoding/json"

// Known setting categories.
const (
	CategoryRegistration = "registration"
	CategoryBalance      = "balance"
)

// Setting represents a configuration record.
type Setting struct {
	ID         string          `db:"id" json:"id"`
	ParentID   string          `db:"parent_id" json:"parent_id,omitempty"`
	RootID     string          `db:"root_id" json:"root_id,omitempty"`
	RecordMeta json.RawMessage `db:"record_meta" json:"record_meta,omitempty"`
	Category   string          `db:"category" json:"category,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
}

// NewSetting creates a root-level Setting whose id is its category.
func NewSetting(category string, metadata json.RawMessage) *Setting {
	return &Setting{ID: category, Category: category, RecordMeta: json.RawMessage("{}"), Metadata: metadata}
}

// Registration is the metadata of the registration setting.
type Registration struct {
	AllowedDomains []string `json:"allowedDomains"`
}
