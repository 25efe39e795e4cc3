package models

import (
	"time"

	"gorm.io/datatypes"
)

// ClinicalTrial repräsentiert eine klinische Studie aus dem öffentlichen Studienregister.
// Natürlicher Schlüssel ist die NCT-ID; die Zeile wird vom Reconciliation-Prozess
// angelegt und fortgeschrieben, nie gelöscht.
type ClinicalTrial struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	NCTID        string `json:"nct_id" gorm:"column:nct_id;size:20;uniqueIndex;not null"`
	AssetID      *uint  `json:"asset_id,omitempty" gorm:"index"`
	IndicationID *uint  `json:"indication_id,omitempty" gorm:"index"`

	Title           string     `json:"title" gorm:"type:text"`
	Status          *string    `json:"status,omitempty" gorm:"index"`
	Phase           *string    `json:"phase,omitempty" gorm:"index"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	CompletionDate  *time.Time `json:"completion_date,omitempty"`
	Enrollment      *int       `json:"enrollment,omitempty"`
	Sponsor         *string    `json:"sponsor,omitempty"`
	PrimaryEndpoint *string    `json:"primary_endpoint,omitempty" gorm:"type:text"`
	ResultsSummary  *string    `json:"results_summary,omitempty" gorm:"type:text"`
	SourceURL       string     `json:"source_url"`

	// LastUpdated ist der Upstream-Zeitstempel des Registers. Er dient als
	// billiger Vorfilter: unveränderter Marker -> kein Feld-Diff.
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
	SearchType  string         `json:"search_type,omitempty" gorm:"index"`
	RawData     datatypes.JSON `json:"raw_data,omitempty"`
}
