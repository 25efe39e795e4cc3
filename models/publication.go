package models

import "time"

// Publication repräsentiert eine wissenschaftliche Publikation aus PubMed.
// Publikationen sind nach der Indexierung inhaltlich stabil: es gibt kein
// Änderungsprotokoll, nur Link-Merges und bibliografische Auffrischung.
type Publication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PMID         string `json:"pmid" gorm:"column:pmid;size:20;uniqueIndex;not null"`
	AssetID      *uint  `json:"asset_id,omitempty" gorm:"index"`
	IndicationID *uint  `json:"indication_id,omitempty" gorm:"index"`

	Title           string     `json:"title" gorm:"type:text"`
	Authors         *string    `json:"authors,omitempty" gorm:"type:text"`
	Journal         *string    `json:"journal,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty" gorm:"index"`
	Abstract        *string    `json:"abstract,omitempty" gorm:"type:text"`
	DOI             *string    `json:"doi,omitempty" gorm:"column:doi"`
	SourceURL       string     `json:"source_url"`
	SearchType      string     `json:"search_type,omitempty" gorm:"index"`
}
