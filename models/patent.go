package models

import "time"

// Patent repräsentiert ein Patent aus der Patentsuche. Die Suche liefert
// zunächst dünne Stubs, die spätere Läufe bibliografisch vervollständigen
// (z.B. Grant Date), daher werden die Detail-Felder bedingungslos
// überschrieben. Kein Änderungsprotokoll.
type Patent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PatentNumber string `json:"patent_number" gorm:"size:50;uniqueIndex;not null"`
	// AssetID wird nur beim Insert gesetzt: die Patentsuche ist fest an eine
	// Asset-Achse gebunden, spätere Läufe verändern den Link nicht.
	AssetID *uint `json:"asset_id,omitempty" gorm:"index"`

	Title       string     `json:"title" gorm:"type:text"`
	Assignee    *string    `json:"assignee,omitempty"`
	FilingDate  *time.Time `json:"filing_date,omitempty" gorm:"index"`
	GrantDate   *time.Time `json:"grant_date,omitempty"`
	Abstract    *string    `json:"abstract,omitempty" gorm:"type:text"`
	ClaimsCount *int       `json:"claims_count,omitempty"`
	SourceURL   string     `json:"source_url"`
	SearchType  string     `json:"search_type,omitempty" gorm:"index"`
}
