package models

import "time"

// Company repräsentiert ein Pharma-/Biotech-Unternehmen, dessen Assets wir beobachten.
type Company struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Ticker      string `json:"ticker,omitempty"`
	Description string `json:"description,omitempty" gorm:"type:text"`
	Website     string `json:"website,omitempty"`

	Assets []Asset `json:"assets,omitempty"`
}
