package models

import "time"

// Asset repräsentiert ein beobachtetes Wirkstoff-Asset (Drug Asset).
type Asset struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CompanyID         uint   `json:"company_id" gorm:"index;uniqueIndex:uq_company_asset"`
	Name              string `json:"name" gorm:"uniqueIndex:uq_company_asset;not null"`
	GenericName       string `json:"generic_name,omitempty"`
	MechanismOfAction string `json:"mechanism_of_action,omitempty" gorm:"type:text"`
	Stage             string `json:"stage,omitempty"` // z.B. "Phase 3", "Approved (2024)"

	Company     *Company          `json:"company,omitempty"`
	Indications []AssetIndication `json:"indications,omitempty"`
}
