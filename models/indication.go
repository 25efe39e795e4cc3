package models

import "time"

// Indication repräsentiert eine Erkrankung bzw. ein Indikationsgebiet.
type Indication struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Name            string `json:"name" gorm:"uniqueIndex;not null"`
	TherapeuticArea string `json:"therapeutic_area,omitempty"`
	ICDCode         string `json:"icd_code,omitempty" gorm:"column:icd_code"`
}

// AssetIndication verknüpft Assets mit Indikationen (n:m) inkl. Entwicklungsstatus.
type AssetIndication struct {
	AssetID      uint   `json:"asset_id" gorm:"primaryKey"`
	IndicationID uint   `json:"indication_id" gorm:"primaryKey"`
	Status       string `json:"status,omitempty"` // z.B. "Approved", "Phase 3"
	Notes        string `json:"notes,omitempty" gorm:"type:text"`

	Indication *Indication `json:"indication,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (AssetIndication) TableName() string {
	return "asset_indications"
}
