package models

import "time"

// FieldNewTrial ist der synthetische Feldname für das Erst-Entdeckungs-Event
// einer Studie (old = null, new = NCT-ID).
const FieldNewTrial = "new_trial"

// TrialChange ist eine append-only Zeile im Änderungsprotokoll klinischer Studien.
// Zeilen werden nie aktualisiert oder dedupliziert; jede beobachtete Transition
// eines getrackten Feldes erzeugt genau eine Zeile.
type TrialChange struct {
	ID uint `json:"id" gorm:"primaryKey"`

	NCTID      string    `json:"nct_id" gorm:"column:nct_id;size:20;index;not null"`
	FieldName  string    `json:"field_name" gorm:"index;not null"`
	OldValue   *string   `json:"old_value,omitempty" gorm:"type:text"`
	NewValue   string    `json:"new_value" gorm:"type:text"`
	DetectedAt time.Time `json:"detected_at" gorm:"index;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (TrialChange) TableName() string {
	return "clinical_trial_changes"
}
