package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/OriginalHilex/pharma-ci-tool/models"
)

// appendChange schreibt eine Zeile ins append-only Änderungsprotokoll. Es
// findet keine Deduplizierung statt.
func appendChange(tx *gorm.DB, nctID, fieldName string, oldValue *string, newValue string, detectedAt time.Time) error {
	return tx.Create(&models.TrialChange{
		NCTID:      nctID,
		FieldName:  fieldName,
		OldValue:   oldValue,
		NewValue:   newValue,
		DetectedAt: detectedAt,
	}).Error
}

// RecordChange protokolliert eine einzelne Feld-Transition außerhalb eines
// Batches, z.B. für manuell nachgetragene Beobachtungen.
func (p *Processor) RecordChange(ctx context.Context, nctID, fieldName string, oldValue *string, newValue string, detectedAt time.Time) error {
	return appendChange(p.DB.WithContext(ctx), nctID, fieldName, oldValue, newValue, detectedAt)
}

// ChangesSince liefert alle Änderungen nach einem Zeitpunkt, neueste zuerst.
// Eine leere NCT-ID-Menge bedeutet: alle Studien.
func (p *Processor) ChangesSince(ctx context.Context, nctIDs []string, since time.Time) ([]models.TrialChange, error) {
	q := p.DB.WithContext(ctx).Model(&models.TrialChange{}).Where("detected_at > ?", since)
	if len(nctIDs) > 0 {
		q = q.Where("nct_id IN ?", nctIDs)
	}
	var changes []models.TrialChange
	if err := q.Order("detected_at desc, id desc").Find(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// ChangesForTrial liefert die komplette Historie einer Studie, neueste zuerst.
func (p *Processor) ChangesForTrial(ctx context.Context, nctID string) ([]models.TrialChange, error) {
	var changes []models.TrialChange
	err := p.DB.WithContext(ctx).
		Where("nct_id = ?", nctID).
		Order("detected_at desc, id desc").
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}
