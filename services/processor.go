package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/OriginalHilex/pharma-ci-tool/models"
)

// Processor ist der Reconciliation-Kern: er nimmt normalisierte Records der
// Collectors entgegen und schreibt sie idempotent in die Datenbank. Pro
// Record-Typ gilt eine eigene Upsert-Politik, nur klinische Studien führen
// ein Änderungsprotokoll.
type Processor struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewProcessor erzeugt einen Processor.
func NewProcessor(db *gorm.DB, logger *zap.Logger) *Processor {
	return &Processor{DB: db, Logger: logger}
}

// LinkHints sind die FK-Hinweise des aufrufenden Suchkontexts. Ein Hint wird
// nur übernommen, wenn die gespeicherte Spalte noch null ist (null -> value,
// first writer wins). Bereits gesetzte Links werden nie überschrieben.
type LinkHints struct {
	AssetID      *uint
	IndicationID *uint
	SearchType   models.SearchType
}

// TrialStats zählt die Ergebnisse eines Studien-Batches. New + Updated +
// Skipped entspricht immer der Batch-Größe.
type TrialStats struct {
	New     int
	Updated int
	Skipped int
}

type trialOutcome int

const (
	outcomeSkipped trialOutcome = iota
	outcomeNew
	outcomeUpdated
)

// ProcessClinicalTrials verarbeitet einen Studien-Batch in einer Transaktion.
// Fehler einzelner Records werden geloggt und als Skipped gezählt, der Batch
// läuft weiter. Ein Transaktionsfehler bricht den Batch als Ganzes ab.
func (p *Processor) ProcessClinicalTrials(ctx context.Context, trials []*models.TrialRecord, hints LinkHints) (TrialStats, error) {
	var stats TrialStats
	if len(trials) == 0 {
		return stats, nil
	}
	now := time.Now().UTC()
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range trials {
			if rec == nil || rec.NCTID == "" {
				p.Logger.Warn("Studie ohne NCT-ID übersprungen")
				stats.Skipped++
				continue
			}
			outcome, err := p.reconcileTrial(tx, rec, hints, now)
			if err != nil {
				p.Logger.Error("Fehler beim Verarbeiten der Studie",
					zap.String("nct_id", rec.NCTID), zap.Error(err))
				stats.Skipped++
				continue
			}
			switch outcome {
			case outcomeNew:
				stats.New++
			case outcomeUpdated:
				stats.Updated++
			default:
				stats.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return TrialStats{}, err
	}
	p.Logger.Info("Studien-Batch verarbeitet",
		zap.Int("new", stats.New),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// reconcileTrial entscheidet pro Studie zwischen Insert, Link-Merge und
// Feld-Diff. Der Insert läuft über ON CONFLICT DO NOTHING; verliert er gegen
// einen parallelen Schreiber, wird die Zeile nachgelesen und der Update-Pfad
// genommen.
func (p *Processor) reconcileTrial(tx *gorm.DB, rec *models.TrialRecord, hints LinkHints, now time.Time) (trialOutcome, error) {
	var existing models.ClinicalTrial
	err := tx.Where("nct_id = ?", rec.NCTID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := newTrialRow(rec, hints)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "nct_id"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return outcomeSkipped, res.Error
		}
		if res.RowsAffected > 0 {
			if err := appendChange(tx, rec.NCTID, models.FieldNewTrial, nil, rec.NCTID, now); err != nil {
				return outcomeSkipped, err
			}
			p.Logger.Info("Neue Studie entdeckt", zap.String("nct_id", rec.NCTID))
			return outcomeNew, nil
		}
		// Insert gegen parallelen Schreiber verloren, Zeile nachlesen.
		if err := tx.Where("nct_id = ?", rec.NCTID).First(&existing).Error; err != nil {
			return outcomeSkipped, err
		}
	case err != nil:
		return outcomeSkipped, err
	}

	merged := mergeLink(&existing.AssetID, hints.AssetID)
	if mergeLink(&existing.IndicationID, hints.IndicationID) {
		merged = true
	}

	// Unveränderter Upstream-Marker: kein Feld-Diff nötig.
	if sameDay(existing.LastUpdated, rec.LastUpdated) {
		if !merged {
			return outcomeSkipped, nil
		}
		if err := tx.Save(&existing).Error; err != nil {
			return outcomeSkipped, err
		}
		return outcomeUpdated, nil
	}

	changed, err := p.detectTrialChanges(tx, &existing, rec, now)
	if err != nil {
		return outcomeSkipped, err
	}
	if changed {
		applyTrialUpdate(&existing, rec)
	}
	// Der Marker wird immer fortgeschrieben, auch ohne inhaltliche Änderung,
	// damit der nächste Lauf den billigen Skip-Pfad nehmen kann.
	existing.LastUpdated = rec.LastUpdated
	if err := tx.Save(&existing).Error; err != nil {
		return outcomeSkipped, err
	}
	if changed || merged {
		return outcomeUpdated, nil
	}
	return outcomeSkipped, nil
}

// detectTrialChanges vergleicht die getrackten Felder textuell und schreibt
// pro Abweichung eine Zeile ins Änderungsprotokoll. Ein null-Wert im Record
// erzeugt nie eine Transition.
func (p *Processor) detectTrialChanges(tx *gorm.DB, existing *models.ClinicalTrial, rec *models.TrialRecord, now time.Time) (bool, error) {
	diffs := []struct {
		field    string
		old, new *string
	}{
		{"status", existing.Status, rec.Status},
		{"phase", existing.Phase, rec.Phase},
		{"enrollment", intText(existing.Enrollment), intText(rec.Enrollment)},
		{"completion_date", dateText(existing.CompletionDate), dateText(rec.CompletionDate)},
	}
	changed := false
	for _, d := range diffs {
		if d.new == nil {
			continue
		}
		if d.old != nil && *d.old == *d.new {
			continue
		}
		if err := appendChange(tx, existing.NCTID, d.field, d.old, *d.new, now); err != nil {
			return changed, err
		}
		p.Logger.Info("Studien-Änderung erkannt",
			zap.String("nct_id", existing.NCTID),
			zap.String("field", d.field),
			zap.Stringp("old", d.old),
			zap.String("new", *d.new))
		changed = true
	}
	return changed, nil
}

// applyTrialUpdate überträgt den Record auf die gespeicherte Zeile. Titel,
// Sponsor, Endpoint und Startdatum werden nur bei non-null überschrieben, die
// getrackten Felder und die Zusammenfassung bedingungslos.
func applyTrialUpdate(existing *models.ClinicalTrial, rec *models.TrialRecord) {
	if rec.Title != "" {
		existing.Title = rec.Title
	}
	existing.Status = rec.Status
	existing.Phase = rec.Phase
	existing.Enrollment = rec.Enrollment
	existing.CompletionDate = rec.CompletionDate
	if rec.StartDate != nil {
		existing.StartDate = rec.StartDate
	}
	if rec.Sponsor != nil {
		existing.Sponsor = rec.Sponsor
	}
	if rec.PrimaryEndpoint != nil {
		existing.PrimaryEndpoint = rec.PrimaryEndpoint
	}
	existing.ResultsSummary = rec.Summary
	if rec.SourceURL != "" {
		existing.SourceURL = rec.SourceURL
	}
	if len(rec.RawData) > 0 {
		existing.RawData = datatypes.JSON(rec.RawData)
	}
}

func newTrialRow(rec *models.TrialRecord, hints LinkHints) models.ClinicalTrial {
	row := models.ClinicalTrial{
		NCTID:           rec.NCTID,
		AssetID:         copyID(hints.AssetID),
		IndicationID:    copyID(hints.IndicationID),
		Title:           rec.Title,
		Status:          rec.Status,
		Phase:           rec.Phase,
		StartDate:       rec.StartDate,
		CompletionDate:  rec.CompletionDate,
		Enrollment:      rec.Enrollment,
		Sponsor:         rec.Sponsor,
		PrimaryEndpoint: rec.PrimaryEndpoint,
		ResultsSummary:  rec.Summary,
		SourceURL:       rec.SourceURL,
		LastUpdated:     rec.LastUpdated,
		SearchType:      hints.SearchType.String(),
	}
	if len(rec.RawData) > 0 {
		row.RawData = datatypes.JSON(rec.RawData)
	}
	return row
}

// ProcessPublications fügt neue Publikationen ein und frischt bestehende auf
// (Link-Merge plus bibliografische Felder). Publikationen erzeugen keine
// Änderungsprotokoll-Einträge. Rückgabe ist die Zahl neu eingefügter Zeilen.
func (p *Processor) ProcessPublications(ctx context.Context, pubs []*models.PublicationRecord, hints LinkHints) (int, error) {
	if len(pubs) == 0 {
		return 0, nil
	}
	newCount := 0
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range pubs {
			if rec == nil || rec.PMID == "" {
				p.Logger.Warn("Publikation ohne PMID übersprungen")
				continue
			}
			inserted, err := p.reconcilePublication(tx, rec, hints)
			if err != nil {
				p.Logger.Error("Fehler beim Verarbeiten der Publikation",
					zap.String("pmid", rec.PMID), zap.Error(err))
				continue
			}
			if inserted {
				newCount++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.Logger.Info("Publikations-Batch verarbeitet",
		zap.Int("new", newCount), zap.Int("incoming", len(pubs)))
	return newCount, nil
}

func (p *Processor) reconcilePublication(tx *gorm.DB, rec *models.PublicationRecord, hints LinkHints) (bool, error) {
	var existing models.Publication
	err := tx.Where("pmid = ?", rec.PMID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := newPublicationRow(rec, hints)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pmid"}},
			DoNothing: true,
		}).Create(&row)
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected > 0 {
			return true, nil
		}
		if err := tx.Where("pmid = ?", rec.PMID).First(&existing).Error; err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	}

	mergeLink(&existing.AssetID, hints.AssetID)
	mergeLink(&existing.IndicationID, hints.IndicationID)
	refreshPublication(&existing, rec)
	return false, tx.Save(&existing).Error
}

// refreshPublication überschreibt die bibliografischen Felder mit nicht-leeren
// Werten des Records. Leere oder null-Werte lassen den Bestand unberührt.
func refreshPublication(existing *models.Publication, rec *models.PublicationRecord) {
	if rec.Title != "" {
		existing.Title = rec.Title
	}
	if rec.Authors != nil && *rec.Authors != "" {
		existing.Authors = rec.Authors
	}
	if rec.Journal != nil && *rec.Journal != "" {
		existing.Journal = rec.Journal
	}
	if rec.PublicationDate != nil {
		existing.PublicationDate = rec.PublicationDate
	}
	if rec.Abstract != nil && *rec.Abstract != "" {
		existing.Abstract = rec.Abstract
	}
	if rec.DOI != nil && *rec.DOI != "" {
		existing.DOI = rec.DOI
	}
}

func newPublicationRow(rec *models.PublicationRecord, hints LinkHints) models.Publication {
	title := rec.Title
	if title == "" {
		title = "(No title)"
	}
	return models.Publication{
		PMID:            rec.PMID,
		AssetID:         copyID(hints.AssetID),
		IndicationID:    copyID(hints.IndicationID),
		Title:           title,
		Authors:         rec.Authors,
		Journal:         rec.Journal,
		PublicationDate: rec.PublicationDate,
		Abstract:        rec.Abstract,
		DOI:             rec.DOI,
		SourceURL:       rec.SourceURL,
		SearchType:      hints.SearchType.String(),
	}
}

// ProcessNews fügt Nachrichtenartikel ein. Duplikate (gleiche URL) werden
// still verworfen, bestehende Zeilen nie verändert. Rückgabe ist die Zahl neu
// eingefügter Artikel.
func (p *Processor) ProcessNews(ctx context.Context, articles []*models.NewsRecord, hints LinkHints) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	newCount := 0
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range articles {
			if rec == nil || rec.URL == "" {
				p.Logger.Warn("Artikel ohne URL übersprungen")
				continue
			}
			row := models.NewsArticle{
				AssetID:     copyID(hints.AssetID),
				Title:       rec.Title,
				Source:      rec.Source,
				PublishedAt: rec.PublishedAt,
				URL:         rec.URL,
				Summary:     rec.Summary,
				SearchType:  hints.SearchType.String(),
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "url"}},
				DoNothing: true,
			}).Create(&row)
			if res.Error != nil {
				p.Logger.Error("Fehler beim Speichern des Artikels",
					zap.String("url", rec.URL), zap.Error(res.Error))
				continue
			}
			if res.RowsAffected > 0 {
				newCount++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.Logger.Info("News-Batch verarbeitet",
		zap.Int("new", newCount), zap.Int("incoming", len(articles)))
	return newCount, nil
}

// ProcessPatents legt Patente an bzw. überschreibt die bibliografischen
// Felder bestehender Zeilen bedingungslos (Suche liefert Stubs, Detail-Läufe
// reichern an). Der Asset-Link wird nur beim Insert gesetzt.
func (p *Processor) ProcessPatents(ctx context.Context, patents []*models.PatentRecord, hints LinkHints) (int, error) {
	if len(patents) == 0 {
		return 0, nil
	}
	count := 0
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range patents {
			if rec == nil || rec.PatentNumber == "" {
				p.Logger.Warn("Patent ohne Nummer übersprungen")
				continue
			}
			row := models.Patent{
				PatentNumber: rec.PatentNumber,
				AssetID:      copyID(hints.AssetID),
				Title:        rec.Title,
				Assignee:     rec.Assignee,
				FilingDate:   rec.FilingDate,
				GrantDate:    rec.GrantDate,
				Abstract:     rec.Abstract,
				ClaimsCount:  rec.ClaimsCount,
				SourceURL:    rec.SourceURL,
				SearchType:   hints.SearchType.String(),
			}
			res := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "patent_number"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "assignee", "grant_date", "abstract", "claims_count", "updated_at",
				}),
			}).Create(&row)
			if res.Error != nil {
				p.Logger.Error("Fehler beim Speichern des Patents",
					zap.String("patent_number", rec.PatentNumber), zap.Error(res.Error))
				continue
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	p.Logger.Info("Patent-Batch verarbeitet",
		zap.Int("processed", count), zap.Int("incoming", len(patents)))
	return count, nil
}

// mergeLink wendet die Merge-Politik für FK-Links an: null -> value, sonst
// unverändert.
func mergeLink(existing **uint, hint *uint) bool {
	if hint == nil || *existing != nil {
		return false
	}
	v := *hint
	*existing = &v
	return true
}

func copyID(id *uint) *uint {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// sameDay vergleicht zwei Upstream-Marker auf Tagesgranularität. Zwei
// fehlende Marker gelten als gleich.
func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// intText rendert einen Zählerwert als Text für den Feld-Vergleich.
func intText(v *int) *string {
	if v == nil {
		return nil
	}
	s := strconv.Itoa(*v)
	return &s
}

// dateText rendert ein Datum als ISO-Text (Tagesgranularität) für den
// Feld-Vergleich.
func dateText(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
