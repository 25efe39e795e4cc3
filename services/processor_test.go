package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OriginalHilex/pharma-ci-tool/models"
)

var testDBCounter atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Company{}, &models.Asset{}, &models.Indication{}, &models.AssetIndication{},
		&models.ClinicalTrial{}, &models.TrialChange{}, &models.Publication{},
		&models.NewsArticle{}, &models.Patent{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	return NewProcessor(newTestDB(t), zap.NewNop())
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
func uintPtr(v uint) *uint    { return &v }

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func trialRecord(nctID string) *models.TrialRecord {
	return &models.TrialRecord{
		NCTID:       nctID,
		Title:       "A Study of Zolbetuximab in Gastric Cancer",
		Status:      strPtr("RECRUITING"),
		Phase:       strPtr("PHASE3"),
		Enrollment:  intPtr(500),
		LastUpdated: day(2026, time.March, 1),
		SourceURL:   "https://clinicaltrials.gov/study/" + nctID,
	}
}

func countChanges(t *testing.T, db *gorm.DB, nctID, field string) int64 {
	t.Helper()
	var n int64
	q := db.Model(&models.TrialChange{})
	if nctID != "" {
		q = q.Where("nct_id = ?", nctID)
	}
	if field != "" {
		q = q.Where("field_name = ?", field)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestProcessClinicalTrialsInsertRecordsDiscovery(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	stats, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")}, LinkHints{
		AssetID:    uintPtr(1),
		SearchType: models.SearchTypeAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, TrialStats{New: 1}, stats)

	var change models.TrialChange
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&change).Error)
	assert.Equal(t, models.FieldNewTrial, change.FieldName)
	assert.Nil(t, change.OldValue)
	assert.Equal(t, "NCT00000001", change.NewValue)

	var trial models.ClinicalTrial
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&trial).Error)
	require.NotNil(t, trial.AssetID)
	assert.Equal(t, uint(1), *trial.AssetID)
	assert.Equal(t, "asset", trial.SearchType)
}

func TestProcessClinicalTrialsIdempotent(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()
	batch := []*models.TrialRecord{trialRecord("NCT00000001"), trialRecord("NCT00000002")}
	hints := LinkHints{SearchType: models.SearchTypeAsset}

	first, err := p.ProcessClinicalTrials(ctx, batch, hints)
	require.NoError(t, err)
	assert.Equal(t, TrialStats{New: 2}, first)

	second, err := p.ProcessClinicalTrials(ctx, batch, hints)
	require.NoError(t, err)
	assert.Equal(t, TrialStats{Skipped: 2}, second)

	assert.EqualValues(t, 2, countChanges(t, p.DB, "", ""))
}

func TestProcessClinicalTrialsRecordsFieldTransition(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()
	hints := LinkHints{SearchType: models.SearchTypeAsset}

	_, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")}, hints)
	require.NoError(t, err)

	updated := trialRecord("NCT00000001")
	updated.Status = strPtr("COMPLETED")
	updated.LastUpdated = day(2026, time.April, 15)

	stats, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{updated}, hints)
	require.NoError(t, err)
	assert.Equal(t, TrialStats{Updated: 1}, stats)

	var change models.TrialChange
	require.NoError(t, p.DB.Where("nct_id = ? AND field_name = ?", "NCT00000001", "status").First(&change).Error)
	require.NotNil(t, change.OldValue)
	assert.Equal(t, "RECRUITING", *change.OldValue)
	assert.Equal(t, "COMPLETED", change.NewValue)

	var trial models.ClinicalTrial
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&trial).Error)
	require.NotNil(t, trial.Status)
	assert.Equal(t, "COMPLETED", *trial.Status)
	require.NotNil(t, trial.LastUpdated)
	assert.Equal(t, "2026-04-15", trial.LastUpdated.Format("2006-01-02"))
}

func TestProcessClinicalTrialsUnchangedMarkerSkipsDiff(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()
	hints := LinkHints{SearchType: models.SearchTypeAsset}

	_, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")}, hints)
	require.NoError(t, err)

	// Gleicher Marker, anderer Status: der billige Skip-Pfad greift, die
	// Abweichung wird erst mit neuem Marker protokolliert.
	stale := trialRecord("NCT00000001")
	stale.Status = strPtr("COMPLETED")

	stats, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{stale}, hints)
	require.NoError(t, err)
	assert.Equal(t, TrialStats{Skipped: 1}, stats)
	assert.EqualValues(t, 0, countChanges(t, p.DB, "NCT00000001", "status"))

	var trial models.ClinicalTrial
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&trial).Error)
	assert.Equal(t, "RECRUITING", *trial.Status)
}

func TestProcessClinicalTrialsNullIncomingFieldIsNoTransition(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()
	hints := LinkHints{SearchType: models.SearchTypeAsset}

	_, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")}, hints)
	require.NoError(t, err)

	sparse := trialRecord("NCT00000001")
	sparse.Status = nil
	sparse.Enrollment = nil
	sparse.LastUpdated = day(2026, time.May, 2)

	stats, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{sparse}, hints)
	require.NoError(t, err)
	// Marker wird fortgeschrieben, inhaltlich ändert sich nichts.
	assert.Equal(t, TrialStats{Skipped: 1}, stats)
	assert.EqualValues(t, 1, countChanges(t, p.DB, "NCT00000001", ""))

	var trial models.ClinicalTrial
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&trial).Error)
	require.NotNil(t, trial.Status)
	assert.Equal(t, "RECRUITING", *trial.Status)
	require.NotNil(t, trial.Enrollment)
	assert.Equal(t, 500, *trial.Enrollment)
	assert.Equal(t, "2026-05-02", trial.LastUpdated.Format("2006-01-02"))
}

func TestProcessClinicalTrialsLinkMergeFirstWriterWins(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	_, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")},
		LinkHints{SearchType: models.SearchTypeIndication})
	require.NoError(t, err)

	// null -> value: der erste Hint wird übernommen und zählt als Update.
	stats, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")},
		LinkHints{AssetID: uintPtr(5), SearchType: models.SearchTypeAsset})
	require.NoError(t, err)
	assert.Equal(t, TrialStats{Updated: 1}, stats)

	// Ein zweiter, abweichender Hint verändert den Link nicht mehr.
	stats, err = p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")},
		LinkHints{AssetID: uintPtr(9), SearchType: models.SearchTypeAsset})
	require.NoError(t, err)
	assert.Equal(t, TrialStats{Skipped: 1}, stats)

	var trial models.ClinicalTrial
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&trial).Error)
	require.NotNil(t, trial.AssetID)
	assert.Equal(t, uint(5), *trial.AssetID)
	// Der Suchachsen-Tag des Erstfunds bleibt erhalten.
	assert.Equal(t, "indication", trial.SearchType)
}

func TestProcessClinicalTrialsMergeAppliesOnlyNullColumns(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	_, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")},
		LinkHints{AssetID: uintPtr(5), SearchType: models.SearchTypeAsset})
	require.NoError(t, err)

	// Asset-Spalte ist belegt, Indikations-Spalte nicht: nur letztere wird
	// übernommen.
	stats, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")},
		LinkHints{AssetID: uintPtr(9), IndicationID: uintPtr(7), SearchType: models.SearchTypeIndication})
	require.NoError(t, err)
	assert.Equal(t, TrialStats{Updated: 1}, stats)

	var trial models.ClinicalTrial
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&trial).Error)
	require.NotNil(t, trial.AssetID)
	require.NotNil(t, trial.IndicationID)
	assert.Equal(t, uint(5), *trial.AssetID)
	assert.Equal(t, uint(7), *trial.IndicationID)
}

func TestProcessClinicalTrialsCrossAxisLinks(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	_, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")},
		LinkHints{AssetID: uintPtr(1), SearchType: models.SearchTypeAsset})
	require.NoError(t, err)

	stats, err := p.ProcessClinicalTrials(ctx, []*models.TrialRecord{trialRecord("NCT00000001")},
		LinkHints{IndicationID: uintPtr(2), SearchType: models.SearchTypeIndication})
	require.NoError(t, err)
	assert.Equal(t, TrialStats{Updated: 1}, stats)

	var trial models.ClinicalTrial
	require.NoError(t, p.DB.Where("nct_id = ?", "NCT00000001").First(&trial).Error)
	require.NotNil(t, trial.AssetID)
	require.NotNil(t, trial.IndicationID)
	assert.Equal(t, uint(1), *trial.AssetID)
	assert.Equal(t, uint(2), *trial.IndicationID)
}

func TestProcessClinicalTrialsMalformedRecordSkipped(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	batch := []*models.TrialRecord{
		{Title: "broken record without id"},
		trialRecord("NCT00000002"),
	}
	stats, err := p.ProcessClinicalTrials(ctx, batch, LinkHints{SearchType: models.SearchTypeAsset})
	require.NoError(t, err)
	assert.Equal(t, TrialStats{New: 1, Skipped: 1}, stats)
}

func TestProcessPublicationsInsertMergeAndRefresh(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	rec := &models.PublicationRecord{
		PMID:      "38000001",
		Title:     "Zolbetuximab plus chemotherapy in CLDN18.2-positive gastric cancer",
		Journal:   strPtr("Lancet"),
		SourceURL: "https://pubmed.ncbi.nlm.nih.gov/38000001/",
	}
	n, err := p.ProcessPublications(ctx, []*models.PublicationRecord{rec}, LinkHints{SearchType: models.SearchTypeDiseaseDiscovery})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Zweiter Fund über die Asset-Achse: Link-Merge plus Auffrischung, aber
	// kein neuer Datensatz.
	richer := &models.PublicationRecord{
		PMID:     "38000001",
		Abstract: strPtr("Phase 3 results."),
		DOI:      strPtr("10.1016/S0140-6736(23)00001-1"),
	}
	n, err = p.ProcessPublications(ctx, []*models.PublicationRecord{richer}, LinkHints{
		AssetID:    uintPtr(3),
		SearchType: models.SearchTypeAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var pub models.Publication
	require.NoError(t, p.DB.Where("pmid = ?", "38000001").First(&pub).Error)
	require.NotNil(t, pub.AssetID)
	assert.Equal(t, uint(3), *pub.AssetID)
	// Leerer Titel im zweiten Record überschreibt den Bestand nicht.
	assert.Equal(t, "Zolbetuximab plus chemotherapy in CLDN18.2-positive gastric cancer", pub.Title)
	require.NotNil(t, pub.DOI)
	assert.Equal(t, "10.1016/S0140-6736(23)00001-1", *pub.DOI)
	require.NotNil(t, pub.Journal)
	assert.Equal(t, "Lancet", *pub.Journal)
}

func TestProcessPublicationsDefaultTitle(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	n, err := p.ProcessPublications(ctx, []*models.PublicationRecord{{PMID: "38000002"}}, LinkHints{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var pub models.Publication
	require.NoError(t, p.DB.Where("pmid = ?", "38000002").First(&pub).Error)
	assert.Equal(t, "(No title)", pub.Title)
}

func TestProcessNewsDedupByURL(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()
	hints := LinkHints{AssetID: uintPtr(1), SearchType: models.SearchTypeAsset}

	first := &models.NewsRecord{Title: "FDA approves Vyloy", URL: "https://example.com/vyloy"}
	n, err := p.ProcessNews(ctx, []*models.NewsRecord{first}, hints)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dup := &models.NewsRecord{Title: "Vyloy approved by FDA", URL: "https://example.com/vyloy"}
	n, err = p.ProcessNews(ctx, []*models.NewsRecord{dup}, hints)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var articles []models.NewsArticle
	require.NoError(t, p.DB.Find(&articles).Error)
	require.Len(t, articles, 1)
	assert.Equal(t, "FDA approves Vyloy", articles[0].Title)
}

func TestProcessPatentsUpsertEnrichesWithoutChangeLog(t *testing.T) {
	p := newTestProcessor(t)
	ctx := context.Background()

	stub := &models.PatentRecord{
		PatentNumber: "US11234567B2",
		Title:        "Anti-CLDN antibodies",
		Assignee:     strPtr("Astellas Pharma Inc."),
	}
	n, err := p.ProcessPatents(ctx, []*models.PatentRecord{stub}, LinkHints{
		AssetID:    uintPtr(1),
		SearchType: models.SearchTypeAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	enriched := &models.PatentRecord{
		PatentNumber: "US11234567B2",
		Title:        "Anti-CLDN antibodies and methods of use",
		Assignee:     strPtr("Astellas Pharma Inc."),
		GrantDate:    day(2024, time.June, 4),
		ClaimsCount:  intPtr(20),
	}
	n, err = p.ProcessPatents(ctx, []*models.PatentRecord{enriched}, LinkHints{
		AssetID:    uintPtr(9),
		SearchType: models.SearchTypeAsset,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var patents []models.Patent
	require.NoError(t, p.DB.Find(&patents).Error)
	require.Len(t, patents, 1)
	assert.Equal(t, "Anti-CLDN antibodies and methods of use", patents[0].Title)
	require.NotNil(t, patents[0].GrantDate)
	assert.Equal(t, "2024-06-04", patents[0].GrantDate.Format("2006-01-02"))
	require.NotNil(t, patents[0].ClaimsCount)
	assert.Equal(t, 20, *patents[0].ClaimsCount)
	// Der Asset-Link des Inserts bleibt bestehen.
	require.NotNil(t, patents[0].AssetID)
	assert.Equal(t, uint(1), *patents[0].AssetID)

	assert.EqualValues(t, 0, countChanges(t, p.DB, "", ""))
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2026, time.March, 1, 22, 30, 0, 0, time.UTC)
	next := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, sameDay(&morning, &evening))
	assert.False(t, sameDay(&morning, &next))
	assert.True(t, sameDay(nil, nil))
	assert.False(t, sameDay(&morning, nil))
	assert.False(t, sameDay(nil, &morning))
}
