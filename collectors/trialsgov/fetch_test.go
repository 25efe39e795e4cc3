package trialsgov

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const studyFixture = `{
  "protocolSection": {
    "identificationModule": {
      "nctId": "NCT03504397",
      "briefTitle": "Zolbetuximab in Gastric Cancer",
      "officialTitle": "A Phase 3 Study of Zolbetuximab Plus mFOLFOX6"
    },
    "statusModule": {
      "overallStatus": "COMPLETED",
      "startDateStruct": {"date": "2018-06-21"},
      "completionDateStruct": {"date": "2024-01"},
      "lastUpdatePostDateStruct": {"date": "2024-03-05"}
    },
    "designModule": {
      "phases": ["PHASE3"],
      "enrollmentInfo": {"count": 565}
    },
    "sponsorCollaboratorsModule": {
      "leadSponsor": {"name": "Astellas Pharma Global Development, Inc."}
    },
    "outcomesModule": {
      "primaryOutcomes": [{"measure": "Progression-free survival"}]
    },
    "descriptionModule": {
      "briefSummary": "The purpose of this study is to evaluate zolbetuximab."
    }
  }
}`

func TestStudyToRecord(t *testing.T) {
	var study Study
	require.NoError(t, json.Unmarshal([]byte(studyFixture), &study))

	rec := studyToRecord(&study)
	require.NotNil(t, rec)
	assert.Equal(t, "NCT03504397", rec.NCTID)
	assert.Equal(t, "Zolbetuximab in Gastric Cancer", rec.Title)
	require.NotNil(t, rec.Status)
	assert.Equal(t, "COMPLETED", *rec.Status)
	require.NotNil(t, rec.Phase)
	assert.Equal(t, "PHASE3", *rec.Phase)
	require.NotNil(t, rec.Enrollment)
	assert.Equal(t, 565, *rec.Enrollment)
	require.NotNil(t, rec.Sponsor)
	assert.Equal(t, "Astellas Pharma Global Development, Inc.", *rec.Sponsor)
	require.NotNil(t, rec.PrimaryEndpoint)
	assert.Equal(t, "Progression-free survival", *rec.PrimaryEndpoint)
	require.NotNil(t, rec.StartDate)
	assert.Equal(t, "2018-06-21", rec.StartDate.Format("2006-01-02"))
	// Teilgenaue Registry-Daten (YYYY-MM) werden auf den Monatsersten gelegt.
	require.NotNil(t, rec.CompletionDate)
	assert.Equal(t, "2024-01-01", rec.CompletionDate.Format("2006-01-02"))
	require.NotNil(t, rec.LastUpdated)
	assert.Equal(t, "2024-03-05", rec.LastUpdated.Format("2006-01-02"))
	assert.Equal(t, "https://clinicaltrials.gov/study/NCT03504397", rec.SourceURL)
	assert.NotEmpty(t, rec.RawData)
}

func TestStudyToRecordWithoutNCTID(t *testing.T) {
	var study Study
	require.NoError(t, json.Unmarshal([]byte(`{"protocolSection":{}}`), &study))
	assert.Nil(t, studyToRecord(&study))
}

func TestStudyToRecordFallsBackToOfficialTitle(t *testing.T) {
	var study Study
	require.NoError(t, json.Unmarshal([]byte(`{
	  "protocolSection": {
	    "identificationModule": {"nctId": "NCT00000001", "officialTitle": "Official Only"}
	  }
	}`), &study))

	rec := studyToRecord(&study)
	require.NotNil(t, rec)
	assert.Equal(t, "Official Only", rec.Title)
	assert.Nil(t, rec.Status)
	assert.Nil(t, rec.Enrollment)
	assert.Nil(t, rec.LastUpdated)
}
