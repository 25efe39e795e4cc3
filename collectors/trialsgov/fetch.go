// Package trialsgov ruft Studien über die ClinicalTrials.gov API v2 ab und
// normalisiert sie zu TrialRecords.
package trialsgov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/OriginalHilex/pharma-ci-tool/collectors"
	"github.com/OriginalHilex/pharma-ci-tool/config"
	"github.com/OriginalHilex/pharma-ci-tool/models"
)

const pageSize = 50

// studyFields sind die Registry-Felder, die wir pro Studie anfordern.
var studyFields = []string{
	"NCTId", "BriefTitle", "OfficialTitle", "OverallStatus", "Phase",
	"StartDate", "CompletionDate", "LastUpdatePostDate", "EnrollmentInfo",
	"LeadSponsorName", "PrimaryOutcomeMeasure", "BriefSummary",
}

// Fetcher ist der Client für das Studienregister.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	policy  collectors.RetryPolicy
	limiter *rate.Limiter
}

// NewFetcher erzeugt einen Fetcher. Das Register verträgt laut Dokumentation
// etwa 50 Requests/Minute, wir bleiben deutlich darunter.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		policy:  collectors.DefaultRetryPolicy(cfg.FetchRetryAttempts),
		limiter: rate.NewLimiter(rate.Limit(0.5), 1),
	}
}

// SearchOptions steuern eine Registry-Suche.
type SearchOptions struct {
	MaxResults int
	// Status filtert optional nach Overall Status, z.B. "RECRUITING".
	Status string
}

// Search lädt alle Studien zur Query, paginiert über Page-Tokens.
func (f *Fetcher) Search(ctx context.Context, query string, opts SearchOptions) ([]*models.TrialRecord, error) {
	log := f.Logger.With(zap.String("query", query))
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	var records []*models.TrialRecord
	pageToken := ""
	for len(records) < maxResults {
		searchURL := f.buildSearchURL(query, min(pageSize, maxResults-len(records)), pageToken, opts.Status)
		body, err := collectors.Get(ctx, log, f.limiter, f.policy, searchURL)
		if err != nil {
			return nil, fmt.Errorf("studien abrufen: %w", err)
		}
		var page StudiesResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("studien-antwort parsen: %w", err)
		}
		if len(page.Studies) == 0 {
			break
		}
		for i := range page.Studies {
			if rec := studyToRecord(&page.Studies[i]); rec != nil {
				records = append(records, rec)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	log.Info("Studien-Suche abgeschlossen", zap.Int("count", len(records)))
	return records, nil
}

func (f *Fetcher) buildSearchURL(query string, size int, pageToken, status string) string {
	params := url.Values{}
	params.Set("query.term", query)
	params.Set("pageSize", strconv.Itoa(size))
	params.Set("fields", strings.Join(studyFields, ","))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	if status != "" {
		params.Set("filter.overallStatus", status)
	}
	return fmt.Sprintf("%s/studies?%s", f.Config.ClinicalTrialsBaseURL, params.Encode())
}

// studyToRecord normalisiert eine Registry-Studie. Studien ohne NCT-ID
// werden verworfen.
func studyToRecord(study *Study) *models.TrialRecord {
	proto := &study.ProtocolSection
	nctID := proto.IdentificationModule.NCTID
	if nctID == "" {
		return nil
	}
	rec := &models.TrialRecord{
		NCTID:          nctID,
		Title:          proto.IdentificationModule.BriefTitle,
		StartDate:      collectors.ParseDate(proto.StatusModule.StartDateStruct.Date),
		CompletionDate: collectors.ParseDate(proto.StatusModule.CompletionDateStruct.Date),
		LastUpdated:    collectors.ParseDate(proto.StatusModule.LastUpdatePostDateStruct.Date),
		Enrollment:     proto.DesignModule.EnrollmentInfo.Count,
		SourceURL:      "https://clinicaltrials.gov/study/" + nctID,
	}
	if rec.Title == "" {
		rec.Title = proto.IdentificationModule.OfficialTitle
	}
	if s := proto.StatusModule.OverallStatus; s != "" {
		rec.Status = &s
	}
	if len(proto.DesignModule.Phases) > 0 {
		phase := strings.Join(proto.DesignModule.Phases, "/")
		rec.Phase = &phase
	}
	if s := proto.SponsorCollaboratorsModule.LeadSponsor.Name; s != "" {
		rec.Sponsor = &s
	}
	if len(proto.OutcomesModule.PrimaryOutcomes) > 0 {
		if m := proto.OutcomesModule.PrimaryOutcomes[0].Measure; m != "" {
			rec.PrimaryEndpoint = &m
		}
	}
	if s := proto.DescriptionModule.BriefSummary; s != "" {
		rec.Summary = &s
	}
	if raw, err := json.Marshal(study); err == nil {
		rec.RawData = raw
	}
	return rec
}
