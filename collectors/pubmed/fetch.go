// Package pubmed sucht Publikationen über die NCBI E-utilities (esearch +
// efetch) und normalisiert sie zu PublicationRecords.
package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/OriginalHilex/pharma-ci-tool/collectors"
	"github.com/OriginalHilex/pharma-ci-tool/config"
	"github.com/OriginalHilex/pharma-ci-tool/models"
)

const efetchBatchSize = 100

// TargetContextKeywords wird mit Target-Queries ge-AND-et, um reine
// Grundlagenbiologie und Diagnostik herauszufiltern.
const TargetContextKeywords = "drug OR therapy OR antibody OR mAb OR monoclonal OR ADC OR inhibitor OR clinical OR trial OR phase"

// Fetcher ist der Client für die E-utilities. Ohne API-Key erlaubt NCBI
// 3 Requests/Sekunde, mit Key 10.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	policy  collectors.RetryPolicy
	limiter *rate.Limiter
}

// NewFetcher erzeugt einen Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	rps := rate.Limit(2)
	if cfg.NCBIAPIKey != "" {
		rps = rate.Limit(8)
	}
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		policy:  collectors.DefaultRetryPolicy(cfg.FetchRetryAttempts),
		limiter: rate.NewLimiter(rps, 1),
	}
}

// SearchOptions steuern eine PubMed-Suche.
type SearchOptions struct {
	MaxResults int
	// Sort ist "relevance" (Default) oder "pub date".
	Sort string
	// MinDate/MaxDate grenzen optional das Publikationsdatum ein (YYYY/MM/DD).
	MinDate string
	MaxDate string
}

// Search führt esearch + efetch aus und liefert die normalisierten
// Publikationen.
func (f *Fetcher) Search(ctx context.Context, query string, opts SearchOptions) ([]*models.PublicationRecord, error) {
	log := f.Logger.With(zap.String("query", query))
	ids, err := f.searchIDs(ctx, log, query, opts)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		log.Info("PubMed-Suche ohne Treffer")
		return nil, nil
	}

	var records []*models.PublicationRecord
	for start := 0; start < len(ids); start += efetchBatchSize {
		end := min(start+efetchBatchSize, len(ids))
		batch, err := f.fetchArticles(ctx, log, ids[start:end])
		if err != nil {
			return nil, err
		}
		records = append(records, batch...)
	}
	log.Info("PubMed-Suche abgeschlossen", zap.Int("count", len(records)))
	return records, nil
}

func (f *Fetcher) searchIDs(ctx context.Context, log *zap.Logger, query string, opts SearchOptions) ([]string, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 30
	}
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(maxResults))
	params.Set("retmode", "json")
	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
	}
	if opts.MinDate != "" {
		params.Set("datetype", "pdat")
		params.Set("mindate", opts.MinDate)
	}
	if opts.MaxDate != "" {
		params.Set("maxdate", opts.MaxDate)
	}
	if f.Config.NCBIAPIKey != "" {
		params.Set("api_key", f.Config.NCBIAPIKey)
	}
	esearchURL := fmt.Sprintf("%s/esearch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())

	body, err := collectors.Get(ctx, log, f.limiter, f.policy, esearchURL)
	if err != nil {
		return nil, fmt.Errorf("esearch: %w", err)
	}
	var res ESearchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("esearch-antwort parsen: %w", err)
	}
	return res.ESearchResult.IDList, nil
}

func (f *Fetcher) fetchArticles(ctx context.Context, log *zap.Logger, ids []string) ([]*models.PublicationRecord, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")
	if f.Config.NCBIAPIKey != "" {
		params.Set("api_key", f.Config.NCBIAPIKey)
	}
	efetchURL := fmt.Sprintf("%s/efetch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())

	body, err := collectors.Get(ctx, log, f.limiter, f.policy, efetchURL)
	if err != nil {
		return nil, fmt.Errorf("efetch: %w", err)
	}
	var set PubmedArticleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("efetch-antwort parsen: %w", err)
	}
	records := make([]*models.PublicationRecord, 0, len(set.PubmedArticles))
	for i := range set.PubmedArticles {
		if rec := articleToRecord(&set.PubmedArticles[i]); rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// articleToRecord normalisiert einen efetch-Artikel. Artikel ohne PMID
// werden verworfen.
func articleToRecord(article *PubmedArticle) *models.PublicationRecord {
	pmid := strings.TrimSpace(article.MedlineCitation.PMID)
	if pmid == "" {
		return nil
	}
	a := &article.MedlineCitation.Article
	rec := &models.PublicationRecord{
		PMID:      pmid,
		Title:     strings.TrimSpace(a.Title),
		SourceURL: fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
	}
	if abstract := strings.TrimSpace(strings.Join(a.Abstract.Text, " ")); abstract != "" {
		rec.Abstract = &abstract
	}
	var authors []string
	for _, au := range a.Authors {
		switch {
		case au.CollectiveName != "":
			authors = append(authors, au.CollectiveName)
		case au.LastName != "" && au.ForeName != "":
			authors = append(authors, au.ForeName+" "+au.LastName)
		case au.LastName != "":
			authors = append(authors, au.LastName)
		}
	}
	if len(authors) > 0 {
		s := strings.Join(authors, "; ")
		rec.Authors = &s
	}
	if j := strings.TrimSpace(a.Journal.Title); j != "" {
		rec.Journal = &j
	}
	for _, id := range a.ELocationIDs {
		if id.IDType == "doi" && id.ValidYN != "N" {
			if v := strings.TrimSpace(id.Value); v != "" {
				rec.DOI = &v
				break
			}
		}
	}
	rec.PublicationDate = articleDate(article)
	return rec
}

func articleDate(article *PubmedArticle) *time.Time {
	a := &article.MedlineCitation.Article
	if t := ymdDate(a.ArticleDate.Year, a.ArticleDate.Month, a.ArticleDate.Day); t != nil {
		return t
	}
	pd := a.Journal.PubDate
	if pd.MedlineDate != "" {
		return medlineDate(pd.MedlineDate)
	}
	return ymdDate(pd.Year, pd.Month, pd.Day)
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ymdDate baut ein Datum aus Jahr/Monat/Tag-Strings. Monat darf numerisch
// oder als Name ("Mar") vorliegen; fehlende Teile werden auf 1 gesetzt.
func ymdDate(year, month, day string) *time.Time {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return nil
	}
	m := time.January
	if month = strings.TrimSpace(month); month != "" {
		if n, err := strconv.Atoi(month); err == nil && n >= 1 && n <= 12 {
			m = time.Month(n)
		} else if v, ok := monthNames[strings.ToLower(month)[:min(3, len(month))]]; ok {
			m = v
		}
	}
	d := 1
	if n, err := strconv.Atoi(strings.TrimSpace(day)); err == nil && n >= 1 && n <= 31 {
		d = n
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

var yearRegex = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// medlineDate parst Freitext-Daten wie "2023 Jan-Feb" oder "2022 Spring".
func medlineDate(text string) *time.Time {
	match := yearRegex.FindString(text)
	if match == "" {
		return nil
	}
	y, _ := strconv.Atoi(match)
	m := time.January
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/'
	}) {
		if len(token) < 3 {
			continue
		}
		if v, ok := monthNames[strings.ToLower(token[:3])]; ok {
			m = v
			break
		}
	}
	t := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return &t
}
