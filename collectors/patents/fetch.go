// Package patents scrapt die Google-Patents-Suche und Detailseiten und
// normalisiert die Treffer zu PatentRecords. Die Suche liefert dünne Stubs,
// FetchDetails reichert einzelne Patente bibliografisch an.
package patents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/OriginalHilex/pharma-ci-tool/collectors"
	"github.com/OriginalHilex/pharma-ci-tool/config"
	"github.com/OriginalHilex/pharma-ci-tool/models"
)

// Fetcher ist der Client für die Patentsuche. Scraping wird bewusst streng
// gedrosselt.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	policy  collectors.RetryPolicy
	limiter *rate.Limiter
}

// NewFetcher erzeugt einen Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		policy:  collectors.DefaultRetryPolicy(cfg.FetchRetryAttempts),
		limiter: rate.NewLimiter(rate.Limit(0.2), 1),
	}
}

// SearchOptions steuern eine Patentsuche.
type SearchOptions struct {
	MaxResults int
	// Assignee grenzt optional auf einen Anmelder ein.
	Assignee string
	// AfterDate grenzt optional auf Anmeldungen nach dem Datum ein
	// (YYYYMMDD, Google-Patents-Syntax "after:priority:...").
	AfterDate string
}

// Search lädt die Ergebnisseite zur Query und parst die Treffer-Stubs.
func (f *Fetcher) Search(ctx context.Context, query string, opts SearchOptions) ([]*models.PatentRecord, error) {
	log := f.Logger.With(zap.String("query", query))
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}
	searchQuery := query
	if opts.Assignee != "" {
		searchQuery += fmt.Sprintf(` assignee:"%s"`, opts.Assignee)
	}
	if opts.AfterDate != "" {
		searchQuery += " after:priority:" + opts.AfterDate
	}
	searchURL := fmt.Sprintf("%s/?q=%s", f.Config.GooglePatentsBaseURL, url.QueryEscape(searchQuery))

	body, err := collectors.Get(ctx, log, f.limiter, f.policy, searchURL)
	if err != nil {
		return nil, fmt.Errorf("patentsuche abrufen: %w", err)
	}
	records, err := parseSearchResults(bytes.NewReader(body), maxResults, f.Config.GooglePatentsBaseURL)
	if err != nil {
		return nil, fmt.Errorf("patentsuche parsen: %w", err)
	}
	log.Info("Patentsuche abgeschlossen", zap.Int("count", len(records)))
	return records, nil
}

// FetchDetails lädt die Detailseite eines Patents und parst die
// bibliografischen Felder inklusive Anspruchszahl.
func (f *Fetcher) FetchDetails(ctx context.Context, patentNumber string) (*models.PatentRecord, error) {
	log := f.Logger.With(zap.String("patent_number", patentNumber))
	detailURL := fmt.Sprintf("%s/patent/%s/en", f.Config.GooglePatentsBaseURL, patentNumber)
	body, err := collectors.Get(ctx, log, f.limiter, f.policy, detailURL)
	if err != nil {
		return nil, fmt.Errorf("patentdetails abrufen: %w", err)
	}
	rec, err := parseDetailPage(bytes.NewReader(body), patentNumber, f.Config.GooglePatentsBaseURL)
	if err != nil {
		return nil, fmt.Errorf("patentdetails parsen: %w", err)
	}
	return rec, nil
}

var patentNumberRegex = regexp.MustCompile(`/patent/([A-Z]{2}[A-Z0-9]+)`)

func parseSearchResults(r io.Reader, maxResults int, baseURL string) ([]*models.PatentRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	var records []*models.PatentRecord
	sel := doc.Find("article.search-result-item")
	if sel.Length() == 0 {
		sel = doc.Find("search-result-item")
	}
	sel.EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(records) >= maxResults {
			return false
		}
		if rec := parseResultItem(item, baseURL); rec != nil {
			records = append(records, rec)
		}
		return true
	})
	return records, nil
}

func parseResultItem(item *goquery.Selection, baseURL string) *models.PatentRecord {
	href, ok := item.Find(`a[href*="/patent/"]`).First().Attr("href")
	if !ok {
		return nil
	}
	m := patentNumberRegex.FindStringSubmatch(href)
	if m == nil {
		return nil
	}
	number := m[1]
	rec := &models.PatentRecord{
		PatentNumber: number,
		SourceURL:    baseURL + "/patent/" + number,
	}
	rec.Title = strings.TrimSpace(item.Find("h3, h4, .result-title").First().Text())
	if a := strings.TrimSpace(item.Find(".assignee, [data-assignee]").First().Text()); a != "" {
		rec.Assignee = &a
	}
	// Ergebnisseiten zeigen Anmelde- und Erteilungsdatum in dieser
	// Reihenfolge an.
	item.Find(".filing-date, .grant-date, .date").Each(func(_ int, d *goquery.Selection) {
		t := collectors.ParseDate(d.Text())
		if t == nil {
			return
		}
		if rec.FilingDate == nil {
			rec.FilingDate = t
		} else if rec.GrantDate == nil {
			rec.GrantDate = t
		}
	})
	if abs := strings.TrimSpace(item.Find(".abstract, .snippet").First().Text()); abs != "" {
		rec.Abstract = &abs
	}
	return rec
}

func parseDetailPage(r io.Reader, patentNumber, baseURL string) (*models.PatentRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	rec := &models.PatentRecord{
		PatentNumber: patentNumber,
		SourceURL:    baseURL + "/patent/" + patentNumber,
	}
	rec.Title = strings.TrimSpace(doc.Find("h1#title, span[itemprop=title]").First().Text())
	if abs := strings.TrimSpace(doc.Find("section#abstract div.abstract, div[itemprop=abstract]").First().Text()); abs != "" {
		rec.Abstract = &abs
	}
	if n := doc.Find("section#claims div.claim").Length(); n > 0 {
		rec.ClaimsCount = &n
	}
	if a := strings.TrimSpace(doc.Find("dd[itemprop=assigneeCurrent], dd[itemprop=assigneeOriginal]").First().Text()); a != "" {
		rec.Assignee = &a
	}
	doc.Find("dd[itemprop=filingDate]").Each(func(_ int, d *goquery.Selection) {
		if rec.FilingDate == nil {
			rec.FilingDate = collectors.ParseDate(d.Text())
		}
	})
	doc.Find("dd[itemprop=grantDate], dd[itemprop=publicationDate]").Each(func(_ int, d *goquery.Selection) {
		if rec.GrantDate == nil {
			rec.GrantDate = collectors.ParseDate(d.Text())
		}
	})
	return rec, nil
}
