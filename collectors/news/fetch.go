// Package news liest den Google-News-RSS-Feed und normalisiert die Einträge
// zu NewsRecords.
package news

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/OriginalHilex/pharma-ci-tool/collectors"
	"github.com/OriginalHilex/pharma-ci-tool/config"
	"github.com/OriginalHilex/pharma-ci-tool/models"
)

// Fetcher ist der Client für den News-Feed.
type Fetcher struct {
	Config  *config.Config
	Logger  *zap.Logger
	policy  collectors.RetryPolicy
	limiter *rate.Limiter
	parser  *gofeed.Parser
}

// NewFetcher erzeugt einen Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config:  cfg,
		Logger:  logger,
		policy:  collectors.DefaultRetryPolicy(cfg.FetchRetryAttempts),
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		parser:  gofeed.NewParser(),
	}
}

// SearchOptions steuern eine Feed-Abfrage.
type SearchOptions struct {
	MaxResults int
	Language   string // Default "en"
	Region     string // Default "US"
}

// Search lädt den RSS-Feed zur Query und liefert die Einträge.
func (f *Fetcher) Search(ctx context.Context, query string, opts SearchOptions) ([]*models.NewsRecord, error) {
	log := f.Logger.With(zap.String("query", query))
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	region := opts.Region
	if region == "" {
		region = "US"
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	feedURL := fmt.Sprintf("%s?q=%s&hl=%s-%s&gl=%s&ceid=%s:%s",
		f.Config.GoogleNewsRSSURL, url.QueryEscape(query), lang, region, region, region, lang)

	body, err := collectors.Get(ctx, log, f.limiter, f.policy, feedURL)
	if err != nil {
		return nil, fmt.Errorf("news-feed abrufen: %w", err)
	}
	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("news-feed parsen: %w", err)
	}

	records := make([]*models.NewsRecord, 0, min(maxResults, len(feed.Items)))
	for _, item := range feed.Items {
		if len(records) >= maxResults {
			break
		}
		if rec := itemToRecord(item); rec != nil {
			records = append(records, rec)
		}
	}
	log.Info("News-Suche abgeschlossen", zap.Int("count", len(records)))
	return records, nil
}

// SearchForDrug ergänzt Pharma-Kontext zur Query, um die Trefferrelevanz zu
// erhöhen.
func (f *Fetcher) SearchForDrug(ctx context.Context, drugName string, opts SearchOptions) ([]*models.NewsRecord, error) {
	query := fmt.Sprintf(`"%s" pharma OR clinical OR FDA`, drugName)
	return f.Search(ctx, query, opts)
}

// SearchForCompany sucht Nachrichten zu einem Unternehmen.
func (f *Fetcher) SearchForCompany(ctx context.Context, companyName string, opts SearchOptions) ([]*models.NewsRecord, error) {
	query := fmt.Sprintf(`"%s" pharmaceutical OR biotech`, companyName)
	return f.Search(ctx, query, opts)
}

var tagRegex = regexp.MustCompile(`<[^>]+>`)

// itemToRecord normalisiert einen Feed-Eintrag. Der Feed hängt die Quelle als
// " - Quelle" an den Titel an, das wird hier wieder abgetrennt.
func itemToRecord(item *gofeed.Item) *models.NewsRecord {
	title := strings.TrimSpace(item.Title)
	if title == "" || item.Link == "" {
		return nil
	}
	var source *string
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		if s := strings.TrimSpace(title[idx+3:]); s != "" {
			source = &s
			title = strings.TrimSpace(title[:idx])
		}
	}
	rec := &models.NewsRecord{
		Title:  title,
		URL:    item.Link,
		Source: source,
	}
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		rec.PublishedAt = &t
	} else if item.Published != "" {
		rec.PublishedAt = collectors.ParseDate(item.Published)
	}
	if summary := strings.TrimSpace(tagRegex.ReplaceAllString(item.Description, "")); summary != "" {
		rec.Summary = &summary
	}
	return rec
}
