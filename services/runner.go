package services

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/OriginalHilex/pharma-ci-tool/collectors/news"
	"github.com/OriginalHilex/pharma-ci-tool/collectors/patents"
	"github.com/OriginalHilex/pharma-ci-tool/collectors/pubmed"
	"github.com/OriginalHilex/pharma-ci-tool/collectors/trialsgov"
	"github.com/OriginalHilex/pharma-ci-tool/config"
	"github.com/OriginalHilex/pharma-ci-tool/models"
)

// CollectionService orchestriert die periodische Datensammlung: pro Asset
// werden Studien, Publikationen, News und Patente abgerufen, pro Indikation
// die kompetitive Studienlandschaft, und über die Disease-Liste läuft die
// Discovery-Suche ohne FK-Hints.
type CollectionService struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *zap.Logger
	Processor *Processor
	Search    *config.SearchConfig

	Trials  *trialsgov.Fetcher
	Pubs    *pubmed.Fetcher
	News    *news.Fetcher
	Patents *patents.Fetcher

	// OnRunComplete wird nach jedem Lauf aufgerufen, z.B. für Metriken.
	OnRunComplete func(RunSummary)

	cron *cron.Cron
}

// NewCollectionService verdrahtet Collectors und Processor.
func NewCollectionService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, search *config.SearchConfig) *CollectionService {
	return &CollectionService{
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		Processor: NewProcessor(db, logger),
		Search:    search,
		Trials:    trialsgov.NewFetcher(cfg, logger),
		Pubs:      pubmed.NewFetcher(cfg, logger),
		News:      news.NewFetcher(cfg, logger),
		Patents:   patents.NewFetcher(cfg, logger),
	}
}

// Start registriert den Cron-Job und startet den Scheduler.
func (s *CollectionService) Start() error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(s.Config.CollectionCron, func() {
		summary, err := s.RunAll(context.Background())
		if err != nil {
			s.Logger.Error("Geplante Datensammlung fehlgeschlagen", zap.Error(err))
			return
		}
		s.Logger.Info("Geplante Datensammlung abgeschlossen", summary.fields()...)
	})
	if err != nil {
		return fmt.Errorf("cron-job registrieren: %w", err)
	}
	c.Start()
	s.cron = c
	s.Logger.Info("Scheduler gestartet", zap.String("cron", s.Config.CollectionCron))
	return nil
}

// Stop hält den Scheduler an und wartet auf laufende Jobs.
func (s *CollectionService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Logger.Info("Scheduler gestoppt")
}

// RunOptions grenzen einen Sammellauf ein.
type RunOptions struct {
	// Source ist "all" (Default), "trials", "pubmed", "news" oder "patents".
	Source string
	// Asset beschränkt den Lauf optional auf ein Asset (Name).
	Asset string
}

// RunSummary fasst einen Sammellauf zusammen.
type RunSummary struct {
	Trials          TrialStats
	NewPublications int
	NewNews         int
	Patents         int
}

func (r RunSummary) fields() []zap.Field {
	return []zap.Field{
		zap.Int("trials_new", r.Trials.New),
		zap.Int("trials_updated", r.Trials.Updated),
		zap.Int("trials_skipped", r.Trials.Skipped),
		zap.Int("publications_new", r.NewPublications),
		zap.Int("news_new", r.NewNews),
		zap.Int("patents", r.Patents),
	}
}

// RunAll führt einen vollständigen Sammellauf über alle Quellen aus.
func (s *CollectionService) RunAll(ctx context.Context) (RunSummary, error) {
	return s.Run(ctx, RunOptions{Source: "all"})
}

// Run führt einen Sammellauf gemäß den Optionen aus. Fehler einzelner Quellen
// werden geloggt, der Lauf geht weiter; nur DB-Fehler beim Laden der Achsen
// brechen ab.
func (s *CollectionService) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	var summary RunSummary

	var assets []models.Asset
	q := s.DB.WithContext(ctx).Preload("Company")
	if opts.Asset != "" {
		q = q.Where("name = ?", opts.Asset)
	}
	if err := q.Find(&assets).Error; err != nil {
		return summary, fmt.Errorf("assets laden: %w", err)
	}

	for i := range assets {
		s.runAsset(ctx, &assets[i], opts, &summary)
	}

	if opts.Asset == "" && wantSource(opts, "trials") {
		var indications []models.Indication
		if err := s.DB.WithContext(ctx).Find(&indications).Error; err != nil {
			return summary, fmt.Errorf("indikationen laden: %w", err)
		}
		for i := range indications {
			s.runIndication(ctx, &indications[i], &summary)
		}
	}

	if opts.Asset == "" && wantSource(opts, "pubmed") && s.Search != nil {
		s.runDiseaseDiscovery(ctx, &summary)
	}

	s.Logger.Info("Sammellauf abgeschlossen", summary.fields()...)
	if s.OnRunComplete != nil {
		s.OnRunComplete(summary)
	}
	return summary, nil
}

// runAsset sammelt alle Quellen entlang der Asset-Achse. Die Queries kommen
// aus den Alias-Listen der Suchkonfiguration; fehlt ein Asset dort, wird der
// Datenbank-Name als Query verwendet.
func (s *CollectionService) runAsset(ctx context.Context, asset *models.Asset, opts RunOptions, summary *RunSummary) {
	log := s.Logger.With(zap.String("asset", asset.Name))
	log.Info("Starte Datensammlung für Asset")

	aliases := config.AssetAliases{Name: asset.Name, Aliases: []string{asset.Name}}
	if s.Search != nil {
		if a := s.Search.AssetByName(asset.Name); a != nil {
			aliases = *a
		}
	}
	query := aliases.OrQuery()
	if query == "" {
		query = asset.Name
	}
	assetID := asset.ID
	hints := LinkHints{AssetID: &assetID, SearchType: models.SearchTypeAsset}

	if wantSource(opts, "trials") {
		records, err := s.Trials.Search(ctx, query, trialsgov.SearchOptions{MaxResults: s.Config.TrialsMaxResults})
		if err != nil {
			log.Error("Studien-Suche fehlgeschlagen", zap.Error(err))
		} else if stats, err := s.Processor.ProcessClinicalTrials(ctx, records, hints); err != nil {
			log.Error("Studien-Verarbeitung fehlgeschlagen", zap.Error(err))
		} else {
			summary.Trials.New += stats.New
			summary.Trials.Updated += stats.Updated
			summary.Trials.Skipped += stats.Skipped
		}
	}

	if wantSource(opts, "pubmed") {
		records, err := s.Pubs.Search(ctx, query, pubmed.SearchOptions{MaxResults: s.Config.PubMedMaxResults})
		if err != nil {
			log.Error("PubMed-Suche fehlgeschlagen", zap.Error(err))
		} else if n, err := s.Processor.ProcessPublications(ctx, records, hints); err != nil {
			log.Error("Publikations-Verarbeitung fehlgeschlagen", zap.Error(err))
		} else {
			summary.NewPublications += n
		}
		// Target-Achse: Publikationen zum Wirkmechanismus, mit
		// Therapie-Kontext ge-AND-et.
		if tq := aliases.TargetOrQuery(); tq != "" {
			targetQuery := fmt.Sprintf("(%s) AND (%s)", tq, pubmed.TargetContextKeywords)
			targetHints := LinkHints{AssetID: &assetID, SearchType: models.SearchTypeTarget}
			records, err := s.Pubs.Search(ctx, targetQuery, pubmed.SearchOptions{
				MaxResults: s.Config.PubMedMaxResults,
				Sort:       "pub date",
			})
			if err != nil {
				log.Error("Target-Suche fehlgeschlagen", zap.Error(err))
			} else if n, err := s.Processor.ProcessPublications(ctx, records, targetHints); err != nil {
				log.Error("Target-Verarbeitung fehlgeschlagen", zap.Error(err))
			} else {
				summary.NewPublications += n
			}
		}
	}

	if wantSource(opts, "news") {
		records, err := s.News.SearchForDrug(ctx, asset.Name, news.SearchOptions{MaxResults: s.Config.NewsMaxResults})
		if err != nil {
			log.Error("News-Suche fehlgeschlagen", zap.Error(err))
		} else if n, err := s.Processor.ProcessNews(ctx, records, hints); err != nil {
			log.Error("News-Verarbeitung fehlgeschlagen", zap.Error(err))
		} else {
			summary.NewNews += n
		}
	}

	if wantSource(opts, "patents") {
		patentOpts := patents.SearchOptions{MaxResults: s.Config.PatentsMaxResults}
		if asset.Company != nil {
			patentOpts.Assignee = asset.Company.Name
		}
		records, err := s.Patents.Search(ctx, query, patentOpts)
		if err != nil {
			log.Error("Patentsuche fehlgeschlagen", zap.Error(err))
		} else if n, err := s.Processor.ProcessPatents(ctx, records, hints); err != nil {
			log.Error("Patent-Verarbeitung fehlgeschlagen", zap.Error(err))
		} else {
			summary.Patents += n
		}
	}
}

// runIndication sammelt die Studienlandschaft einer Indikation, unabhängig
// vom Sponsor.
func (s *CollectionService) runIndication(ctx context.Context, ind *models.Indication, summary *RunSummary) {
	log := s.Logger.With(zap.String("indication", ind.Name))
	log.Info("Starte Studiensammlung für Indikation")

	query := ind.Name
	if s.Search != nil {
		for i := range s.Search.Diseases {
			if d := &s.Search.Diseases[i]; d.Name == ind.Name {
				if oq := d.OrQuery(); oq != "" {
					query = oq
				}
				break
			}
		}
	}
	indicationID := ind.ID
	hints := LinkHints{IndicationID: &indicationID, SearchType: models.SearchTypeIndication}

	records, err := s.Trials.Search(ctx, query, trialsgov.SearchOptions{MaxResults: s.Config.TrialsMaxResults})
	if err != nil {
		log.Error("Studien-Suche fehlgeschlagen", zap.Error(err))
		return
	}
	stats, err := s.Processor.ProcessClinicalTrials(ctx, records, hints)
	if err != nil {
		log.Error("Studien-Verarbeitung fehlgeschlagen", zap.Error(err))
		return
	}
	summary.Trials.New += stats.New
	summary.Trials.Updated += stats.Updated
	summary.Trials.Skipped += stats.Skipped
}

// runDiseaseDiscovery sucht neue Interventionen in den konfigurierten
// Krankheitsgebieten. Die Treffer bekommen keine FK-Hints, nur den
// Discovery-Tag.
func (s *CollectionService) runDiseaseDiscovery(ctx context.Context, summary *RunSummary) {
	hints := LinkHints{SearchType: models.SearchTypeDiseaseDiscovery}
	for i := range s.Search.Diseases {
		disease := &s.Search.Diseases[i]
		log := s.Logger.With(zap.String("disease", disease.Name))
		query := fmt.Sprintf("(%s) AND (%s)", disease.OrQuery(), s.Search.InterventionOrQuery())
		records, err := s.Pubs.Search(ctx, query, pubmed.SearchOptions{
			MaxResults: s.Config.PubMedMaxResults,
			Sort:       "pub date",
		})
		if err != nil {
			log.Error("Discovery-Suche fehlgeschlagen", zap.Error(err))
			continue
		}
		n, err := s.Processor.ProcessPublications(ctx, records, hints)
		if err != nil {
			log.Error("Discovery-Verarbeitung fehlgeschlagen", zap.Error(err))
			continue
		}
		summary.NewPublications += n
	}
}

func wantSource(opts RunOptions, source string) bool {
	return opts.Source == "" || opts.Source == "all" || opts.Source == source
}
