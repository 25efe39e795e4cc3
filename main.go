package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OriginalHilex/pharma-ci-tool/config"
	"github.com/OriginalHilex/pharma-ci-tool/models"
	"github.com/OriginalHilex/pharma-ci-tool/services"
)

var (
	newTrialsCounter       prometheus.Counter
	updatedTrialsCounter   prometheus.Counter
	newPublicationsCounter prometheus.Counter
	newNewsCounter         prometheus.Counter
)

func init() {
	newTrialsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "new_trials_added_total",
		Help: "Total number of new clinical trials added to the database.",
	})
	updatedTrialsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trials_updated_total",
		Help: "Total number of clinical trial updates applied.",
	})
	newPublicationsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "new_publications_added_total",
		Help: "Total number of new publications added to the database.",
	})
	newNewsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "new_news_articles_added_total",
		Help: "Total number of new news articles added to the database.",
	})
	prometheus.MustRegister(newTrialsCounter, updatedTrialsCounter, newPublicationsCounter, newNewsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Company{}, &models.Asset{}, &models.Indication{}, &models.AssetIndication{},
		&models.ClinicalTrial{}, &models.TrialChange{}, &models.Publication{},
		&models.NewsArticle{}, &models.Patent{},
	)

	seedDefaultCompanies(db, logging)
	seedDefaultIndications(db, logging)

	searchCfg, err := config.LoadSearchConfig(cfg.SearchConfigPath)
	if err != nil {
		logging.Warn("Search config not loaded, falling back to asset names",
			zap.String("path", cfg.SearchConfigPath), zap.Error(err))
		searchCfg = nil
	}

	processor := services.NewProcessor(db, logging)
	collector := services.NewCollectionService(cfg, db, logging, searchCfg)
	collector.OnRunComplete = func(summary services.RunSummary) {
		newTrialsCounter.Add(float64(summary.Trials.New))
		updatedTrialsCounter.Add(float64(summary.Trials.Updated))
		newPublicationsCounter.Add(float64(summary.NewPublications))
		newNewsCounter.Add(float64(summary.NewNews))
	}

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupCompanyRoutes(router, db, logging)
	setupAssetRoutes(router, db, logging)
	setupIndicationRoutes(router, db, logging)
	setupTrialRoutes(router, db, processor, logging)
	setupChangeRoutes(router, processor, logging)
	setupPublicationRoutes(router, db, logging)
	setupNewsRoutes(router, db, logging)
	setupPatentRoutes(router, db, logging)
	setupCollectRoutes(router, db, collector)

	if err := collector.Start(); err != nil {
		logging.Fatal("Failed to start collection scheduler", zap.Error(err))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info("Shutting down...")
	collector.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
}

func setupTrialRoutes(router *gin.Engine, db *gorm.DB, processor *services.Processor, log *zap.Logger) {
	rg := router.Group("/trials")

	// Einfacher GET-Endpunkt für alle Studien (ohne Filter)
	rg.GET("/", func(c *gin.Context) {
		var trials []models.ClinicalTrial
		if err := db.Order("last_updated desc nulls last").Find(&trials).Error; err != nil {
			log.Error("Database query for all trials failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, trials)
	})

	// Body-gesteuerter Endpunkt für komplexe Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type TrialQuery struct {
			NCTID        string     `json:"nct_id"`
			AssetID      *uint      `json:"asset_id"`
			IndicationID *uint      `json:"indication_id"`
			Status       string     `json:"status"`
			Phase        string     `json:"phase"`
			SearchType   string     `json:"search_type"`
			Since        *time.Time `json:"since"`
			Limit        int        `json:"limit"`
		}

		var req TrialQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.ClinicalTrial{})
		if req.NCTID != "" {
			query = query.Where("nct_id = ?", req.NCTID)
		}
		if req.AssetID != nil {
			query = query.Where("asset_id = ?", *req.AssetID)
		}
		if req.IndicationID != nil {
			query = query.Where("indication_id = ?", *req.IndicationID)
		}
		if req.Status != "" {
			query = query.Where("status = ?", req.Status)
		}
		if req.Phase != "" {
			query = query.Where("phase = ?", req.Phase)
		}
		if req.SearchType != "" {
			query = query.Where("search_type = ?", req.SearchType)
		}
		if req.Since != nil {
			query = query.Where("last_updated >= ?", *req.Since)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var trials []models.ClinicalTrial
		if err := query.Order("last_updated desc nulls last").Find(&trials).Error; err != nil {
			log.Error("Database query for trials failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, trials)
	})

	// Einzelne Studie inklusive kompletter Änderungshistorie
	rg.GET("/:nctid", func(c *gin.Context) {
		nctID := c.Param("nctid")
		var trial models.ClinicalTrial
		if err := db.Where("nct_id = ?", nctID).First(&trial).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "trial not found"})
				return
			}
			log.Error("DB error fetching trial", zap.String("nct_id", nctID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		changes, err := processor.ChangesForTrial(c.Request.Context(), nctID)
		if err != nil {
			log.Error("DB error fetching trial changes", zap.String("nct_id", nctID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trial": trial, "changes": changes})
	})
}

func setupChangeRoutes(router *gin.Engine, processor *services.Processor, log *zap.Logger) {
	rg := router.Group("/changes")

	// POST - Änderungen für eine NCT-ID-Menge seit einem Zeitpunkt.
	// Leere Menge bedeutet: alle Studien.
	rg.POST("/query", func(c *gin.Context) {
		var req struct {
			NCTIDs []string   `json:"nct_ids"`
			Since  *time.Time `json:"since"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		since := time.Now().UTC().AddDate(0, 0, -7)
		if req.Since != nil {
			since = *req.Since
		}
		changes, err := processor.ChangesSince(c.Request.Context(), req.NCTIDs, since)
		if err != nil {
			log.Error("Database query for changes failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, changes)
	})

	// GET - Änderungen der letzten N Stunden (Default 24)
	rg.GET("/recent", func(c *gin.Context) {
		hours := 24
		if h := c.Query("hours"); h != "" {
			if v, err := strconv.Atoi(h); err == nil && v > 0 {
				hours = v
			}
		}
		since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
		changes, err := processor.ChangesSince(c.Request.Context(), nil, since)
		if err != nil {
			log.Error("Database query for recent changes failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, changes)
	})
}

func setupPublicationRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/publications")

	rg.GET("/", func(c *gin.Context) {
		var pubs []models.Publication
		if err := db.Order("publication_date desc nulls last").Find(&pubs).Error; err != nil {
			log.Error("Database query for publications failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, pubs)
	})

	rg.POST("/query", func(c *gin.Context) {
		type PublicationQuery struct {
			PMID         string     `json:"pmid"`
			AssetID      *uint      `json:"asset_id"`
			IndicationID *uint      `json:"indication_id"`
			SearchType   string     `json:"search_type"`
			Since        *time.Time `json:"since"`
			Limit        int        `json:"limit"`
		}

		var req PublicationQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Publication{})
		if req.PMID != "" {
			query = query.Where("pmid = ?", req.PMID)
		}
		if req.AssetID != nil {
			query = query.Where("asset_id = ?", *req.AssetID)
		}
		if req.IndicationID != nil {
			query = query.Where("indication_id = ?", *req.IndicationID)
		}
		if req.SearchType != "" {
			query = query.Where("search_type = ?", req.SearchType)
		}
		if req.Since != nil {
			query = query.Where("publication_date >= ?", *req.Since)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var pubs []models.Publication
		if err := query.Order("publication_date desc nulls last").Find(&pubs).Error; err != nil {
			log.Error("Database query for publications failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, pubs)
	})
}

func setupNewsRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/news")

	rg.GET("/", func(c *gin.Context) {
		query := db.Model(&models.NewsArticle{})
		if assetID := c.Query("asset_id"); assetID != "" {
			query = query.Where("asset_id = ?", assetID)
		}
		limit := 100
		if l := c.Query("limit"); l != "" {
			if v, err := strconv.Atoi(l); err == nil && v > 0 {
				limit = v
			}
		}
		var articles []models.NewsArticle
		if err := query.Order("published_at desc nulls last").Limit(limit).Find(&articles).Error; err != nil {
			log.Error("Database query for news failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, articles)
	})
}

func setupPatentRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/patents")

	rg.GET("/", func(c *gin.Context) {
		query := db.Model(&models.Patent{})
		if assetID := c.Query("asset_id"); assetID != "" {
			query = query.Where("asset_id = ?", assetID)
		}
		var patents []models.Patent
		if err := query.Order("filing_date desc nulls last").Find(&patents).Error; err != nil {
			log.Error("Database query for patents failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, patents)
	})
}

func setupCompanyRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/companies")
	rg.POST("/", func(c *gin.Context) {
		var company models.Company
		if err := c.ShouldBindJSON(&company); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&company).Error; err != nil {
			log.Error("Failed to create company", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create company"})
			return
		}
		c.JSON(http.StatusCreated, company)
	})
	rg.GET("/", func(c *gin.Context) {
		var companies []models.Company
		if err := db.Preload("Assets").Find(&companies).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, companies)
	})
}

func setupAssetRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/assets")
	rg.POST("/", func(c *gin.Context) {
		var asset models.Asset
		if err := c.ShouldBindJSON(&asset); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&asset).Error; err != nil {
			log.Error("Failed to create asset", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create asset"})
			return
		}
		c.JSON(http.StatusCreated, asset)
	})
	rg.GET("/", func(c *gin.Context) {
		var assets []models.Asset
		if err := db.Preload("Company").Preload("Indications.Indication").Find(&assets).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, assets)
	})
}

func setupIndicationRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/indications")
	rg.POST("/", func(c *gin.Context) {
		var indication models.Indication
		if err := c.ShouldBindJSON(&indication); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&indication).Error; err != nil {
			log.Error("Failed to create indication", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create indication"})
			return
		}
		c.JSON(http.StatusCreated, indication)
	})
	rg.GET("/", func(c *gin.Context) {
		var indications []models.Indication
		if err := db.Find(&indications).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, indications)
	})
}

func setupCollectRoutes(router *gin.Engine, db *gorm.DB, collector *services.CollectionService) {
	rg := router.Group("/collect")

	rg.POST("/all", func(c *gin.Context) {
		source := c.DefaultQuery("source", "all")
		go func() {
			if _, err := collector.Run(context.Background(), services.RunOptions{Source: source}); err != nil {
				collector.Logger.Error("Async collection run failed", zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Collection run for all assets triggered."})
	})

	rg.POST("/asset/:id", func(c *gin.Context) {
		id := c.Param("id")
		var asset models.Asset
		if err := db.First(&asset, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
			return
		}
		source := c.DefaultQuery("source", "all")
		go func() {
			if _, err := collector.Run(context.Background(), services.RunOptions{Source: source, Asset: asset.Name}); err != nil {
				collector.Logger.Error("Async asset collection failed",
					zap.String("asset", asset.Name), zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": fmt.Sprintf("Collection for asset %s triggered.", asset.Name)})
	})
}

func seedDefaultCompanies(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Company{}).Count(&count)
	if count > 0 {
		return
	}
	company := models.Company{
		Name:        "Astellas Pharma",
		Ticker:      "4503.T",
		Description: "Japanese pharmaceutical company with a focus on oncology, urology and transplantation.",
		Website:     "https://www.astellas.com",
		Assets: []models.Asset{
			{
				Name:              "Zolbetuximab (Vyloy)",
				GenericName:       "zolbetuximab",
				MechanismOfAction: "Anti-CLDN18.2 monoclonal antibody",
				Stage:             "Approved (2024)",
			},
			{
				Name:              "Gilteritinib (Xospata)",
				GenericName:       "gilteritinib",
				MechanismOfAction: "FLT3/AXL tyrosine kinase inhibitor",
				Stage:             "Approved (2018)",
			},
		},
	}
	if err := db.Create(&company).Error; err != nil {
		logger.Warn("Failed to seed default companies", zap.Error(err))
	} else {
		logger.Info("Default companies and assets seeded.")
	}
}

func seedDefaultIndications(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.Indication{}).Count(&count)
	if count > 0 {
		return
	}
	indications := []models.Indication{
		{Name: "Gastric Cancer", TherapeuticArea: "Oncology", ICDCode: "C16"},
		{Name: "Acute Myeloid Leukemia", TherapeuticArea: "Oncology", ICDCode: "C92.0"},
	}
	if err := db.Create(&indications).Error; err != nil {
		logger.Warn("Failed to seed default indications", zap.Error(err))
		return
	}
	logger.Info("Default indications seeded.")

	// Asset-Indikations-Verknüpfungen nachziehen, sofern die Assets existieren.
	var assets []models.Asset
	if err := db.Find(&assets).Error; err != nil {
		return
	}
	indicationFor := map[string]string{
		"Zolbetuximab (Vyloy)":   "Gastric Cancer",
		"Gilteritinib (Xospata)": "Acute Myeloid Leukemia",
	}
	for _, asset := range assets {
		indName, ok := indicationFor[asset.Name]
		if !ok {
			continue
		}
		for _, ind := range indications {
			if ind.Name == indName {
				link := models.AssetIndication{AssetID: asset.ID, IndicationID: ind.ID, Status: asset.Stage}
				if err := db.Create(&link).Error; err != nil {
					logger.Warn("Failed to link asset to indication",
						zap.String("asset", asset.Name), zap.Error(err))
				}
			}
		}
	}
}
