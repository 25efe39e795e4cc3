// Einmaliger Sammellauf ohne HTTP-Server, z.B. für manuelle Läufe oder
// externe Scheduler.
package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OriginalHilex/pharma-ci-tool/config"
	"github.com/OriginalHilex/pharma-ci-tool/services"
)

func main() {
	source := flag.String("source", "all", "Quelle: all, trials, pubmed, news oder patents")
	asset := flag.String("asset", "", "Lauf auf ein Asset beschränken (Name)")
	flag.Parse()

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

	searchCfg, err := config.LoadSearchConfig(cfg.SearchConfigPath)
	if err != nil {
		logging.Warn("Search config not loaded, falling back to asset names",
			zap.String("path", cfg.SearchConfigPath), zap.Error(err))
		searchCfg = nil
	}

	collector := services.NewCollectionService(cfg, db, logging, searchCfg)
	summary, err := collector.Run(context.Background(), services.RunOptions{
		Source: *source,
		Asset:  *asset,
	})
	if err != nil {
		logging.Fatal("Collection run failed", zap.Error(err))
	}
	logging.Info("Collection run finished",
		zap.Int("trials_new", summary.Trials.New),
		zap.Int("trials_updated", summary.Trials.Updated),
		zap.Int("trials_skipped", summary.Trials.Skipped),
		zap.Int("publications_new", summary.NewPublications),
		zap.Int("news_new", summary.NewNews),
		zap.Int("patents", summary.Patents))
}
