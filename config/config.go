package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"8080"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Cron-Ausdruck für die periodische Datensammlung.
	CollectionCron string `envconfig:"COLLECTION_CRON" default:"0 6 * * *"`

	// Pfad zur YAML-Datei mit den Alias-Listen (Assets, Diseases, Keywords).
	SearchConfigPath string `envconfig:"SEARCH_CONFIG_PATH" default:"config/search_config.yaml"`

	ClinicalTrialsBaseURL string `envconfig:"CLINICALTRIALS_BASE_URL" default:"https://clinicaltrials.gov/api/v2"`
	PubMedBaseURL         string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	NCBIAPIKey            string `envconfig:"NCBI_API_KEY"`
	GoogleNewsRSSURL      string `envconfig:"GOOGLE_NEWS_RSS_URL" default:"https://news.google.com/rss/search"`
	GooglePatentsBaseURL  string `envconfig:"GOOGLE_PATENTS_BASE_URL" default:"https://patents.google.com"`

	TrialsMaxResults  int `envconfig:"TRIALS_MAX_RESULTS" default:"100"`
	PubMedMaxResults  int `envconfig:"PUBMED_MAX_RESULTS" default:"30"`
	NewsMaxResults    int `envconfig:"NEWS_MAX_RESULTS" default:"50"`
	PatentsMaxResults int `envconfig:"PATENTS_MAX_RESULTS" default:"20"`

	// Retry-Policy für Collector-HTTP-Aufrufe.
	FetchRetryAttempts int `envconfig:"FETCH_RETRY_ATTEMPTS" default:"3"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
