package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Zoho      ZohoConfig      `yaml:"zoho" mapstructure:"zoho"`
	Apollo    ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Drive     DriveConfig     `yaml:"drive" mapstructure:"drive"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ZohoConfig holds Zoho CRM credentials and endpoints.
type ZohoConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	AccountsURL  string  `yaml:"accounts_url" mapstructure:"accounts_url"`
	ClientID     string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string  `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken string  `yaml:"refresh_token" mapstructure:"refresh_token"`
	RPS          float64 `yaml:"rps" mapstructure:"rps"`
}

// ApolloConfig holds Apollo.io API settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RateLimitConfig sets the Apollo sliding-window call budgets.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" mapstructure:"per_minute"`
	PerHour   int `yaml:"per_hour" mapstructure:"per_hour"`
	PerDay    int `yaml:"per_day" mapstructure:"per_day"`
}

// EnrichConfig configures the bulk-enrichment orchestrator.
type EnrichConfig struct {
	ChunkSize          int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ContactsPerCompany int    `yaml:"contacts_per_company" mapstructure:"contacts_per_company"`
	FilterType         string `yaml:"filter_type" mapstructure:"filter_type"`
	CompanyDelayMS     int    `yaml:"company_delay_ms" mapstructure:"company_delay_ms"`
	SessionTTLMins     int    `yaml:"session_ttl_mins" mapstructure:"session_ttl_mins"`
}

// IngestConfig configures the scrape-and-create pipeline.
type IngestConfig struct {
	SearchTerm    string `yaml:"search_term" mapstructure:"search_term"`
	Country       string `yaml:"country" mapstructure:"country"`
	ResultsWanted int    `yaml:"results_wanted" mapstructure:"results_wanted"`
	HoursOld      int    `yaml:"hours_old" mapstructure:"hours_old"`
	DelayMinMS    int    `yaml:"delay_min_ms" mapstructure:"delay_min_ms"`
	DelayMaxMS    int    `yaml:"delay_max_ms" mapstructure:"delay_max_ms"`
	ScraperURL    string `yaml:"scraper_url" mapstructure:"scraper_url"`
	ScraperKey    string `yaml:"scraper_key" mapstructure:"scraper_key"`
}

// StoreConfig configures the chunk-run log backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DSN         string `yaml:"dsn" mapstructure:"dsn"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DriveConfig configures the chunk driver command.
type DriveConfig struct {
	APIURL                 string `yaml:"api_url" mapstructure:"api_url"`
	APIKey                 string `yaml:"api_key" mapstructure:"api_key"`
	ChunkSize              int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ContactsPerCompany     int    `yaml:"contacts_per_company" mapstructure:"contacts_per_company"`
	FilterType             string `yaml:"filter_type" mapstructure:"filter_type"`
	MaxRetries             int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelaySecs         int    `yaml:"retry_delay_secs" mapstructure:"retry_delay_secs"`
	MaxConsecutiveFailures int    `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures"`
	ChunkTimeoutSecs       int    `yaml:"chunk_timeout_secs" mapstructure:"chunk_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("JOBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("zoho.base_url", "https://www.zohoapis.com")
	v.SetDefault("zoho.accounts_url", "https://accounts.zoho.com")
	v.SetDefault("zoho.rps", 5)
	v.SetDefault("apollo.base_url", "https://api.apollo.io")
	v.SetDefault("ratelimit.per_minute", 200)
	v.SetDefault("ratelimit.per_hour", 400)
	v.SetDefault("ratelimit.per_day", 2000)
	v.SetDefault("enrich.chunk_size", 10)
	v.SetDefault("enrich.contacts_per_company", 3)
	v.SetDefault("enrich.filter_type", "managers")
	v.SetDefault("enrich.company_delay_ms", 500)
	v.SetDefault("enrich.session_ttl_mins", 30)
	v.SetDefault("ingest.search_term", "Call Center")
	v.SetDefault("ingest.country", "USA")
	v.SetDefault("ingest.results_wanted", 50)
	v.SetDefault("ingest.hours_old", 1440)
	v.SetDefault("ingest.delay_min_ms", 500)
	v.SetDefault("ingest.delay_max_ms", 1500)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "jobsync.db")
	v.SetDefault("drive.chunk_size", 25)
	v.SetDefault("drive.contacts_per_company", 5)
	v.SetDefault("drive.filter_type", "managers")
	v.SetDefault("drive.max_retries", 3)
	v.SetDefault("drive.retry_delay_secs", 10)
	v.SetDefault("drive.max_consecutive_failures", 3)
	v.SetDefault("drive.chunk_timeout_secs", 240)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
