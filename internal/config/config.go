package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Ingest   IngestConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Archive  ArchiveConfig
	Recon    ReconConfig
	QC       QCConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// IngestConfig configures the record-ingest HTTP server (cmd/ingest).
type IngestConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	LedgerTTLSeconds int
}

// ArchiveConfig configures the S3-compatible bucket that receives
// reconciliation run reports.
type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ReconConfig holds the matcher/ledger heuristics. The loose PO fallback and
// the QC attach window came out of the legacy fix scripts without a documented
// rationale, so they are tunable rather than hard constants.
type ReconConfig struct {
	LoosePOFallback bool
	AcceptThreshold int
	QCWindowHours   int
}

// QCConfig holds QC workflow settings. BypassLocations lists warehouse
// locations whose lots auto-pass inspection; those QC events are excluded
// from inspector-attributed counts.
type QCConfig struct {
	BypassLocations        []string
	RefreshIntervalSeconds int
	RecentCheckedLimit     int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 15)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("INGEST_PORT", "8081")
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "stocktrace")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_LEDGER_TTL_SECONDS", 60)
		viper.SetDefault("ARCHIVE_ENABLED", false)
		viper.SetDefault("ARCHIVE_ENDPOINT", "")
		viper.SetDefault("ARCHIVE_ACCESS_KEY", "")
		viper.SetDefault("ARCHIVE_SECRET_KEY", "")
		viper.SetDefault("ARCHIVE_BUCKET", "stocktrace-reports")
		viper.SetDefault("ARCHIVE_REGION", "us-east-1")
		viper.SetDefault("ARCHIVE_USE_SSL", true)
		viper.SetDefault("RECON_LOOSE_PO_FALLBACK", true)
		viper.SetDefault("RECON_ACCEPT_THRESHOLD", 50)
		viper.SetDefault("RECON_QC_WINDOW_HOURS", 24)
		viper.SetDefault("QC_BYPASS_LOCATIONS", []string{})
		viper.SetDefault("QC_REFRESH_INTERVAL_SECONDS", 300)
		viper.SetDefault("QC_RECENT_CHECKED_LIMIT", 20)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Ingest: IngestConfig{
				Port: viper.GetString("INGEST_PORT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:          viper.GetBool("CACHE_ENABLED"),
				RedisURL:         viper.GetString("REDIS_URL"),
				RedisHost:        viper.GetString("REDIS_HOST"),
				RedisPort:        viper.GetString("REDIS_PORT"),
				RedisPassword:    viper.GetString("REDIS_PASSWORD"),
				RedisDB:          viper.GetInt("REDIS_DB"),
				LedgerTTLSeconds: viper.GetInt("CACHE_LEDGER_TTL_SECONDS"),
			},
			Archive: ArchiveConfig{
				Enabled:   viper.GetBool("ARCHIVE_ENABLED"),
				Endpoint:  viper.GetString("ARCHIVE_ENDPOINT"),
				AccessKey: viper.GetString("ARCHIVE_ACCESS_KEY"),
				SecretKey: viper.GetString("ARCHIVE_SECRET_KEY"),
				Bucket:    viper.GetString("ARCHIVE_BUCKET"),
				Region:    viper.GetString("ARCHIVE_REGION"),
				UseSSL:    viper.GetBool("ARCHIVE_USE_SSL"),
			},
			Recon: ReconConfig{
				LoosePOFallback: viper.GetBool("RECON_LOOSE_PO_FALLBACK"),
				AcceptThreshold: viper.GetInt("RECON_ACCEPT_THRESHOLD"),
				QCWindowHours:   viper.GetInt("RECON_QC_WINDOW_HOURS"),
			},
			QC: QCConfig{
				BypassLocations:        viper.GetStringSlice("QC_BYPASS_LOCATIONS"),
				RefreshIntervalSeconds: viper.GetInt("QC_REFRESH_INTERVAL_SECONDS"),
				RecentCheckedLimit:     viper.GetInt("QC_RECENT_CHECKED_LIMIT"),
			},
		}
	})

	return instance
}
