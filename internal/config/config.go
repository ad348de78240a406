// internal/config/config.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Admin    AdminConfig
	Database DatabaseConfig
	Source   SourceConfig
	Tracker  TrackerConfig
	Cache    CacheConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	LogFormat      string
}

type AdminConfig struct {
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

// SourceConfig describes where the order sheet is fetched from and which
// columns carry the lookup key and the fulfillment status.
type SourceConfig struct {
	Kind                string
	URL                 string
	Path                string
	DriveFileID         string
	DriveExportMIME     string
	DriveCredentialJSON string
	S3                  S3Config
	Table               string
	KeyColumn           string
	StatusColumn        string
	FetchTimeoutSeconds int
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
	Region    string
	UseSSL    bool
}

type TrackerConfig struct {
	Pipeline         []string
	KeyLabel         string
	DefaultProgress  int
	UnrankedProgress map[string]int
}

type CacheConfig struct {
	Enabled                bool
	RedisURL               string
	RedisHost              string
	RedisPort              string
	RedisPassword          string
	RedisDB                int
	SnapshotTTLSeconds     int
	FailureTTLSeconds      int
	ServeStaleOnFailure    bool
	RawPayloadKeyNamespace string
}

const (
	SourceHTTP     = "http"
	SourceDrive    = "drive"
	SourceS3       = "s3"
	SourceFile     = "file"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

// DefaultPipeline is the six stage flow used by the machine tools tracker.
var DefaultPipeline = []string{
	"in production",
	"ready to deliver",
	"shipping",
	"arrived",
	"stock",
	"sold",
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		SetDefaults(v)
		v.AutomaticEnv()

		cfg, err := FromViper(v)
		if err != nil {
			panic(fmt.Sprintf("invalid configuration: %v", err))
		}
		instance = cfg
	})

	return instance
}

// SetDefaults registers every known key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 15)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("ADMIN_PORT", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "order_tracker")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("SOURCE_KIND", SourceHTTP)
	v.SetDefault("SOURCE_URL", "")
	v.SetDefault("SOURCE_PATH", "")
	v.SetDefault("SOURCE_DRIVE_FILE_ID", "")
	v.SetDefault("SOURCE_DRIVE_EXPORT_MIME", "text/csv")
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("SOURCE_S3_ENDPOINT", "")
	v.SetDefault("SOURCE_S3_ACCESS_KEY", "")
	v.SetDefault("SOURCE_S3_SECRET_KEY", "")
	v.SetDefault("SOURCE_S3_BUCKET", "")
	v.SetDefault("SOURCE_S3_KEY", "")
	v.SetDefault("SOURCE_S3_REGION", "us-east-1")
	v.SetDefault("SOURCE_S3_USE_SSL", true)
	v.SetDefault("SOURCE_TABLE", "order_sheet")
	v.SetDefault("SOURCE_KEY_COLUMN", "so_number")
	v.SetDefault("SOURCE_STATUS_COLUMN", "status")
	v.SetDefault("SOURCE_FETCH_TIMEOUT_SECONDS", 15)

	v.SetDefault("TRACKER_PIPELINE", strings.Join(DefaultPipeline, ","))
	v.SetDefault("TRACKER_KEY_LABEL", "SO Number")
	v.SetDefault("TRACKER_DEFAULT_PROGRESS", 0)
	v.SetDefault("TRACKER_UNRANKED_PROGRESS", "")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_SNAPSHOT_TTL_SECONDS", 60)
	v.SetDefault("CACHE_FAILURE_TTL_SECONDS", 60)
	v.SetDefault("CACHE_SERVE_STALE", false)
	v.SetDefault("CACHE_KEY_NAMESPACE", "order_tracker")
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	unranked, err := parseProgressOverrides(v.GetString("TRACKER_UNRANKED_PROGRESS"))
	if err != nil {
		return nil, fmt.Errorf("TRACKER_UNRANKED_PROGRESS: %w", err)
	}

	pipeline := splitList(v.GetString("TRACKER_PIPELINE"))
	if len(pipeline) == 0 {
		return nil, fmt.Errorf("TRACKER_PIPELINE must name at least one stage")
	}
	for _, stage := range pipeline {
		if _, clash := unranked[strings.ToLower(stage)]; clash {
			return nil, fmt.Errorf("TRACKER_UNRANKED_PROGRESS: %q is a pipeline stage, its progress comes from its rank", strings.ToLower(stage))
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			LogFormat:      strings.ToLower(v.GetString("LOG_FORMAT")),
		},
		Admin: AdminConfig{
			Port: v.GetString("ADMIN_PORT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Source: SourceConfig{
			Kind:                strings.ToLower(strings.TrimSpace(v.GetString("SOURCE_KIND"))),
			URL:                 strings.TrimSpace(v.GetString("SOURCE_URL")),
			Path:                v.GetString("SOURCE_PATH"),
			DriveFileID:         v.GetString("SOURCE_DRIVE_FILE_ID"),
			DriveExportMIME:     v.GetString("SOURCE_DRIVE_EXPORT_MIME"),
			DriveCredentialJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			S3: S3Config{
				Endpoint:  v.GetString("SOURCE_S3_ENDPOINT"),
				AccessKey: v.GetString("SOURCE_S3_ACCESS_KEY"),
				SecretKey: v.GetString("SOURCE_S3_SECRET_KEY"),
				Bucket:    v.GetString("SOURCE_S3_BUCKET"),
				Key:       v.GetString("SOURCE_S3_KEY"),
				Region:    v.GetString("SOURCE_S3_REGION"),
				UseSSL:    v.GetBool("SOURCE_S3_USE_SSL"),
			},
			Table:               v.GetString("SOURCE_TABLE"),
			KeyColumn:           strings.TrimSpace(v.GetString("SOURCE_KEY_COLUMN")),
			StatusColumn:        strings.TrimSpace(v.GetString("SOURCE_STATUS_COLUMN")),
			FetchTimeoutSeconds: v.GetInt("SOURCE_FETCH_TIMEOUT_SECONDS"),
		},
		Tracker: TrackerConfig{
			Pipeline:         pipeline,
			KeyLabel:         v.GetString("TRACKER_KEY_LABEL"),
			DefaultProgress:  v.GetInt("TRACKER_DEFAULT_PROGRESS"),
			UnrankedProgress: unranked,
		},
		Cache: CacheConfig{
			Enabled:                v.GetBool("CACHE_ENABLED"),
			RedisURL:               v.GetString("REDIS_URL"),
			RedisHost:              v.GetString("REDIS_HOST"),
			RedisPort:              v.GetString("REDIS_PORT"),
			RedisPassword:          v.GetString("REDIS_PASSWORD"),
			RedisDB:                v.GetInt("REDIS_DB"),
			SnapshotTTLSeconds:     v.GetInt("CACHE_SNAPSHOT_TTL_SECONDS"),
			FailureTTLSeconds:      v.GetInt("CACHE_FAILURE_TTL_SECONDS"),
			ServeStaleOnFailure:    v.GetBool("CACHE_SERVE_STALE"),
			RawPayloadKeyNamespace: v.GetString("CACHE_KEY_NAMESPACE"),
		},
	}

	if cfg.Source.KeyColumn == "" {
		return nil, fmt.Errorf("SOURCE_KEY_COLUMN must not be empty")
	}

	return cfg, nil
}

// FetchTimeout is the upper bound for one upstream fetch.
func (c SourceConfig) FetchTimeout() time.Duration {
	if c.FetchTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// SnapshotTTL returns 0 when snapshots never expire.
func (c CacheConfig) SnapshotTTL() time.Duration {
	if c.SnapshotTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SnapshotTTLSeconds) * time.Second
}

func (c CacheConfig) FailureTTL() time.Duration {
	if c.FailureTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.FailureTTLSeconds) * time.Second
}

// splitList splits a comma separated value, dropping blank entries.
// viper's own slice decoding splits on whitespace, which breaks labels such
// as "in production".
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// parseProgressOverrides reads "label=value,label=value".
func parseProgressOverrides(raw string) (map[string]int, error) {
	out := make(map[string]int)
	for _, entry := range splitList(raw) {
		label, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not label=value", entry)
		}
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" {
			return nil, fmt.Errorf("entry %q has an empty label", entry)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		if n < 0 || n > 100 {
			return nil, fmt.Errorf("entry %q: progress must be between 0 and 100", entry)
		}
		out[label] = n
	}
	return out, nil
}
