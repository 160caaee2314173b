package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"landlease/internal/domain"

	"github.com/spf13/viper"
)

// Asset store providers.
const (
	ProviderFilestack = "filestack"
	ProviderSupabase  = "supabase"
	ProviderMinIO     = "minio"
	ProviderMemory    = "memory"
)

// Listing stores.
const (
	ListingStoreSQL       = "sql"
	ListingStoreFirestore = "firestore"
)

// AssetStoreConfig holds the credentials of the selected binary host. Only the fields of the
// selected provider are read.
type AssetStoreConfig struct {
	Provider string

	FilestackAPIKey    string
	FilestackAppSecret string // optional; enables policy/signature on uploads and deletes
	FilestackBaseURL   string
	FilestackCDNURL    string

	SupabaseURL       string
	SupabaseSecretKey string // service_role key, never the anon key
	SupabaseBucket    string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// Config holds application configuration (env + Viper).
type Config struct {
	Env      string
	Port     string
	LogLevel string

	SessionSecret string
	RedisURL      string

	DatabaseDriver string // postgres | sqlite
	DatabaseURL    string

	ListingStore        string // sql | firestore
	FirestoreProjectID  string
	FirestoreCollection string
	ListingCacheTTL     time.Duration

	AssetStore        AssetStoreConfig
	StagingDir        string
	MaxUploadBytes    int
	AssetCallTimeout  time.Duration
	CompensateOrphans bool

	NatsURL           string
	NatsSubjectPrefix string

	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string
}

// Load loads config from env and optional .env file, then validates it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("LISTING_STORE", ListingStoreSQL)
	v.SetDefault("FIRESTORE_COLLECTION", "lands")
	v.SetDefault("LISTING_CACHE_TTL", "10m")
	v.SetDefault("ASSET_STORE_PROVIDER", ProviderFilestack)
	v.SetDefault("FILESTACK_BASE_URL", "https://www.filestackapi.com")
	v.SetDefault("FILESTACK_CDN_URL", "https://cdn.filestackcontent.com")
	v.SetDefault("SUPABASE_BUCKET", "listings")
	v.SetDefault("MINIO_BUCKET", "listings")
	v.SetDefault("UPLOAD_MAX_BYTES", 50*1024*1024)
	v.SetDefault("ASSET_CALL_TIMEOUT", "60s")
	v.SetDefault("NATS_SUBJECT_PREFIX", "listings")

	env := v.GetString("APP_ENV")
	if env == "" {
		env = v.GetString("NODE_ENV")
	}
	if env == "" {
		env = "development"
	}

	stagingDir := v.GetString("UPLOAD_STAGING_DIR")
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}

	cfg := &Config{
		Env:                 env,
		Port:                v.GetString("PORT"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		SessionSecret:       v.GetString("SESSION_SECRET"),
		RedisURL:            v.GetString("REDIS_URL"),
		DatabaseDriver:      strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		ListingStore:        strings.ToLower(v.GetString("LISTING_STORE")),
		FirestoreProjectID:  v.GetString("FIRESTORE_PROJECT_ID"),
		FirestoreCollection: v.GetString("FIRESTORE_COLLECTION"),
		ListingCacheTTL:     v.GetDuration("LISTING_CACHE_TTL"),
		AssetStore: AssetStoreConfig{
			Provider:           strings.ToLower(v.GetString("ASSET_STORE_PROVIDER")),
			FilestackAPIKey:    v.GetString("FILESTACK_API_KEY"),
			FilestackAppSecret: v.GetString("FILESTACK_APP_SECRET"),
			FilestackBaseURL:   v.GetString("FILESTACK_BASE_URL"),
			FilestackCDNURL:    v.GetString("FILESTACK_CDN_URL"),
			SupabaseURL:        v.GetString("SUPABASE_URL"),
			SupabaseSecretKey:  v.GetString("SUPABASE_SECRET_KEY"),
			SupabaseBucket:     v.GetString("SUPABASE_BUCKET"),
			MinIOEndpoint:      v.GetString("MINIO_ENDPOINT"),
			MinIOAccessKey:     v.GetString("MINIO_ACCESS_KEY"),
			MinIOSecretKey:     v.GetString("MINIO_SECRET_KEY"),
			MinIOBucket:        v.GetString("MINIO_BUCKET"),
			MinIOUseSSL:        strings.EqualFold(v.GetString("MINIO_USE_SSL"), "true"),
		},
		StagingDir:          stagingDir,
		MaxUploadBytes:      v.GetInt("UPLOAD_MAX_BYTES"),
		AssetCallTimeout:    v.GetDuration("ASSET_CALL_TIMEOUT"),
		CompensateOrphans:   strings.EqualFold(v.GetString("LISTING_COMPENSATE_ORPHANS"), "true"),
		NatsURL:             v.GetString("NATS_URL"),
		NatsSubjectPrefix:   v.GetString("NATS_SUBJECT_PREFIX"),
		FrontendURLEndsWith: v.GetString("FRONTEND_URL_ENDS_WITH"),
		DevPassword:         v.GetString("DEV_PASSWORD"),
		AllowCrossSiteDev:   strings.EqualFold(v.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      v.GetString("HEALTH_ADMIN_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing or inconsistent settings as a configuration error so the process
// fails at startup rather than on the first request.
func (c *Config) Validate() error {
	if err := c.AssetStore.Validate(); err != nil {
		return err
	}
	// users and listing events always live in SQL, whichever store holds listings
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		return domain.ConfigurationError(fmt.Sprintf("DATABASE_DRIVER %q is not supported (postgres, sqlite)", c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		return domain.ConfigurationError("DATABASE_URL is not set")
	}
	switch c.ListingStore {
	case ListingStoreSQL:
	case ListingStoreFirestore:
		if c.FirestoreProjectID == "" {
			return domain.ConfigurationError("FIRESTORE_PROJECT_ID is not set")
		}
	default:
		return domain.ConfigurationError(fmt.Sprintf("LISTING_STORE %q is not supported (sql, firestore)", c.ListingStore))
	}
	if c.RedisURL == "" {
		return domain.ConfigurationError("REDIS_URL is not set")
	}
	if c.IsProduction() && c.SessionSecret == "" {
		return domain.ConfigurationError("SESSION_SECRET is not set")
	}
	return nil
}

// Validate checks that the selected provider has its credentials and endpoint.
func (a AssetStoreConfig) Validate() error {
	missing := func(key string) error {
		return domain.ConfigurationError(fmt.Sprintf("%s is not set (required by ASSET_STORE_PROVIDER=%s)", key, a.Provider))
	}
	switch a.Provider {
	case ProviderFilestack:
		if a.FilestackAPIKey == "" {
			return missing("FILESTACK_API_KEY")
		}
		if a.FilestackBaseURL == "" {
			return missing("FILESTACK_BASE_URL")
		}
	case ProviderSupabase:
		if a.SupabaseURL == "" {
			return missing("SUPABASE_URL")
		}
		if a.SupabaseSecretKey == "" {
			return missing("SUPABASE_SECRET_KEY")
		}
		if a.SupabaseBucket == "" {
			return missing("SUPABASE_BUCKET")
		}
	case ProviderMinIO:
		if a.MinIOEndpoint == "" {
			return missing("MINIO_ENDPOINT")
		}
		if a.MinIOAccessKey == "" || a.MinIOSecretKey == "" {
			return missing("MINIO_ACCESS_KEY/MINIO_SECRET_KEY")
		}
		if a.MinIOBucket == "" {
			return missing("MINIO_BUCKET")
		}
	case ProviderMemory:
	default:
		return domain.ConfigurationError(fmt.Sprintf("ASSET_STORE_PROVIDER %q is not supported (filestack, supabase, minio, memory)", a.Provider))
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
