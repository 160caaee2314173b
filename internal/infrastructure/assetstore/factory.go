package assetstore

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"landlease/internal/config"
	"landlease/internal/domain"
)

// New builds the Store selected by cfg.Provider.
func New(ctx context.Context, cfg config.AssetStoreConfig, timeout time.Duration) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: timeout}
	switch cfg.Provider {
	case config.ProviderFilestack:
		return &FilestackStore{
			APIKey:    cfg.FilestackAPIKey,
			AppSecret: cfg.FilestackAppSecret,
			BaseURL:   cfg.FilestackBaseURL,
			CDNURL:    cfg.FilestackCDNURL,
			Client:    client,
		}, nil
	case config.ProviderSupabase:
		return &SupabaseStore{
			BaseURL:   cfg.SupabaseURL,
			SecretKey: cfg.SupabaseSecretKey,
			Bucket:    cfg.SupabaseBucket,
			Client:    client,
		}, nil
	case config.ProviderMinIO:
		return NewMinIOStore(ctx, cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
	case config.ProviderMemory:
		return NewMemoryStore(), nil
	default:
		return nil, domain.ConfigurationError(fmt.Sprintf("unknown asset store provider: %s", cfg.Provider))
	}
}
