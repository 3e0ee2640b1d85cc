package storage

import (
	"context"
	"fmt"

	"rentscout/config"
	"rentscout/models"
)

// ListingStore is the remote document collection the listings come from.
// Records are returned as loosely typed maps and normalized by the caller.
type ListingStore interface {
	Name() string
	FetchAll(ctx context.Context) ([]models.RawRecord, error)
}

// NewStore builds the store selected by STORE_DRIVER.
func NewStore(ctx context.Context, cfg *config.Config) (ListingStore, error) {
	switch cfg.Store.Driver {
	case "supabase", "":
		if cfg.Supabase.URL == "" {
			return nil, fmt.Errorf("supabase store: SUPABASE_URL not set")
		}
		return NewSupabaseStore(&cfg.Supabase), nil
	case "postgres":
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres store: DATABASE_URL not set")
		}
		return NewPostgresStore(ctx, cfg.Postgres.URL)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 store: S3_BUCKET not set")
		}
		return NewS3Store(ctx, cfg.S3)
	case "seed":
		return NewSeedStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
