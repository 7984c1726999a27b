package api

import (
	"context"

	"github.com/neexbeast/atmoscheck/internal/scene"
	"github.com/neexbeast/atmoscheck/internal/storage"
	"github.com/neexbeast/atmoscheck/internal/weather"
)

// ReportFetcher builds a fresh report from the upstream APIs.
type ReportFetcher interface {
	Report(ctx context.Context, q weather.Query) (*weather.Report, error)
}

// ReportCache defines the cache operations needed by handlers.
type ReportCache interface {
	Get(ctx context.Context, key string) (*weather.Report, error)
	Set(ctx context.Context, key string, r *weather.Report) error
	Delete(ctx context.Context, key string) error
}

// LookupRepo defines the lookup history operations needed by handlers.
type LookupRepo interface {
	RecordLookup(ctx context.Context, query string, r *weather.Report) error
	RecentLookups(ctx context.Context, limit int) ([]*storage.Lookup, error)
	LookupsByBucket(ctx context.Context, bucket scene.Bucket) ([]*storage.Lookup, error)
}
