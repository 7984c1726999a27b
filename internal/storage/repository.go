package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/atmoscheck/internal/scene"
	"github.com/neexbeast/atmoscheck/internal/weather"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Lookup is one served weather lookup.
type Lookup struct {
	ID          int            `json:"id"`
	Query       string         `json:"query"`
	City        string         `json:"city"`
	Country     string         `json:"country"`
	ConditionID int            `json:"conditionId"`
	Bucket      scene.Bucket   `json:"bucket"`
	AQI         *int           `json:"aqi,omitempty"`
	Report      weather.Report `json:"report"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Repository provides database access for lookup history.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// RecordLookup stores one served report.
func (r *Repository) RecordLookup(ctx context.Context, query string, report *weather.Report) error {
	if report == nil {
		return fmt.Errorf("recording lookup for %s: nil report", query)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report for %s: %w", query, err)
	}

	const q = `
		INSERT INTO lookups (query, city, country, condition_id, bucket, aqi, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := r.q.Exec(ctx, q,
		query,
		report.City,
		report.Country,
		report.ID,
		string(report.Scene.Bucket),
		report.AQI,
		reportJSON,
	); err != nil {
		return fmt.Errorf("inserting lookup for %s: %w", query, err)
	}

	return nil
}

// RecentLookups returns the newest lookups first. limit is clamped to
// 1..100; zero or negative means 20.
func (r *Repository) RecentLookups(ctx context.Context, limit int) ([]*Lookup, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	const q = `
		SELECT id, query, city, country, condition_id, bucket, aqi, report, created_at
		FROM lookups
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent lookups: %w", err)
	}
	return collectLookups(rows)
}

// LookupsByBucket returns lookups whose stored report resolved to bucket.
// Uses the JSONB @> containment operator.
func (r *Repository) LookupsByBucket(ctx context.Context, bucket scene.Bucket) ([]*Lookup, error) {
	filter, err := json.Marshal(map[string]any{
		"scene": map[string]any{"bucket": bucket},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling JSONB filter: %w", err)
	}

	const q = `
		SELECT id, query, city, country, condition_id, bucket, aqi, report, created_at
		FROM lookups
		WHERE report @> $1::jsonb
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.q.Query(ctx, q, string(filter))
	if err != nil {
		return nil, fmt.Errorf("querying lookups by bucket %s: %w", bucket, err)
	}
	return collectLookups(rows)
}

func collectLookups(rows pgx.Rows) ([]*Lookup, error) {
	defer rows.Close()

	var results []*Lookup
	for rows.Next() {
		var l Lookup
		var bucket string
		var reportJSON []byte

		if err := rows.Scan(
			&l.ID,
			&l.Query,
			&l.City,
			&l.Country,
			&l.ConditionID,
			&bucket,
			&l.AQI,
			&reportJSON,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lookup row: %w", err)
		}

		if err := json.Unmarshal(reportJSON, &l.Report); err != nil {
			return nil, fmt.Errorf("unmarshaling lookup report: %w", err)
		}

		l.Bucket = scene.Bucket(bucket)
		results = append(results, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lookup rows: %w", err)
	}

	return results, nil
}
