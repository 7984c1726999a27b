package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/atmoscheck/internal/api"
	"github.com/neexbeast/atmoscheck/internal/scene"
	"github.com/neexbeast/atmoscheck/internal/storage"
	"github.com/neexbeast/atmoscheck/internal/weather"
)

// ---- mock implementations ----

type mockFetcher struct {
	reportFn func(ctx context.Context, q weather.Query) (*weather.Report, error)
}

func (m *mockFetcher) Report(ctx context.Context, q weather.Query) (*weather.Report, error) {
	return m.reportFn(ctx, q)
}

type mockCache struct {
	getFn    func(ctx context.Context, key string) (*weather.Report, error)
	setFn    func(ctx context.Context, key string, r *weather.Report) error
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockCache) Get(ctx context.Context, key string) (*weather.Report, error) {
	return m.getFn(ctx, key)
}
func (m *mockCache) Set(ctx context.Context, key string, r *weather.Report) error {
	return m.setFn(ctx, key, r)
}
func (m *mockCache) Delete(ctx context.Context, key string) error {
	return m.deleteFn(ctx, key)
}

type mockRepo struct {
	recordFn   func(ctx context.Context, query string, r *weather.Report) error
	recentFn   func(ctx context.Context, limit int) ([]*storage.Lookup, error)
	byBucketFn func(ctx context.Context, b scene.Bucket) ([]*storage.Lookup, error)
}

func (m *mockRepo) RecordLookup(ctx context.Context, query string, r *weather.Report) error {
	return m.recordFn(ctx, query, r)
}
func (m *mockRepo) RecentLookups(ctx context.Context, limit int) ([]*storage.Lookup, error) {
	return m.recentFn(ctx, limit)
}
func (m *mockRepo) LookupsByBucket(ctx context.Context, b scene.Bucket) ([]*storage.Lookup, error) {
	return m.byBucketFn(ctx, b)
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// ---- helpers ----

const testToken = "secret-token-0123456789"

func sampleReport() *weather.Report {
	return &weather.Report{
		City:          "Mumbai",
		Country:       "IN",
		ID:            502,
		TempC:         29.5,
		ConditionText: "heavy intensity rain",
		Scene: scene.Asset{
			Bucket: scene.RainHeavyDay,
			Poster: "/posters/rain-heavy-day.jpg",
			Video:  "/videos/rain.webm",
		},
	}
}

func missCache() *mockCache {
	return &mockCache{
		getFn:    func(_ context.Context, _ string) (*weather.Report, error) { return nil, nil },
		setFn:    func(_ context.Context, _ string, _ *weather.Report) error { return nil },
		deleteFn: func(_ context.Context, _ string) error { return nil },
	}
}

func okRepo() *mockRepo {
	return &mockRepo{
		recordFn:   func(_ context.Context, _ string, _ *weather.Report) error { return nil },
		recentFn:   func(_ context.Context, _ int) ([]*storage.Lookup, error) { return nil, nil },
		byBucketFn: func(_ context.Context, _ scene.Bucket) ([]*storage.Lookup, error) { return nil, nil },
	}
}

func okFetcher() *mockFetcher {
	return &mockFetcher{
		reportFn: func(_ context.Context, _ weather.Query) (*weather.Report, error) { return sampleReport(), nil },
	}
}

func buildRouter(fetcher api.ReportFetcher, cache api.ReportCache, repo api.LookupRepo, db, redis *mockPinger) http.Handler {
	if db == nil {
		db = &mockPinger{}
	}
	if redis == nil {
		redis = &mockPinger{}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := api.NewHandlers(fetcher, cache, repo, scene.NewClassifier(nil), log)
	return api.NewRouter(handlers, api.RouterOptions{AdminToken: testToken}, db, redis, log)
}

func serve(router http.Handler, method, target string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ---- GET / ----

func TestRoot(t *testing.T) {
	w := serve(buildRouter(nil, nil, nil, nil, nil), http.MethodGet, "/", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AtmosCheck API OK", w.Body.String())
}

// ---- GET /api/weather ----

func TestGetWeather_CacheHit(t *testing.T) {
	fetcher := &mockFetcher{
		reportFn: func(_ context.Context, _ weather.Query) (*weather.Report, error) {
			t.Fatal("fetcher should not be called on cache hit")
			return nil, nil
		},
	}
	var gotKey string
	cache := missCache()
	cache.getFn = func(_ context.Context, key string) (*weather.Report, error) {
		gotKey = key
		return sampleReport(), nil
	}

	w := serve(buildRouter(fetcher, cache, okRepo(), nil, nil), http.MethodGet, "/api/weather?q=Mumbai", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "q:mumbai", gotKey)
	var got weather.Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, scene.RainHeavyDay, got.Scene.Bucket)
}

func TestGetWeather_CacheMiss_FetchesCachesRecords(t *testing.T) {
	setCalled, recorded := false, ""
	cache := missCache()
	cache.setFn = func(_ context.Context, _ string, _ *weather.Report) error {
		setCalled = true
		return nil
	}
	repo := okRepo()
	repo.recordFn = func(_ context.Context, query string, _ *weather.Report) error {
		recorded = query
		return nil
	}

	w := serve(buildRouter(okFetcher(), cache, repo, nil, nil), http.MethodGet, "/api/weather?q=Mumbai", false)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, setCalled, "cache.Set should be called after fetch")
	assert.Equal(t, "Mumbai", recorded)

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Mumbai", body["city"])
	assert.EqualValues(t, 502, body["id"])
	assert.Contains(t, body, "scene")
}

func TestGetWeather_ByCoordinates(t *testing.T) {
	var gotQuery weather.Query
	fetcher := &mockFetcher{
		reportFn: func(_ context.Context, q weather.Query) (*weather.Report, error) {
			gotQuery = q
			return sampleReport(), nil
		},
	}

	w := serve(buildRouter(fetcher, missCache(), okRepo(), nil, nil), http.MethodGet, "/api/weather?lat=19.07&lon=72.87", false)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotQuery.Lat)
	require.NotNil(t, gotQuery.Lon)
	assert.Equal(t, 19.07, *gotQuery.Lat)
	assert.Equal(t, 72.87, *gotQuery.Lon)
}

func TestGetWeather_BadRequests(t *testing.T) {
	router := buildRouter(okFetcher(), missCache(), okRepo(), nil, nil)
	for _, target := range []string{
		"/api/weather",
		"/api/weather?lat=10",
		"/api/weather?lat=abc&lon=10",
		"/api/weather?lat=10&lon=xyz",
		"/api/weather?lat=91&lon=10",
		"/api/weather?lat=10&lon=-181",
	} {
		w := serve(router, http.MethodGet, target, false)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestGetWeather_CityNotFound(t *testing.T) {
	fetcher := &mockFetcher{
		reportFn: func(_ context.Context, _ weather.Query) (*weather.Report, error) {
			return nil, fmt.Errorf("geocoding Atlantis: %w", weather.ErrCityNotFound)
		},
	}

	w := serve(buildRouter(fetcher, missCache(), okRepo(), nil, nil), http.MethodGet, "/api/weather?q=Atlantis", false)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "City not found", body["error"])
}

func TestGetWeather_UpstreamError(t *testing.T) {
	fetcher := &mockFetcher{
		reportFn: func(_ context.Context, _ weather.Query) (*weather.Report, error) {
			return nil, fmt.Errorf("current: GET /data/2.5/weather returned status 500")
		},
	}

	w := serve(buildRouter(fetcher, missCache(), okRepo(), nil, nil), http.MethodGet, "/api/weather?q=Mumbai", false)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGetWeather_CacheAndRecordFailuresAreNonFatal(t *testing.T) {
	cache := missCache()
	cache.getFn = func(_ context.Context, _ string) (*weather.Report, error) { return nil, fmt.Errorf("redis down") }
	cache.setFn = func(_ context.Context, _ string, _ *weather.Report) error { return fmt.Errorf("redis down") }
	repo := okRepo()
	repo.recordFn = func(_ context.Context, _ string, _ *weather.Report) error { return fmt.Errorf("db down") }

	w := serve(buildRouter(okFetcher(), cache, repo, nil, nil), http.MethodGet, "/api/weather?q=Mumbai", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- GET /api/scene ----

func TestGetScene(t *testing.T) {
	router := buildRouter(nil, nil, nil, nil, nil)
	const sunrise = 1_700_000_000

	w := serve(router, http.MethodGet, fmt.Sprintf("/api/scene?id=800&dt=%d&sunrise=%d&sunset=%d", sunrise, sunrise, sunrise+43200), false)
	require.Equal(t, http.StatusOK, w.Code)
	var got scene.Asset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, scene.Sunrise, got.Bucket)
	assert.Equal(t, "/posters/sunrise.jpg", got.Poster)
}

func TestGetScene_RegionalVariant(t *testing.T) {
	router := buildRouter(nil, nil, nil, nil, nil)

	w := serve(router, http.MethodGet, "/api/scene?id=761&country=IN", false)
	require.Equal(t, http.StatusOK, w.Code)
	var got scene.Asset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, scene.DustDay, got.Bucket)
	assert.Equal(t, "/posters/dust-day-india.jpg", got.Poster)
}

func TestGetScene_UnknownCodeFallsBack(t *testing.T) {
	w := serve(buildRouter(nil, nil, nil, nil, nil), http.MethodGet, "/api/scene?id=42", false)
	require.Equal(t, http.StatusOK, w.Code)
	var got scene.Asset
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, scene.ClearDay, got.Bucket)
}

func TestGetScene_BadRequests(t *testing.T) {
	router := buildRouter(nil, nil, nil, nil, nil)
	for _, target := range []string{
		"/api/scene",
		"/api/scene?id=rain",
		"/api/scene?id=800&dt=noon",
		"/api/scene?id=800&country=IND",
		"/api/scene?id=800&country=1N",
	} {
		w := serve(router, http.MethodGet, target, false)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

// ---- admin routes ----

func TestRecentLookups(t *testing.T) {
	var gotLimit int
	repo := okRepo()
	repo.recentFn = func(_ context.Context, limit int) ([]*storage.Lookup, error) {
		gotLimit = limit
		return []*storage.Lookup{{ID: 1, Query: "Mumbai", Bucket: scene.RainHeavyDay}}, nil
	}

	w := serve(buildRouter(nil, nil, repo, nil, nil), http.MethodGet, "/api/admin/lookups?limit=5", true)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, gotLimit)
	var got []storage.Lookup
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Mumbai", got[0].Query)
}

func TestRecentLookups_BadLimit(t *testing.T) {
	w := serve(buildRouter(nil, nil, okRepo(), nil, nil), http.MethodGet, "/api/admin/lookups?limit=-1", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecentLookups_DBError(t *testing.T) {
	repo := okRepo()
	repo.recentFn = func(_ context.Context, _ int) ([]*storage.Lookup, error) { return nil, fmt.Errorf("db down") }

	w := serve(buildRouter(nil, nil, repo, nil, nil), http.MethodGet, "/api/admin/lookups", true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLookupsByBucket(t *testing.T) {
	var gotBucket scene.Bucket
	repo := okRepo()
	repo.byBucketFn = func(_ context.Context, b scene.Bucket) ([]*storage.Lookup, error) {
		gotBucket = b
		return []*storage.Lookup{}, nil
	}

	w := serve(buildRouter(nil, nil, repo, nil, nil), http.MethodGet, "/api/admin/lookups/bucket/fog-night", true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, scene.FogNight, gotBucket)
}

func TestLookupsByBucket_UnknownBucket(t *testing.T) {
	w := serve(buildRouter(nil, nil, okRepo(), nil, nil), http.MethodGet, "/api/admin/lookups/bucket/lava", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurgeCache(t *testing.T) {
	var deleted string
	cache := missCache()
	cache.deleteFn = func(_ context.Context, key string) error {
		deleted = key
		return nil
	}

	w := serve(buildRouter(nil, cache, nil, nil, nil), http.MethodDelete, "/api/admin/cache?q=Paris", true)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "q:paris", deleted)
}

func TestPurgeCache_Error(t *testing.T) {
	cache := missCache()
	cache.deleteFn = func(_ context.Context, _ string) error { return fmt.Errorf("redis down") }

	w := serve(buildRouter(nil, cache, nil, nil, nil), http.MethodDelete, "/api/admin/cache?q=Paris", true)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ---- GET /api/health ----

func TestHealth_OK(t *testing.T) {
	w := serve(buildRouter(nil, nil, nil, &mockPinger{}, &mockPinger{}), http.MethodGet, "/api/health", false)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["db"])
	assert.Equal(t, "ok", body["redis"])
}

func TestHealth_DBDown(t *testing.T) {
	router := buildRouter(nil, nil, nil,
		&mockPinger{err: fmt.Errorf("db unreachable")},
		&mockPinger{},
	)
	w := serve(router, http.MethodGet, "/api/health", false)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "error", body["db"])
}

func TestHealth_RedisDown(t *testing.T) {
	router := buildRouter(nil, nil, nil,
		&mockPinger{},
		&mockPinger{err: fmt.Errorf("redis unreachable")},
	)
	w := serve(router, http.MethodGet, "/api/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ---- GET /metrics ----

func TestMetricsEndpoint(t *testing.T) {
	w := serve(buildRouter(nil, nil, nil, nil, nil), http.MethodGet, "/metrics", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ---- CORS ----

func TestCORS_Preflight(t *testing.T) {
	router := buildRouter(nil, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/weather?q=Paris", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
