package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/atmoscheck/internal/metrics"
	"github.com/neexbeast/atmoscheck/internal/scene"
	"github.com/neexbeast/atmoscheck/internal/weather"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	fetcher    ReportFetcher
	cache      ReportCache
	repo       LookupRepo
	classifier *scene.Classifier
	validate   *validator.Validate
	log        *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(fetcher ReportFetcher, cache ReportCache, repo LookupRepo, classifier *scene.Classifier, log *slog.Logger) *Handlers {
	if classifier == nil {
		classifier = scene.NewClassifier(nil)
	}
	return &Handlers{
		fetcher:    fetcher,
		cache:      cache,
		repo:       repo,
		classifier: classifier,
		validate:   validator.New(),
		log:        log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type coordParams struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

// parseQuery reads either ?q=City or ?lat=..&lon=.. from the request.
func (h *Handlers) parseQuery(r *http.Request) (weather.Query, error) {
	v := r.URL.Query()

	if city := strings.TrimSpace(v.Get("q")); city != "" {
		if err := h.validate.Var(city, "max=100"); err != nil {
			return weather.Query{}, errors.New("q must be at most 100 characters")
		}
		return weather.Query{City: city}, nil
	}

	latRaw, lonRaw := v.Get("lat"), v.Get("lon")
	if latRaw == "" || lonRaw == "" {
		return weather.Query{}, errors.New("provide q or both lat and lon")
	}

	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return weather.Query{}, errors.New("invalid lat value")
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return weather.Query{}, errors.New("invalid lon value")
	}
	if err := h.validate.Struct(coordParams{Lat: lat, Lon: lon}); err != nil {
		return weather.Query{}, errors.New("lat/lon out of range")
	}

	return weather.Query{Lat: &lat, Lon: &lon}, nil
}

// Root handles GET /.
func (h *Handlers) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("AtmosCheck API OK"))
}

// GetWeather handles GET /api/weather.
// Cache hit → return. Miss → fetch, cache, record, return.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := q.Key()

	cached, err := h.cache.Get(r.Context(), key)
	if err != nil {
		h.log.Error("cache get failed", "query", q.String(), "err", err)
	}
	if cached != nil {
		metrics.SceneBuckets.WithLabelValues(string(cached.Scene.Bucket)).Inc()
		writeJSON(w, http.StatusOK, cached)
		return
	}

	report, err := h.fetcher.Report(r.Context(), q)
	if err != nil {
		if errors.Is(err, weather.ErrCityNotFound) {
			writeError(w, http.StatusNotFound, "City not found")
			return
		}
		h.log.Error("report fetch failed", "query", q.String(), "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch weather data")
		return
	}

	if err := h.cache.Set(r.Context(), key, report); err != nil {
		h.log.Warn("cache set failed", "query", q.String(), "err", err)
	}
	if err := h.repo.RecordLookup(r.Context(), q.String(), report); err != nil {
		h.log.Warn("recording lookup failed", "query", q.String(), "err", err)
	}

	metrics.SceneBuckets.WithLabelValues(string(report.Scene.Bucket)).Inc()
	writeJSON(w, http.StatusOK, report)
}

// GetScene handles GET /api/scene?id=&dt=&sunrise=&sunset=&country=.
// It runs the classifier alone; timestamps default to zero (daytime).
func (h *Handlers) GetScene(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()

	code, err := strconv.Atoi(v.Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an integer condition code")
		return
	}

	var ts [3]int64
	for i, name := range []string{"dt", "sunrise", "sunset"} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, name+" must be a unix timestamp")
			return
		}
		ts[i] = n
	}

	country := strings.TrimSpace(v.Get("country"))
	if err := h.validate.Var(country, "omitempty,len=2,alpha"); err != nil {
		writeError(w, http.StatusBadRequest, "country must be a two-letter code")
		return
	}

	writeJSON(w, http.StatusOK, h.classifier.Resolve(scene.Input{
		Code:    code,
		Now:     ts[0],
		Sunrise: ts[1],
		Sunset:  ts[2],
		Region:  country,
	}))
}

// RecentLookups handles GET /api/admin/lookups?limit=.
func (h *Handlers) RecentLookups(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	lookups, err := h.repo.RecentLookups(r.Context(), limit)
	if err != nil {
		h.log.Error("recent lookups failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, lookups)
}

// LookupsByBucket handles GET /api/admin/lookups/bucket/{bucket}.
func (h *Handlers) LookupsByBucket(w http.ResponseWriter, r *http.Request) {
	bucket := scene.Bucket(chi.URLParam(r, "bucket"))
	if !bucket.Valid() {
		writeError(w, http.StatusBadRequest, "unknown bucket")
		return
	}

	lookups, err := h.repo.LookupsByBucket(r.Context(), bucket)
	if err != nil {
		h.log.Error("lookups by bucket failed", "bucket", bucket, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, lookups)
}

// PurgeCache handles DELETE /api/admin/cache?q=|lat&lon.
func (h *Handlers) PurgeCache(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.cache.Delete(r.Context(), q.Key()); err != nil {
		h.log.Error("cache delete failed", "query", q.String(), "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
// Returns 200 if both are reachable, 503 otherwise.
func HealthHandlerFunc(db, redis pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
