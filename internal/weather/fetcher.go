package weather

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/atmoscheck/internal/airquality"
	"github.com/neexbeast/atmoscheck/internal/scene"
)

// geocoder is the interface satisfied by GeoClient.
type geocoder interface {
	Lookup(ctx context.Context, query string) (*Location, error)
}

// currentFetcher is the interface satisfied by CurrentClient.
type currentFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*Current, error)
}

// airFetcher is the interface satisfied by AirClient.
type airFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*Air, error)
}

// forecastFetcher is the interface satisfied by ForecastClient.
type forecastFetcher interface {
	Fetch(ctx context.Context, lat, lon float64) ([]ForecastEntry, error)
}

// Fetcher builds reports from the OpenWeatherMap APIs.
type Fetcher struct {
	geo        geocoder
	current    currentFetcher
	air        airFetcher
	forecast   forecastFetcher
	classifier *scene.Classifier
	log        *slog.Logger
}

// NewFetcher constructs a Fetcher with all four API clients using production URLs.
func NewFetcher(apiKey string, classifier *scene.Classifier, log *slog.Logger) *Fetcher {
	return NewFetcherWithClients(
		NewGeoClient(apiKey),
		NewCurrentClient(apiKey),
		NewAirClient(apiKey),
		NewForecastClient(apiKey),
		classifier,
		log,
	)
}

// NewFetcherWithClients constructs a Fetcher with injectable clients (used in tests).
func NewFetcherWithClients(g geocoder, c currentFetcher, a airFetcher, f forecastFetcher, classifier *scene.Classifier, log *slog.Logger) *Fetcher {
	if classifier == nil {
		classifier = scene.NewClassifier(nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{geo: g, current: c, air: a, forecast: f, classifier: classifier, log: log}
}

// Report geocodes the query when needed, then fetches current conditions,
// air quality and forecast in parallel. Only a current-weather failure is
// fatal; the other two are logged and left out of the report.
func (f *Fetcher) Report(ctx context.Context, q Query) (*Report, error) {
	var lat, lon float64
	switch {
	case q.ByCity():
		loc, err := f.geo.Lookup(ctx, q.City)
		if err != nil {
			return nil, err
		}
		lat, lon = loc.Lat, loc.Lon
	case q.Lat != nil && q.Lon != nil:
		lat, lon = *q.Lat, *q.Lon
	default:
		return nil, fmt.Errorf("query needs a city or coordinates")
	}

	g, gCtx := errgroup.WithContext(ctx)

	var cur *Current
	var air *Air
	var forecast []ForecastEntry

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("current weather fetch panicked", "recover", r)
				err = fmt.Errorf("current weather fetch panicked: %v", r)
			}
		}()
		c, fetchErr := f.current.Fetch(gCtx, lat, lon)
		if fetchErr != nil {
			return fetchErr
		}
		cur = c
		return nil
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("air fetch panicked", "recover", r)
				err = fmt.Errorf("air fetch panicked: %v", r)
			}
		}()
		a, fetchErr := f.air.Fetch(gCtx, lat, lon)
		if fetchErr != nil {
			f.log.Warn("air fetch failed", "query", q.String(), "err", fetchErr)
			return nil
		}
		air = a
		return nil
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				f.log.Error("forecast fetch panicked", "recover", r)
				err = fmt.Errorf("forecast fetch panicked: %v", r)
			}
		}()
		fc, fetchErr := f.forecast.Fetch(gCtx, lat, lon)
		if fetchErr != nil {
			f.log.Warn("forecast fetch failed", "query", q.String(), "err", fetchErr)
			return nil
		}
		forecast = fc
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building report for %s: %w", q.String(), err)
	}

	r := &Report{
		City:          cur.City,
		Country:       cur.Country,
		Timezone:      cur.Timezone,
		Dt:            cur.Dt,
		Sunrise:       cur.Sunrise,
		Sunset:        cur.Sunset,
		TempC:         cur.TempC,
		FeelsLikeC:    cur.FeelsLikeC,
		ConditionText: cur.ConditionText,
		ID:            cur.ConditionID,
		Humidity:      cur.Humidity,
		WindKph:       cur.WindKph,
		Pressure:      cur.Pressure,
		Visibility:    cur.Visibility,
		Forecast:      forecast,
		Scene: f.classifier.Resolve(scene.Input{
			Code:    cur.ConditionID,
			Now:     cur.Dt,
			Sunrise: cur.Sunrise,
			Sunset:  cur.Sunset,
			Region:  cur.Country,
		}),
	}
	if air != nil {
		aqi, pm25 := air.AQI, air.PM25
		r.AQI = &aqi
		r.PM25 = &pm25
		r.AQICategory = airquality.Category(aqi)
	}

	return r, nil
}
