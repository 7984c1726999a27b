package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/neexbeast/atmoscheck/internal/airquality"
	"github.com/neexbeast/atmoscheck/internal/metrics"
)

const httpTimeout = 10 * time.Second

// forecastSteps caps the forecast at 24 hours of 3-hour steps.
const forecastSteps = 8

const (
	owmGeoDefault      = "https://api.openweathermap.org/geo/1.0/direct"
	owmCurrentDefault  = "https://api.openweathermap.org/data/2.5/weather"
	owmAirDefault      = "https://api.openweathermap.org/data/2.5/air_pollution"
	owmForecastDefault = "https://api.openweathermap.org/data/2.5/forecast"
)

// newHTTPClient returns an http.Client with a 10-second timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// upstream is one OpenWeatherMap endpoint guarded by its own circuit breaker.
type upstream struct {
	name    string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func newUpstream(name, baseURL string) *upstream {
	return &upstream{
		name:    name,
		baseURL: baseURL,
		client:  newHTTPClient(),
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			// A cancelled caller says nothing about upstream health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// get performs a GET against the upstream with params and decodes the JSON
// response into dst. The API key never appears in returned errors.
func (u *upstream) get(ctx context.Context, params url.Values, dst any) error {
	_, err := u.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, doGet(ctx, u.client, u.baseURL+"?"+params.Encode(), dst)
	})

	outcome := "ok"
	switch {
	case errors.Is(err, context.Canceled):
		outcome = ""
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "open"
	case err != nil:
		outcome = "error"
	}
	if outcome != "" {
		metrics.UpstreamRequests.WithLabelValues(u.name, outcome).Inc()
	}

	if err != nil {
		return fmt.Errorf("%s: %w", u.name, err)
	}
	return nil
}

// doGet performs a GET request and decodes the JSON response into dst.
func doGet(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", req.URL.Path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL.Path, err)
	}

	return nil
}

func coords(lat, lon float64, apiKey string) url.Values {
	return url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"appid": {apiKey},
	}
}

// ---- Geocoding ----

// GeoClient resolves city names to coordinates.
type GeoClient struct {
	apiKey string
	up     *upstream
}

// NewGeoClient constructs a GeoClient with the given API key.
func NewGeoClient(apiKey string) *GeoClient {
	return NewGeoClientWithURL(owmGeoDefault, apiKey)
}

// NewGeoClientWithURL constructs a GeoClient pointing at a custom base URL (for tests).
func NewGeoClientWithURL(baseURL, apiKey string) *GeoClient {
	return &GeoClient{apiKey: apiKey, up: newUpstream("geocode", baseURL)}
}

type owmGeoEntry struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Lookup returns the best match for query, or ErrCityNotFound.
func (c *GeoClient) Lookup(ctx context.Context, query string) (*Location, error) {
	params := url.Values{"q": {query}, "limit": {"1"}, "appid": {c.apiKey}}

	var raw []owmGeoEntry
	if err := c.up.get(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("geocoding %s: %w", query, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("geocoding %s: %w", query, ErrCityNotFound)
	}

	return &Location{
		Name:    raw[0].Name,
		Country: raw[0].Country,
		Lat:     raw[0].Lat,
		Lon:     raw[0].Lon,
	}, nil
}

// ---- Current weather ----

// CurrentClient fetches current conditions.
type CurrentClient struct {
	apiKey string
	up     *upstream
}

// NewCurrentClient constructs a CurrentClient with the given API key.
func NewCurrentClient(apiKey string) *CurrentClient {
	return NewCurrentClientWithURL(owmCurrentDefault, apiKey)
}

// NewCurrentClientWithURL constructs a CurrentClient pointing at a custom base URL (for tests).
func NewCurrentClientWithURL(baseURL, apiKey string) *CurrentClient {
	return &CurrentClient{apiKey: apiKey, up: newUpstream("current", baseURL)}
}

type owmCurrentResponse struct {
	Name       string `json:"name"`
	Timezone   int    `json:"timezone"`
	Dt         int64  `json:"dt"`
	Visibility int    `json:"visibility"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Fetch retrieves current conditions at the given coordinates.
func (c *CurrentClient) Fetch(ctx context.Context, lat, lon float64) (*Current, error) {
	params := coords(lat, lon, c.apiKey)
	params.Set("units", "metric")

	var raw owmCurrentResponse
	if err := c.up.get(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("current weather at %.4f,%.4f: %w", lat, lon, err)
	}

	cur := &Current{
		City:       raw.Name,
		Country:    raw.Sys.Country,
		Timezone:   raw.Timezone,
		Dt:         raw.Dt,
		Sunrise:    raw.Sys.Sunrise,
		Sunset:     raw.Sys.Sunset,
		TempC:      raw.Main.Temp,
		FeelsLikeC: raw.Main.FeelsLike,
		Humidity:   raw.Main.Humidity,
		Pressure:   raw.Main.Pressure,
		// OpenWeatherMap reports metres per second in metric units.
		WindKph:    raw.Wind.Speed * 3.6,
		Visibility: raw.Visibility,
	}
	if len(raw.Weather) > 0 {
		cur.ConditionID = raw.Weather[0].ID
		cur.ConditionText = raw.Weather[0].Description
	}

	return cur, nil
}

// ---- Air pollution ----

// AirClient fetches air pollution readings.
type AirClient struct {
	apiKey string
	up     *upstream
}

// NewAirClient constructs an AirClient with the given API key.
func NewAirClient(apiKey string) *AirClient {
	return NewAirClientWithURL(owmAirDefault, apiKey)
}

// NewAirClientWithURL constructs an AirClient pointing at a custom base URL (for tests).
func NewAirClientWithURL(baseURL, apiKey string) *AirClient {
	return &AirClient{apiKey: apiKey, up: newUpstream("air", baseURL)}
}

type owmAirResponse struct {
	List []struct {
		Components struct {
			PM25 float64 `json:"pm2_5"`
		} `json:"components"`
	} `json:"list"`
}

// Fetch retrieves the current PM2.5 reading and its US EPA AQI.
func (c *AirClient) Fetch(ctx context.Context, lat, lon float64) (*Air, error) {
	var raw owmAirResponse
	if err := c.up.get(ctx, coords(lat, lon, c.apiKey), &raw); err != nil {
		return nil, fmt.Errorf("air pollution at %.4f,%.4f: %w", lat, lon, err)
	}
	if len(raw.List) == 0 {
		return nil, fmt.Errorf("air pollution at %.4f,%.4f: empty list", lat, lon)
	}

	pm25 := raw.List[0].Components.PM25
	return &Air{PM25: pm25, AQI: airquality.FromPM25(pm25)}, nil
}

// ---- Forecast ----

// ForecastClient fetches the 3-hourly forecast.
type ForecastClient struct {
	apiKey string
	up     *upstream
}

// NewForecastClient constructs a ForecastClient with the given API key.
func NewForecastClient(apiKey string) *ForecastClient {
	return NewForecastClientWithURL(owmForecastDefault, apiKey)
}

// NewForecastClientWithURL constructs a ForecastClient pointing at a custom base URL (for tests).
func NewForecastClientWithURL(baseURL, apiKey string) *ForecastClient {
	return &ForecastClient{apiKey: apiKey, up: newUpstream("forecast", baseURL)}
}

type owmForecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			ID          int    `json:"id"`
			Description string `json:"description"`
		} `json:"weather"`
		Sys struct {
			Pod string `json:"pod"`
		} `json:"sys"`
	} `json:"list"`
}

// Fetch retrieves up to the next 24 hours of forecast steps.
func (c *ForecastClient) Fetch(ctx context.Context, lat, lon float64) ([]ForecastEntry, error) {
	params := coords(lat, lon, c.apiKey)
	params.Set("units", "metric")
	params.Set("cnt", strconv.Itoa(forecastSteps))

	var raw owmForecastResponse
	if err := c.up.get(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("forecast at %.4f,%.4f: %w", lat, lon, err)
	}

	n := min(len(raw.List), forecastSteps)
	entries := make([]ForecastEntry, 0, n)
	for _, item := range raw.List[:n] {
		e := ForecastEntry{
			Dt:    item.Dt,
			TempC: item.Main.Temp,
			Night: item.Sys.Pod == "n",
		}
		if len(item.Weather) > 0 {
			e.ID = item.Weather[0].ID
			e.ConditionText = item.Weather[0].Description
		}
		entries = append(entries, e)
	}

	return entries, nil
}
