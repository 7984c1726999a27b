package weather

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neexbeast/atmoscheck/internal/scene"
)

// ErrCityNotFound is returned when geocoding yields no match.
var ErrCityNotFound = errors.New("city not found")

// Query selects a location either by city name or by coordinates.
type Query struct {
	City string
	Lat  *float64
	Lon  *float64
}

// ByCity reports whether the query needs geocoding.
func (q Query) ByCity() bool {
	return strings.TrimSpace(q.City) != ""
}

// Key returns a stable cache key for the query. Coordinates are rounded to
// two decimals (about 1 km).
func (q Query) Key() string {
	if q.ByCity() {
		return "q:" + strings.ToLower(strings.TrimSpace(q.City))
	}
	if q.Lat == nil || q.Lon == nil {
		return ""
	}
	return fmt.Sprintf("coord:%.2f,%.2f", *q.Lat, *q.Lon)
}

// String is used for logging and lookup history.
func (q Query) String() string {
	if q.ByCity() {
		return strings.TrimSpace(q.City)
	}
	if q.Lat == nil || q.Lon == nil {
		return ""
	}
	return fmt.Sprintf("%.4f,%.4f", *q.Lat, *q.Lon)
}

// Location is a geocoded place.
type Location struct {
	Name    string
	Country string
	Lat     float64
	Lon     float64
}

// Current holds the current conditions returned by the weather endpoint.
type Current struct {
	City          string
	Country       string
	Timezone      int
	Dt            int64
	Sunrise       int64
	Sunset        int64
	TempC         float64
	FeelsLikeC    float64
	ConditionText string
	ConditionID   int
	Humidity      int
	WindKph       float64
	Pressure      int
	Visibility    int
}

// Air holds the air pollution reading for a location.
type Air struct {
	PM25 float64
	AQI  int
}

// ForecastEntry is one 3-hour forecast step.
type ForecastEntry struct {
	Dt            int64   `json:"dt"`
	TempC         float64 `json:"tempC"`
	ConditionText string  `json:"conditionText"`
	ID            int     `json:"id"`
	Night         bool    `json:"night"`
}

// Report is the reshaped document served to the browser client.
type Report struct {
	City          string          `json:"city"`
	Country       string          `json:"country"`
	Timezone      int             `json:"timezone"`
	Dt            int64           `json:"dt"`
	Sunrise       int64           `json:"sunrise"`
	Sunset        int64           `json:"sunset"`
	TempC         float64         `json:"tempC"`
	FeelsLikeC    float64         `json:"feelsLikeC"`
	ConditionText string          `json:"conditionText"`
	ID            int             `json:"id"`
	Humidity      int             `json:"humidity"`
	WindKph       float64         `json:"windKph"`
	Pressure      int             `json:"pressure"`
	Visibility    int             `json:"visibility"`
	AQI           *int            `json:"aqi,omitempty"`
	PM25          *float64        `json:"pm25,omitempty"`
	AQICategory   string          `json:"aqiCategory,omitempty"`
	Forecast      []ForecastEntry `json:"forecast,omitempty"`
	Scene         scene.Asset     `json:"scene"`
}
