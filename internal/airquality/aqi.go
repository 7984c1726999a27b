// Package airquality converts raw pollutant concentrations into US EPA Air
// Quality Index values.
package airquality

import "math"

type breakpoint struct {
	cLo, cHi float64
	iLo, iHi float64
}

// pm25Breakpoints are the EPA PM2.5 (µg/m³) segments. The last segment is
// open-ended.
var pm25Breakpoints = []breakpoint{
	{0.0, 12.0, 0, 50},
	{12.1, 35.4, 51, 100},
	{35.5, 55.4, 101, 150},
	{55.5, 150.4, 151, 200},
	{150.5, 250.4, 201, 300},
	{250.5, 500.4, 301, 500},
}

// FromPM25 returns the AQI for a PM2.5 concentration by linear interpolation
// inside its breakpoint segment. Negative concentrations count as zero and
// the result saturates at math.MaxInt32.
func FromPM25(pm25 float64) int {
	if pm25 <= 0 || math.IsNaN(pm25) {
		return 0
	}
	bp := pm25Breakpoints[len(pm25Breakpoints)-1]
	for _, b := range pm25Breakpoints {
		if pm25 <= b.cHi {
			bp = b
			break
		}
	}
	aqi := (bp.iHi-bp.iLo)/(bp.cHi-bp.cLo)*(pm25-bp.cLo) + bp.iLo
	// Float to int conversion is undefined past the int range.
	return int(math.Round(min(aqi, math.MaxInt32)))
}

// Category names the EPA health band for an AQI value.
func Category(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive Groups"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}
