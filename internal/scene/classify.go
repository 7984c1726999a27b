package scene

import "math"

// Bucket names a background scene. Downstream code maps it to a poster and
// video pair by string templating.
type Bucket string

const (
	Thunder           Bucket = "thunder"
	ThunderNight      Bucket = "thunder-night"
	Drizzle           Bucket = "drizzle"
	Rain              Bucket = "rain"
	RainNight         Bucket = "rain-night"
	RainHeavyDay      Bucket = "rain-heavy-day"
	RainHeavyNight    Bucket = "rain-heavy-night"
	Snow              Bucket = "snow"
	SnowNight         Bucket = "snow-night"
	Fog               Bucket = "fog"
	FogNight          Bucket = "fog-night"
	Haze              Bucket = "haze"
	DustDay           Bucket = "dust-day"
	ClearDay          Bucket = "clear-day"
	ClearNight        Bucket = "clear-night"
	Sunrise           Bucket = "sunrise"
	Sunset            Bucket = "sunset"
	PartlyCloudyDay   Bucket = "partly-cloudy-day"
	PartlyCloudyNight Bucket = "partly-cloudy-night"
	Clouds            Bucket = "clouds"
	CloudsNight       Bucket = "clouds-night"
	CloudsSunset      Bucket = "clouds-sunset"
)

// Fallback is returned for condition codes outside every known band.
const Fallback = ClearDay

// proximityWindow is the distance, in seconds, from sunrise or sunset within
// which the transitional scenes apply.
const proximityWindow = 45 * 60

// Input carries everything the classifier looks at. Timestamps are Unix
// seconds for the target location; zero means unknown.
type Input struct {
	Code    int
	Now     int64
	Sunrise int64
	Sunset  int64
	Region  string
}

// Sun is the solar-time state derived from an Input's timestamps.
type Sun struct {
	IsDay       bool
	NearSunrise bool
	NearSunset  bool
}

// IsDay reports whether now falls in [sunrise, sunset). Missing timestamps
// count as day.
func IsDay(now, sunrise, sunset int64) bool {
	if now == 0 || sunrise == 0 || sunset == 0 {
		return true
	}
	return now >= sunrise && now < sunset
}

// SolarState derives the day/night split and both proximity windows.
func SolarState(now, sunrise, sunset int64) Sun {
	return Sun{
		IsDay:       IsDay(now, sunrise, sunset),
		NearSunrise: near(now, sunrise),
		NearSunset:  near(now, sunset),
	}
}

func near(now, event int64) bool {
	if now == 0 || event == 0 {
		return false
	}
	d := now - event
	if d < 0 {
		d = -d
	}
	return d <= proximityWindow
}

// band is one row of the dispatch table. Bands never overlap, so the table
// order only matters for readability. The overcast band is open-ended.
type band struct {
	lo, hi  int
	resolve func(code int, sun Sun) Bucket
}

var bands = []band{
	{200, 232, func(_ int, sun Sun) Bucket { return dayNight(sun, Thunder, ThunderNight) }},
	{300, 321, func(int, Sun) Bucket { return Drizzle }},
	{500, 531, rain},
	{600, 622, func(_ int, sun Sun) Bucket { return dayNight(sun, Snow, SnowNight) }},
	{701, 781, atmosphere},
	{800, 800, clearSky},
	{801, 802, func(_ int, sun Sun) Bucket { return dayNight(sun, PartlyCloudyDay, PartlyCloudyNight) }},
	{803, math.MaxInt, overcast},
}

// Classify maps a condition code and the solar state to a bucket. It is
// total: codes outside every band yield Fallback.
func Classify(in Input) Bucket {
	sun := SolarState(in.Now, in.Sunrise, in.Sunset)
	for _, b := range bands {
		if in.Code >= b.lo && in.Code <= b.hi {
			return b.resolve(in.Code, sun)
		}
	}
	return Fallback
}

func dayNight(sun Sun, day, night Bucket) Bucket {
	if sun.IsDay {
		return day
	}
	return night
}

func rain(code int, sun Sun) Bucket {
	switch code {
	case 502, 503, 504:
		return dayNight(sun, RainHeavyDay, RainHeavyNight)
	}
	return dayNight(sun, Rain, RainNight)
}

// atmosphere collapses every sub-type to fog-night after dark.
func atmosphere(code int, sun Sun) Bucket {
	if !sun.IsDay {
		return FogNight
	}
	switch code {
	case 711, 721:
		return Haze
	case 731, 751, 761:
		return DustDay
	}
	return Fog
}

// clearSky prefers the sunrise and sunset scenes over the plain day/night split.
func clearSky(_ int, sun Sun) Bucket {
	switch {
	case sun.NearSunrise:
		return Sunrise
	case sun.NearSunset:
		return Sunset
	}
	return dayNight(sun, ClearDay, ClearNight)
}

func overcast(_ int, sun Sun) Bucket {
	if sun.NearSunset {
		return CloudsSunset
	}
	return dayNight(sun, Clouds, CloudsNight)
}
