package scene

import "strings"

// Asset is the resolved display pair for a bucket.
type Asset struct {
	Bucket Bucket `json:"bucket"`
	Poster string `json:"poster"`
	Video  string `json:"video"`
}

// VariantTable overrides the poster name per region and bucket. The "" region
// holds the generic overrides applied when a region has no entry of its own.
type VariantTable map[string]map[Bucket]string

// DefaultVariants keeps the heavy rain and dust posters for India and falls
// back to the plain posters everywhere else.
func DefaultVariants() VariantTable {
	return VariantTable{
		"": {
			RainHeavyDay:   "rain",
			RainHeavyNight: "rain-night",
			DustDay:        "dust",
		},
		"IN": {
			RainHeavyDay:   string(RainHeavyDay),
			RainHeavyNight: string(RainHeavyNight),
			DustDay:        "dust-day-india",
		},
	}
}

// Poster returns the poster name for bucket in region.
func (t VariantTable) Poster(region string, b Bucket) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region != "" {
		if p, ok := t[region][b]; ok {
			return p
		}
	}
	if p, ok := t[""][b]; ok {
		return p
	}
	return string(b)
}

// videos is the looping clip family per bucket.
var videos = map[Bucket]string{
	Thunder:           "thunder",
	ThunderNight:      "thunder",
	Drizzle:           "rain",
	Rain:              "rain",
	RainNight:         "rain",
	RainHeavyDay:      "rain",
	RainHeavyNight:    "rain",
	Snow:              "snow",
	SnowNight:         "snow",
	Fog:               "fog",
	FogNight:          "fog",
	Haze:              "fog",
	DustDay:           "fog",
	ClearDay:          "clear-day",
	ClearNight:        "clear-night",
	Sunrise:           "clear-day",
	Sunset:            "clear-day",
	PartlyCloudyDay:   "clouds-day",
	PartlyCloudyNight: "clouds-night",
	Clouds:            "clouds-day",
	CloudsNight:       "clouds-night",
	CloudsSunset:      "clouds-day",
}

// Classifier resolves inputs to assets using a variant table.
type Classifier struct {
	variants VariantTable
}

// NewClassifier builds a Classifier. A nil table uses DefaultVariants.
func NewClassifier(variants VariantTable) *Classifier {
	if variants == nil {
		variants = DefaultVariants()
	}
	return &Classifier{variants: variants}
}

// Resolve classifies in and templates the poster and video paths.
func (c *Classifier) Resolve(in Input) Asset {
	b := Classify(in)
	video, ok := videos[b]
	if !ok {
		video = videos[Fallback]
	}
	return Asset{
		Bucket: b,
		Poster: "/posters/" + c.variants.Poster(in.Region, b) + ".jpg",
		Video:  "/videos/" + video + ".webm",
	}
}

// Valid reports whether b is one of the known buckets.
func (b Bucket) Valid() bool {
	_, ok := videos[b]
	return ok
}
