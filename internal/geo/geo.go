// ABOUTME: Spatial query handling: coordinate and location extraction, map payloads
// ABOUTME: Pure functions; no geocoding service, bounds come from a known-locations table

package geo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Default map view over India when a query carries no usable position.
const (
	DefaultCenterLat = 20.5937
	DefaultCenterLon = 78.9629
	DefaultZoom      = 5
	boundsZoom       = 7
	coordinateZoom   = 8
)

// Spatial intent labels.
const (
	IntentDataCoverage    = "data_coverage"
	IntentLocationQuery   = "location_query"
	IntentSpatialAnalysis = "spatial_analysis"
	IntentDataDownload    = "data_download"
	IntentGeneralSpatial  = "general_spatial"
)

// Coordinate is one extracted lat/lon pair.
type Coordinate struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Format     string  `json:"format"`
	RawText    string  `json:"raw_text"`
	Confidence float64 `json:"confidence"`
}

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Location is a recognized place name, with bounds when known.
type Location struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Bounds     *Bounds `json:"bounds,omitempty"`
}

// MapData describes the map view a client should render.
type MapData struct {
	Center  [2]float64 `json:"center"`
	Zoom    int        `json:"zoom"`
	HasData bool       `json:"has_data"`
}

// Result is the full outcome of spatial processing for one query.
type Result struct {
	Coordinates    []Coordinate `json:"coordinates"`
	Locations      []Location   `json:"locations"`
	SpatialIntent  string       `json:"spatial_intent"`
	Suggestions    []string     `json:"suggestions"`
	MapData        *MapData     `json:"map_data,omitempty"`
	HasSpatialData bool         `json:"has_spatial_data"`
}

var (
	decimalDegreesRe = regexp.MustCompile(`(-?\d+\.?\d*)\s*[,°]\s*(-?\d+\.?\d*)`)
	dmsRe            = regexp.MustCompile(`(\d+)°\s*(\d+)[′']\s*(\d+\.?\d*)[″"]\s*([NSEWnsew])`)
)

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(delhi|mumbai|kolkata|chennai|bangalore|hyderabad|pune|ahmedabad)\b`),
	regexp.MustCompile(`(?i)\b(maharashtra|karnataka|tamil nadu|rajasthan|uttar pradesh|gujarat)\b`),
	regexp.MustCompile(`(?i)\b(india|indian ocean|arabian sea|bay of bengal)\b`),
	regexp.MustCompile(`(?i)\b(\w+)\s+(district|state|city|region|area)\b`),
	regexp.MustCompile(`(?i)\b(north|south|east|west|central)\s+(india|indian)\b`),
}

var indiaBounds = Bounds{MinLat: 6.4627, MaxLat: 37.6, MinLon: 68.1766, MaxLon: 97.4025}

var knownBounds = map[string]Bounds{
	"india":     indiaBounds,
	"delhi":     {MinLat: 28.4, MaxLat: 28.9, MinLon: 76.8, MaxLon: 77.5},
	"mumbai":    {MinLat: 18.9, MaxLat: 19.3, MinLon: 72.7, MaxLon: 73.0},
	"bangalore": {MinLat: 12.8, MaxLat: 13.2, MinLon: 77.4, MaxLon: 77.8},
}

var spatialIntentPatterns = []struct {
	intent string
	res    []*regexp.Regexp
}{
	{IntentDataCoverage, compile(
		`coverage.*area`, `data.*available.*for`, `satellite.*coverage`,
		`extent.*of.*data`, `boundary.*of.*data`)},
	{IntentLocationQuery, compile(
		`where.*is`, `location.*of`, `find.*place`, `coordinates.*of`)},
	{IntentSpatialAnalysis, compile(
		`area.*calculation`, `distance.*between`, `spatial.*analysis`,
		`boundary.*analysis`, `overlap.*with`)},
	{IntentDataDownload, compile(
		`download.*data.*for`, `get.*data.*from`, `extract.*data.*for`)},
}

func compile(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?i)` + p)
	}
	return res
}

// ExtractCoordinates pulls lat/lon pairs out of free text, validating
// ranges and dropping near-duplicates within 0.001 degrees.
func ExtractCoordinates(text string) []Coordinate {
	var coords []Coordinate

	for _, m := range decimalDegreesRe.FindAllStringSubmatch(text, -1) {
		lat, err1 := strconv.ParseFloat(m[1], 64)
		lon, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil || !valid(lat, lon) {
			continue
		}
		coords = append(coords, Coordinate{
			Lat: lat, Lon: lon,
			Format:     "decimal_degrees",
			RawText:    m[0],
			Confidence: 0.9,
		})
	}

	for _, m := range dmsRe.FindAllStringSubmatch(text, -1) {
		degrees, _ := strconv.ParseFloat(m[1], 64)
		minutes, _ := strconv.ParseFloat(m[2], 64)
		seconds, _ := strconv.ParseFloat(m[3], 64)
		direction := strings.ToUpper(m[4])

		decimal := degrees + minutes/60 + seconds/3600
		if direction == "S" || direction == "W" {
			decimal = -decimal
		}

		c := Coordinate{Format: "dms", RawText: m[0], Confidence: 0.8}
		if direction == "N" || direction == "S" {
			c.Lat = decimal
		} else {
			c.Lon = decimal
		}
		if !valid(c.Lat, c.Lon) {
			continue
		}
		coords = append(coords, c)
	}

	return dedupe(coords)
}

func valid(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func dedupe(coords []Coordinate) []Coordinate {
	var unique []Coordinate
	for _, c := range coords {
		duplicate := false
		for _, u := range unique {
			if abs(u.Lat-c.Lat) < 0.001 && abs(u.Lon-c.Lon) < 0.001 {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, c)
		}
	}
	return unique
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// ExtractLocations finds place names in free text, deduplicated
// case-insensitively.
func ExtractLocations(text string) []Location {
	seen := make(map[string]bool)
	var locations []Location

	for _, re := range locationPatterns {
		for _, m := range re.FindAllString(text, -1) {
			name := strings.TrimSpace(m)
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			locations = append(locations, Location{
				Name:       name,
				Confidence: 0.7,
				Bounds:     lookupBounds(key),
			})
		}
	}

	return locations
}

func lookupBounds(name string) *Bounds {
	for known, bounds := range knownBounds {
		if strings.Contains(name, known) {
			b := bounds
			return &b
		}
	}
	return nil
}

// ClassifySpatialIntent returns the first matching spatial intent, or
// general_spatial when nothing matches.
func ClassifySpatialIntent(query string) string {
	for _, group := range spatialIntentPatterns {
		for _, re := range group.res {
			if re.MatchString(query) {
				return group.intent
			}
		}
	}
	return IntentGeneralSpatial
}

// Process runs the full spatial pipeline over a cleaned query.
func Process(query string) Result {
	coordinates := ExtractCoordinates(query)
	locations := ExtractLocations(query)
	intent := ClassifySpatialIntent(query)

	result := Result{
		Coordinates:    coordinates,
		Locations:      locations,
		SpatialIntent:  intent,
		Suggestions:    suggestions(coordinates, locations, intent),
		HasSpatialData: len(coordinates) > 0 || len(locations) > 0,
	}
	if result.HasSpatialData {
		result.MapData = buildMap(coordinates, locations)
	}

	return result
}

func suggestions(coordinates []Coordinate, locations []Location, intent string) []string {
	var out []string

	if intent == IntentDataCoverage {
		out = append(out,
			"Check satellite data availability for your region",
			"View data coverage maps",
			"Browse available satellite products")
	}
	if intent == IntentLocationQuery {
		out = append(out,
			"Use the map to explore the area",
			"Get precise coordinates",
			"Find nearby data points")
	}
	if len(coordinates) > 0 {
		out = append(out,
			"View data at these coordinates",
			"Check data quality for this location",
			"Download data for this area")
	}
	if len(locations) > 0 {
		out = append(out,
			fmt.Sprintf("Explore data for %s", locations[0].Name),
			"Get regional data statistics",
			"View historical data trends")
	}
	if len(coordinates) == 0 && len(locations) == 0 {
		out = append(out,
			"Specify coordinates or location name",
			"Use the map to select an area",
			"Browse data by region")
	}

	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

// buildMap centers on the mean of extracted coordinates, else the midpoint
// of the first location with known bounds, else the India default view.
func buildMap(coordinates []Coordinate, locations []Location) *MapData {
	centerLat, centerLon := DefaultCenterLat, DefaultCenterLon
	zoom := DefaultZoom

	if len(coordinates) > 0 {
		var sumLat, sumLon float64
		for _, c := range coordinates {
			sumLat += c.Lat
			sumLon += c.Lon
		}
		centerLat = sumLat / float64(len(coordinates))
		centerLon = sumLon / float64(len(coordinates))
		zoom = coordinateZoom
	} else {
		for _, loc := range locations {
			if loc.Bounds != nil {
				centerLat = (loc.Bounds.MinLat + loc.Bounds.MaxLat) / 2
				centerLon = (loc.Bounds.MinLon + loc.Bounds.MaxLon) / 2
				zoom = boundsZoom
				break
			}
		}
	}

	return &MapData{
		Center:  [2]float64{centerLat, centerLon},
		Zoom:    zoom,
		HasData: len(coordinates) > 0 || len(locations) > 0,
	}
}

// Summary renders a short description of the spatial findings for
// inclusion in an answer.
func Summary(r Result) string {
	if !r.HasSpatialData {
		return "No specific spatial information detected in your query."
	}

	var parts []string
	if len(r.Coordinates) > 0 {
		parts = append(parts, fmt.Sprintf("Found %d coordinate location(s) in your query.", len(r.Coordinates)))
	}
	if len(r.Locations) > 0 {
		names := make([]string, 0, 3)
		for _, loc := range r.Locations {
			names = append(names, loc.Name)
			if len(names) == 3 {
				break
			}
		}
		parts = append(parts, fmt.Sprintf("Identified locations: %s.", strings.Join(names, ", ")))
	}
	if r.SpatialIntent != "" {
		parts = append(parts, fmt.Sprintf("This appears to be a %s query.",
			strings.ReplaceAll(r.SpatialIntent, "_", " ")))
	}

	return strings.Join(parts, " ")
}
