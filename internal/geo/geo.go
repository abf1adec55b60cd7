// Package geo parses checkpoint positions and measures great-circle
// distances between them.
package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/storypath/checkin/internal/storypath"
)

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

// ErrUnparseable is returned for position text that is not "(lat, lon)".
var ErrUnparseable = errors.New("unparseable position")

// Fallback is the coordinate substituted by ParsePositionOrFallback.
var Fallback = storypath.Position{Latitude: -27.470125, Longitude: 153.021072}

// ParsePosition parses text of the form "(lat, lon)". Whitespace around
// tokens and the enclosing parentheses are optional.
func ParsePosition(text string) (storypath.Position, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	latText, lonText, ok := strings.Cut(s, ",")
	if !ok || strings.Contains(lonText, ",") {
		return storypath.Position{}, ErrUnparseable
	}

	lat, err := parseCoord(latText, 90)
	if err != nil {
		return storypath.Position{}, err
	}
	lon, err := parseCoord(lonText, 180)
	if err != nil {
		return storypath.Position{}, err
	}
	return storypath.Position{Latitude: lat, Longitude: lon}, nil
}

// ParsePositionOrFallback never fails: unparseable text yields Fallback.
func ParsePositionOrFallback(text string) storypath.Position {
	p, err := ParsePosition(text)
	if err != nil {
		return Fallback
	}
	return p
}

func parseCoord(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > limit {
		return 0, ErrUnparseable
	}
	return v, nil
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b storypath.Position) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadius * c
}

// Within reports whether b lies strictly closer than radius meters to a.
func Within(a, b storypath.Position, radius float64) bool {
	return Distance(a, b) < radius
}
