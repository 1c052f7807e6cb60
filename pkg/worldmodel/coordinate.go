package worldmodel

import (
	"fmt"
	"math"
)

// earthRadiusKM is the mean Earth radius used by the default distance
// calculator.
const earthRadiusKM = 6371.0

// Coordinate is a geographic position in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// NewCoordinate validates and constructs a Coordinate. Latitude must lie in
// [-90,90] and longitude in [-180,180].
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return Coordinate{}, fmt.Errorf("worldmodel: coordinate (%v,%v): NaN/Inf rejected", lat, lon)
	}
	if lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("worldmodel: latitude %v out of range [-90,90]", lat)
	}
	if lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("worldmodel: longitude %v out of range [-180,180]", lon)
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// DistanceCalculator computes the distance in kilometers between two
// coordinates. Swappable so callers can substitute a flat-plane or test
// double for the default great-circle calculation.
type DistanceCalculator interface {
	Distance(a, b Coordinate) float64
}

// HaversineCalculator is the default DistanceCalculator, using the
// haversine great-circle formula against a spherical Earth approximation.
type HaversineCalculator struct{}

// Distance implements DistanceCalculator.
func (HaversineCalculator) Distance(a, b Coordinate) float64 {
	lat1 := degToRad(a.Lat)
	lat2 := degToRad(b.Lat)
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lon - a.Lon)

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
