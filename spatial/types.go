// Copyright 2025 The Terroir Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the coordinate value type and the great-circle math
// used to compare geocoding sources.
package spatial

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
)

const (
	// EarthRadiusKm is the radius of the spherical Earth model. No ellipsoid
	// correction is applied.
	EarthRadiusKm = 6371.0

	earthRadius = EarthRadiusKm * 1e3 // meters
)

// ErrOutOfRange is returned when a coordinate is outside [-90,90]x[-180,180].
var ErrOutOfRange = errors.New("spatial: coordinate out of range")

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point is a valid WGS84 latitude/longitude pair.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) ||
		p.Lat < -90 || p.Lat > 90 ||
		p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: (%v, %v)", ErrOutOfRange, p.Lat, p.Lng)
	}

	return nil
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Value implements the driver.Valuer interface for database serialization.
func (p Point) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		p.Lat, p.Lng = 0, 0

		return nil
	}

	switch v := value.(type) {
	case []byte:
		// The format from DuckDB is "POINT (lng lat)"
		_, err := fmt.Sscanf(string(v), "POINT (%f %f)", &p.Lng, &p.Lat)

		return err
	case string:
		_, err := fmt.Sscanf(v, "POINT (%f %f)", &p.Lng, &p.Lat)

		return err
	case map[string]interface{}:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)

		if !okX || !okY {
			return fmt.Errorf("spatial: invalid map for point: expected 'x' and 'y' float64 fields, got %+v", v)
		}

		p.Lng = x
		p.Lat = y

		return nil
	default:
		return fmt.Errorf("spatial: unsupported type for Point scan: %T", value)
	}
}

// NullPoint is a Point that may be NULL in the database.
type NullPoint struct {
	Point Point
	Valid bool
}

// Scan implements the sql.Scanner interface.
func (n *NullPoint) Scan(value interface{}) error {
	if value == nil {
		n.Point, n.Valid = Point{}, false

		return nil
	}

	n.Valid = true

	return n.Point.Scan(value)
}

// Ptr returns nil for a NULL point.
func (n NullPoint) Ptr() *Point {
	if !n.Valid {
		return nil
	}

	p := n.Point

	return &p
}

// haversine returns the central angle between two points in radians.
func haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// rounding can push h a hair above 1 for antipodal points
	return 2 * math.Asin(math.Sqrt(math.Min(1, h)))
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	return earthRadius * haversine(*p, *other)
}

// DistanceKm returns the great-circle distance in kilometers between a and b.
// Both points are validated first; invalid input yields ErrOutOfRange.
func DistanceKm(a, b Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}

	if err := b.Validate(); err != nil {
		return 0, err
	}

	return EarthRadiusKm * haversine(a, b), nil
}
