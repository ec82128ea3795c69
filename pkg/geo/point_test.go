package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters_SamePoint(t *testing.T) {
	p := Point{Lat: 40.7128, Lng: -74.0060}
	assert.Equal(t, 0.0, DistanceMeters(p, p))
}

func TestDistanceMeters_KnownDistance(t *testing.T) {
	// Paris to London, roughly 343 km.
	paris := Point{Lat: 48.8566, Lng: 2.3522}
	london := Point{Lat: 51.5074, Lng: -0.1278}

	d := DistanceMeters(paris, london)
	assert.InDelta(t, 343500, d, 2000)
}

func TestDistanceMeters_ShortRange(t *testing.T) {
	// ~0.00135 degrees latitude is about 150 m.
	a := Point{Lat: 34.0522, Lng: -118.2437}
	b := Point{Lat: 34.0522 + 0.00135, Lng: -118.2437}

	d := DistanceMeters(a, b)
	assert.InDelta(t, 150, d, 1)
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := Point{Lat: -33.8688, Lng: 151.2093}
	b := Point{Lat: -37.8136, Lng: 144.9631}

	assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-9)
}
