package main

import (
	"testing"

	"github.com/guardianone/adsb-traffic/pkg/coordinates"
)

// TestRadarGeometry tests projection of traffic onto the scope.
func TestRadarGeometry(t *testing.T) {
	g := radarGeometry{
		center:   coordinates.Geographic{Latitude: 30.0, Longitude: -98.0},
		radiusNM: 10,
		width:    81,
		height:   41,
	}
	cx, cy := g.centerXY()

	t.Run("Center", func(t *testing.T) {
		x, y, ok := g.polarToScreen(0, 0)
		if !ok || x != cx || y != cy {
			t.Errorf("Expected center (%d,%d), got (%d,%d) ok=%v", cx, cy, x, y, ok)
		}
	})

	t.Run("North is up", func(t *testing.T) {
		x, y, ok := g.polarToScreen(5, 0)
		if !ok {
			t.Fatal("Expected target on screen")
		}
		if x != cx {
			t.Errorf("Expected x %d, got %d", cx, x)
		}
		if y >= cy {
			t.Errorf("Expected y above center %d, got %d", cy, y)
		}
	})

	t.Run("East is right", func(t *testing.T) {
		x, y, ok := g.polarToScreen(5, 90)
		if !ok {
			t.Fatal("Expected target on screen")
		}
		if x <= cx {
			t.Errorf("Expected x right of center %d, got %d", cx, x)
		}
		if y != cy {
			t.Errorf("Expected y %d, got %d", cy, y)
		}
	})

	t.Run("Outside range", func(t *testing.T) {
		if _, _, ok := g.polarToScreen(10.5, 45); ok {
			t.Error("Expected target beyond range to be off screen")
		}
	})

	t.Run("Geographic", func(t *testing.T) {
		// About 6 NM south of center.
		x, y, ok := g.toScreen(coordinates.Geographic{Latitude: 29.9, Longitude: -98.0})
		if !ok {
			t.Fatal("Expected target on screen")
		}
		if x != cx || y <= cy {
			t.Errorf("Expected target below center, got (%d,%d)", x, y)
		}
	})
}
