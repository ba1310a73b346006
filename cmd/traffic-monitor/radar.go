package main

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/guardianone/adsb-traffic/pkg/coordinates"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

// Terminal characters are roughly twice as tall as they are wide, so X
// distances are stretched to keep range rings round.
const aspectRatio = 0.5

// radarGeometry describes a radar scope of width x height cells centered on
// ownship and showing radiusNM in every direction.
type radarGeometry struct {
	center   coordinates.Geographic
	radiusNM float64
	width    int
	height   int
}

func (g radarGeometry) centerXY() (int, int) {
	return g.width / 2, g.height / 2
}

// scale returns screen rows per nautical mile.
func (g radarGeometry) scale() float64 {
	maxY := float64(g.height/2 - 1)
	maxX := float64(g.width/2-1) * aspectRatio
	maxRadius := maxY
	if maxX < maxY {
		maxRadius = maxX
	}
	return maxRadius / g.radiusNM
}

// polarToScreen converts a range and bearing from center to a cell.
func (g radarGeometry) polarToScreen(distanceNM, bearing float64) (int, int, bool) {
	if distanceNM > g.radiusNM {
		return 0, 0, false
	}

	cx, cy := g.centerXY()
	rad := bearing * math.Pi / 180.0
	dist := distanceNM * g.scale()

	// Bearing 0 is up; screen Y grows downward.
	x := cx + int(math.Round(dist*math.Sin(rad)/aspectRatio))
	y := cy - int(math.Round(dist*math.Cos(rad)))

	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return 0, 0, false
	}
	return x, y, true
}

// toScreen converts a geographic position to a cell.
func (g radarGeometry) toScreen(pos coordinates.Geographic) (int, int, bool) {
	return g.polarToScreen(
		coordinates.DistanceNauticalMiles(g.center, pos),
		coordinates.Bearing(g.center, pos),
	)
}

// Cell markers.
const (
	markEmpty      = ' '
	markRing       = '·'
	markOwnship    = '+'
	markTraffic    = 'o'
	markSelected   = '●'
	markAlert      = '!'
	markPrediction = '.'
)

// renderRadar draws the scope with range rings, predicted tracks and traffic.
func (m model) renderRadar() string {
	g := radarGeometry{
		center:   m.own.Position(),
		radiusNM: m.rangeNM,
		width:    m.radarWidth(),
		height:   m.radarHeight(),
	}

	grid := make([][]rune, g.height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(string(markEmpty), g.width))
	}

	// Rings at a half and the full range.
	for _, ring := range []float64{g.radiusNM / 2, g.radiusNM} {
		for az := 0.0; az < 360; az += 3 {
			if x, y, ok := g.polarToScreen(ring, az); ok {
				grid[y][x] = markRing
			}
		}
	}

	if m.showPrediction {
		for _, v := range m.aircraft {
			if !v.aircraft.PositionValid {
				continue
			}
			for _, p := range tracking.PredictedTrack(v.aircraft, m.predictSeconds, m.predictSeconds/6) {
				if x, y, ok := g.toScreen(p); ok && grid[y][x] != markTraffic {
					grid[y][x] = markPrediction
				}
			}
		}
	}

	for i, v := range m.aircraft {
		if !v.aircraft.PositionValid {
			continue
		}
		x, y, ok := g.toScreen(coordinates.Geographic{
			Latitude:  v.aircraft.Latitude,
			Longitude: v.aircraft.Longitude,
		})
		if !ok {
			continue
		}
		switch {
		case v.alert:
			grid[y][x] = markAlert
		case i == m.selected:
			grid[y][x] = markSelected
		default:
			grid[y][x] = markTraffic
		}
	}

	cx, cy := g.centerXY()
	grid[cy][cx] = markOwnship
	grid[0][cx] = 'N'

	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ringStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	ownStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	trafficStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	alertStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	predStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	var radar strings.Builder
	radar.WriteString(borderStyle.Render("┌" + strings.Repeat("─", g.width) + "┐"))
	radar.WriteString("\n")
	for _, row := range grid {
		radar.WriteString(borderStyle.Render("│"))
		for _, c := range row {
			switch c {
			case markRing:
				radar.WriteString(ringStyle.Render(string(c)))
			case markOwnship:
				radar.WriteString(ownStyle.Render(string(c)))
			case markTraffic:
				radar.WriteString(trafficStyle.Render(string(c)))
			case markSelected:
				radar.WriteString(selectedStyle.Render(string(c)))
			case markAlert:
				radar.WriteString(alertStyle.Render(string(c)))
			case markPrediction:
				radar.WriteString(predStyle.Render(string(c)))
			default:
				radar.WriteRune(c)
			}
		}
		radar.WriteString(borderStyle.Render("│"))
		radar.WriteString("\n")
	}
	radar.WriteString(borderStyle.Render("└" + strings.Repeat("─", g.width) + "┘"))
	return radar.String()
}

// radarWidth sizes the scope to the terminal, leaving room for the info panel.
func (m model) radarWidth() int {
	w := m.width - 46
	if w < 40 {
		w = 40
	}
	return w
}

func (m model) radarHeight() int {
	h := m.height - 14
	if h < 15 {
		h = 15
	}
	return h
}
