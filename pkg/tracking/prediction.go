package tracking

import (
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/coordinates"
)

// DefaultPredictionSeconds is the horizon used when callers do not supply one.
const DefaultPredictionSeconds = 30.0

// PredictedPosition projects where an aircraft will be after secondsAhead,
// assuming it holds its current ground speed and track along a great circle.
//
// The current position is returned unchanged when ground speed is unknown or
// not positive, or when secondsAhead is not positive. Altitude is not
// projected.
//
// Parameters:
//   - ac: Current aircraft state
//   - secondsAhead: Prediction horizon in seconds (see DefaultPredictionSeconds)
//
// Returns: Predicted geographic position
func PredictedPosition(ac adsb.Aircraft, secondsAhead float64) coordinates.Geographic {
	current := coordinates.Geographic{
		Latitude:  ac.Latitude,
		Longitude: ac.Longitude,
	}

	if !ac.GroundSpeedValid || ac.GroundSpeed <= 0 || secondsAhead <= 0 {
		return current
	}

	// 1 knot = 1 nautical mile per hour
	distanceMeters := ac.GroundSpeed / 3600.0 * secondsAhead * coordinates.MetersPerNauticalMile

	return coordinates.Destination(current, ac.Track, distanceMeters)
}

// PredictedAltitude projects pressure altitude after secondsAhead using the
// reported vertical speed. The boolean is false when altitude is unknown.
// An unknown vertical speed holds the current altitude.
func PredictedAltitude(ac adsb.Aircraft, secondsAhead float64) (float64, bool) {
	if !ac.AltitudeValid {
		return 0, false
	}
	if !ac.VerticalSpeedValid || secondsAhead <= 0 {
		return ac.Altitude, true
	}

	// VerticalSpeed is feet per minute
	return ac.Altitude + ac.VerticalSpeed*(secondsAhead/60.0), true
}

// PredictedTrack returns positions at each step up to horizonSeconds,
// starting with the current position. Used to draw a short trend vector.
func PredictedTrack(ac adsb.Aircraft, horizonSeconds, stepSeconds float64) []coordinates.Geographic {
	if stepSeconds <= 0 || horizonSeconds <= 0 {
		return []coordinates.Geographic{PredictedPosition(ac, 0)}
	}

	points := make([]coordinates.Geographic, 0, int(horizonSeconds/stepSeconds)+1)
	for s := 0.0; s <= horizonSeconds; s += stepSeconds {
		points = append(points, PredictedPosition(ac, s))
	}
	return points
}
