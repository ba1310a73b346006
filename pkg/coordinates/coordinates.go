// Package coordinates provides the spherical-earth geometry used for traffic
// awareness: great-circle distance, initial bearing, forward projection and
// closest-approach estimates. All functions are pure.
package coordinates

import (
	"math"
	"time"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusMeters is the mean spherical Earth radius
	EarthRadiusMeters = 6371000.0

	// MetersPerNauticalMile is the international nautical mile
	MetersPerNauticalMile = 1852.0
)

// Geographic represents a position on Earth's surface (WGS84 degrees).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad).
func (g Geographic) ToRadians() (float64, float64) {
	return g.Latitude * DegreesToRadians, g.Longitude * DegreesToRadians
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	return az
}

// NormalizeLongitude wraps a longitude into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if lon > 180.0 {
		lon -= 360.0
	} else if lon < -180.0 {
		lon += 360.0
	}
	return lon
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1, lon1 := from.ToRadians()
	lat2, lon2 := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceMeters calculates the great-circle distance between two points
// using the haversine formula on a spherical Earth.
func DistanceMeters(from, to Geographic) float64 {
	lat1Rad, lon1Rad := from.ToRadians()
	lat2Rad, lon2Rad := to.ToRadians()

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
// Returns distance in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return DistanceMeters(from, to) / MetersPerNauticalMile
}

// Destination returns the point reached by travelling distanceMeters from
// start along the great circle with the given initial bearing.
//
//	lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(brg))
//	lon2 = lon1 + atan2(sin(brg)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
func Destination(start Geographic, bearingDeg, distanceMeters float64) Geographic {
	latRad, lonRad := start.ToRadians()
	brg := bearingDeg * DegreesToRadians

	// Angular distance
	d := distanceMeters / EarthRadiusMeters

	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(d) +
			math.Cos(latRad)*math.Sin(d)*math.Cos(brg),
	)
	newLonRad := lonRad + math.Atan2(
		math.Sin(brg)*math.Sin(d)*math.Cos(latRad),
		math.Cos(d)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	return Geographic{
		Latitude:  newLatRad * RadiansToDegrees,
		Longitude: NormalizeLongitude(newLonRad * RadiansToDegrees),
	}
}

// EstimateTimeToClosestApproach calculates when a target moving on a straight
// track will be closest to a fixed reference point (usually ownship).
// Returns:
//   - closestRangeNM: The minimum distance in nautical miles
//   - timeToClosest: Duration until closest approach (0 if moving away)
//   - isApproaching: True if the target is currently closing
func EstimateTimeToClosestApproach(
	reference Geographic,
	target Geographic,
	groundSpeedKnots float64,
	trackDegrees float64,
) (closestRangeNM float64, timeToClosest time.Duration, isApproaching bool) {
	currentRange := DistanceNauticalMiles(reference, target)

	// If the target flies directly toward the reference, relative angle is ~0°
	bearingFromTarget := Bearing(target, reference)
	relativeAngle := math.Abs(trackDegrees - bearingFromTarget)
	if relativeAngle > 180 {
		relativeAngle = 360 - relativeAngle
	}

	// Component of velocity toward/away from the reference
	relativeAngleRad := relativeAngle * DegreesToRadians
	velocityToward := groundSpeedKnots * math.Cos(relativeAngleRad)

	isApproaching = velocityToward > 0.1

	if !isApproaching {
		return currentRange, 0, false
	}

	timeHours := currentRange * math.Cos(relativeAngleRad) / groundSpeedKnots
	if timeHours < 0 {
		timeHours = 0
	}
	timeToClosest = time.Duration(timeHours * float64(time.Hour))

	// Closest range is the cross-track distance
	closestRangeNM = math.Abs(currentRange * math.Sin(relativeAngleRad))

	return closestRangeNM, timeToClosest, isApproaching
}
