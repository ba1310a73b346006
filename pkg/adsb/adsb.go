package adsb

import "time"

// Aircraft represents one traffic target tracked from a GDL90 receiver.
// All position data is in the WGS84 coordinate system.
//
// Fields whose wire encoding carries an "unknown" sentinel have a matching
// Valid flag; the numeric value is zero whenever its flag is false.
type Aircraft struct {
	// Address is the 24-bit ICAO transponder address as 6 uppercase hex
	// digits (e.g., "A12345"). It is the table key and never changes.
	Address string

	// Callsign is the flight number or registration, trimmed.
	// Falls back to Address when the report carries a blank callsign.
	Callsign string

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64

	// PositionValid is false when the receiver reported no position.
	PositionValid bool

	// Altitude is pressure altitude in feet.
	Altitude      float64
	AltitudeValid bool

	// GroundSpeed in knots
	GroundSpeed      float64
	GroundSpeedValid bool

	// VerticalSpeed in feet per minute (positive = climbing, negative = descending)
	VerticalSpeed      float64
	VerticalSpeedValid bool

	// Track is the true ground track in degrees (0-359)
	// 0 = North, 90 = East, 180 = South, 270 = West
	Track float64

	// LastUpdated is the time the most recent report for this address arrived.
	LastUpdated time.Time
}

// DisplayName returns the callsign, or the address when no callsign is known.
func (a Aircraft) DisplayName() string {
	if a.Callsign == "" {
		return a.Address
	}
	return a.Callsign
}

// Age returns how long ago the aircraft was last updated relative to now.
func (a Aircraft) Age(now time.Time) time.Duration {
	return now.Sub(a.LastUpdated)
}

// Source is the read-only view of live traffic that display and alerting
// code depends on. The GDL90 receiver implements it; tests can supply a
// static list.
type Source interface {
	// Aircraft returns a snapshot of all currently tracked aircraft.
	// Stale entries have already been removed.
	Aircraft() []Aircraft

	// AircraftByAddress returns a specific aircraft by its ICAO address.
	// The boolean is false if the aircraft is not currently tracked.
	AircraftByAddress(address string) (Aircraft, bool)

	// Close cleanly shuts down the source.
	Close() error
}

// StaticSource is a fixed list of aircraft implementing Source.
type StaticSource []Aircraft

// Aircraft returns a copy of the list.
func (s StaticSource) Aircraft() []Aircraft {
	out := make([]Aircraft, len(s))
	copy(out, s)
	return out
}

// AircraftByAddress returns the first aircraft with the given address.
func (s StaticSource) AircraftByAddress(address string) (Aircraft, bool) {
	for _, ac := range s {
		if ac.Address == address {
			return ac, true
		}
	}
	return Aircraft{}, false
}

// Close is a no-op.
func (s StaticSource) Close() error {
	return nil
}
