package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/coordinates"
)

// TrafficRepository records sightings relative to a fixed reference point
// (usually the configured ownship or receiver location).
type TrafficRepository struct {
	db        *DB
	reference coordinates.Geographic
}

// NewTrafficRepository creates a new traffic repository.
func NewTrafficRepository(db *DB, reference coordinates.Geographic) *TrafficRepository {
	return &TrafficRepository{
		db:        db,
		reference: reference,
	}
}

// Sighting is one stored observation of an aircraft.
type Sighting struct {
	Address          string
	ObservedAt       time.Time
	Latitude         float64
	Longitude        float64
	AltitudeFt       sql.NullFloat64
	GroundSpeedKts   sql.NullFloat64
	VerticalSpeedFpm sql.NullFloat64
	TrackDeg         float64
	RangeNM          float64
	BearingDeg       float64
	DeltaTimeSeconds float64
	DeltaDistanceNM  float64
	ActualSpeedKts   float64
}

// lastSighting is the previous stored position used for deltas.
type lastSighting struct {
	Latitude       float64
	Longitude      float64
	AltitudeFt     sql.NullFloat64
	GroundSpeedKts sql.NullFloat64
	ObservedAt     time.Time
}

// RecordSighting upserts the aircraft summary row and appends a sighting
// stamped with the report's receive time (now when the report has none).
// Aircraft without a valid position are skipped, as are reports no newer
// than the stored one and repeats of a stationary aircraft.
// Returns true if a sighting row was written.
func (r *TrafficRepository) RecordSighting(ctx context.Context, ac adsb.Aircraft, now time.Time) (bool, error) {
	if !ac.PositionValid {
		return false, nil
	}

	observedAt := observationTime(ac, now)

	var prev lastSighting
	err := r.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, altitude_ft, ground_speed_kts, observed_at
		 FROM traffic_sightings
		 WHERE address = $1
		 ORDER BY observed_at DESC
		 LIMIT 1`,
		ac.Address,
	).Scan(&prev.Latitude, &prev.Longitude, &prev.AltitudeFt, &prev.GroundSpeedKts, &prev.ObservedAt)

	var prevPtr *lastSighting
	if err == nil {
		prevPtr = &prev
	} else if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to query previous sighting: %w", err)
	}

	if !shouldRecord(ac, observedAt, prevPtr) {
		return false, nil
	}

	s := r.buildSighting(ac, observedAt, prevPtr)

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO aircraft (
			address, callsign, first_seen, last_seen, sighting_count,
			closest_range_nm, closest_at
		) VALUES ($1, $2, $3, $3, 1, $4, $3)
		ON CONFLICT (address) DO UPDATE SET
			callsign = EXCLUDED.callsign,
			last_seen = EXCLUDED.last_seen,
			sighting_count = aircraft.sighting_count + 1,
			closest_at = CASE
				WHEN aircraft.closest_range_nm IS NULL OR EXCLUDED.closest_range_nm < aircraft.closest_range_nm
				THEN EXCLUDED.closest_at
				ELSE aircraft.closest_at
			END,
			closest_range_nm = LEAST(aircraft.closest_range_nm, EXCLUDED.closest_range_nm)`,
		ac.Address, ac.DisplayName(), observedAt, s.RangeNM,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert aircraft: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO traffic_sightings (
			address, observed_at, latitude, longitude, altitude_ft,
			ground_speed_kts, vertical_speed_fpm, track_deg,
			range_nm, bearing_deg,
			delta_time_seconds, delta_distance_nm, actual_speed_kts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.Address, s.ObservedAt, s.Latitude, s.Longitude, s.AltitudeFt,
		s.GroundSpeedKts, s.VerticalSpeedFpm, s.TrackDeg,
		s.RangeNM, s.BearingDeg,
		nullIfZero(s.DeltaTimeSeconds), nullIfZero(s.DeltaDistanceNM), nullIfZero(s.ActualSpeedKts),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert sighting: %w", err)
	}

	return true, nil
}

// RecordSnapshot records every aircraft in a snapshot. Returns the number
// of sightings written; the first error stops the batch.
func (r *TrafficRepository) RecordSnapshot(ctx context.Context, snapshot []adsb.Aircraft, now time.Time) (int, error) {
	written := 0
	for _, ac := range snapshot {
		ok, err := r.RecordSighting(ctx, ac, now)
		if err != nil {
			return written, fmt.Errorf("failed to record %s: %w", ac.Address, err)
		}
		if ok {
			written++
		}
	}
	return written, nil
}

// buildSighting computes reference-relative measurements and deltas from
// the previous sighting.
func (r *TrafficRepository) buildSighting(ac adsb.Aircraft, now time.Time, prev *lastSighting) Sighting {
	pos := coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}

	s := Sighting{
		Address:          ac.Address,
		ObservedAt:       now,
		Latitude:         ac.Latitude,
		Longitude:        ac.Longitude,
		AltitudeFt:       sql.NullFloat64{Float64: ac.Altitude, Valid: ac.AltitudeValid},
		GroundSpeedKts:   sql.NullFloat64{Float64: ac.GroundSpeed, Valid: ac.GroundSpeedValid},
		VerticalSpeedFpm: sql.NullFloat64{Float64: ac.VerticalSpeed, Valid: ac.VerticalSpeedValid},
		TrackDeg:         ac.Track,
		RangeNM:          coordinates.DistanceNauticalMiles(r.reference, pos),
		BearingDeg:       coordinates.Bearing(r.reference, pos),
	}

	if prev == nil {
		return s
	}

	timeDelta := now.Sub(prev.ObservedAt).Seconds()
	if timeDelta <= 0 {
		return s
	}

	prevPos := coordinates.Geographic{Latitude: prev.Latitude, Longitude: prev.Longitude}
	distDelta := coordinates.DistanceNauticalMiles(prevPos, pos)

	s.DeltaTimeSeconds = timeDelta
	s.DeltaDistanceNM = distDelta
	s.ActualSpeedKts = distDelta / (timeDelta / 3600.0)
	return s
}

// observationTime is when the report was received, truncated to the
// microsecond precision TIMESTAMPTZ stores so it compares equal once read
// back.
func observationTime(ac adsb.Aircraft, now time.Time) time.Time {
	t := ac.LastUpdated
	if t.IsZero() {
		t = now
	}
	return t.Truncate(time.Microsecond)
}

// shouldRecord reports whether a report observed at observedAt adds to the
// stored history. A report that is not newer than the previous sighting
// was already stored by an earlier snapshot.
func shouldRecord(ac adsb.Aircraft, observedAt time.Time, prev *lastSighting) bool {
	if prev == nil {
		return true
	}
	if !observedAt.After(prev.ObservedAt) {
		return false
	}
	return !sightingsEqual(ac, *prev)
}

// sightingsEqual checks if a report matches the previous stored sighting.
// This prevents storing redundant history for stationary aircraft.
func sightingsEqual(current adsb.Aircraft, prev lastSighting) bool {
	// Position tolerance: 0.000001 degrees is about 0.1 meters
	const positionTolerance = 0.000001
	const altitudeTolerance = 1.0
	// Consider stationary below 1 knot
	const speedThreshold = 1.0

	latChanged := math.Abs(current.Latitude-prev.Latitude) > positionTolerance
	lonChanged := math.Abs(current.Longitude-prev.Longitude) > positionTolerance

	altChanged := current.AltitudeValid != prev.AltitudeFt.Valid ||
		math.Abs(current.Altitude-prev.AltitudeFt.Float64) > altitudeTolerance

	isMoving := (current.GroundSpeedValid && current.GroundSpeed >= speedThreshold) ||
		(prev.GroundSpeedKts.Valid && prev.GroundSpeedKts.Float64 >= speedThreshold)

	return !latChanged && !lonChanged && !altChanged && !isMoving
}

func nullIfZero(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v != 0}
}

// GetSightings returns sightings for an aircraft since a time, oldest first.
func (r *TrafficRepository) GetSightings(ctx context.Context, address string, since time.Time) ([]Sighting, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT address, observed_at, latitude, longitude, altitude_ft,
		        ground_speed_kts, vertical_speed_fpm, track_deg,
		        range_nm, bearing_deg,
		        delta_time_seconds, delta_distance_nm, actual_speed_kts
		 FROM traffic_sightings
		 WHERE address = $1 AND observed_at >= $2
		 ORDER BY observed_at ASC`,
		address, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []Sighting
	for rows.Next() {
		var s Sighting
		var deltaTime, deltaDistance, actualSpeed sql.NullFloat64

		err := rows.Scan(
			&s.Address, &s.ObservedAt, &s.Latitude, &s.Longitude, &s.AltitudeFt,
			&s.GroundSpeedKts, &s.VerticalSpeedFpm, &s.TrackDeg,
			&s.RangeNM, &s.BearingDeg,
			&deltaTime, &deltaDistance, &actualSpeed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}

		s.DeltaTimeSeconds = deltaTime.Float64
		s.DeltaDistanceNM = deltaDistance.Float64
		s.ActualSpeedKts = actualSpeed.Float64

		sightings = append(sightings, s)
	}

	return sightings, rows.Err()
}

// AircraftSummary is the per-aircraft history row.
type AircraftSummary struct {
	Address        string
	Callsign       string
	FirstSeen      time.Time
	LastSeen       time.Time
	SightingCount  int
	ClosestRangeNM sql.NullFloat64
	ClosestAt      sql.NullTime
}

// GetAircraft returns the history summary for an address, or nil if unknown.
func (r *TrafficRepository) GetAircraft(ctx context.Context, address string) (*AircraftSummary, error) {
	var a AircraftSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT address, callsign, first_seen, last_seen, sighting_count,
		        closest_range_nm, closest_at
		 FROM aircraft
		 WHERE address = $1`,
		address,
	).Scan(
		&a.Address, &a.Callsign, &a.FirstSeen, &a.LastSeen, &a.SightingCount,
		&a.ClosestRangeNM, &a.ClosestAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft: %w", err)
	}

	return &a, nil
}

// AverageSpeed calculates average ground speed from sighting deltas.
// Sightings without a delta are ignored. Returns 0 with fewer than two
// sightings.
func AverageSpeed(sightings []Sighting) float64 {
	if len(sightings) < 2 {
		return 0
	}

	var total float64
	count := 0
	for _, s := range sightings {
		if s.ActualSpeedKts > 0 {
			total += s.ActualSpeedKts
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}
