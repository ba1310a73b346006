// Package tracking turns a traffic snapshot into proximity alerts and short
// term trajectory predictions relative to ownship.
package tracking

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/coordinates"
)

// Default proximity thresholds.
const (
	DefaultHorizontalNM = 2.0
	DefaultVerticalFt   = 1000.0
)

// Ownship is the caller's own aircraft position at the moment of evaluation.
type Ownship struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	AltitudeFt float64 `json:"altitude_ft"`
}

// Position returns the ownship horizontal position.
func (o Ownship) Position() coordinates.Geographic {
	return coordinates.Geographic{Latitude: o.Latitude, Longitude: o.Longitude}
}

// AlertThresholds bounds the proximity volume around ownship.
// Both limits are inclusive.
type AlertThresholds struct {
	HorizontalNM float64 `json:"horizontal_nm" yaml:"horizontal_nm"`
	VerticalFt   float64 `json:"vertical_ft" yaml:"vertical_ft"`
}

// DefaultAlertThresholds returns 2.0 NM and 1000 ft.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		HorizontalNM: DefaultHorizontalNM,
		VerticalFt:   DefaultVerticalFt,
	}
}

func (t AlertThresholds) withDefaults() AlertThresholds {
	if t.HorizontalNM <= 0 {
		t.HorizontalNM = DefaultHorizontalNM
	}
	if t.VerticalFt <= 0 {
		t.VerticalFt = DefaultVerticalFt
	}
	return t
}

// AlertCandidate is an aircraft inside the proximity volume.
type AlertCandidate struct {
	Aircraft adsb.Aircraft

	// DistanceNM is the great-circle distance from ownship
	DistanceNM float64

	// VerticalSeparationFt is aircraft altitude minus ownship altitude
	// (positive = above)
	VerticalSeparationFt float64

	// BearingDeg is the bearing from ownship to the aircraft
	BearingDeg float64

	// Closure data, valid only when ground speed is known
	Approaching    bool
	ClosestRangeNM float64
	TimeToClosest  time.Duration
}

// AlertCandidates returns the aircraft within thresholds of ownship, nearest
// first. Aircraft without a valid position or altitude are never candidates.
// Zero thresholds fall back to the defaults.
func AlertCandidates(own Ownship, aircraft []adsb.Aircraft, thresholds AlertThresholds) []AlertCandidate {
	thresholds = thresholds.withDefaults()
	ownPos := own.Position()

	candidates := make([]AlertCandidate, 0)
	for _, ac := range aircraft {
		if !ac.PositionValid || !ac.AltitudeValid {
			continue
		}

		pos := coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}
		distance := coordinates.DistanceNauticalMiles(ownPos, pos)
		if distance > thresholds.HorizontalNM {
			continue
		}

		separation := ac.Altitude - own.AltitudeFt
		if math.Abs(separation) > thresholds.VerticalFt {
			continue
		}

		c := AlertCandidate{
			Aircraft:             ac,
			DistanceNM:           distance,
			VerticalSeparationFt: separation,
			BearingDeg:           coordinates.Bearing(ownPos, pos),
			ClosestRangeNM:       distance,
		}
		if ac.GroundSpeedValid && ac.GroundSpeed > 0 {
			c.ClosestRangeNM, c.TimeToClosest, c.Approaching =
				coordinates.EstimateTimeToClosestApproach(ownPos, pos, ac.GroundSpeed, ac.Track)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DistanceNM < candidates[j].DistanceNM
	})
	return candidates
}

// AlertSignaler plays an audible or visual alert. Implementations decide
// their own rate limiting.
type AlertSignaler interface {
	PlayAlertSignal()
}

// Alerter evaluates successive snapshots and signals when traffic newly
// enters the proximity volume.
type Alerter struct {
	thresholds AlertThresholds
	signaler   AlertSignaler

	mu       sync.Mutex
	previous map[string]struct{}
}

// NewAlerter creates an alerter. A nil signaler disables signalling.
func NewAlerter(thresholds AlertThresholds, signaler AlertSignaler) *Alerter {
	return &Alerter{
		thresholds: thresholds.withDefaults(),
		signaler:   signaler,
		previous:   make(map[string]struct{}),
	}
}

// Thresholds returns the effective thresholds.
func (a *Alerter) Thresholds() AlertThresholds {
	return a.thresholds
}

// Evaluate computes alert candidates for the snapshot and plays the alert
// signal once if any candidate address was absent from the previous call.
func (a *Alerter) Evaluate(own Ownship, snapshot []adsb.Aircraft) []AlertCandidate {
	candidates := AlertCandidates(own, snapshot, a.thresholds)

	current := make(map[string]struct{}, len(candidates))
	newTraffic := false

	a.mu.Lock()
	for _, c := range candidates {
		current[c.Aircraft.Address] = struct{}{}
		if _, seen := a.previous[c.Aircraft.Address]; !seen {
			newTraffic = true
		}
	}
	a.previous = current
	a.mu.Unlock()

	if newTraffic && a.signaler != nil {
		a.signaler.PlayAlertSignal()
	}
	return candidates
}

// Reset forgets the previous evaluation.
func (a *Alerter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.previous = make(map[string]struct{})
}
