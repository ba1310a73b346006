// Package sim generates synthetic GDL90 traffic for exercising receivers
// without a real device.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/time/rate"

	"github.com/guardianone/adsb-traffic/pkg/coordinates"
	"github.com/guardianone/adsb-traffic/pkg/gdl90"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

// Target is one simulated aircraft.
type Target struct {
	Address          string
	Callsign         string
	Latitude         float64
	Longitude        float64
	AltitudeFt       float64
	GroundSpeedKt    float64
	TrackDeg         float64
	VerticalSpeedFpm float64
}

// Position returns the target's current position.
func (t Target) Position() coordinates.Geographic {
	return coordinates.Geographic{Latitude: t.Latitude, Longitude: t.Longitude}
}

// Report converts the target to a traffic report.
func (t Target) Report() gdl90.TrafficReport {
	return gdl90.TrafficReport{
		Address:            t.Address,
		Callsign:           t.Callsign,
		Latitude:           t.Latitude,
		Longitude:          t.Longitude,
		PositionValid:      true,
		Altitude:           t.AltitudeFt,
		AltitudeValid:      true,
		GroundSpeed:        t.GroundSpeedKt,
		GroundSpeedValid:   true,
		VerticalSpeed:      t.VerticalSpeedFpm,
		VerticalSpeedValid: true,
		Track:              t.TrackDeg,
	}
}

// Scenario is the simulated airspace around ownship.
type Scenario struct {
	Ownship  tracking.Ownship
	Targets  []Target
	GPSValid bool
	Major    uint8
	Minor    uint8
}

// NewScenario places count targets on a ring of ringNM around ownship, each
// flying toward it at staggered altitudes and speeds.
func NewScenario(own tracking.Ownship, count int, ringNM float64) *Scenario {
	s := &Scenario{
		Ownship:  own,
		GPSValid: true,
		Major:    1,
		Minor:    0,
	}

	center := own.Position()
	for i := 0; i < count; i++ {
		bearing := float64(i) * 360.0 / float64(count)
		pos := coordinates.Destination(center, bearing, ringNM*coordinates.MetersPerNauticalMile)

		vs := 0.0
		switch i % 3 {
		case 1:
			vs = 500
		case 2:
			vs = -500
		}

		s.Targets = append(s.Targets, Target{
			Address:          fmt.Sprintf("%06X", 0xAB0000+i),
			Callsign:         fmt.Sprintf("SIM%03d", i+1),
			Latitude:         pos.Latitude,
			Longitude:        pos.Longitude,
			AltitudeFt:       own.AltitudeFt + float64((i%5)-2)*500,
			GroundSpeedKt:    90 + float64(i%4)*30,
			TrackDeg:         coordinates.NormalizeAzimuth(bearing + 180),
			VerticalSpeedFpm: vs,
		})
	}
	return s
}

// Advance moves every target along its track for dt.
func (s *Scenario) Advance(dt time.Duration) {
	secs := dt.Seconds()
	if secs <= 0 {
		return
	}
	for i := range s.Targets {
		t := &s.Targets[i]
		meters := t.GroundSpeedKt / 3600.0 * secs * coordinates.MetersPerNauticalMile
		pos := coordinates.Destination(t.Position(), t.TrackDeg, meters)
		t.Latitude = pos.Latitude
		t.Longitude = pos.Longitude
		t.AltitudeFt += t.VerticalSpeedFpm / 60.0 * secs
	}
}

// Frames returns one framed heartbeat, the ownship report and one traffic
// report per target.
func (s *Scenario) Frames() [][]byte {
	frames := make([][]byte, 0, len(s.Targets)+2)
	frames = append(frames, gdl90.Frame(gdl90.EncodeHeartbeat(gdl90.Heartbeat{
		GPSValid: s.GPSValid,
		Major:    s.Major,
		Minor:    s.Minor,
	})))

	frames = append(frames, gdl90.Frame(gdl90.EncodeOwnship(gdl90.OwnshipReport{
		TrafficReport: gdl90.TrafficReport{
			Address:       "F00000",
			Latitude:      s.Ownship.Latitude,
			Longitude:     s.Ownship.Longitude,
			PositionValid: true,
			Altitude:      s.Ownship.AltitudeFt,
			AltitudeValid: true,
		},
	})))

	for _, t := range s.Targets {
		frames = append(frames, gdl90.Frame(gdl90.EncodeTraffic(t.Report())))
	}
	return frames
}

// FrameSender transmits one framed datagram.
type FrameSender func(frame []byte) error

// Config controls a simulation run.
type Config struct {
	// Interval between scenario updates.
	Interval time.Duration

	// FramesPerSecond caps the transmit rate; zero means unlimited.
	FramesPerSecond float64
}

// Run advances the scenario every interval and sends its frames until ctx
// is done. A send error stops the run.
func Run(ctx context.Context, logger log.Logger, s *Scenario, cfg Config, send FrameSender) error {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "component", "sim")
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	limit := rate.Inf
	if cfg.FramesPerSecond > 0 {
		limit = rate.Limit(cfg.FramesPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		frames := s.Frames()
		for _, frame := range frames {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := send(frame); err != nil {
				return fmt.Errorf("failed to send frame: %w", err)
			}
		}
		level.Debug(logger).Log("msg", "frames sent", "count", len(frames))

		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}
	}
}
