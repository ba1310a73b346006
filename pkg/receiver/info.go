package receiver

import (
	"time"

	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/gdl90"
)

// Info is the most recent heartbeat state. The zero value means no
// heartbeat has been received in this session.
type Info struct {
	FirmwareVersion string    `json:"firmware_version"`
	GPSValid        bool      `json:"gps_valid"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Known reports whether a heartbeat has been received.
func (i Info) Known() bool {
	return !i.UpdatedAt.IsZero()
}

func infoFromHeartbeat(hb gdl90.Heartbeat, now time.Time) Info {
	return Info{
		FirmwareVersion: hb.Version(),
		GPSValid:        hb.GPSValid,
		UpdatedAt:       now,
	}
}

// Stats counts datagrams handled by the receive loop. Counters reset on
// each Connect. Tracked is the live table size when the stats were read.
type Stats struct {
	Datagrams  uint64 `json:"datagrams"`
	Decoded    uint64 `json:"decoded"`
	Dropped    uint64 `json:"dropped"`
	Filtered   uint64 `json:"filtered"`
	Heartbeats uint64 `json:"heartbeats"`
	Traffic    uint64 `json:"traffic"`
	Ownship    uint64 `json:"ownship"`
	Tracked    int    `json:"tracked"`
}

// aircraftFromReport converts a decoded traffic report into a table entry
// stamped with the receive time.
func aircraftFromReport(r gdl90.TrafficReport, now time.Time) adsb.Aircraft {
	return adsb.Aircraft{
		Address:            r.Address,
		Callsign:           r.Callsign,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		PositionValid:      r.PositionValid,
		Altitude:           r.Altitude,
		AltitudeValid:      r.AltitudeValid,
		GroundSpeed:        r.GroundSpeed,
		GroundSpeedValid:   r.GroundSpeedValid,
		VerticalSpeed:      r.VerticalSpeed,
		VerticalSpeedValid: r.VerticalSpeedValid,
		Track:              r.Track,
		LastUpdated:        now,
	}
}
