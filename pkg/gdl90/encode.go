package gdl90

import (
	"strconv"
	"strings"
)

// Frame wraps a payload in leading and trailing flag bytes.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, FlagByte)
	out = append(out, payload...)
	return append(out, FlagByte)
}

// EncodeHeartbeat builds a heartbeat payload. The GPS valid bit in Status
// is forced to match h.GPSValid.
func EncodeHeartbeat(h Heartbeat) []byte {
	status := h.Status &^ 0x8000
	if h.GPSValid {
		status |= 0x8000
	}

	msg := make([]byte, HeartbeatLen)
	msg[0] = byte(MsgHeartbeat)
	msg[1] = byte(status >> 8)
	msg[2] = byte(status)
	msg[3] = h.Major
	msg[4] = h.Minor
	return msg
}

// EncodeTraffic builds a traffic report payload with the layout Decode reads.
func EncodeTraffic(r TrafficReport) []byte {
	return encodeReport(MsgTraffic, r)
}

// EncodeOwnship builds an ownship report payload.
func EncodeOwnship(r OwnshipReport) []byte {
	return encodeReport(MsgOwnship, r.TrafficReport)
}

func encodeReport(id MessageID, r TrafficReport) []byte {
	msg := make([]byte, ReportLen)
	msg[0] = byte(id)

	addr, _ := ParseAddress(r.Address)
	msg[2] = byte(addr >> 16)
	msg[3] = byte(addr >> 8)
	msg[4] = byte(addr)

	if r.PositionValid {
		lat := EncodeLatLon(r.Latitude)
		msg[5], msg[6], msg[7] = byte(lat>>16), byte(lat>>8), byte(lat)

		lon := EncodeLatLon(r.Longitude)
		msg[8], msg[9], msg[10] = byte(lon>>16), byte(lon>>8), byte(lon)
	}

	alt := EncodeAltitude(r.Altitude, r.AltitudeValid)
	msg[11] = byte(alt >> 4)
	msg[12] = byte(alt&0x00F) << 4

	spd := EncodeGroundSpeed(r.GroundSpeed, r.GroundSpeedValid)
	msg[13] = byte(spd >> 4)
	msg[14] = byte(spd&0x00F) << 4

	msg[15] = EncodeVerticalSpeed(r.VerticalSpeed, r.VerticalSpeedValid)
	msg[16] = EncodeTrack(r.Track)

	copy(msg[17:25], padCallsign(r.Callsign))
	return msg
}

// ParseAddress parses a hex ICAO address such as "A1B2C3".
func ParseAddress(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 16, 24)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func padCallsign(cs string) []byte {
	out := []byte("        ")
	copy(out, cs)
	return out
}
