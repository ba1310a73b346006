// Package gdl90 decodes and encodes the GDL90 datagrams broadcast by portable
// and panel-mount ADS-B receivers.
//
// Decoding never fails loudly: a noisy link routinely produces short or
// corrupt frames, so anything that cannot be decoded simply yields no message.
package gdl90

import (
	"fmt"
	"strings"
)

// FlagByte delimits a GDL90 frame on the wire.
const FlagByte = 0x7E

// MessageID is the first payload byte of a GDL90 message.
type MessageID byte

// Message IDs understood (or deliberately ignored) by this package.
const (
	MsgHeartbeat   MessageID = 0x00
	MsgUplink      MessageID = 0x07 // FIS-B uplink, not handled
	MsgBasicReport MessageID = 0x08 // FIS-B/basic report, not handled
	MsgOwnship     MessageID = 0x0A
	MsgTraffic     MessageID = 0x14
)

// Minimum payload lengths (message ID included).
const (
	HeartbeatLen = 7
	ReportLen    = 28
)

func (id MessageID) String() string {
	switch id {
	case MsgHeartbeat:
		return "heartbeat"
	case MsgUplink:
		return "uplink"
	case MsgBasicReport:
		return "basic-report"
	case MsgOwnship:
		return "ownship"
	case MsgTraffic:
		return "traffic"
	default:
		return fmt.Sprintf("0x%02X", byte(id))
	}
}

// Message is a decoded GDL90 message.
type Message interface {
	ID() MessageID
}

// Heartbeat carries receiver health.
type Heartbeat struct {
	// Status is the raw 16-bit status field (bytes 1-2).
	Status uint16

	// GPSValid is bit 15 of Status.
	GPSValid bool

	// Major and Minor are bytes 3 and 4.
	Major uint8
	Minor uint8
}

// ID implements Message.
func (Heartbeat) ID() MessageID { return MsgHeartbeat }

// Version renders the firmware version as "major.minor".
func (h Heartbeat) Version() string {
	return fmt.Sprintf("%d.%d", h.Major, h.Minor)
}

// TrafficReport is a decoded traffic target (message 0x14).
type TrafficReport struct {
	// Address is the ICAO address as 6 uppercase hex digits.
	Address string

	// Callsign is trimmed; blank callsigns fall back to Address.
	Callsign string

	Latitude      float64
	Longitude     float64
	PositionValid bool

	// Altitude is pressure altitude in feet.
	Altitude      float64
	AltitudeValid bool

	// GroundSpeed in knots.
	GroundSpeed      float64
	GroundSpeedValid bool

	// VerticalSpeed in feet per minute.
	VerticalSpeed      float64
	VerticalSpeedValid bool

	// Track in degrees true.
	Track float64
}

// ID implements Message.
func (TrafficReport) ID() MessageID { return MsgTraffic }

// OwnshipReport has the traffic report layout and describes the receiver's
// own GPS position (message 0x0A).
type OwnshipReport struct {
	TrafficReport
}

// ID implements Message.
func (OwnshipReport) ID() MessageID { return MsgOwnship }

// Unframe strips one leading and one trailing flag byte if present.
// It returns nil when nothing but delimiters remain.
func Unframe(datagram []byte) []byte {
	payload := datagram
	if len(payload) > 0 && payload[0] == FlagByte {
		payload = payload[1:]
	}
	if len(payload) > 0 && payload[len(payload)-1] == FlagByte {
		payload = payload[:len(payload)-1]
	}
	if len(payload) == 0 {
		return nil
	}
	return payload
}

// Decode converts one datagram into zero or one message.
// The boolean is false for short, malformed, unsupported or weather frames.
func Decode(datagram []byte) (Message, bool) {
	if len(datagram) < 2 {
		return nil, false
	}

	payload := Unframe(datagram)
	if payload == nil {
		return nil, false
	}

	switch MessageID(payload[0]) {
	case MsgHeartbeat:
		hb, ok := decodeHeartbeat(payload)
		if !ok {
			return nil, false
		}
		return hb, true

	case MsgTraffic:
		r, ok := decodeReport(payload)
		if !ok {
			return nil, false
		}
		return r, true

	case MsgOwnship:
		r, ok := decodeReport(payload)
		if !ok {
			return nil, false
		}
		return OwnshipReport{TrafficReport: r}, true

	case MsgUplink, MsgBasicReport:
		// Weather uplinks are not interpreted.
		return nil, false

	default:
		return nil, false
	}
}

func decodeHeartbeat(p []byte) (Heartbeat, bool) {
	if len(p) < HeartbeatLen {
		return Heartbeat{}, false
	}

	status := uint16(p[1])<<8 | uint16(p[2])
	return Heartbeat{
		Status:   status,
		GPSValid: status&0x8000 != 0,
		Major:    p[3],
		Minor:    p[4],
	}, true
}

// decodeReport decodes the shared traffic/ownship layout:
//
//	0      message ID
//	2-4    address
//	5-7    latitude  (24-bit signed)
//	8-10   longitude (24-bit signed)
//	11-12  altitude  (12 bits: byte 11, high nibble of 12)
//	13-14  speed     (12 bits: byte 13, high nibble of 14)
//	15     vertical speed (signed)
//	16     track
//	17-24  callsign
func decodeReport(p []byte) (TrafficReport, bool) {
	if len(p) < ReportLen {
		return TrafficReport{}, false
	}

	rawAddr := uint32(p[2])<<16 | uint32(p[3])<<8 | uint32(p[4])
	address := FormatAddress(rawAddr)

	rawLat := uint32(p[5])<<16 | uint32(p[6])<<8 | uint32(p[7])
	rawLon := uint32(p[8])<<16 | uint32(p[9])<<8 | uint32(p[10])
	lat, lon, posOK := DecodePosition(rawLat, rawLon)

	rawAlt := uint16(p[11])<<4 | uint16(p[12]>>4)
	alt, altOK := DecodeAltitude(rawAlt)

	rawSpeed := uint16(p[13])<<4 | uint16(p[14]>>4)
	speed, speedOK := DecodeGroundSpeed(rawSpeed)

	vs, vsOK := DecodeVerticalSpeed(p[15])

	return TrafficReport{
		Address:            address,
		Callsign:           DecodeCallsign(p[17:25], address),
		Latitude:           lat,
		Longitude:          lon,
		PositionValid:      posOK,
		Altitude:           alt,
		AltitudeValid:      altOK,
		GroundSpeed:        speed,
		GroundSpeedValid:   speedOK,
		VerticalSpeed:      vs,
		VerticalSpeedValid: vsOK,
		Track:              DecodeTrack(p[16]),
	}, true
}

// FormatAddress renders a 24-bit address as 6 uppercase hex digits.
func FormatAddress(raw uint32) string {
	return fmt.Sprintf("%06X", raw&0xFFFFFF)
}

// DecodeCallsign trims an 8-byte ASCII callsign field. Blank or non-ASCII
// fields fall back to the address.
func DecodeCallsign(field []byte, address string) string {
	for _, b := range field {
		if b > 0x7F {
			return address
		}
	}
	cs := strings.Trim(string(field), " \t\r\n\x00")
	if cs == "" {
		return address
	}
	return cs
}
