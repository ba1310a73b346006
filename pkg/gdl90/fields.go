package gdl90

import "math"

// Field scaling and sentinels. Every sentinel check lives here so call
// sites only ever see (value, ok).
const (
	// LatLonResolution is degrees per LSB of the 24-bit position fields.
	LatLonResolution = 180.0 / (1 << 23)

	// TrackResolution is degrees per LSB of the 8-bit track field.
	TrackResolution = 360.0 / 256.0

	// AltitudeResolution is feet per LSB of the 12-bit altitude field.
	AltitudeResolution = 25.0

	// VerticalSpeedResolution is feet per minute per LSB.
	VerticalSpeedResolution = 64.0

	// AltitudeInvalid marks an unknown altitude.
	AltitudeInvalid = 0xFFF

	// GroundSpeedInvalid marks an unknown ground speed.
	GroundSpeedInvalid = 0xFFF

	// VerticalSpeedInvalid marks an unknown vertical speed.
	VerticalSpeedInvalid = 0x80
)

// SignExtend24 interprets the low 24 bits of raw as a two's-complement value.
func SignExtend24(raw uint32) int32 {
	v := int32(raw & 0xFFFFFF)
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// DecodeLatLon converts a 24-bit signed fixed-point angle to degrees.
func DecodeLatLon(raw uint32) float64 {
	return float64(SignExtend24(raw)) * LatLonResolution
}

// DecodePosition decodes both angles. ok is false when the receiver sent
// the all-zero "no position" pattern or the latitude is out of range.
func DecodePosition(rawLat, rawLon uint32) (lat, lon float64, ok bool) {
	if rawLat&0xFFFFFF == 0 && rawLon&0xFFFFFF == 0 {
		return 0, 0, false
	}
	lat = DecodeLatLon(rawLat)
	lon = DecodeLatLon(rawLon)
	if lat > 90 || lat < -90 {
		return 0, 0, false
	}
	return lat, lon, true
}

// DecodeAltitude converts the 12-bit altitude field to feet.
func DecodeAltitude(raw uint16) (float64, bool) {
	raw &= 0xFFF
	if raw == AltitudeInvalid {
		return 0, false
	}
	return float64(raw) * AltitudeResolution, true
}

// DecodeGroundSpeed converts the 12-bit speed field to knots.
func DecodeGroundSpeed(raw uint16) (float64, bool) {
	raw &= 0xFFF
	if raw == GroundSpeedInvalid {
		return 0, false
	}
	return float64(raw), true
}

// DecodeVerticalSpeed converts the signed vertical speed byte to feet per minute.
func DecodeVerticalSpeed(raw byte) (float64, bool) {
	if raw == VerticalSpeedInvalid {
		return 0, false
	}
	return float64(int8(raw)) * VerticalSpeedResolution, true
}

// DecodeTrack converts the 8-bit track field to degrees.
func DecodeTrack(raw byte) float64 {
	return float64(raw) * TrackResolution
}

// EncodeLatLon converts degrees to the 24-bit fixed-point representation.
func EncodeLatLon(deg float64) uint32 {
	v := int32(math.Round(deg / LatLonResolution))
	return uint32(v) & 0xFFFFFF
}

// EncodeAltitude converts feet to the 12-bit field, clamping to the
// representable range. Invalid altitudes encode as the sentinel.
func EncodeAltitude(feet float64, valid bool) uint16 {
	if !valid {
		return AltitudeInvalid
	}
	v := math.Round(feet / AltitudeResolution)
	return uint16(clamp(v, 0, AltitudeInvalid-1))
}

// EncodeGroundSpeed converts knots to the 12-bit field.
func EncodeGroundSpeed(knots float64, valid bool) uint16 {
	if !valid {
		return GroundSpeedInvalid
	}
	return uint16(clamp(math.Round(knots), 0, GroundSpeedInvalid-1))
}

// EncodeVerticalSpeed converts feet per minute to the signed byte.
func EncodeVerticalSpeed(fpm float64, valid bool) byte {
	if !valid {
		return VerticalSpeedInvalid
	}
	v := int8(clamp(math.Round(fpm/VerticalSpeedResolution), -127, 127))
	return byte(v)
}

// EncodeTrack converts degrees to the 8-bit track field.
func EncodeTrack(deg float64) byte {
	v := int(math.Round(deg/TrackResolution)) % 256
	if v < 0 {
		v += 256
	}
	return byte(v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
