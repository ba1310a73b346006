package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log/level"

	"github.com/guardianone/adsb-traffic/internal/db"
)

// SightingResponse is one stored observation.
type SightingResponse struct {
	ObservedAt     time.Time `json:"observedAt"`
	Latitude       float64   `json:"lat"`
	Longitude      float64   `json:"lon"`
	Altitude       *float64  `json:"altitude"`
	GroundSpeed    *float64  `json:"speed"`
	VerticalSpeed  *float64  `json:"verticalSpeed"`
	Track          float64   `json:"track"`
	RangeNM        float64   `json:"rangeNm"`
	BearingDeg     float64   `json:"bearing"`
	ActualSpeedKts *float64  `json:"actualSpeed"`
}

// HistoryResponse is the stored history of one aircraft.
type HistoryResponse struct {
	Address         string             `json:"address"`
	Callsign        string             `json:"callsign"`
	FirstSeen       time.Time          `json:"firstSeen"`
	LastSeen        time.Time          `json:"lastSeen"`
	SightingCount   int                `json:"sightingCount"`
	ClosestRangeNM  *float64           `json:"closestRangeNm"`
	ClosestAt       *time.Time         `json:"closestAt"`
	AverageSpeedKts float64            `json:"averageSpeed"`
	Since           time.Time          `json:"since"`
	Sightings       []SightingResponse `json:"sightings"`
}

func nullable(v sql.NullFloat64) *float64 {
	return optional(v.Float64, v.Valid)
}

func toSightingResponses(sightings []db.Sighting) []SightingResponse {
	out := make([]SightingResponse, len(sightings))
	for i, s := range sightings {
		out[i] = SightingResponse{
			ObservedAt:     s.ObservedAt,
			Latitude:       s.Latitude,
			Longitude:      s.Longitude,
			Altitude:       nullable(s.AltitudeFt),
			GroundSpeed:    nullable(s.GroundSpeedKts),
			VerticalSpeed:  nullable(s.VerticalSpeedFpm),
			Track:          s.TrackDeg,
			RangeNM:        s.RangeNM,
			BearingDeg:     s.BearingDeg,
			ActualSpeedKts: optional(s.ActualSpeedKts, s.ActualSpeedKts > 0),
		}
	}
	return out
}

// handleGetTrafficHistory returns the stored summary and sightings of one
// aircraft over the last ?hours (default: recorder retention).
func (s *Server) handleGetTrafficHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "history not available")
		return
	}

	address := chi.URLParam(r, "address")

	hours := float64(s.cfg.Recorder.RetentionHours)
	if q := r.URL.Query().Get("hours"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v <= 0 {
			respondError(w, http.StatusBadRequest, "invalid hours")
			return
		}
		hours = v
	}
	since := s.now().Add(-time.Duration(hours * float64(time.Hour)))

	summary, err := s.history.GetAircraft(r.Context(), address)
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to load aircraft history", "address", address, "err", err)
		respondError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if summary == nil {
		respondError(w, http.StatusNotFound, "no history for aircraft")
		return
	}

	sightings, err := s.history.GetSightings(r.Context(), address, since)
	if err != nil {
		level.Error(s.logger).Log("msg", "failed to load sightings", "address", address, "err", err)
		respondError(w, http.StatusInternalServerError, "history query failed")
		return
	}

	resp := HistoryResponse{
		Address:         summary.Address,
		Callsign:        summary.Callsign,
		FirstSeen:       summary.FirstSeen,
		LastSeen:        summary.LastSeen,
		SightingCount:   summary.SightingCount,
		ClosestRangeNM:  nullable(summary.ClosestRangeNM),
		AverageSpeedKts: db.AverageSpeed(sightings),
		Since:           since,
		Sightings:       toSightingResponses(sightings),
	}
	if summary.ClosestAt.Valid {
		closest := summary.ClosestAt.Time
		resp.ClosestAt = &closest
	}

	respondJSON(w, http.StatusOK, resp)
}
