package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log/level"
	"github.com/gocarina/gocsv"

	"github.com/guardianone/adsb-traffic/internal/registry"
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

// AircraftResponse is the JSON form of a tracked aircraft. Unknown values
// are null.
type AircraftResponse struct {
	Address       string    `json:"address"`
	Callsign      string    `json:"callsign"`
	Latitude      *float64  `json:"lat"`
	Longitude     *float64  `json:"lon"`
	Altitude      *float64  `json:"altitude"`
	GroundSpeed   *float64  `json:"speed"`
	VerticalSpeed *float64  `json:"verticalSpeed"`
	Track         float64   `json:"track"`
	LastUpdated   time.Time `json:"lastUpdated"`
	AgeSeconds    float64   `json:"ageSeconds"`

	Registration *registry.Detail `json:"registration,omitempty"`
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func (s *Server) toAircraftResponse(ac adsb.Aircraft, now time.Time) AircraftResponse {
	resp := AircraftResponse{
		Address:       ac.Address,
		Callsign:      ac.DisplayName(),
		Latitude:      optional(ac.Latitude, ac.PositionValid),
		Longitude:     optional(ac.Longitude, ac.PositionValid),
		Altitude:      optional(ac.Altitude, ac.AltitudeValid),
		GroundSpeed:   optional(ac.GroundSpeed, ac.GroundSpeedValid),
		VerticalSpeed: optional(ac.VerticalSpeed, ac.VerticalSpeedValid),
		Track:         ac.Track,
		LastUpdated:   ac.LastUpdated,
		AgeSeconds:    ac.Age(now).Seconds(),
	}
	if s.registry != nil {
		if d, ok := s.registry.Lookup(ac.Address); ok {
			resp.Registration = &d
		}
	}
	return resp
}

func (s *Server) toAircraftResponses(aircraft []adsb.Aircraft, now time.Time) []AircraftResponse {
	out := make([]AircraftResponse, len(aircraft))
	for i, ac := range aircraft {
		out[i] = s.toAircraftResponse(ac, now)
	}
	return out
}

// StatusResponse describes the receiver connection.
type StatusResponse struct {
	Status    receiver.Status `json:"status"`
	Connected bool            `json:"connected"`
	Host      string          `json:"host"`
	Receiver  *receiver.Info  `json:"receiver"`
	Stats     receiver.Stats  `json:"stats"`
}

func (s *Server) statusResponse() StatusResponse {
	status := s.receiver.Status()
	resp := StatusResponse{
		Status:    status,
		Connected: status.IsConnected(),
		Host:      s.receiver.Host(),
		Stats:     s.receiver.Stats(),
	}
	if info := s.receiver.Info(); info.Known() {
		resp.Receiver = &info
	}
	return resp
}

func (s *Server) handleGetTraffic(w http.ResponseWriter, r *http.Request) {
	aircraft := s.receiver.Aircraft()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"aircraft": s.toAircraftResponses(aircraft, s.now()),
		"count":    len(aircraft),
		"status":   s.receiver.Status(),
	})
}

// trafficRow is one line of the CSV export. Unknown values are empty.
type trafficRow struct {
	Address       string `csv:"address"`
	Callsign      string `csv:"callsign"`
	Registration  string `csv:"registration"`
	Latitude      string `csv:"lat"`
	Longitude     string `csv:"lon"`
	Altitude      string `csv:"altitude_ft"`
	GroundSpeed   string `csv:"speed_kt"`
	VerticalSpeed string `csv:"vertical_speed_fpm"`
	Track         string `csv:"track"`
	AgeSeconds    string `csv:"age_s"`
}

func csvValue(v float64, ok bool, prec int) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// handleExportTraffic writes the current table as CSV.
func (s *Server) handleExportTraffic(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	aircraft := s.receiver.Aircraft()

	rows := make([]trafficRow, len(aircraft))
	for i, ac := range aircraft {
		row := trafficRow{
			Address:       ac.Address,
			Callsign:      ac.DisplayName(),
			Latitude:      csvValue(ac.Latitude, ac.PositionValid, 5),
			Longitude:     csvValue(ac.Longitude, ac.PositionValid, 5),
			Altitude:      csvValue(ac.Altitude, ac.AltitudeValid, 0),
			GroundSpeed:   csvValue(ac.GroundSpeed, ac.GroundSpeedValid, 0),
			VerticalSpeed: csvValue(ac.VerticalSpeed, ac.VerticalSpeedValid, 0),
			Track:         csvValue(ac.Track, true, 0),
			AgeSeconds:    csvValue(ac.Age(now).Seconds(), true, 1),
		}
		if s.registry != nil {
			if d, ok := s.registry.Lookup(ac.Address); ok {
				row.Registration = d.NNumber
			}
		}
		rows[i] = row
	}

	body, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		level.Error(s.logger).Log("msg", "csv export failed", "err", err)
		respondError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="traffic.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// PredictionResponse is a projected position.
type PredictionResponse struct {
	Seconds   float64  `json:"seconds"`
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Altitude  *float64 `json:"altitude"`
}

func (s *Server) handleGetTrafficByAddress(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	ac, ok := s.receiver.AircraftByAddress(address)
	if !ok {
		respondError(w, http.StatusNotFound, "aircraft not found")
		return
	}

	seconds := s.cfg.Alerts.PredictionSeconds
	if q := r.URL.Query().Get("seconds"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, "invalid seconds")
			return
		}
		seconds = v
	}

	resp := map[string]interface{}{
		"aircraft": s.toAircraftResponse(ac, s.now()),
	}
	if ac.PositionValid {
		pos := tracking.PredictedPosition(ac, seconds)
		alt, altOK := tracking.PredictedAltitude(ac, seconds)
		resp["predicted"] = PredictionResponse{
			Seconds:   seconds,
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Altitude:  optional(alt, altOK),
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.statusResponse())
}

// CandidateResponse is one proximity alert candidate.
type CandidateResponse struct {
	Aircraft             AircraftResponse `json:"aircraft"`
	DistanceNM           float64          `json:"distanceNM"`
	VerticalSeparationFt float64          `json:"verticalSeparationFt"`
	BearingDeg           float64          `json:"bearing"`
	Approaching          bool             `json:"approaching"`
	ClosestRangeNM       float64          `json:"closestRangeNM"`
	TimeToClosestSeconds float64          `json:"timeToClosestSeconds"`
}

// handleAlerts evaluates traffic against the ownship in the request body.
// An empty body uses the configured ownship.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	own := s.cfg.Ownship.Position()
	if err := json.NewDecoder(r.Body).Decode(&own); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if own.Latitude < -90 || own.Latitude > 90 || own.Longitude < -180 || own.Longitude > 180 {
		respondError(w, http.StatusBadRequest, "ownship position out of range")
		return
	}

	now := s.now()
	candidates := tracking.AlertCandidates(own, s.receiver.Aircraft(), s.cfg.Alerts.Thresholds())

	out := make([]CandidateResponse, len(candidates))
	for i, c := range candidates {
		out[i] = CandidateResponse{
			Aircraft:             s.toAircraftResponse(c.Aircraft, now),
			DistanceNM:           c.DistanceNM,
			VerticalSeparationFt: c.VerticalSeparationFt,
			BearingDeg:           c.BearingDeg,
			Approaching:          c.Approaching,
			ClosestRangeNM:       c.ClosestRangeNM,
			TimeToClosestSeconds: c.TimeToClosest.Seconds(),
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ownship":    own,
		"candidates": out,
		"count":      len(out),
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host string `json:"host"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.receiver.Connect(r.Context(), req.Host); err != nil {
		level.Error(s.logger).Log("msg", "connect request failed", "host", req.Host, "err", err)
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":  err.Error(),
			"status": s.statusResponse(),
		})
		return
	}

	respondJSON(w, http.StatusOK, s.statusResponse())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.receiver.Disconnect()
	respondJSON(w, http.StatusOK, s.statusResponse())
}
