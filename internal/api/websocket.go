package api

import (
	"net/http"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const writeWait = 5 * time.Second

// TrafficUpdate is pushed to WebSocket clients on every tick.
type TrafficUpdate struct {
	Type     string             `json:"type"`
	Time     time.Time          `json:"time"`
	Status   StatusResponse     `json:"status"`
	Aircraft []AircraftResponse `json:"aircraft"`
}

func (s *Server) trafficUpdate() TrafficUpdate {
	now := s.now()
	return TrafficUpdate{
		Type:     "traffic",
		Time:     now,
		Status:   s.statusResponse(),
		Aircraft: s.toAircraftResponses(s.receiver.Aircraft(), now),
	}
}

func (s *Server) pushInterval() time.Duration {
	if s.cfg.Server.PushIntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.cfg.Server.PushIntervalSeconds) * time.Second
}

// handleWebSocket pushes a traffic snapshot immediately and then on every
// push interval until the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		level.Warn(s.logger).Log("msg", "websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	level.Info(s.logger).Log("msg", "websocket client connected", "remote", r.RemoteAddr)

	// Reader goroutine notices client close; inbound messages are ignored
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval())
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(s.trafficUpdate()); err != nil {
			level.Debug(s.logger).Log("msg", "websocket write failed", "err", err)
			return
		}

		select {
		case <-closed:
			level.Info(s.logger).Log("msg", "websocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
