// Package receiver connects to a GDL90 traffic receiver over UDP, decodes
// its datagrams and maintains the live traffic table and receiver status.
package receiver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/gdl90"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
	"github.com/guardianone/adsb-traffic/pkg/traffic"
)

const (
	// DefaultHost is the address portable receivers use on their own Wi-Fi.
	DefaultHost = "192.168.10.1"

	// DefaultPort is the standard GDL90 UDP port.
	DefaultPort = 4000

	// maxDatagram comfortably holds any GDL90 frame.
	maxDatagram = 2048

	// resolveTimeout bounds the receiver host lookup in Connect.
	resolveTimeout = 5 * time.Second
)

// Config configures a Receiver.
type Config struct {
	// Host is the receiver address used when Connect is given "".
	Host string

	// Port is the UDP port to listen on.
	Port int

	// StaleAfter is the traffic staleness window (default 60s).
	StaleAfter time.Duration

	// Thresholds are used by Receiver.AlertCandidates.
	Thresholds tracking.AlertThresholds

	// Dialer opens the socket (default UDPDialer).
	Dialer Dialer

	// Clock stamps reports and drives eviction (default time.Now).
	Clock traffic.Clock

	// Lookup resolves receiver host names (default net.DefaultResolver).
	Lookup LookupFunc
}

// DefaultConfig returns the standard receiver settings.
func DefaultConfig() Config {
	return Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		StaleAfter: traffic.DefaultStaleAfter,
		Thresholds: tracking.DefaultAlertThresholds(),
	}
}

// session is one Connect..Disconnect lifetime.
type session struct {
	gen    uint64
	host   string
	conn   net.PacketConn
	source net.IP
	done   chan struct{}
}

// accepts reports whether a datagram from addr belongs to this session.
// Loopback senders are always accepted so a local simulator is heard with
// the receiver's usual address configured.
func (s *session) accepts(addr net.Addr) bool {
	if s.source == nil {
		return true
	}
	ip := sourceIP(addr)
	if ip == nil {
		return false
	}
	return ip.Equal(s.source) || ip.IsLoopback()
}

// Receiver owns one connection to a GDL90 receiver and the traffic heard
// through it. All methods are safe for concurrent use.
type Receiver struct {
	logger log.Logger
	config Config
	table  *traffic.Table

	// opMu serializes Connect and Disconnect.
	opMu sync.Mutex

	mu      sync.Mutex
	gen     uint64
	current *session
	status  Status
	info    Info
	stats   Stats
}

// New creates a disconnected receiver.
func New(logger log.Logger, cfg Config) *Receiver {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = traffic.DefaultStaleAfter
	}
	if cfg.Dialer == nil {
		cfg.Dialer = UDPDialer{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Lookup == nil {
		cfg.Lookup = net.DefaultResolver.LookupIPAddr
	}

	return &Receiver{
		logger: log.With(logger, "component", "receiver"),
		config: cfg,
		table:  traffic.NewTable(cfg.StaleAfter, cfg.Clock),
		status: Status{State: StateDisconnected},
	}
}

// Connect closes any existing session and opens a new one to host (the
// configured host when empty). On failure the status becomes Failed and
// the error is returned.
//
// The host is resolved before the current session is touched, so a slow
// lookup never blocks Disconnect.
func (r *Receiver) Connect(ctx context.Context, host string) error {
	if host == "" {
		host = r.config.Host
	}

	lookupCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	source, resolveErr := resolveSource(lookupCtx, r.config.Lookup, host)
	cancel()

	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.disconnect()

	r.mu.Lock()
	r.transitionLocked(EventConnect, "")
	r.gen++
	gen := r.gen
	r.stats = Stats{}
	r.mu.Unlock()

	level.Info(r.logger).Log("msg", "connecting", "host", host, "port", r.config.Port)

	if resolveErr != nil {
		return r.failOpen(gen, resolveErr)
	}

	conn, err := r.config.Dialer.ListenPacket(ctx, host, r.config.Port)
	if err != nil {
		return r.failOpen(gen, err)
	}

	s := &session{
		gen:    gen,
		host:   host,
		conn:   conn,
		source: source,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.current = s
	r.transitionLocked(EventOpened, "")
	r.mu.Unlock()

	go r.receiveLoop(s)
	return nil
}

func (r *Receiver) failOpen(gen uint64, err error) error {
	r.mu.Lock()
	if r.gen == gen {
		r.transitionLocked(EventError, err.Error())
	}
	r.mu.Unlock()

	level.Error(r.logger).Log("msg", "failed to open receiver session", "err", err)
	return fmt.Errorf("failed to connect to receiver: %w", err)
}

// Disconnect closes the session, clears traffic and receiver info, and sets
// the status to Disconnected. Calling it when not connected is harmless.
func (r *Receiver) Disconnect() {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.disconnect()
}

func (r *Receiver) disconnect() {
	r.mu.Lock()
	s := r.current
	r.current = nil
	r.gen++
	r.table.Clear()
	r.info = Info{}
	wasDisconnected := r.status.State == StateDisconnected
	r.transitionLocked(EventDisconnect, "")
	r.mu.Unlock()

	if s != nil {
		s.conn.Close()
		<-s.done
	}
	if !wasDisconnected {
		level.Info(r.logger).Log("msg", "disconnected")
	}
}

// Close implements adsb.Source.
func (r *Receiver) Close() error {
	r.Disconnect()
	return nil
}

func (r *Receiver) receiveLoop(s *session) {
	defer close(s.done)

	level.Debug(r.logger).Log("msg", "receive loop started", "session", s.gen)

	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			r.receiveFailed(s, err)
			return
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		r.handleDatagram(s, datagram, addr)
	}
}

// receiveFailed marks a still-current session as failed. Errors after the
// session was replaced or disconnected are expected and ignored.
func (r *Receiver) receiveFailed(s *session, err error) {
	r.mu.Lock()
	if r.gen != s.gen {
		r.mu.Unlock()
		level.Debug(r.logger).Log("msg", "receive loop stopped", "session", s.gen)
		return
	}
	r.current = nil
	r.transitionLocked(EventError, err.Error())
	r.mu.Unlock()

	s.conn.Close()
	level.Error(r.logger).Log("msg", "receive failed", "host", s.host, "err", err)
}

// handleDatagram decodes one datagram and applies it if the session is
// still current.
func (r *Receiver) handleDatagram(s *session, datagram []byte, from net.Addr) {
	msg, ok := gdl90.Decode(datagram)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen != s.gen {
		return
	}

	r.stats.Datagrams++

	if !s.accepts(from) {
		r.stats.Filtered++
		return
	}

	if !ok {
		r.stats.Dropped++
		return
	}
	r.stats.Decoded++

	now := r.config.Clock()
	switch m := msg.(type) {
	case gdl90.Heartbeat:
		r.stats.Heartbeats++
		r.info = infoFromHeartbeat(m, now)
	case gdl90.TrafficReport:
		r.stats.Traffic++
		r.table.Upsert(aircraftFromReport(m, now))
	case gdl90.OwnshipReport:
		r.stats.Ownship++
		level.Debug(r.logger).Log("msg", "ownship report ignored", "address", m.Address)
	}
}

// transitionLocked applies an event to the status. Rejected transitions are
// logged and leave the status unchanged. Caller holds r.mu.
func (r *Receiver) transitionLocked(e Event, reason string) {
	next, ok := Transition(r.status.State, e)
	if !ok {
		level.Warn(r.logger).Log("msg", "rejected status transition", "state", r.status.State, "event", e)
		return
	}
	if next == r.status.State && next != StateFailed {
		return
	}

	r.status = Status{State: next}
	if next == StateFailed {
		r.status.Reason = reason
	}
	level.Info(r.logger).Log("msg", "status changed", "status", r.status.String())
}

// Status returns the current connection status.
func (r *Receiver) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Info returns the latest heartbeat state.
func (r *Receiver) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.info
}

// Stats returns the message counters for the current session along with
// the number of aircraft currently tracked.
func (r *Receiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := r.stats
	stats.Tracked = r.table.Len()
	return stats
}

// Host returns the host of the open session, or the configured host.
func (r *Receiver) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return r.current.host
	}
	return r.config.Host
}

// Aircraft returns a snapshot of live traffic with stale entries removed.
func (r *Receiver) Aircraft() []adsb.Aircraft {
	return r.table.Snapshot()
}

// AircraftByAddress returns one tracked aircraft.
func (r *Receiver) AircraftByAddress(address string) (adsb.Aircraft, bool) {
	return r.table.Get(address)
}

// AlertCandidates evaluates the current snapshot against ownship using the
// configured thresholds.
func (r *Receiver) AlertCandidates(own tracking.Ownship) []tracking.AlertCandidate {
	return tracking.AlertCandidates(own, r.table.Snapshot(), r.config.Thresholds)
}

var _ adsb.Source = (*Receiver)(nil)
