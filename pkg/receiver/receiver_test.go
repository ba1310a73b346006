package receiver

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/guardianone/adsb-traffic/pkg/gdl90"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

const receiverIP = "192.168.10.1"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestReceiver(t *testing.T) (*Receiver, *fakeDialer, *testClock) {
	t.Helper()
	dialer := &fakeDialer{}
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig()
	cfg.Dialer = dialer
	cfg.Clock = clock.Now
	return New(log.NewNopLogger(), cfg), dialer, clock
}

func heartbeatFrame(gps bool, major, minor uint8) []byte {
	return gdl90.Frame(gdl90.EncodeHeartbeat(gdl90.Heartbeat{GPSValid: gps, Major: major, Minor: minor}))
}

func trafficFrame(addr string, lat, lon, alt float64) []byte {
	return gdl90.Frame(gdl90.EncodeTraffic(gdl90.TrafficReport{
		Address:          addr,
		Callsign:         "N" + addr[:4],
		Latitude:         lat,
		Longitude:        lon,
		PositionValid:    true,
		Altitude:         alt,
		AltitudeValid:    true,
		GroundSpeed:      120,
		GroundSpeedValid: true,
		Track:            90,
	}))
}

// TestConnect tests opening a session.
func TestConnect(t *testing.T) {
	r, dialer, _ := newTestReceiver(t)
	defer r.Disconnect()

	if r.Status().State != StateDisconnected {
		t.Fatalf("Expected initial status Disconnected, got %s", r.Status())
	}

	if err := r.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}

	if r.Status().State != StateConnected {
		t.Errorf("Expected Connected, got %s", r.Status())
	}
	if dialer.hosts[0] != DefaultHost {
		t.Errorf("Expected default host %s, got %s", DefaultHost, dialer.hosts[0])
	}
	if r.Host() != DefaultHost {
		t.Errorf("Expected session host %s, got %s", DefaultHost, r.Host())
	}
}

// TestConnectFailure tests open errors.
func TestConnectFailure(t *testing.T) {
	r, dialer, _ := newTestReceiver(t)
	dialer.err = errors.New("address already in use")

	err := r.Connect(context.Background(), "")
	if err == nil {
		t.Fatal("Expected connect to fail")
	}

	status := r.Status()
	if status.State != StateFailed {
		t.Errorf("Expected Failed, got %s", status)
	}
	if status.String() != "Failed: address already in use" {
		t.Errorf("Expected failure reason in status, got %q", status.String())
	}

	t.Run("Disconnect after failure returns to Disconnected", func(t *testing.T) {
		r.Disconnect()
		if r.Status().State != StateDisconnected {
			t.Errorf("Expected Disconnected, got %s", r.Status())
		}
	})

	t.Run("Connect after failure succeeds", func(t *testing.T) {
		dialer.err = nil
		if err := r.Connect(context.Background(), ""); err != nil {
			t.Fatalf("Expected reconnect to succeed, got %v", err)
		}
		if r.Status().State != StateConnected {
			t.Errorf("Expected Connected, got %s", r.Status())
		}
		r.Disconnect()
	})
}

// TestHeartbeatAndTraffic tests applying decoded messages.
func TestHeartbeatAndTraffic(t *testing.T) {
	r, dialer, clock := newTestReceiver(t)
	defer r.Disconnect()

	if err := r.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}
	conn := dialer.last()

	t.Run("Heartbeat updates receiver info", func(t *testing.T) {
		conn.send(heartbeatFrame(true, 2, 1), receiverIP)
		if !eventually(func() bool { return r.Info().Known() }) {
			t.Fatal("Expected receiver info after heartbeat")
		}
		info := r.Info()
		if info.FirmwareVersion != "2.1" {
			t.Errorf("Expected version 2.1, got %s", info.FirmwareVersion)
		}
		if !info.GPSValid {
			t.Error("Expected GPS valid")
		}
		if !info.UpdatedAt.Equal(clock.Now()) {
			t.Errorf("Expected UpdatedAt %v, got %v", clock.Now(), info.UpdatedAt)
		}
	})

	t.Run("Latest heartbeat wins", func(t *testing.T) {
		conn.send(heartbeatFrame(false, 3, 0), receiverIP)
		if !eventually(func() bool { return r.Info().FirmwareVersion == "3.0" }) {
			t.Fatalf("Expected version 3.0, got %s", r.Info().FirmwareVersion)
		}
		if r.Info().GPSValid {
			t.Error("Expected GPS invalid")
		}
	})

	t.Run("Traffic report is added to the table", func(t *testing.T) {
		conn.send(trafficFrame("A1B2C3", 30.02, -97.70, 5200), receiverIP)
		if !eventually(func() bool { return len(r.Aircraft()) == 1 }) {
			t.Fatalf("Expected 1 aircraft, got %d", len(r.Aircraft()))
		}
		ac, ok := r.AircraftByAddress("A1B2C3")
		if !ok {
			t.Fatal("Expected A1B2C3 to be tracked")
		}
		if ac.Altitude != 5200 || !ac.AltitudeValid {
			t.Errorf("Expected altitude 5200, got %f (valid=%v)", ac.Altitude, ac.AltitudeValid)
		}
		if ac.Callsign != "NA1B2" {
			t.Errorf("Expected callsign NA1B2, got %s", ac.Callsign)
		}
		if !ac.LastUpdated.Equal(clock.Now()) {
			t.Errorf("Expected LastUpdated %v, got %v", clock.Now(), ac.LastUpdated)
		}
	})

	t.Run("Repeated reports update in place", func(t *testing.T) {
		conn.send(trafficFrame("A1B2C3", 30.03, -97.70, 5400), receiverIP)
		if !eventually(func() bool {
			ac, _ := r.AircraftByAddress("A1B2C3")
			return ac.Altitude == 5400
		}) {
			t.Fatal("Expected altitude update to 5400")
		}
		if len(r.Aircraft()) != 1 {
			t.Errorf("Expected 1 aircraft, got %d", len(r.Aircraft()))
		}
	})

	t.Run("Ownship and malformed datagrams do not touch the table", func(t *testing.T) {
		own := gdl90.Frame(gdl90.EncodeOwnship(gdl90.OwnshipReport{TrafficReport: gdl90.TrafficReport{Address: "FFFFFF"}}))
		conn.send(own, receiverIP)
		conn.send([]byte{0x7E, 0x14, 0x00, 0x7E}, receiverIP)
		conn.send([]byte{0x7E, 0x07, 0x00, 0x00, 0x7E}, receiverIP)

		if !eventually(func() bool { return r.Stats().Datagrams == 7 }) {
			t.Fatalf("Expected 7 datagrams, got %+v", r.Stats())
		}
		stats := r.Stats()
		if stats.Ownship != 1 {
			t.Errorf("Expected 1 ownship report, got %d", stats.Ownship)
		}
		if stats.Dropped != 2 {
			t.Errorf("Expected 2 dropped datagrams, got %d", stats.Dropped)
		}
		if len(r.Aircraft()) != 1 {
			t.Errorf("Expected 1 aircraft, got %d", len(r.Aircraft()))
		}
		if r.Status().State != StateConnected {
			t.Errorf("Expected malformed input to leave status Connected, got %s", r.Status())
		}
	})

	t.Run("Stale traffic is evicted", func(t *testing.T) {
		clock.Advance(61 * time.Second)
		if len(r.Aircraft()) != 0 {
			t.Errorf("Expected stale aircraft to be evicted, got %d", len(r.Aircraft()))
		}
	})
}

// TestDisconnect tests teardown and late datagram handling.
func TestDisconnect(t *testing.T) {
	r, dialer, _ := newTestReceiver(t)

	if err := r.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}
	conn := dialer.last()
	conn.send(heartbeatFrame(true, 1, 0), receiverIP)
	conn.send(trafficFrame("ABCDEF", 30.0, -97.0, 3000), receiverIP)
	if !eventually(func() bool { return len(r.Aircraft()) == 1 && r.Info().Known() }) {
		t.Fatal("Expected traffic and info before disconnect")
	}

	r.mu.Lock()
	old := r.current
	r.mu.Unlock()

	r.Disconnect()

	if r.Status().State != StateDisconnected {
		t.Errorf("Expected Disconnected, got %s", r.Status())
	}
	if !conn.isClosed() {
		t.Error("Expected socket to be closed")
	}
	if len(r.Aircraft()) != 0 {
		t.Errorf("Expected empty table, got %d", len(r.Aircraft()))
	}
	if r.Info().Known() {
		t.Error("Expected receiver info to be cleared")
	}

	t.Run("Datagram from the old session is discarded", func(t *testing.T) {
		r.handleDatagram(old, trafficFrame("123456", 30.0, -97.0, 3000), old.conn.LocalAddr())
		r.handleDatagram(old, heartbeatFrame(true, 9, 9), old.conn.LocalAddr())
		if len(r.Aircraft()) != 0 {
			t.Errorf("Expected table to stay empty, got %d", len(r.Aircraft()))
		}
		if r.Info().Known() {
			t.Error("Expected receiver info to stay cleared")
		}
	})

	t.Run("Disconnect is idempotent", func(t *testing.T) {
		r.Disconnect()
		r.Disconnect()
		if r.Status().State != StateDisconnected {
			t.Errorf("Expected Disconnected, got %s", r.Status())
		}
	})

	t.Run("Disconnect on a new receiver is harmless", func(t *testing.T) {
		fresh, _, _ := newTestReceiver(t)
		fresh.Disconnect()
		if err := fresh.Close(); err != nil {
			t.Errorf("Expected nil from Close, got %v", err)
		}
	})
}

// TestReconnectReplacesSession tests that Connect tears down the old socket.
func TestReconnectReplacesSession(t *testing.T) {
	r, dialer, _ := newTestReceiver(t)
	defer r.Disconnect()

	if err := r.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}
	first := dialer.last()
	first.send(trafficFrame("ABCDEF", 30.0, -97.0, 3000), receiverIP)
	if !eventually(func() bool { return len(r.Aircraft()) == 1 }) {
		t.Fatal("Expected traffic from first session")
	}

	if err := r.Connect(context.Background(), "192.168.10.2"); err != nil {
		t.Fatalf("Expected reconnect to succeed, got %v", err)
	}
	if !first.isClosed() {
		t.Error("Expected first socket to be closed")
	}
	if len(r.Aircraft()) != 0 {
		t.Errorf("Expected table cleared by reconnect, got %d", len(r.Aircraft()))
	}
	if r.Host() != "192.168.10.2" {
		t.Errorf("Expected host 192.168.10.2, got %s", r.Host())
	}
	if r.Status().State != StateConnected {
		t.Errorf("Expected Connected, got %s", r.Status())
	}
}

// TestReceiveError tests that socket errors surface as Failed.
func TestReceiveError(t *testing.T) {
	r, dialer, _ := newTestReceiver(t)
	defer r.Disconnect()

	if err := r.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}
	conn := dialer.last()
	conn.fail(errors.New("network is unreachable"))

	if !eventually(func() bool { return r.Status().State == StateFailed }) {
		t.Fatalf("Expected Failed, got %s", r.Status())
	}
	if r.Status().Reason != "network is unreachable" {
		t.Errorf("Expected reason %q, got %q", "network is unreachable", r.Status().Reason)
	}
	if !conn.isClosed() {
		t.Error("Expected socket to be closed after failure")
	}
}

// TestSourceFiltering tests that only the configured receiver is heard.
func TestSourceFiltering(t *testing.T) {
	t.Run("Foreign source is ignored", func(t *testing.T) {
		r, dialer, _ := newTestReceiver(t)
		defer r.Disconnect()

		if err := r.Connect(context.Background(), receiverIP); err != nil {
			t.Fatalf("Expected connect to succeed, got %v", err)
		}
		conn := dialer.last()
		conn.send(trafficFrame("BAD000", 30.0, -97.0, 3000), "10.0.0.5")
		conn.send(trafficFrame("600D00", 30.0, -97.0, 3000), receiverIP)

		if !eventually(func() bool { return r.Stats().Datagrams == 2 }) {
			t.Fatalf("Expected 2 datagrams, got %+v", r.Stats())
		}
		if r.Stats().Filtered != 1 {
			t.Errorf("Expected 1 filtered datagram, got %d", r.Stats().Filtered)
		}
		if _, ok := r.AircraftByAddress("BAD000"); ok {
			t.Error("Expected foreign traffic to be ignored")
		}
		if _, ok := r.AircraftByAddress("600D00"); !ok {
			t.Error("Expected receiver traffic to be tracked")
		}
		if r.Stats().Tracked != 1 {
			t.Errorf("Expected 1 tracked aircraft, got %d", r.Stats().Tracked)
		}
	})

	t.Run("Loopback source is accepted", func(t *testing.T) {
		r, dialer, _ := newTestReceiver(t)
		defer r.Disconnect()

		if err := r.Connect(context.Background(), receiverIP); err != nil {
			t.Fatalf("Expected connect to succeed, got %v", err)
		}
		dialer.last().send(trafficFrame("10CA10", 30.0, -97.0, 3000), "127.0.0.1")
		if !eventually(func() bool { return len(r.Aircraft()) == 1 }) {
			t.Fatalf("Expected loopback traffic to be tracked, got %+v", r.Stats())
		}
		if r.Stats().Filtered != 0 {
			t.Errorf("Expected 0 filtered datagrams, got %d", r.Stats().Filtered)
		}
	})

	t.Run("Unspecified host accepts any source", func(t *testing.T) {
		r, dialer, _ := newTestReceiver(t)
		defer r.Disconnect()

		if err := r.Connect(context.Background(), "0.0.0.0"); err != nil {
			t.Fatalf("Expected connect to succeed, got %v", err)
		}
		dialer.last().send(trafficFrame("A11000", 30.0, -97.0, 3000), "10.0.0.5")
		if !eventually(func() bool { return len(r.Aircraft()) == 1 }) {
			t.Error("Expected traffic from any source to be tracked")
		}
	})

	t.Run("Broadcast host accepts any source", func(t *testing.T) {
		ip, err := resolveSource(context.Background(), net.DefaultResolver.LookupIPAddr, "255.255.255.255")
		if err != nil || ip != nil {
			t.Errorf("Expected no source filter, got %v (err=%v)", ip, err)
		}
	})
}

// TestAlertCandidatesFromReceiver tests the receiver-level alert query.
func TestAlertCandidatesFromReceiver(t *testing.T) {
	r, dialer, _ := newTestReceiver(t)
	defer r.Disconnect()

	if err := r.Connect(context.Background(), ""); err != nil {
		t.Fatalf("Expected connect to succeed, got %v", err)
	}
	conn := dialer.last()
	conn.send(trafficFrame("C105E0", 30.02, -97.70, 5200), receiverIP)
	conn.send(trafficFrame("FA4000", 30.10, -97.70, 5200), receiverIP)
	if !eventually(func() bool { return len(r.Aircraft()) == 2 }) {
		t.Fatal("Expected 2 aircraft")
	}

	got := r.AlertCandidates(tracking.Ownship{Latitude: 30.0, Longitude: -97.70, AltitudeFt: 5000})
	if len(got) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(got))
	}
	if got[0].Aircraft.Address != "C105E0" {
		t.Errorf("Expected C105E0, got %s", got[0].Aircraft.Address)
	}
}

// TestConnectHostLookup tests that host resolution happens outside the
// session lock and that lookup failures fail the connection.
func TestConnectHostLookup(t *testing.T) {
	t.Run("Disconnect is not blocked by a pending lookup", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		dialer := &fakeDialer{}
		cfg := DefaultConfig()
		cfg.Dialer = dialer
		cfg.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
			close(started)
			select {
			case <-release:
				return []net.IPAddr{{IP: net.ParseIP(receiverIP)}}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		r := New(log.NewNopLogger(), cfg)
		defer r.Disconnect()

		connected := make(chan error, 1)
		go func() {
			connected <- r.Connect(context.Background(), "gdl90.local")
		}()
		<-started

		done := make(chan struct{})
		go func() {
			r.Disconnect()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Expected Disconnect to return while the lookup is pending")
		}

		close(release)
		if err := <-connected; err != nil {
			t.Fatalf("Expected connect to succeed, got %v", err)
		}
		if r.Status().State != StateConnected {
			t.Errorf("Expected Connected, got %s", r.Status())
		}

		conn := dialer.last()
		conn.send(trafficFrame("BAD000", 30.0, -97.0, 3000), "10.0.0.5")
		conn.send(trafficFrame("600D00", 30.0, -97.0, 3000), receiverIP)
		if !eventually(func() bool { return r.Stats().Datagrams == 2 }) {
			t.Fatalf("Expected 2 datagrams, got %+v", r.Stats())
		}
		if r.Stats().Filtered != 1 {
			t.Errorf("Expected the resolved address to filter 1 datagram, got %d", r.Stats().Filtered)
		}
	})

	t.Run("Lookup failure fails the connection", func(t *testing.T) {
		dialer := &fakeDialer{}
		cfg := DefaultConfig()
		cfg.Dialer = dialer
		cfg.Lookup = func(ctx context.Context, host string) ([]net.IPAddr, error) {
			return nil, errors.New("no such host")
		}
		r := New(log.NewNopLogger(), cfg)

		if err := r.Connect(context.Background(), "gdl90.local"); err == nil {
			t.Fatal("Expected connect to fail")
		}
		if r.Status().State != StateFailed {
			t.Errorf("Expected Failed, got %s", r.Status())
		}
		if len(dialer.hosts) != 0 {
			t.Errorf("Expected no socket to be opened, got %d", len(dialer.hosts))
		}
	})
}
