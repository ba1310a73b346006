package notify

import (
	"bytes"
	"testing"
	"time"

	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

type counter struct {
	n int
}

func (c *counter) PlayAlertSignal() {
	c.n++
}

var (
	_ tracking.AlertSignaler = (*Bell)(nil)
	_ tracking.AlertSignaler = (*Limited)(nil)
	_ tracking.AlertSignaler = Multi(nil)
)

// TestBell tests the terminal bell.
func TestBell(t *testing.T) {
	var buf bytes.Buffer
	bell := NewBell(&buf)

	bell.PlayAlertSignal()
	bell.PlayAlertSignal()

	if buf.String() != "\a\a" {
		t.Errorf("Expected two BEL characters, got %q", buf.String())
	}
}

// TestLimited tests rate limiting of signals.
func TestLimited(t *testing.T) {
	t.Run("Burst is limited to one", func(t *testing.T) {
		c := &counter{}
		l := NewLimited(nil, c, time.Hour)
		for i := 0; i < 5; i++ {
			l.PlayAlertSignal()
		}
		if c.n != 1 {
			t.Errorf("Expected 1 signal, got %d", c.n)
		}
	})

	t.Run("Zero interval passes everything", func(t *testing.T) {
		c := &counter{}
		l := NewLimited(nil, c, 0)
		for i := 0; i < 5; i++ {
			l.PlayAlertSignal()
		}
		if c.n != 5 {
			t.Errorf("Expected 5 signals, got %d", c.n)
		}
	})

	t.Run("Signal allowed again after interval", func(t *testing.T) {
		c := &counter{}
		l := NewLimited(nil, c, 20*time.Millisecond)
		l.PlayAlertSignal()
		l.PlayAlertSignal()
		time.Sleep(40 * time.Millisecond)
		l.PlayAlertSignal()
		if c.n != 2 {
			t.Errorf("Expected 2 signals, got %d", c.n)
		}
	})
}

// TestMultiAndFunc tests fan out and the function adapter.
func TestMultiAndFunc(t *testing.T) {
	a, b := &counter{}, &counter{}
	calls := 0
	m := Multi{a, nil, b, Func(func() { calls++ })}

	m.PlayAlertSignal()

	if a.n != 1 || b.n != 1 || calls != 1 {
		t.Errorf("Expected each signaler once, got %d, %d, %d", a.n, b.n, calls)
	}

	Discard.PlayAlertSignal()
}

// TestAlerterIntegration tests the alerter driving a limited bell.
func TestAlerterIntegration(t *testing.T) {
	var buf bytes.Buffer
	alerter := tracking.NewAlerter(tracking.DefaultAlertThresholds(), NewLimited(nil, NewBell(&buf), time.Hour))

	own := tracking.Ownship{Latitude: 30.0, Longitude: -97.70, AltitudeFt: 5000}
	snap := []adsb.Aircraft{
		{Address: "AAAAAA", Latitude: 30.01, Longitude: -97.70, PositionValid: true, Altitude: 5000, AltitudeValid: true},
		{Address: "BBBBBB", Latitude: 30.02, Longitude: -97.70, PositionValid: true, Altitude: 5000, AltitudeValid: true},
	}

	alerter.Evaluate(own, snap[:1])
	alerter.Evaluate(own, snap)

	// Second evaluation has new traffic but the limiter suppresses it
	if buf.String() != "\a" {
		t.Errorf("Expected one BEL, got %q", buf.String())
	}
}
