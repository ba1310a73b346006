package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/guardianone/adsb-traffic/internal/notify"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
)

type scriptedConnector struct {
	mu       sync.Mutex
	failures int
	calls    int
	status   receiver.Status
}

func (c *scriptedConnector) Connect(ctx context.Context, host string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		c.status = receiver.Status{State: receiver.StateFailed, Reason: "refused"}
		return errors.New("refused")
	}
	c.status = receiver.Status{State: receiver.StateConnected}
	return nil
}

func (c *scriptedConnector) Status() receiver.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *scriptedConnector) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = receiver.Status{State: receiver.StateFailed, Reason: "network is unreachable"}
}

func (c *scriptedConnector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// TestNewLogger tests level filtering.
func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, false)
	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Expected debug line to be filtered")
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "level=info") {
		t.Errorf("Expected logfmt info line, got %q", out)
	}

	buf.Reset()
	level.Debug(NewLogger(&buf, true)).Log("msg", "visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("Expected debug line with debug enabled, got %q", buf.String())
	}
}

// TestKeepConnected tests the reconnect supervisor.
func TestKeepConnected(t *testing.T) {
	orig := pollInterval
	pollInterval = 5 * time.Millisecond
	defer func() { pollInterval = orig }()

	t.Run("Without auto reconnect connects once", func(t *testing.T) {
		c := &scriptedConnector{failures: 1}
		err := KeepConnected(context.Background(), log.NewNopLogger(), c, "", config.ReceiverConfig{})
		if err == nil {
			t.Error("Expected connect error")
		}
		if c.callCount() != 1 {
			t.Errorf("Expected 1 attempt, got %d", c.callCount())
		}
	})

	t.Run("Reopens a failed session", func(t *testing.T) {
		c := &scriptedConnector{}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- KeepConnected(ctx, log.NewNopLogger(), c, "", config.ReceiverConfig{AutoReconnect: true})
		}()

		deadline := time.Now().Add(2 * time.Second)
		for c.callCount() < 1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		c.fail()
		for c.callCount() < 2 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		cancel()

		if err := <-done; err != nil {
			t.Errorf("Expected nil on cancel, got %v", err)
		}
		if c.callCount() != 2 {
			t.Errorf("Expected 2 connects, got %d", c.callCount())
		}
		if c.Status().State != receiver.StateConnected {
			t.Errorf("Expected Connected, got %s", c.Status())
		}
	})

	t.Run("Cancelled during backoff", func(t *testing.T) {
		c := &scriptedConnector{failures: 100}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := KeepConnected(ctx, log.NewNopLogger(), c, "", config.ReceiverConfig{AutoReconnect: true})
		if err == nil {
			t.Error("Expected error when cancelled before connecting")
		}
	})
}

// TestReconnectRetry tests backoff derivation from config.
func TestReconnectRetry(t *testing.T) {
	r := reconnectRetry(config.ReceiverConfig{ReconnectMaxDelaySeconds: 10})
	if r.MaxRetries != -1 {
		t.Errorf("Expected unlimited retries, got %d", r.MaxRetries)
	}
	if r.MaxDelay != 10*time.Second {
		t.Errorf("Expected 10s max delay, got %v", r.MaxDelay)
	}
}

// TestNewSignaler tests bell wiring from config.
func TestNewSignaler(t *testing.T) {
	t.Run("Sound enabled", func(t *testing.T) {
		var buf bytes.Buffer
		s := NewSignaler(log.NewNopLogger(), config.AlertsConfig{Sound: true, MinSignalIntervalSeconds: 60}, &buf)
		s.PlayAlertSignal()
		s.PlayAlertSignal()
		if buf.String() != "\a" {
			t.Errorf("Expected a single bell, got %q", buf.String())
		}
	})

	t.Run("Sound disabled with extra", func(t *testing.T) {
		var buf bytes.Buffer
		calls := 0
		s := NewSignaler(log.NewNopLogger(), config.AlertsConfig{}, &buf, notify.Func(func() { calls++ }))
		s.PlayAlertSignal()
		if buf.Len() != 0 {
			t.Errorf("Expected no bell, got %q", buf.String())
		}
		if calls != 1 {
			t.Errorf("Expected 1 extra signal, got %d", calls)
		}
	})
}
