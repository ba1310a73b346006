// Package app holds wiring shared by the commands: logger construction and
// keeping a receiver session open.
package app

import (
	"context"
	"io"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/guardianone/adsb-traffic/internal/notify"
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

// NewLogger returns a logfmt logger with timestamp and caller. Debug lines
// are dropped unless debug is set.
func NewLogger(w io.Writer, debug bool) log.Logger {
	var logger log.Logger
	logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	if debug {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}

// Connector is the part of *receiver.Receiver the supervisor drives.
type Connector interface {
	Connect(ctx context.Context, host string) error
	Status() receiver.Status
}

// pollInterval is how often KeepConnected checks for a failed session.
var pollInterval = time.Second

// reconnectRetry builds the backoff used for automatic reconnects.
func reconnectRetry(rc config.ReceiverConfig) adsb.RetryConfig {
	retry := adsb.DefaultRetryConfig()
	retry.MaxRetries = -1
	if rc.ReconnectMaxDelaySeconds > 0 {
		retry.MaxDelay = time.Duration(rc.ReconnectMaxDelaySeconds) * time.Second
	}
	return retry
}

// KeepConnected opens a session to host. With auto reconnect disabled it
// connects once and returns the error. Otherwise it retries with backoff
// and reopens the session whenever it fails, until ctx is done.
func KeepConnected(ctx context.Context, logger log.Logger, rcv Connector, host string, rc config.ReceiverConfig) error {
	if !rc.AutoReconnect {
		return rcv.Connect(ctx, host)
	}

	logger = log.With(logger, "component", "reconnect")
	retry := reconnectRetry(rc)

	connect := func() error {
		attempt := 0
		return adsb.RetryWithBackoff(ctx, retry, func() error {
			attempt++
			err := rcv.Connect(ctx, host)
			if err != nil {
				level.Warn(logger).Log("msg", "receiver connect failed", "attempt", attempt, "err", err)
			}
			return err
		})
	}

	if err := connect(); err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		status := rcv.Status()
		if status.State != receiver.StateFailed {
			continue
		}

		level.Info(logger).Log("msg", "receiver session failed, reconnecting", "status", status.String())
		if err := connect(); err != nil {
			return err
		}
	}
}

// NewSignaler builds the alert signal from config: a rate limited bell on w
// when sound is enabled, plus any extra signalers.
func NewSignaler(logger log.Logger, alerts config.AlertsConfig, w io.Writer, extra ...tracking.AlertSignaler) tracking.AlertSignaler {
	signals := notify.Multi(extra)
	if alerts.Sound && w != nil {
		interval := time.Duration(alerts.MinSignalIntervalSeconds * float64(time.Second))
		signals = append(signals, notify.NewLimited(logger, notify.NewBell(w), interval))
	}
	if len(signals) == 0 {
		return notify.Discard
	}
	return signals
}
