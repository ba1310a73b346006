// Package notify provides tracking.AlertSignaler implementations.
package notify

import (
	"io"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/time/rate"

	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

// Bell rings the terminal bell by writing BEL to w.
type Bell struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBell creates a Bell writing to w.
func NewBell(w io.Writer) *Bell {
	return &Bell{w: w}
}

// PlayAlertSignal implements tracking.AlertSignaler.
func (b *Bell) PlayAlertSignal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.w.Write([]byte("\a"))
}

// Func adapts a function to tracking.AlertSignaler.
type Func func()

// PlayAlertSignal calls f.
func (f Func) PlayAlertSignal() {
	f()
}

// Limited drops signals that arrive faster than the configured interval.
// The core alerter never debounces; this is where callers choose to.
type Limited struct {
	next    tracking.AlertSignaler
	limiter *rate.Limiter
	logger  log.Logger
}

// NewLimited allows one signal per interval. A non-positive interval
// passes every signal through.
func NewLimited(logger log.Logger, next tracking.AlertSignaler, interval time.Duration) *Limited {
	if logger == nil {
		logger = log.NewNopLogger()
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.With(logger, "component", "alert-signal"),
	}
}

// PlayAlertSignal forwards the signal unless it is rate limited.
func (l *Limited) PlayAlertSignal() {
	if !l.limiter.Allow() {
		level.Debug(l.logger).Log("msg", "alert signal suppressed")
		return
	}
	l.next.PlayAlertSignal()
}

// Multi fans a signal out to several signalers.
type Multi []tracking.AlertSignaler

// PlayAlertSignal signals every member.
func (m Multi) PlayAlertSignal() {
	for _, s := range m {
		if s != nil {
			s.PlayAlertSignal()
		}
	}
}

// Discard ignores signals.
var Discard tracking.AlertSignaler = Func(func() {})
