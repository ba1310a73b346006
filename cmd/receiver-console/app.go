package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/rivo/tview"

	"github.com/guardianone/adsb-traffic/internal/app"
	"github.com/guardianone/adsb-traffic/internal/registry"
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/coordinates"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

// App is the receiver console: a traffic table, receiver telemetry, the
// alert list and a log panel.
type App struct {
	cfg     *config.Config
	rcv     *receiver.Receiver
	alerter *tracking.Alerter
	logger  log.Logger
	logs    *LogManager
	own     tracking.Ownship
	reg     registry.Lookup

	tviewApp  *tview.Application
	table     *tview.Table
	telemetry *tview.TextView
	alerts    *tview.TextView
	controls  *tview.TextView

	mu       sync.Mutex
	aircraft []adsb.Aircraft
	alerting map[string]bool
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewApp creates the console and lays out its panels.
func NewApp(logger log.Logger, cfg *config.Config, rcv *receiver.Receiver, reg registry.Lookup, logs *LogManager, signaler tracking.AlertSignaler) *App {
	a := &App{
		cfg:      cfg,
		rcv:      rcv,
		alerter:  tracking.NewAlerter(cfg.Alerts.Thresholds(), signaler),
		logger:   log.With(logger, "component", "console"),
		logs:     logs,
		own:      cfg.Ownship.Position(),
		reg:      reg,
		alerting: make(map[string]bool),
		stopChan: make(chan struct{}),
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.tviewApp = tview.NewApplication()

	a.table = tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	a.table.SetBorder(true).SetTitle(" Traffic ")

	a.telemetry = tview.NewTextView().SetDynamicColors(true)
	a.telemetry.SetBorder(true).SetTitle(" Receiver ")

	a.alerts = tview.NewTextView().SetDynamicColors(true)
	a.alerts.SetBorder(true).SetTitle(" Alerts ")

	a.controls = tview.NewTextView().SetDynamicColors(true)
	a.controls.SetBorder(true).SetTitle(" Controls ")
	a.controls.SetText(`[yellow]RECEIVER[-]
  [white]c[-]         Connect
  [white]d[-]         Disconnect

[yellow]NAVIGATION[-]
  [white]↑/↓, j/k[-]  Select

[yellow]CONTROL[-]
  [white]l[-]         Clear logs
  [white]q[-]         Quit`)

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.telemetry, 0, 4, false).
		AddItem(a.alerts, 0, 3, false).
		AddItem(a.controls, 12, 0, false)

	top := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.table, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(top, 0, 7, true).
		AddItem(a.logs.GetView(), 0, 3, false)

	a.tviewApp.SetRoot(root, true)
	a.tviewApp.SetInputCapture(a.handleKeyboard)
	a.render()
}

// handleKeyboard handles keyboard input
func (a *App) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyEscape || event.Rune() == 'q':
		a.Stop()
		return nil
	case event.Rune() == 'c':
		go a.connect()
		return nil
	case event.Rune() == 'd':
		a.rcv.Disconnect()
		a.alerter.Reset()
		a.refresh()
		return nil
	case event.Rune() == 'l':
		a.logs.Clear()
		return nil
	case event.Rune() == 'j':
		return tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	case event.Rune() == 'k':
		return tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone)
	}
	return event
}

func (a *App) connect() {
	if err := a.rcv.Connect(context.Background(), a.cfg.Receiver.Host); err != nil {
		level.Error(a.logger).Log("msg", "connect failed", "err", err)
	}
	a.refresh()
}

// Run starts the refresh loop and blocks until the console exits.
func (a *App) Run(ctx context.Context) error {
	a.logs.SetRedraw(func() { a.tviewApp.QueueUpdateDraw(func() {}) })
	defer a.logs.SetRedraw(nil)

	if a.cfg.Receiver.AutoReconnect {
		go func() {
			if err := app.KeepConnected(ctx, a.logger, a.rcv, a.cfg.Receiver.Host, a.cfg.Receiver); err != nil {
				level.Warn(a.logger).Log("msg", "receiver not connected", "err", err)
			}
		}()
	} else {
		go a.connect()
	}

	go a.updateLoop()
	return a.tviewApp.Run()
}

func (a *App) updateLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// refresh takes a snapshot, evaluates alerts and redraws the panels.
func (a *App) refresh() {
	snapshot := a.rcv.Aircraft()
	candidates := a.alerter.Evaluate(a.own, snapshot)

	alerting := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		alerting[c.Aircraft.Address] = true
	}

	a.mu.Lock()
	a.aircraft = snapshot
	a.alerting = alerting
	a.mu.Unlock()

	alertText := renderAlerts(candidates)
	a.tviewApp.QueueUpdateDraw(func() {
		a.alerts.SetText(alertText)
		a.render()
	})
}

// render rebuilds the table and telemetry panel from the last snapshot.
func (a *App) render() {
	a.mu.Lock()
	aircraft := a.aircraft
	alerting := a.alerting
	a.mu.Unlock()

	now := time.Now()
	ownPos := a.own.Position()

	headers := []string{"CALLSIGN", "ADDRESS", "REG", "ALT FT", "RANGE", "BRG", "GS KT", "TRK", "VS FPM", "AGE"}
	a.table.Clear()
	for col, h := range headers {
		a.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}

	for i, ac := range aircraft {
		rng, brg := "-", "-"
		if ac.PositionValid {
			pos := coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}
			rng = fmt.Sprintf("%.1f", coordinates.DistanceNauticalMiles(ownPos, pos))
			brg = fmt.Sprintf("%03.0f", coordinates.Bearing(ownPos, pos))
		}
		registration := "-"
		if d, ok := a.reg.Lookup(ac.Address); ok {
			registration = d.NNumber
		}
		row := []string{
			ac.DisplayName(),
			ac.Address,
			registration,
			optional(ac.AltitudeValid, "%.0f", ac.Altitude),
			rng,
			brg,
			optional(ac.GroundSpeedValid, "%.0f", ac.GroundSpeed),
			optional(ac.GroundSpeedValid, "%03.0f", ac.Track),
			optional(ac.VerticalSpeedValid, "%+.0f", ac.VerticalSpeed),
			fmt.Sprintf("%.0fs", ac.Age(now).Seconds()),
		}

		color := tcell.ColorWhite
		if alerting[ac.Address] {
			color = tcell.ColorRed
		}
		for col, text := range row {
			a.table.SetCell(i+1, col, tview.NewTableCell(text).SetTextColor(color))
		}
	}

	a.telemetry.SetText(a.renderTelemetry())
}

func (a *App) renderTelemetry() string {
	status := a.rcv.Status()
	info := a.rcv.Info()
	stats := a.rcv.Stats()

	color := "gray"
	switch status.State {
	case receiver.StateConnected:
		color = "green"
	case receiver.StateConnecting:
		color = "yellow"
	case receiver.StateFailed:
		color = "red"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[yellow]STATUS:[-] [%s]%s[-]\n", color, tview.Escape(status.String()))
	fmt.Fprintf(&b, "[gray]Host:[-]      [white]%s[-]\n", a.rcv.Host())
	if info.Known() {
		gps := "[red]no fix[-]"
		if info.GPSValid {
			gps = "[green]valid[-]"
		}
		fmt.Fprintf(&b, "[gray]Firmware:[-]  [white]%s[-]\n", info.FirmwareVersion)
		fmt.Fprintf(&b, "[gray]GPS:[-]       %s\n", gps)
	} else {
		b.WriteString("[gray]Firmware:[-]  [white]unknown[-]\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "[gray]Datagrams:[-] [white]%d[-]\n", stats.Datagrams)
	fmt.Fprintf(&b, "[gray]Decoded:[-]   [white]%d[-]  [gray]Dropped:[-] [white]%d[-]\n", stats.Decoded, stats.Dropped)
	fmt.Fprintf(&b, "[gray]Filtered:[-]  [white]%d[-]\n", stats.Filtered)
	fmt.Fprintf(&b, "[gray]Heartbeat:[-] [white]%d[-]  [gray]Traffic:[-] [white]%d[-]\n", stats.Heartbeats, stats.Traffic)
	b.WriteString("\n")
	fmt.Fprintf(&b, "[yellow]OWNSHIP:[-] [white]%.4f°, %.4f°[-]\n", a.own.Latitude, a.own.Longitude)
	fmt.Fprintf(&b, "[gray]Altitude:[-]  [white]%.0f ft[-]\n", a.own.AltitudeFt)
	fmt.Fprintf(&b, "[gray]Aircraft:[-]  [white]%d tracked[-]\n", stats.Tracked)
	return b.String()
}

func renderAlerts(candidates []tracking.AlertCandidate) string {
	if len(candidates) == 0 {
		return "[gray]No traffic in the alert volume[-]"
	}
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "[red]%-8s[-] %.1f NM %03.0f° %+.0f ft",
			tview.Escape(c.Aircraft.DisplayName()), c.DistanceNM, c.BearingDeg, c.VerticalSeparationFt)
		if c.Approaching {
			fmt.Fprintf(&b, " [yellow]CPA %.1f NM %.0fs[-]", c.ClosestRangeNM, c.TimeToClosest.Seconds())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func optional(valid bool, format string, v float64) string {
	if !valid {
		return "-"
	}
	return fmt.Sprintf(format, v)
}

// Stop ends the refresh loop and the application.
func (a *App) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.tviewApp.Stop()
	})
}
