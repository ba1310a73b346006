// Traffic Monitor
// Terminal radar scope for a GDL90 receiver with proximity alerts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/common/version"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/guardianone/adsb-traffic/internal/app"
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/coordinates"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

var (
	configPath   = flag.String("config", "configs/config.yaml", "Path to configuration file")
	host         = flag.String("receiver", "", "Receiver address (overrides config)")
	logPath      = flag.String("log", "traffic-monitor.log", "Log file (the terminal is used by the display)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	printVersion = flag.Bool("version", false, "Print build version information")
)

// Scope range limits in nautical miles.
const (
	minRangeNM     = 1.0
	maxRangeNM     = 80.0
	defaultRangeNM = 10.0
)

type aircraftView struct {
	aircraft adsb.Aircraft
	rangeNM  float64
	bearing  float64
	age      time.Duration
	alert    bool
}

type model struct {
	rcv     *receiver.Receiver
	alerter *tracking.Alerter
	logger  log.Logger
	rcfg    config.ReceiverConfig
	host    string

	own            tracking.Ownship
	predictSeconds float64
	rangeNM        float64
	showPrediction bool

	aircraft   []aircraftView
	candidates []tracking.AlertCandidate
	selected   int
	status     receiver.Status
	info       receiver.Info
	stats      receiver.Stats
	err        error

	width  int
	height int
}

type tickMsg time.Time

type connectedMsg struct {
	err error
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) connect() tea.Cmd {
	return func() tea.Msg {
		return connectedMsg{err: app.KeepConnected(context.Background(), m.logger, m.rcv, m.host, config.ReceiverConfig{})}
	}
}

func (m model) Init() tea.Cmd {
	// The background supervisor owns the session when auto reconnect is on.
	if m.rcfg.AutoReconnect {
		return tick()
	}
	return tea.Batch(tick(), m.connect())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		// Clear error on any keypress (but don't quit)
		if m.err != nil && msg.String() != "ctrl+c" {
			m.err = nil
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			return m, m.connect()
		case "d":
			m.rcv.Disconnect()
			m.alerter.Reset()
			m.refresh()
		case "p":
			m.showPrediction = !m.showPrediction
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.aircraft)-1 {
				m.selected++
			}
		case "+", "=":
			m.rangeNM /= 1.5
			if m.rangeNM < minRangeNM {
				m.rangeNM = minRangeNM
			}
		case "-", "_":
			m.rangeNM *= 1.5
			if m.rangeNM > maxRangeNM {
				m.rangeNM = maxRangeNM
			}
		case "0":
			m.rangeNM = defaultRangeNM
		}

	case connectedMsg:
		if msg.err != nil {
			m.err = msg.err
			level.Warn(m.logger).Log("msg", "connect failed", "err", msg.err)
		}
		m.refresh()

	case tickMsg:
		m.refresh()
		return m, tick()
	}

	return m, nil
}

// refresh pulls a snapshot from the receiver and re-evaluates alerts.
func (m *model) refresh() {
	now := time.Now()
	snapshot := m.rcv.Aircraft()

	m.status = m.rcv.Status()
	m.info = m.rcv.Info()
	m.stats = m.rcv.Stats()
	m.candidates = m.alerter.Evaluate(m.own, snapshot)

	alerting := make(map[string]bool, len(m.candidates))
	for _, c := range m.candidates {
		alerting[c.Aircraft.Address] = true
	}

	ownPos := m.own.Position()
	m.aircraft = make([]aircraftView, 0, len(snapshot))
	for _, ac := range snapshot {
		v := aircraftView{
			aircraft: ac,
			age:      ac.Age(now),
			alert:    alerting[ac.Address],
		}
		if ac.PositionValid {
			pos := coordinates.Geographic{Latitude: ac.Latitude, Longitude: ac.Longitude}
			v.rangeNM = coordinates.DistanceNauticalMiles(ownPos, pos)
			v.bearing = coordinates.Bearing(ownPos, pos)
		}
		m.aircraft = append(m.aircraft, v)
	}

	// Nearest first; aircraft without a position go last.
	sort.SliceStable(m.aircraft, func(i, j int) bool {
		a, b := m.aircraft[i], m.aircraft[j]
		if a.aircraft.PositionValid != b.aircraft.PositionValid {
			return a.aircraft.PositionValid
		}
		return a.rangeNM < b.rangeNM
	})

	if m.selected >= len(m.aircraft) {
		m.selected = len(m.aircraft) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	s.WriteString(titleStyle.Render("ADS-B TRAFFIC MONITOR"))
	s.WriteString("  ")
	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		s.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
		helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
		s.WriteString(helpStyle.Render("Press any key to continue..."))
		return s.String()
	}

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderRadar(), "  ", m.renderInfo()))
	s.WriteString("\n")
	s.WriteString(m.renderAircraftList())
	s.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	s.WriteString(helpStyle.Render("↑/↓: Select  C: Connect  D: Disconnect  P: Prediction  +/-: Range  0: Reset  Q: Quit"))
	s.WriteString("\n")

	return s.String()
}

func (m model) renderStatus() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	switch m.status.State {
	case receiver.StateConnected:
		style = style.Foreground(lipgloss.Color("46"))
	case receiver.StateConnecting:
		style = style.Foreground(lipgloss.Color("226"))
	case receiver.StateFailed:
		style = style.Foreground(lipgloss.Color("196"))
	}
	return style.Render(m.status.String())
}

func (m model) renderInfo() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	alertStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	line := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-11s", label)) + valueStyle.Render(value) + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Receiver"))
	b.WriteString("\n")
	b.WriteString(line("Host", m.rcv.Host()))
	firmware, gps := "unknown", "unknown"
	if m.info.Known() {
		firmware = m.info.FirmwareVersion
		gps = "no fix"
		if m.info.GPSValid {
			gps = "valid"
		}
	}
	b.WriteString(line("Firmware", firmware))
	b.WriteString(line("GPS", gps))
	b.WriteString(line("Datagrams", fmt.Sprintf("%d (%d dropped)", m.stats.Datagrams, m.stats.Dropped)))
	b.WriteString(line("Traffic", fmt.Sprintf("%d reports, %d tracked", m.stats.Traffic, m.stats.Tracked)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Scope"))
	b.WriteString("\n")
	b.WriteString(line("Range", fmt.Sprintf("%.1f NM", m.rangeNM)))
	b.WriteString(line("Ownship", fmt.Sprintf("%.4f, %.4f", m.own.Latitude, m.own.Longitude)))
	b.WriteString(line("Altitude", fmt.Sprintf("%.0f ft", m.own.AltitudeFt)))
	pred := "off"
	if m.showPrediction {
		pred = fmt.Sprintf("%.0fs", m.predictSeconds)
	}
	b.WriteString(line("Prediction", pred))
	b.WriteString("\n")

	th := m.alerter.Thresholds()
	b.WriteString(headerStyle.Render(fmt.Sprintf("Alerts (%.1f NM / %.0f ft)", th.HorizontalNM, th.VerticalFt)))
	b.WriteString("\n")
	if len(m.candidates) == 0 {
		b.WriteString(labelStyle.Render("  none"))
		b.WriteString("\n")
	}
	for _, c := range m.candidates {
		closing := ""
		if c.Approaching {
			closing = fmt.Sprintf(" CPA %.1f in %.0fs", c.ClosestRangeNM, c.TimeToClosest.Seconds())
		}
		b.WriteString(alertStyle.Render(fmt.Sprintf("! %-8s %4.1f NM %+6.0f ft%s",
			c.Aircraft.DisplayName(), c.DistanceNM, c.VerticalSeparationFt, closing)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m model) renderAircraftList() string {
	var list strings.Builder

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	list.WriteString(headerStyle.Render("Traffic:"))
	list.WriteString(fmt.Sprintf(" (%d)", len(m.aircraft)))
	list.WriteString("\n")

	if len(m.aircraft) == 0 {
		list.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  No traffic"))
		return list.String()
	}

	// Show up to 6 aircraft around the selection
	start := 0
	if m.selected > 2 && len(m.aircraft) > 6 {
		start = m.selected - 2
	}
	end := start + 6
	if end > len(m.aircraft) {
		end = len(m.aircraft)
	}

	for i := start; i < end; i++ {
		v := m.aircraft[i]

		prefix := "  "
		if i == m.selected {
			prefix = "→ "
		}

		ageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
		if v.age > 15*time.Second {
			ageStyle = ageStyle.Foreground(lipgloss.Color("226"))
		}
		if v.age > 45*time.Second {
			ageStyle = ageStyle.Foreground(lipgloss.Color("196"))
		}

		line := fmt.Sprintf("%s%-8s %-6s %s %s %s %s",
			prefix,
			v.aircraft.DisplayName(),
			v.aircraft.Address,
			formatOptional(v.aircraft.AltitudeValid, "%6.0f ft", v.aircraft.Altitude),
			formatOptional(v.aircraft.PositionValid, "%5.1f NM %03.0f°", v.rangeNM, v.bearing),
			formatOptional(v.aircraft.GroundSpeedValid, "%4.0f kt %03.0f°", v.aircraft.GroundSpeed, v.aircraft.Track),
			formatOptional(v.aircraft.VerticalSpeedValid, "%+6.0f fpm", v.aircraft.VerticalSpeed),
		)

		switch {
		case v.alert:
			line = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true).Render(line)
		case i == m.selected:
			line = lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render(line)
		}
		list.WriteString(line)
		list.WriteString(" ")
		list.WriteString(ageStyle.Render(fmt.Sprintf("%3.0fs", v.age.Seconds())))
		list.WriteString("\n")
	}

	return list.String()
}

// formatOptional renders a value or dashes when the receiver marked it unknown.
func formatOptional(valid bool, format string, args ...interface{}) string {
	text := fmt.Sprintf(format, args...)
	if valid {
		return text
	}
	return strings.Repeat("-", len([]rune(text)))
}

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println(version.Print("traffic-monitor"))
		os.Exit(0)
	}

	logFile := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	defer logFile.Close()
	logger := app.NewLogger(logFile, *debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Receiver.Host = *host
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rcv := receiver.New(logger, cfg.Receiver.ToReceiver(cfg.Alerts))
	defer rcv.Close()

	m := model{
		rcv:            rcv,
		alerter:        tracking.NewAlerter(cfg.Alerts.Thresholds(), app.NewSignaler(logger, cfg.Alerts, os.Stdout)),
		logger:         logger,
		rcfg:           cfg.Receiver,
		host:           cfg.Receiver.Host,
		own:            cfg.Ownship.Position(),
		predictSeconds: cfg.Alerts.PredictionSeconds,
		rangeNM:        defaultRangeNM,
		showPrediction: true,
		width:          120,
		height:         40,
	}
	if m.predictSeconds <= 0 {
		m.predictSeconds = tracking.DefaultPredictionSeconds
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Receiver.AutoReconnect {
		go func() {
			if err := app.KeepConnected(ctx, logger, rcv, m.host, cfg.Receiver); err != nil {
				level.Warn(logger).Log("msg", "receiver not connected", "err", err)
			}
		}()
	}

	level.Info(logger).Log("msg", "starting traffic monitor", "receiver", m.host)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		level.Error(logger).Log("msg", "display failed", "err", err)
		os.Exit(1)
	}
}
