// GDL90 Simulator
// Broadcasts synthetic heartbeat, ownship and traffic datagrams so the
// receiver tools can be exercised without hardware.
//
// Receivers accept loopback senders regardless of their configured host.
// When sending from another machine, set the receiver host to this
// machine's address or to 0.0.0.0.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/common/version"

	"github.com/guardianone/adsb-traffic/internal/app"
	"github.com/guardianone/adsb-traffic/internal/sim"
	"github.com/guardianone/adsb-traffic/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file (ownship position)")
	target := flag.String("target", "127.0.0.1", "Address to send datagrams to")
	port := flag.Int("port", 0, "Destination UDP port (default: receiver port from config)")
	count := flag.Int("traffic", 6, "Number of simulated aircraft")
	ring := flag.Float64("ring", 8, "Starting distance from ownship in NM")
	interval := flag.Duration("interval", time.Second, "Update interval")
	fps := flag.Float64("fps", 50, "Maximum frames per second (0 = unlimited)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	printVersion := flag.Bool("version", false, "Print build version information")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.Print("gdl90-sim"))
		os.Exit(0)
	}

	logger := app.NewLogger(os.Stderr, *debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}
	if *port == 0 {
		*port = cfg.Receiver.Port
	}

	dest, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(*target, fmt.Sprint(*port)))
	if err != nil {
		level.Error(logger).Log("msg", "invalid target", "err", err)
		os.Exit(1)
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		level.Error(logger).Log("msg", "failed to open socket", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scenario := sim.NewScenario(cfg.Ownship.Position(), *count, *ring)
	level.Info(logger).Log(
		"msg", "simulator started",
		"target", dest,
		"traffic", len(scenario.Targets),
		"ownship_lat", cfg.Ownship.Latitude,
		"ownship_lon", cfg.Ownship.Longitude,
	)

	err = sim.Run(ctx, logger, scenario, sim.Config{
		Interval:        *interval,
		FramesPerSecond: *fps,
	}, func(frame []byte) error {
		_, err := conn.WriteTo(frame, dest)
		return err
	})
	if err != nil {
		level.Error(logger).Log("msg", "simulator stopped", "err", err)
		os.Exit(1)
	}
	level.Info(logger).Log("msg", "simulator stopped")
}
