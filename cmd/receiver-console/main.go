// Receiver Console
// Full-screen table view of a GDL90 receiver: traffic, telemetry, alerts and logs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/common/version"

	"github.com/guardianone/adsb-traffic/internal/app"
	"github.com/guardianone/adsb-traffic/internal/registry"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	host := flag.String("receiver", "", "Receiver address (overrides config)")
	debug := flag.Bool("debug", false, "Show debug logs")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Print("receiver-console"))
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Receiver.Host = *host
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logs := NewLogManager(200)
	logger := level.NewFilter(logs, level.AllowInfo())
	if *debug {
		logger = level.NewFilter(logs, level.AllowDebug())
	}

	reg, err := registry.New(logger, cfg.Registry.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rcv := receiver.New(logger, cfg.Receiver.ToReceiver(cfg.Alerts))
	defer rcv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	console := NewApp(logger, cfg, rcv, reg, logs, app.NewSignaler(logger, cfg.Alerts, os.Stdout))
	level.Info(logger).Log("msg", "console started", "receiver", cfg.Receiver.Host)

	if err := console.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
