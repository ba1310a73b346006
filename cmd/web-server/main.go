// ADS-B Traffic Web Server
// Keeps a GDL90 receiver session open and serves live traffic over REST and WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/common/version"
	"golang.org/x/sync/errgroup"

	"github.com/guardianone/adsb-traffic/internal/api"
	"github.com/guardianone/adsb-traffic/internal/app"
	"github.com/guardianone/adsb-traffic/internal/db"
	"github.com/guardianone/adsb-traffic/internal/registry"
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
)

var (
	configPath   = flag.String("config", "configs/config.yaml", "Path to configuration file")
	port         = flag.String("port", "", "HTTP server port (overrides config)")
	host         = flag.String("receiver", "", "Receiver address (overrides config)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	printVersion = flag.Bool("version", false, "Print build version information")
)

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println(version.Print("web-server"))
		os.Exit(0)
	}

	logger := app.NewLogger(os.Stderr, *debug)
	if err := run(logger); err != nil {
		level.Error(logger).Log("msg", "web server stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Receiver.Host = *host
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg, err := registry.New(logger, cfg.Registry.Path)
	if err != nil {
		return err
	}

	rcv := receiver.New(logger, cfg.Receiver.ToReceiver(cfg.Alerts))
	defer rcv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(logger, rcv, reg, cfg)
	if cfg.Server.HistoryEnabled {
		database, err := db.ReconnectWithRetry(ctx, logger, cfg.Database, adsb.DefaultRetryConfig())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer database.Close()
		if err := database.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize history schema: %w", err)
		}
		srv.SetHistory(db.NewTrafficRepository(database, cfg.Ownship.Position().Position()))
		level.Info(logger).Log("msg", "traffic history enabled", "database", cfg.Database.Database)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		// A receiver that cannot be reached is reported, not fatal: the
		// API stays up so clients can retry through /receiver/connect.
		if err := app.KeepConnected(ctx, logger, rcv, cfg.Receiver.Host, cfg.Receiver); err != nil {
			level.Warn(logger).Log("msg", "receiver not connected", "err", err)
		}
		return nil
	})

	eg.Go(func() error {
		level.Info(logger).Log("msg", "server listening", "addr", addr, "tls", cfg.Server.TLSEnabled)
		var err error
		if cfg.Server.TLSEnabled {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		level.Info(logger).Log("msg", "shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	level.Info(logger).Log("msg", "server stopped")
	return nil
}
