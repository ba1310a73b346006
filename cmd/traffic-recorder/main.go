// Traffic Recorder
// Keeps a GDL90 receiver session open and writes the live traffic table to
// PostgreSQL so sightings can be reviewed later.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/common/version"
	"golang.org/x/sync/errgroup"

	"github.com/guardianone/adsb-traffic/internal/app"
	"github.com/guardianone/adsb-traffic/internal/db"
	"github.com/guardianone/adsb-traffic/pkg/adsb"
	"github.com/guardianone/adsb-traffic/pkg/config"
	"github.com/guardianone/adsb-traffic/pkg/receiver"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	host := flag.String("receiver", "", "Receiver address (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	printVersion := flag.Bool("version", false, "Print build version information")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.Print("traffic-recorder"))
		os.Exit(0)
	}

	logger := app.NewLogger(os.Stderr, *debug)

	cfg, err := config.Load(*configPath)
	if err != nil {
		level.Error(logger).Log("msg", "failed to load configuration", "err", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Receiver.Host = *host
	}
	if err := cfg.Validate(); err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retry := adsb.DefaultRetryConfig()
	retry.MaxRetries = -1
	database, err := db.ReconnectWithRetry(ctx, logger, cfg.Database, retry)
	if err != nil {
		level.Error(logger).Log("msg", "database unavailable", "err", err)
		os.Exit(1)
	}

	if err := database.InitSchema(ctx); err != nil {
		level.Error(logger).Log("msg", "failed to initialize schema", "err", err)
		database.Close()
		os.Exit(1)
	}

	rcv := receiver.New(logger, cfg.Receiver.ToReceiver(cfg.Alerts))
	defer rcv.Close()

	rec := &Recorder{
		logger:          log.With(logger, "component", "recorder"),
		cfg:             cfg,
		source:          rcv,
		db:              database,
		interval:        time.Duration(cfg.Recorder.IntervalSeconds) * time.Second,
		retention:       time.Duration(cfg.Recorder.RetentionHours) * time.Hour,
		cleanupInterval: time.Duration(cfg.Recorder.CleanupIntervalMinutes) * time.Minute,
	}

	level.Info(logger).Log(
		"msg", "recorder started",
		"receiver", cfg.Receiver.Host,
		"interval", rec.interval,
		"retention", rec.retention,
	)

	var eg errgroup.Group
	eg.Go(func() error {
		if err := app.KeepConnected(ctx, logger, rcv, cfg.Receiver.Host, cfg.Receiver); err != nil {
			level.Warn(logger).Log("msg", "receiver not connected", "err", err)
		}
		return nil
	})
	eg.Go(func() error {
		rec.Run(ctx)
		return nil
	})
	eg.Wait()

	if rec.db != nil {
		rec.db.Close()
	}
	level.Info(logger).Log("msg", "recorder stopped")
}

// Recorder periodically stores the receiver's traffic table.
type Recorder struct {
	logger log.Logger
	cfg    *config.Config
	source adsb.Source
	db     *db.DB
	repo   *db.TrafficRepository

	interval        time.Duration
	retention       time.Duration
	cleanupInterval time.Duration

	totalRecorded int
}

// Run records until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(r.cleanupInterval)
	defer cleanupTicker.Stop()

	statsTicker := time.NewTicker(time.Minute)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.record(ctx)
		case <-cleanupTicker.C:
			r.cleanup(ctx)
		case <-statsTicker.C:
			r.logStats(ctx)
		}
	}
}

// ensureDB reconnects when the connection was lost and rebuilds the repository.
func (r *Recorder) ensureDB(ctx context.Context) bool {
	conn, err := db.EnsureConnection(ctx, r.logger, r.db, r.cfg.Database)
	if err != nil {
		level.Error(r.logger).Log("msg", "database unavailable", "err", err)
		r.db = nil
		r.repo = nil
		return false
	}
	if conn != r.db || r.repo == nil {
		r.db = conn
		r.repo = db.NewTrafficRepository(conn, r.cfg.Ownship.Position().Position())
	}
	return true
}

func (r *Recorder) record(ctx context.Context) {
	snapshot := r.source.Aircraft()
	if len(snapshot) == 0 {
		return
	}
	if !r.ensureDB(ctx) {
		return
	}

	var stored int
	err := db.WithRetry(ctx, func() error {
		var err error
		stored, err = r.repo.RecordSnapshot(ctx, snapshot, time.Now())
		return err
	}, 2)
	if err != nil {
		level.Error(r.logger).Log("msg", "failed to record snapshot", "err", err)
		return
	}

	r.totalRecorded += stored
	level.Debug(r.logger).Log("msg", "snapshot recorded", "aircraft", len(snapshot), "stored", stored)
}

func (r *Recorder) cleanup(ctx context.Context) {
	if !r.ensureDB(ctx) {
		return
	}
	deleted, err := r.db.CleanupOldData(ctx, time.Now(), r.retention)
	if err != nil {
		level.Error(r.logger).Log("msg", "cleanup failed", "err", err)
		return
	}
	if deleted > 0 {
		level.Info(r.logger).Log("msg", "old sightings removed", "count", deleted)
	}
}

func (r *Recorder) logStats(ctx context.Context) {
	if !r.ensureDB(ctx) {
		return
	}
	if err := db.HealthCheck(ctx, r.db); err != nil {
		level.Warn(r.logger).Log("msg", "database unhealthy", "err", err)
		return
	}
	stats, err := r.db.GetStats(ctx, time.Now(), r.cfg.Receiver.StaleAfter())
	if err != nil {
		level.Warn(r.logger).Log("msg", "failed to read stats", "err", err)
		return
	}
	level.Info(r.logger).Log(
		"msg", "recorder stats",
		"recorded", r.totalRecorded,
		"aircraft", stats.Aircraft,
		"active", stats.ActiveAircraft,
		"sightings", stats.Sightings,
	)
}
