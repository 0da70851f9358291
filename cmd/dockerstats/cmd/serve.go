package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/rusenback/dockerstats/internal/config"
	"github.com/rusenback/dockerstats/internal/control"
	"github.com/rusenback/dockerstats/internal/docker"
	"github.com/rusenback/dockerstats/internal/query"
	"github.com/rusenback/dockerstats/internal/sampler"
	"github.com/rusenback/dockerstats/internal/server"
	"github.com/rusenback/dockerstats/internal/storage"
	"github.com/rusenback/dockerstats/internal/telemetry"
	"github.com/rusenback/dockerstats/internal/updates"
)

var (
	serveHost       string
	servePort       int
	serveDockerHost string
	serveInterval   time.Duration
	serveRetention  time.Duration
	serveWorkers    int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sample containers and serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyServeFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		serve()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Address to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDockerHost, "docker-host", "", "Docker engine address")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "Sampling interval")
	serveCmd.Flags().DurationVar(&serveRetention, "retention", 0, "How long samples are kept")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Concurrent stats calls per cycle")
}

func applyServeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("docker-host") {
		cfg.DockerHost = serveDockerHost
	}
	if flags.Changed("interval") {
		cfg.SampleInterval = serveInterval
	}
	if flags.Changed("retention") {
		cfg.Retention = serveRetention
	}
	if flags.Changed("workers") {
		cfg.Workers = serveWorkers
	}
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := docker.NewClient(docker.Config{
		Host:        cfg.DockerHost,
		TLSVerify:   cfg.TLSVerify,
		CertPath:    cfg.CertPath,
		Timeout:     30 * time.Second,
		CallTimeout: cfg.CallTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to docker, make sure the engine is running and the socket is readable")
	}
	defer engine.Close()

	store := storage.New(cfg.Capacity())
	exporter := telemetry.New(func() int { return len(store.IDs()) })

	smp := sampler.New(engine, store,
		sampler.WithInterval(cfg.SampleInterval),
		sampler.WithWorkers(cfg.Workers),
		sampler.WithObserver(exporter.ObserveCycle),
	)

	checker := updates.NewChecker(engine, rate.NewLimiter(rate.Limit(cfg.RegistryRate), cfg.RegistryBurst))
	scheduler := updates.NewScheduler(engine, store, checker,
		updates.WithInterval(cfg.UpdateCheckInterval),
		updates.WithTick(cfg.UpdateCheckTick),
		updates.WithObserver(exporter.ObserveUpdateCheck),
	)

	queries := query.New(engine, store, query.WithDetailTTL(cfg.DetailCacheTTL))
	defer queries.Close()

	ctrl := control.New(engine, store, control.WithAfter(func(id, action string, err error) {
		exporter.ObserveAction(action, err)
		queries.Invalidate(id)
		if action == control.ActionUpdate && err == nil {
			scheduler.Trigger()
		}
	}))

	srv := server.New(engine, queries, ctrl, exporter,
		server.WithHost(cfg.Host),
		server.WithPort(cfg.Port),
		server.WithBasicAuth(cfg.AuthUser, cfg.AuthPassword),
		server.WithForceRefresh(func() {
			store.ForceAllUpdateChecks()
			scheduler.Trigger()
		}),
	)

	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		smp.Run(ctx)
	}()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	announce(cfg)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		if err := srv.Stop(); err != nil {
			log.Errorf("failed to stop server: %v", err)
		}
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
		stop()
	}
	<-sampled
}

func announce(c *config.Config) {
	log.WithFields(log.Fields{
		"addr":      fmt.Sprintf("%s:%d", c.Host, c.Port),
		"retention": c.Retention,
		"capacity":  c.Capacity(),
	}).Info("dockerstats serving")
}
