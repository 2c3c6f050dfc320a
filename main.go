package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vzahanych/view-guard-meta/portal/internal/aggregate"
	"github.com/vzahanych/view-guard-meta/portal/internal/backend"
	"github.com/vzahanych/view-guard-meta/portal/internal/config"
	"github.com/vzahanych/view-guard-meta/portal/internal/health"
	"github.com/vzahanych/view-guard-meta/portal/internal/live"
	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
	"github.com/vzahanych/view-guard-meta/portal/internal/service"
	"github.com/vzahanych/view-guard-meta/portal/internal/web"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (short)")
	flag.Parse()

	// Load configuration
	cfgSvc, err := config.NewService(configPath, logger.NewNopLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := cfgSvc.Get()

	// Initialize logger
	log, err := logger.New(logger.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	cfgSvc.SetLogger(log)

	log.Info("Starting camera portal",
		"version", version,
		"build_time", buildTime,
		"git_commit", gitCommit,
		"backend", cfg.Backend.BaseURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := backend.NewClient(backend.Config{
		BaseURL:         cfg.Backend.BaseURL,
		PrivateBaseURL:  cfg.Backend.PrivateBaseURL,
		PrivateUsername: cfg.Backend.PrivateUsername,
		PrivatePassword: cfg.Backend.PrivatePassword,
		Timeout:         cfg.Backend.Timeout,
		UserAgent:       cfg.Backend.UserAgent,
	}, log.Named("backend"))

	agg := aggregate.New(client, aggregate.Options{
		MaxConcurrency: cfg.Aggregate.MaxConcurrency,
		PTZStep:        cfg.PTZ.Step,
	}, log.Named("aggregate"))

	svcMgr := service.NewManager(log)

	webServer := web.NewServer(&cfg.Web, agg, client, log)
	webServer.SetVersion(version)
	webServer.SetStatusSource(svcMgr)

	var subscriber *live.Subscriber
	if cfg.Live.Enabled {
		hub := live.NewHub(cfg.Web.AllowedOrigins, log.Named("live"))
		webServer.SetLiveHub(hub)
		svcMgr.Register(live.NewRefresher(agg, hub, live.RefresherConfig{
			PollInterval: cfg.Live.PollInterval,
			EventLimit:   cfg.Live.EventLimit,
			Within:       cfg.Live.Within,
		}, log))

		if cfg.Live.MQTT.Broker != "" {
			subscriber = live.NewSubscriber(live.MQTTConfig{
				Broker:   cfg.Live.MQTT.Broker,
				ClientID: cfg.Live.MQTT.ClientID,
				Username: cfg.Live.MQTT.Username,
				Password: cfg.Live.MQTT.Password,
				Topic:    cfg.Live.MQTT.Topic,
			}, log)
			svcMgr.Register(subscriber)
		}
	}
	svcMgr.Register(webServer)

	if cfg.Health.Port > 0 {
		healthMgr := health.NewManager(cfg.Health.Port, svcMgr, log)
		healthMgr.RegisterChecker(health.NewBackendChecker(client, cfg.Backend.BaseURL))
		if subscriber != nil {
			healthMgr.RegisterChecker(health.NewMQTTChecker(subscriber, cfg.Live.MQTT.Broker))
		}
		svcMgr.Register(healthMgr)
	}

	// Settings that are wired into running services only take effect after a restart
	cfgSvc.Watch(func(ctx context.Context, oldCfg, newCfg *config.Config) error {
		if oldCfg.Backend != newCfg.Backend || oldCfg.Web.Port != newCfg.Web.Port || oldCfg.Live.MQTT != newCfg.Live.MQTT {
			log.Warn("Configuration changed; restart to apply", "path", configPath)
		}
		return nil
	})

	if err := svcMgr.Start(ctx); err != nil {
		log.Error("Failed to start services", "error", err)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = svcMgr.Shutdown(shutdownCtx)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := cfgSvc.Reload(ctx); err != nil {
				log.Error("Failed to reload configuration", "error", err)
			}
			continue
		}
		log.Info("Received shutdown signal", "signal", sig)
		break
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svcMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Shutdown complete")
}
