package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibedb/internal/config"
	"vibedb/internal/logger"
	"vibedb/internal/version"
)

var (
	cfgFile     string
	showVersion bool
)

func init() {
	flag.StringVar(&cfgFile, "config", "", "config file (default searches /etc/vibedb, $HOME/.config/vibedb, .)")
	flag.BoolVar(&showVersion, "version", false, "show version")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("vibedbd %s\n", version.String())
		os.Exit(0)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = log.Close() }()

	log.Info("starting vibedbd",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"log_level", cfg.Log.Level,
		"log_format", cfg.Log.Format,
		"trust_gateway", cfg.Server.TrustGateway,
	)

	daemon := NewDaemon(cfg, log)

	ctx := context.Background()
	if err := daemon.Start(ctx); err != nil {
		log.Error("failed to start daemon", "error", err)
		os.Exit(1)
	}

	// Re-apply the log level on config change without a restart.
	if watcher, err := config.NewWatcher(cfgFile); err == nil {
		watcher.OnChange(func(next *config.Config) {
			if err := log.SetLevel(next.Log.Level); err != nil {
				log.Warn("ignoring invalid log level from config reload", "level", next.Log.Level)
				return
			}
			log.Info("config reloaded", "log_level", next.Log.Level)
		})
		watcher.Start()
	} else {
		log.Warn("config watching disabled", "error", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("received shutdown signal", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := daemon.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}

	log.Info("vibedbd stopped")
}
