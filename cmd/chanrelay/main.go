package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"chanrelay/internal/bus"
	"chanrelay/internal/channel"
	"chanrelay/internal/config"
	"chanrelay/internal/domain"
	"chanrelay/internal/logging"
	"chanrelay/internal/metrics"
	"chanrelay/internal/relay"
	"chanrelay/internal/store"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "chanrelay",
		Short: "Relay Telegram channel posts to webhooks",
		Long:  "chanrelay long-polls Telegram for broadcast channel posts, cleans them up and forwards them to the webhooks configured per channel.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.chanrelay/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(runCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(configCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("chanrelay", version)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long:  "Show effective configuration values after file, environment and defaults are applied.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. relay.busSize)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			paths, values := config.ListPaths(config.Sanitize(cfg))
			for _, p := range paths {
				data, _ := json.Marshal(values[p])
				fmt.Printf("%s = %s\n", p, data)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay",
		Long:  "Polls Telegram for channel posts and relays them until interrupted. Press Ctrl+C to stop.",
		RunE:  runRelay,
	}
}

// stateStore is satisfied by both the SQLite and the in-memory store.
type stateStore interface {
	domain.WatermarkStore
	domain.DeliveryLog
	store.Prunable
	io.Closer
}

func openState(cfg config.StateConfig, log *slog.Logger) (stateStore, error) {
	if cfg.DBPath == "" {
		log.Warn("state.dbPath not set, watermarks are kept in memory only")
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(cfg.DBPath, log)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, found, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, logCloser := logging.New(cfg.General)
	defer logCloser.Close()
	if !found {
		log.Warn("config not found, using defaults", "path", cfgPath)
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required (or set CHANRELAY_TELEGRAM_TOKEN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mapping := config.LoadChannels(cfg.Relay.ChannelsFile, logging.Named(log, "config"))

	state, err := openState(cfg.State, logging.Named(log, "store"))
	if err != nil {
		return fmt.Errorf("state store: %w", err)
	}
	defer state.Close()

	var pruner *store.Pruner
	if cfg.State.DBPath != "" {
		retention := time.Duration(cfg.State.RetentionDays) * 24 * time.Hour
		pruner, err = store.NewPruner(state, cfg.State.PruneSchedule, retention, logging.Named(log, "pruner"))
		if err != nil {
			return fmt.Errorf("pruner: %w", err)
		}
		pruner.Start()
		defer pruner.Stop()
	}

	events := bus.NewEventBus(logging.Named(log, "events"))

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		m := metrics.NewRelay()
		m.Observe(events)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, cfg.Metrics.Endpoint, m.Collector, logging.Named(log, "metrics")); err != nil {
				log.Error("metrics server error", "err", err)
			}
		}()
	}

	dispatcher, err := channel.NewDispatcher(channel.DispatcherConfig{
		Timeout:   time.Duration(cfg.Delivery.TimeoutSeconds) * time.Second,
		UserAgent: cfg.Delivery.UserAgent,
		Logger:    logging.Named(log, "dispatch"),
	})
	if err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}

	backoff := relay.NewBackoff(relay.BackoffConfig{Events: events, Logger: logging.Named(log, "backoff")})

	service := relay.NewService(relay.ServiceConfig{
		Mapping:         mapping,
		Watermarks:      state,
		Deliveries:      state,
		Sender:          dispatcher,
		BlockedMentions: cfg.Relay.BlockedMentions,
		RecentWindow:    cfg.Relay.RecentWindow,
		Backoff:         backoff,
		Events:          events,
		Logger:          logging.Named(log, "relay"),
	})

	messageBus := bus.New(cfg.Relay.BusSize, logging.Named(log, "bus"))

	source := channel.NewTelegram(channel.TelegramConfig{
		Token:       cfg.Telegram.Token,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		PollTimeout: cfg.Telegram.PollTimeout,
		Debug:       cfg.Telegram.Debug,
		Mapping:     mapping,
		Guard:       backoff.Guard,
		Logger:      logging.Named(log, "telegram"),
	})

	serviceDone := make(chan struct{})
	go func() {
		defer close(serviceDone)
		if err := service.Run(ctx, messageBus); err != nil {
			log.Error("relay error", "err", err)
		}
	}()

	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- source.Start(ctx, messageBus)
	}()

	log.Info("relay started. Press Ctrl+C to stop.", "channels", mapping.Len(), "version", version)

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-sourceErr:
		if err != nil {
			log.Error("telegram source stopped", "err", err)
			runErr = fmt.Errorf("telegram: %w", err)
		}
		stop()
	}
	log.Info("shutting down relay...")

	const shutdownTimeout = 10 * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		source.Stop()
		messageBus.Close()
		<-serviceDone
		wg.Wait()
	}()

	select {
	case <-done:
		log.Info("shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out, forcing exit")
		if runErr == nil {
			runErr = fmt.Errorf("shutdown timed out")
		}
	}
	return runErr
}
