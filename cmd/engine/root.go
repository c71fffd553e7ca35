package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"phdhunt-engine/internal/config"
	"phdhunt-engine/internal/events"
	"phdhunt-engine/internal/lock"
	"phdhunt-engine/internal/secrets"
	"phdhunt-engine/internal/store"
	"phdhunt-engine/internal/telemetry"
)

var (
	flagDataDir string
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "phdhunt",
	Short:         "phdhunt collects PhD listings from EURAXESS, ScholarshipDb and FindAPhD into a local store.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (env PHDHUNT_DATA_DIR, default .)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (env PHDHUNT_CONFIG, default <data-dir>/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func dataDir() string {
	if flagDataDir != "" {
		return flagDataDir
	}
	if v := os.Getenv("PHDHUNT_DATA_DIR"); v != "" {
		return v
	}
	return "."
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	if v := os.Getenv("PHDHUNT_CONFIG"); v != "" {
		return v, nil
	}
	return config.EnsureUserConfig(dataDir())
}

// loadConfig reads, normalizes and validates the config, logging warnings.
func loadConfig() (config.Config, string, error) {
	path, err := configPath()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config bootstrap failed: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, path, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if cfg.App.DataDir == "" || cfg.App.DataDir == "." {
		cfg.App.DataDir = dataDir()
	}
	cfg, v := config.NormalizeAndValidate(cfg)
	initSlog(cfg, flagVerbose)
	for _, w := range v.Warnings {
		slog.Warn("[config] " + w)
	}
	return cfg, path, v.Err()
}

func initSlog(cfg config.Config, verbose bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	var h slog.Handler
	if cfg.Logging.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		h = tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	}
	slog.SetDefault(slog.New(h))
}

// runtime is everything a command needs to touch the store or run the engine.
type runtime struct {
	cfg     config.Config
	cfgPath string
	db      *store.DB
	locker  lock.Locker
	sinks   events.Multi
	closers []func(context.Context) error
}

func openRuntime(ctx context.Context) (rt *runtime, err error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	rt = &runtime{cfg: cfg, cfgPath: path}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	shutdown, err := telemetry.Setup(ctx, "phdhunt-engine", cfg.Telemetry.OTLPHTTPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	rt.closers = append(rt.closers, shutdown)

	token, err := secrets.DBToken(cfg)
	if err != nil {
		return nil, err
	}
	if rt.db, err = store.OpenConfig(cfg, token); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return rt.db.Close() })

	pw, err := secrets.RedisPassword(cfg)
	if err != nil {
		return nil, err
	}
	if rt.locker, err = lock.New(cfg.Lock, cfg.App.DataDir, pw); err != nil {
		return nil, err
	}

	if len(cfg.Events.KafkaBrokers) > 0 {
		k := events.NewKafkaSink(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		rt.sinks = append(rt.sinks, k)
		rt.closers = append(rt.closers, func(context.Context) error { return k.Close() })
	}

	slog.Debug("[engine] runtime ready", "config", path, "store", rt.db.Driver, "lock", cfg.Lock.Backend)
	return rt, nil
}

func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			slog.Warn("[engine] shutdown", "err", err)
		}
	}
}
