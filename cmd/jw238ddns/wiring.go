package main

import (
	"context"
	"fmt"
	"log/slog"

	"jabberwocky238/jw238ddns/config"
	"jabberwocky238/jw238ddns/reconcile"
	"jabberwocky238/jw238ddns/storage"
	"jabberwocky238/jw238ddns/update"

	"github.com/spf13/cobra"
)

func configPathFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.Path()
	}
	return path
}

// loadConfig loads and validates the configuration and reconfigures the
// logger from it.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	level, _ := cfg.LogLevel()
	setupLogger(level, cfg.Log.Format)
	return cfg, nil
}

// buildStore creates the configured EntryStore. For the file store with
// watching enabled, the fsnotify watcher runs until ctx is cancelled.
func buildStore(ctx context.Context, cfg *config.Config, watch bool) (storage.EntryStore, error) {
	switch cfg.Storage.Type {
	case config.StorageMemory:
		slog.Warn("Using in-memory storage, records are lost on restart")
		return storage.NewMemoryStorage(), nil

	case config.StorageConfigMap:
		cm := cfg.Storage.ConfigMap
		client, err := storage.NewK8sClient(cm.Kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("create kubernetes client: %w", err)
		}
		slog.Info("ConfigMap storage initialized",
			"namespace", cm.Namespace,
			"name", cm.Name,
			"key", cm.DataKey,
		)
		return storage.NewConfigMapStore(client, cm.Namespace, cm.Name, cm.DataKey), nil

	default:
		store := storage.NewJSONFileStore(cfg.Storage.File.Path)
		if watch && cfg.Storage.File.Watch {
			go func() {
				slog.Info("Starting store file watcher", "path", store.Path())
				if err := store.Watch(ctx); err != nil && ctx.Err() == nil {
					slog.Error("Store file watcher failed", "error", err)
				}
			}()
		}
		slog.Info("File storage initialized", "path", store.Path())
		return store, nil
	}
}

// buildClient creates the configured update.Client.
func buildClient(cfg *config.Config) (update.Client, error) {
	timeout, err := cfg.UpdateTimeout()
	if err != nil {
		return nil, err
	}

	switch cfg.Update.Mode {
	case config.UpdateRFC2136:
		slog.Info("Using native DNS UPDATE client", "server", cfg.Update.Server, "zone", cfg.Update.Zone)
		return update.NewRFC2136Client(update.RFC2136Config{
			Server:        cfg.Update.Server,
			Zone:          cfg.Update.Zone,
			ReverseZone:   cfg.Update.ReverseZone,
			Timeout:       timeout,
			TSIGName:      cfg.Update.TSIG.Name,
			TSIGSecret:    cfg.TSIGSecret(),
			TSIGAlgorithm: cfg.Update.TSIG.Algorithm,
		}), nil
	default:
		runner := update.NewExecRunner(cfg.Update.Binary, cfg.Update.Args, timeout)
		slog.Info("Using nsupdate client", "server", cfg.Update.Server, "binary", runner.Binary)
		return update.NewNSUpdateClient(cfg.Update.Server, runner), nil
	}
}

func reconcileConfig(cfg *config.Config) (reconcile.Config, error) {
	interval, err := cfg.PushInterval()
	if err != nil {
		return reconcile.Config{}, err
	}
	tick, err := cfg.TickInterval()
	if err != nil {
		return reconcile.Config{}, err
	}
	return reconcile.Config{Interval: interval, Tick: tick}, nil
}
