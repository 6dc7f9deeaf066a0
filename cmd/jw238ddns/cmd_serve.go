package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	jwhttp "jabberwocky238/jw238ddns/http"
	"jabberwocky238/jw238ddns/reconcile"
	"jabberwocky238/jw238ddns/registry"
	"jabberwocky238/jw238ddns/update"

	"github.com/spf13/cobra"
)

func newCmdServe() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the registration API and the push loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPathFlag(cmd))
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	slog.Info("Starting jw238ddns", "version", version, "config", configPath)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	client, err := buildClient(cfg)
	if err != nil {
		return err
	}
	rcfg, err := reconcileConfig(cfg)
	if err != nil {
		return err
	}
	timeout, _ := cfg.UpdateTimeout()

	reconciler := reconcile.New(store, client, rcfg)
	svc := registry.NewService(store, reconciler, cfg.Strict())
	checker := update.NewChecker(cfg.Update.Server, timeout)

	httpSrv := jwhttp.NewServer(jwhttp.ServerConfig{
		Listen:    cfg.HTTP.Listen,
		AuthToken: cfg.AuthToken(),
	}, svc, reconciler, checker)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Reconciliation loop failed", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err = <-errCh:
		if err != nil {
			slog.Error("HTTP registration server failed", "error", err)
		}
		stop()
	}

	httpSrv.Shutdown()
	wg.Wait()
	slog.Info("Server stopped")
	return err
}
