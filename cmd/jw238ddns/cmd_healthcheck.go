package main

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"jabberwocky238/jw238ddns/config"

	"github.com/spf13/cobra"
)

func newCmdHealthcheck() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPathFlag(cmd))
			if err != nil {
				return err
			}
			return probeHealth(healthURL(cfg.HTTP.Listen))
		},
	}
}

// healthURL turns a listen address into a loopback URL for /health.
func healthURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/health"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/health"
}

func probeHealth(url string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe: %s returned %d", url, resp.StatusCode)
	}
	return nil
}
