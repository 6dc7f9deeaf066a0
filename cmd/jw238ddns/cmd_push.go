package main

import (
	"fmt"

	"jabberwocky238/jw238ddns/reconcile"

	"github.com/spf13/cobra"
)

func newCmdPush() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push every stored record once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPathFlag(cmd))
			if err != nil {
				return err
			}
			store, err := buildStore(cmd.Context(), cfg, false)
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

			res := reconcile.New(store, client, rcfg).PushAll(cmd.Context())
			if res.Err != nil {
				return fmt.Errorf("list records: %w", res.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d records: %d succeeded, %d failed\n", res.Records, res.Succeeded, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d records failed to push", res.Failed, res.Records)
			}
			return nil
		},
	}
}
