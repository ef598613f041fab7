package tenants

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/pipeline"
	"github.com/northvine/sitesync/internal/tenant"
)

// newValidateCmd creates the validate command. It checks every stored tenant
// config, reporting each problem, and fails when any config is invalid.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate all stored tenant configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, client, stores, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			mc, err := pipeline.LoadMainConfig(cmd.Context(), stores, deps.Config.Pipeline.MainConfigStore)
			if err != nil {
				return fmt.Errorf("load main config: %w", err)
			}

			store := stores.Open(mc.TenantsStoreName)
			loader := tenant.NewLoader(store, deps.Logger)

			keys, err := store.Keys(cmd.Context())
			if err != nil {
				return fmt.Errorf("list tenant configs: %w", err)
			}

			invalid := 0
			for _, key := range keys {
				cfg, err := loader.Load(cmd.Context(), key)
				if err == nil {
					err = tenant.Validate(cfg)
				}
				if err != nil {
					invalid++
					deps.Logger.Error("Invalid tenant config",
						logger.String("tenant", key),
						logger.Error(err))
					continue
				}
				deps.Logger.Info("Tenant config valid", logger.String("tenant", key))
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d tenant configs invalid", invalid, len(keys))
			}
			cmd.Printf("All %d tenant configs valid\n", len(keys))
			return nil
		},
	}
}
