package tenants

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/pipeline"
	"github.com/northvine/sitesync/internal/tenant"
)

// newUploadCmd creates the upload command. It reads every *.json file in the
// given directory, validates each as a tenant config, and puts it into the
// tenants KV store keyed by tenant id.
func newUploadCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload tenant configs from a directory of JSON files",
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

			files, err := filepath.Glob(filepath.Join(dir, "*.json"))
			if err != nil {
				return fmt.Errorf("list config files: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no *.json files in %q", dir)
			}

			for _, file := range files {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}

				var cfg domain.TenantConfig
				if err := json.Unmarshal(raw, &cfg); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
				if err := tenant.Validate(&cfg); err != nil {
					return fmt.Errorf("validate %s: %w", file, err)
				}

				if err := store.Put(cmd.Context(), cfg.TenantID, raw); err != nil {
					return fmt.Errorf("upload %s: %w", cfg.TenantID, err)
				}
				deps.Logger.Info("Uploaded tenant config",
					logger.String("tenant", cfg.TenantID),
					logger.String("file", filepath.Base(file)))
			}

			deps.Logger.Info("Upload complete", logger.Int("tenants", len(files)))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory containing tenant config JSON files")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}
