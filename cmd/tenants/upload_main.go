package tenants

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/internal/domain"
	"github.com/northvine/sitesync/internal/logger"
	"github.com/northvine/sitesync/internal/pipeline"
)

// newUploadMainCmd creates the upload-main command. It validates and uploads
// the main config record every stage resolves at startup.
func newUploadMainCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "upload-main",
		Short: "Upload the main config record",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, client, stores, err := connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}

			var mc domain.MainConfig
			if err := json.Unmarshal(raw, &mc); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if err := mc.Validate(); err != nil {
				return err
			}

			store := stores.Open(deps.Config.Pipeline.MainConfigStore)
			if err := store.Put(cmd.Context(), pipeline.MainConfigKey, raw); err != nil {
				return fmt.Errorf("upload main config: %w", err)
			}

			deps.Logger.Info("Uploaded main config",
				logger.String("store", deps.Config.Pipeline.MainConfigStore),
				logger.String("tenants_store", mc.TenantsStoreName),
				logger.String("change_queue", mc.ChangeQueueName),
				logger.String("action_queue", mc.ActionQueueName))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the main config JSON file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
