package tenants

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/internal/pipeline"
	"github.com/northvine/sitesync/internal/tenant"
)

// newListCmd creates the list command, rendering every configured tenant as
// a table row.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured tenants",
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

			loader := tenant.NewLoader(stores.Open(mc.TenantsStoreName), deps.Logger)
			configs, err := loader.LoadAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("load tenant configs: %w", err)
			}

			if len(configs) == 0 {
				cmd.Println("No tenants configured")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Tenant", "Site", "Sitemap", "Index", "Result Store", "Entry Points"})
			for i := range configs {
				cfg := &configs[i]
				t.AppendRow(table.Row{
					cfg.TenantID,
					cfg.SiteURL,
					cfg.SitemapURL,
					cfg.IndexName,
					cfg.ResultStoreName,
					len(cfg.ExtraEntryPoints),
				})
			}
			t.Render()
			return nil
		},
	}
}
