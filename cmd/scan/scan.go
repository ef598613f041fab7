// Package scan implements the sitemap scan command, the first pipeline stage.
package scan

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/cmd/common"
	"github.com/northvine/sitesync/internal/pipeline"
)

// Command returns the scan command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan tenant sitemaps and enqueue detected changes",
		Long: `Scan fetches every tenant's sitemap, diffs it against the stored
snapshot, and enqueues a change record for each added, updated, or removed
URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewDeps(cmd)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cmd.Context(), deps.Config, deps.Logger)
			if err != nil {
				return fmt.Errorf("wire pipeline: %w", err)
			}
			defer p.Close()

			return p.Scan(cmd.Context())
		},
	}
}
