// Package orchestrate implements the crawl orchestration command, the second
// pipeline stage.
package orchestrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/cmd/common"
	"github.com/northvine/sitesync/internal/pipeline"
)

// Command returns the orchestrate command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "orchestrate",
		Short: "Fetch changed pages and enqueue index actions",
		Long: `Orchestrate drains the change queue, fetches new and updated pages
through the crawl engine one job per tenant, stores the results, and enqueues
an index action for each page. Extra entry points are crawled on every run.`,
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

			return p.Orchestrate(cmd.Context())
		},
	}
}
