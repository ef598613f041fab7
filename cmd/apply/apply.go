// Package apply implements the index application command, the third pipeline
// stage.
package apply

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/cmd/common"
	"github.com/northvine/sitesync/internal/pipeline"
)

// Command returns the apply command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Apply queued index actions to the search indexes",
		Long: `Apply drains the action queue and executes each upsert or delete
against the owning tenant's search index. Every operation is idempotent, so
redelivered actions converge on the same index state.`,
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

			return p.Apply(cmd.Context())
		},
	}
}
