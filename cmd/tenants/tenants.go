// Package tenants implements the tenant configuration management commands:
// uploading tenant and main config records, listing, and validation.
package tenants

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/cmd/common"
	"github.com/northvine/sitesync/internal/kvstore"
	"github.com/northvine/sitesync/internal/redis"
)

// Command returns the tenants command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage tenant configurations",
		Long: `The tenants command manages the tenant configuration records the
pipeline reads: upload configs from disk, upload the main config, list the
configured tenants, and validate stored configs.`,
	}

	cmd.AddCommand(
		newUploadCmd(),
		newUploadMainCmd(),
		newListCmd(),
		newValidateCmd(),
	)

	return cmd
}

// connect builds command deps plus a Redis-backed store opener.
func connect(cmd *cobra.Command) (*common.Deps, *goredis.Client, kvstore.Opener, error) {
	deps, err := common.NewDeps(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := redis.NewClient(redis.Config{
		Address:  deps.Config.Redis.Address,
		Password: deps.Config.Redis.Password,
		DB:       deps.Config.Redis.DB,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	return deps, client, kvstore.NewRedisOpener(client), nil
}
