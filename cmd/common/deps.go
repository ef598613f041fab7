// Package common provides the shared dependency setup used by every
// subcommand: configuration loading and logger construction.
package common

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/northvine/sitesync/internal/config"
	"github.com/northvine/sitesync/internal/logger"
)

// Deps holds the dependencies shared by all subcommands.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewDeps builds command dependencies from the root command's persistent
// flags.
func NewDeps(cmd *cobra.Command) (*Deps, error) {
	cfgFile, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("read config flag: %w", err)
	}
	debug, err := cmd.Root().PersistentFlags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("read debug flag: %w", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if debug {
		cfg.Logger.Level = "debug"
		cfg.Logger.Development = true
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}
