// Package commands implements the stubzen subcommands.
package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/errors"
)

// projectRoot resolves the --project-root persistent flag to an
// absolute path.
func projectRoot(cmd *cobra.Command) (string, error) {
	root, _ := cmd.Root().PersistentFlags().GetString("project-root")
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve project root %s", root)
	}
	return abs, nil
}

// loadConfig loads the project configuration for a command.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load configuration from %s", root)
	}
	return cfg, nil
}
