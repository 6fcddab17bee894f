package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stubzen/stubzen/cmd/stubzen/commands"
	"github.com/stubzen/stubzen/logger"
)

var rootCmd = &cobra.Command{
	Use:   "stubzen",
	Short: "stubzen - Python type stub generator",
	Long: `stubzen - generate .pyi type stubs for a Python codebase.

stubzen scans the project for classes, resolves each member's type from
annotations, constructor assignments and generic bounds, and writes
declaration-only stub files for type checkers and editors.

Available commands:
  generate - Generate stub files for the project
  watch    - Regenerate stubs when sources change
  clean    - Remove generated stub files
  install  - Assemble and install a PEP 561 stub package
  version  - Show version information

Examples:
  stubzen generate                 # Generate stubs per pyproject.toml
  stubzen generate --style inline  # Place .pyi files beside sources
  stubzen watch                    # Regenerate on save
  stubzen clean --dry-run          # Preview what clean would remove
  stubzen install --bump           # Package stubs and pip install them`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(verbosity, jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json", false, "Output machine-readable JSON")
	rootCmd.PersistentFlags().StringP("project-root", "p", ".", "Project root containing pyproject.toml")

	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.CleanCmd)
	rootCmd.AddCommand(commands.InstallCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
