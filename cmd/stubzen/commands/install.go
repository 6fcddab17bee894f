package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stubzen/stubzen/display"
	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/generate"
	"github.com/stubzen/stubzen/stubpkg"
)

var (
	installName  string
	installBump  bool
	installNoPip bool
	installNoGen bool
)

// InstallCmd packages the generated stubs as a PEP 561 stub-only
// distribution and installs it into the active environment.
var InstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Assemble and install a PEP 561 stub package",
	Long: `Generate stubs, assemble them into a <project>-stubs package under
stubs-dist/, and install it with the configured installer command
(default: pip install -e).

Examples:
  stubzen install             # Generate, package, pip install
  stubzen install --bump      # Increment the package patch version
  stubzen install --no-pip    # Assemble the package without installing
  stubzen install --name foo  # Install as foo-stubs`,
	RunE: runInstall,
}

func init() {
	InstallCmd.Flags().StringVar(&installName, "name", "", "Package name (default: inferred from pyproject.toml)")
	InstallCmd.Flags().BoolVar(&installBump, "bump", false, "Increment the patch component of package_version")
	InstallCmd.Flags().BoolVar(&installNoPip, "no-pip", false, "Assemble the package but skip installation")
	InstallCmd.Flags().BoolVar(&installNoGen, "no-generate", false, "Package the existing stubs/ tree without regenerating")
	InstallCmd.Flags().Bool("json", false, "Output the packaging result as JSON")
}

func runInstall(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	if !installNoGen {
		res, err := generate.Run(cmd.Context(), root, cfg, generate.Options{})
		if err != nil {
			return errors.Wrap(err, "stub generation failed")
		}
		if res.Planned > 0 && res.Written+res.Skipped == 0 {
			return errors.Wrapf(errors.ErrValidationFailed, "every planned unit failed")
		}
	}

	res, err := stubpkg.Assemble(cmd.Context(), root, cfg, stubpkg.Options{
		PackageName: installName,
		Bump:        installBump,
		NoInstall:   installNoPip,
	})
	if err != nil {
		return errors.Wrap(err, "stub package installation failed")
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(res)
	}
	pterm.Success.Printfln("✓ Assembled %s %s (%d stub files)", res.PackageName, res.Version, res.StubFiles)
	if res.Installed {
		pterm.Success.Printfln("✓ Installed %s", res.PackageName)
	} else {
		pterm.Info.Printfln("Package left at %s", res.Dir)
	}
	return nil
}
