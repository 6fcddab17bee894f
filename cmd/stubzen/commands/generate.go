package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/display"
	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/generate"
	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/report"
)

var (
	generateStyle      string
	generateForce      bool
	generateReportFile string
)

// GenerateCmd runs the full stub generation pipeline.
var GenerateCmd = &cobra.Command{
	Use:   "generate [pattern...]",
	Short: "Generate stub files for the project",
	Long: `Generate .pyi stub files for every target class in the project.

Positional patterns restrict generation to units whose module paths
contain one of them as a substring.

Examples:
  stubzen generate                     # Everything, per pyproject.toml
  stubzen generate app.models          # Only units touching app.models
  stubzen generate --style package     # One stub per top-level package
  stubzen generate --force             # Ignore the unchanged-source skip
  stubzen generate --report-file r.yml # Export the missing report`,
	RunE: runGenerate,
}

func init() {
	GenerateCmd.Flags().StringVarP(&generateStyle, "style", "s", "", "Stub placement style: inline, module or package (default: configured)")
	GenerateCmd.Flags().BoolVarP(&generateForce, "force", "f", false, "Regenerate every unit even when sources are unchanged")
	GenerateCmd.Flags().StringVar(&generateReportFile, "report-file", "", "Write the missing-annotation report to this YAML file")
	GenerateCmd.Flags().Bool("json", false, "Output the run report as JSON")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	// verbose_logging raises the level for runs started without an
	// explicit --verbose.
	if cfg.VerboseLogging {
		if v, _ := cmd.Flags().GetCount("verbose"); v == 0 {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			if err := logger.Initialize(1, jsonOutput); err != nil {
				return errors.Wrap(err, "failed to reinitialize logger")
			}
		}
	}
	if generateStyle != "" {
		switch generateStyle {
		case config.StyleInline, config.StyleModule, config.StylePackage:
			cfg.StubStyle = generateStyle
		default:
			return errors.Wrapf(errors.ErrUnknownStubStyle, "%s", generateStyle)
		}
	}

	res, err := generate.Run(cmd.Context(), root, cfg, generate.Options{
		Force:    generateForce,
		Patterns: args,
	})
	if err != nil {
		return errors.Wrap(err, "stub generation failed")
	}

	rep := report.New(res)
	if generateReportFile != "" {
		if err := rep.WriteYAML(generateReportFile); err != nil {
			return err
		}
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(rep)
	}

	for _, unit := range res.Units {
		switch {
		case unit.Err != nil:
			pterm.Error.Printfln("✗ %s: %v", unit.Path, unit.Err)
		case unit.Skipped:
			pterm.Printf("- %s (unchanged)\n", pterm.Gray(unit.Path))
		default:
			pterm.Printf("✓ Generated %s (%d classes)\n", unit.Path, unit.Classes)
		}
	}

	if cfg.LogMissingTypes {
		rep.RenderTerminal()
	}
	fmt.Printf("\n%d written, %d skipped, %d failed (%s)\n",
		res.Written, res.Skipped, res.Failed, res.Duration.Round(time.Millisecond))

	if res.Planned > 0 && res.Written+res.Skipped == 0 {
		return errors.Wrapf(errors.ErrValidationFailed, "every planned unit failed")
	}
	return nil
}
