package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/generate"
	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/watch"
)

var watchInterval time.Duration

// WatchCmd keeps the stubs current while sources change. A full
// generation runs up front so the first save starts from a consistent
// tree.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Regenerate stubs when sources change",
	Long: `Watch the configured paths for Python source changes and regenerate
stubs after each batch of edits. Rapid saves coalesce into one run; the
--interval flag sets the minimum gap between runs.

Examples:
  stubzen watch                 # Watch with the default 2s quiet interval
  stubzen watch --interval 10s  # At most one regeneration per 10 seconds`,
	RunE: runWatch,
}

func init() {
	WatchCmd.Flags().DurationVarP(&watchInterval, "interval", "i", watch.DefaultQuietInterval, "Minimum interval between regenerations")
}

func runWatch(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	engine, err := watch.NewEngineWithInterval(root, cfg, watchInterval)
	if err != nil {
		return errors.Wrap(err, "failed to start watch engine")
	}

	regenerate := func(changed []string) error {
		res, err := generate.Run(cmd.Context(), root, cfg, generate.Options{
			OnWrite: engine.MarkOwnWrite,
		})
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			logger.Warnw("Regeneration finished with failures",
				"written", res.Written, "failed", res.Failed)
		}
		return nil
	}

	// Initial full generation before watching.
	if err := regenerate(nil); err != nil {
		return errors.Wrap(err, "initial generation failed")
	}

	engine.OnChange(regenerate)
	engine.Start()
	defer engine.Stop()

	pterm.Info.Printfln("Watching %s for changes (session %s), Ctrl+C to stop", root, engine.Session())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
	case <-cmd.Context().Done():
	}
	return nil
}
