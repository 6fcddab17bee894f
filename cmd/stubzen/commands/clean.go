package commands

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/display"
	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/manifest"
)

var cleanDryRun bool

// CleanCmd removes generated stubs. The manifest knows exactly what
// stubzen wrote; without one the command falls back to walking the
// project for .pyi files.
var CleanCmd = &cobra.Command{
	Use:   "clean [pattern...]",
	Short: "Remove generated stub files",
	Long: `Remove the stub files stubzen generated, using the manifest to delete
exactly what was written. Positional patterns restrict removal to paths
containing one of them. Without a manifest, every .pyi file under the
project (outside excluded directories) is removed instead.

Examples:
  stubzen clean            # Remove everything stubzen wrote
  stubzen clean --dry-run  # Show what would be removed
  stubzen clean app/       # Only stubs under app/`,
	RunE: runClean,
}

func init() {
	CleanCmd.Flags().BoolVarP(&cleanDryRun, "dry-run", "n", false, "List files without deleting them")
}

type cleanResult struct {
	Removed []string `json:"removed"`
	Errors  []string `json:"errors,omitempty"`
	DryRun  bool     `json:"dry_run"`
}

func runClean(cmd *cobra.Command, args []string) error {
	root, err := projectRoot(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	store, err := manifest.Open(root)
	if err != nil {
		logger.Debugw("Manifest unavailable", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	targets := manifestTargets(store, args)
	if targets == nil {
		logger.Debugw("No usable manifest, falling back to project walk")
		targets = walkTargets(root, cfg, args)
	}

	res := cleanResult{DryRun: cleanDryRun}
	for _, rel := range targets {
		path := filepath.Join(root, rel)
		if cleanDryRun {
			res.Removed = append(res.Removed, rel)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		if store != nil {
			if err := store.Forget(rel); err != nil {
				logger.Debugw("Failed to forget unit", "path", rel, "error", err)
			}
		}
		res.Removed = append(res.Removed, rel)
		pruneEmptyDirs(root, filepath.Dir(path))
	}

	if display.ShouldOutputJSON(cmd) {
		return display.OutputJSON(res)
	}
	action := "Removed"
	if cleanDryRun {
		action = "Would remove"
	}
	for _, rel := range res.Removed {
		pterm.Printf("🗑  %s\n", rel)
	}
	pterm.Success.Printfln("%s %d stub files", action, len(res.Removed))
	for _, msg := range res.Errors {
		pterm.Error.Println(msg)
	}
	if cleanDryRun && len(res.Removed) > 0 {
		pterm.Info.Println("Run without --dry-run to actually delete the files")
	}
	return nil
}

// manifestTargets lists the root-relative stub paths the manifest
// recorded, or nil when the manifest is empty or unusable.
func manifestTargets(store *manifest.Store, patterns []string) []string {
	if store == nil {
		return nil
	}
	units, err := store.Units()
	if err != nil || len(units) == 0 {
		return nil
	}
	var targets []string
	for _, unit := range units {
		if matchesAny(unit.Path, patterns) {
			targets = append(targets, unit.Path)
		}
	}
	return targets
}

// walkTargets finds every .pyi file under the project root, skipping
// excluded directories.
func walkTargets(root string, cfg *config.Config, patterns []string) []string {
	excluded := cfg.ExcludedDirSet()
	var targets []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root {
				if _, skip := excluded[d.Name()]; skip || strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".pyi") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		if matchesAny(rel, patterns) {
			targets = append(targets, rel)
		}
		return nil
	})
	return targets
}

func matchesAny(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// pruneEmptyDirs removes now-empty directories up to but excluding the
// project root.
func pruneEmptyDirs(root, dir string) {
	for dir != root && strings.HasPrefix(dir, root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
