package generate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/extract"
	"github.com/stubzen/stubzen/imports"
	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/manifest"
	"github.com/stubzen/stubzen/plan"
)

// Options adjust a single pipeline run.
type Options struct {
	// Force regenerates every unit even when the manifest says its
	// sources are unchanged.
	Force bool
	// Patterns restricts the run to units whose module paths contain
	// one of these substrings.
	Patterns []string
	// OnWrite is called with the absolute path of every stub written,
	// before the manifest records it. Watch mode uses it to suppress
	// its own write events.
	OnWrite func(path string)
}

// UnitResult records how one planned unit fared.
type UnitResult struct {
	Path    string
	Classes int
	Written bool
	Skipped bool
	Err     error
}

// Result summarizes one pipeline run.
type Result struct {
	RunID    string
	Style    string
	Planned  int
	Written  int
	Skipped  int
	Failed   int
	Units    []UnitResult
	Missing  []extract.MissingAnnotation
	Duration time.Duration
}

// Ok reports whether every planned unit was either written or skipped.
func (r *Result) Ok() bool {
	return r.Failed == 0
}

// Run executes the whole pipeline against the project at root:
// discovery, planning, per-unit extraction, import assembly, rendering,
// validation, and atomic writes, with manifest bookkeeping around it.
// Validation failures reject single units and are counted on the
// result; only discovery or planning problems fail the run itself.
func Run(ctx context.Context, root string, cfg *config.Config, opts Options) (*Result, error) {
	started := time.Now()
	runID := uuid.NewString()

	project, err := discovery.Discover(ctx, root, cfg)
	if err != nil {
		return nil, err
	}

	units, err := plan.Plan(project, cfg)
	if err != nil {
		return nil, err
	}
	units = filterUnits(units, opts.Patterns)

	store, err := manifest.Open(root)
	if err != nil {
		// A broken manifest costs skip detection, not the run.
		logger.Warnw("Manifest unavailable, regenerating every unit", "error", err)
		store = nil
	} else {
		defer store.Close()
		if err := store.BeginRun(runID, cfg.StubStyle); err != nil {
			logger.Debugw("Failed to record run start", "error", err)
		}
	}

	ext := extract.NewExtractor(project, cfg)
	asm := imports.NewAssembler(project.Index, cfg)

	res := &Result{RunID: runID, Style: cfg.StubStyle, Planned: len(units)}
	logger.Infow("Starting stub generation",
		"run_id", runID,
		"style", cfg.StubStyle,
		"units", len(units),
		"classes", len(project.Classes))

	for _, unit := range units {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		outPath := filepath.Join(root, unit.Path)
		sourceHash := manifest.HashSources(unit.SourceFiles())

		if store != nil && !opts.Force {
			if skip := unchanged(store, unit.Path, sourceHash, outPath); skip {
				logger.Debugw("Sources unchanged, skipping unit", "path", unit.Path)
				res.Skipped++
				res.Units = append(res.Units, UnitResult{Path: unit.Path, Classes: len(unit.Classes), Skipped: true})
				continue
			}
		}

		ext.ResetUnit()
		var blocks []string
		var allSigs []extract.SignatureInfo
		for _, ci := range unit.Classes {
			sigs := ext.ExtractClass(ci)
			line := classLine(ext.Resolver(), ci)
			blocks = append(blocks, renderClassBlock(line, ci.Name, sigs))
			allSigs = append(allSigs, sigs...)
			// The class line itself carries importable vocabulary.
			allSigs = append(allSigs, extract.SignatureInfo{Raw: line})
		}

		header := asm.Header(ext.Resolver(), allSigs, unit.DefinedClasses())
		content := composeUnit(header, blocks)

		if err := ValidateUnit(unit.Path, content); err != nil {
			logger.Warnw("Stub failed validation and was not written",
				"path", unit.Path,
				"outcome", extract.OutcomeFatal.String(),
				"error", err)
			res.Failed++
			res.Units = append(res.Units, UnitResult{Path: unit.Path, Classes: len(unit.Classes), Err: err})
			continue
		}

		if err := writeFileAtomic(outPath, content); err != nil {
			logger.Warnw("Failed to write stub", "path", unit.Path, "error", err)
			res.Failed++
			res.Units = append(res.Units, UnitResult{Path: unit.Path, Classes: len(unit.Classes), Err: err})
			continue
		}
		if opts.OnWrite != nil {
			opts.OnWrite(outPath)
		}

		if store != nil {
			rec := manifest.UnitRecord{
				Path:        unit.Path,
				Modules:     unit.Modules(),
				SourceHash:  sourceHash,
				WrittenHash: manifest.HashContent(content),
				RunID:       runID,
			}
			if err := store.RecordUnit(rec); err != nil {
				logger.Debugw("Failed to record unit in manifest", "path", unit.Path, "error", err)
			}
		}

		res.Written++
		res.Units = append(res.Units, UnitResult{Path: unit.Path, Classes: len(unit.Classes), Written: true})
		logger.Infow("Generated stub", "path", unit.Path, "classes", len(unit.Classes))
	}

	if cfg.StubStyle != config.StyleInline && res.Planned > 0 {
		if err := ensurePyTyped(root); err != nil {
			logger.Debugw("Failed to create py.typed marker", "error", err)
		}
	}

	res.Missing = ext.Missing()
	if store != nil {
		if err := store.FinishRun(runID, res.Planned, res.Written, res.Skipped, res.Failed, len(res.Missing)); err != nil {
			logger.Debugw("Failed to record run finish", "error", err)
		}
	}
	res.Duration = time.Since(started)

	logger.Infow("Stub generation finished",
		"run_id", runID,
		"written", res.Written,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"missing_annotations", len(res.Missing),
		"duration", res.Duration)
	return res, nil
}

// unchanged reports whether the unit's recorded source hash matches and
// its output file still exists on disk.
func unchanged(store *manifest.Store, path, sourceHash, outPath string) bool {
	same, err := store.Unchanged(path, sourceHash)
	if err != nil {
		logger.Debugw("Manifest lookup failed", "path", path, "error", err)
		return false
	}
	if !same {
		return false
	}
	if _, err := os.Stat(outPath); err != nil {
		return false
	}
	return true
}

// filterUnits keeps the units whose modules match any pattern by
// substring, the same containment test the module exclusion list uses.
func filterUnits(units []plan.Unit, patterns []string) []plan.Unit {
	if len(patterns) == 0 {
		return units
	}
	var kept []plan.Unit
	for _, unit := range units {
		if unitMatches(unit, patterns) {
			kept = append(kept, unit)
		}
	}
	return kept
}

func unitMatches(unit plan.Unit, patterns []string) bool {
	for _, module := range unit.Modules() {
		for _, pattern := range patterns {
			if strings.Contains(module, pattern) {
				return true
			}
		}
	}
	return false
}

// ensurePyTyped creates the PEP 561 marker beside the generated stubs.
// An existing marker is left alone so watch cycles do not touch it.
func ensurePyTyped(root string) error {
	marker := filepath.Join(root, "stubs", "py.typed")
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(marker), 0o755); err != nil {
		return err
	}
	return os.WriteFile(marker, nil, 0o644)
}
