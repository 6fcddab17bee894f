package discovery

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/pysrc"
)

// Discover walks root for Python sources, parses them, and assembles
// the Project. Files are processed in sorted path order so every run of
// the same tree yields the same model. Unparseable files (oversized,
// non-UTF-8, unreadable) are skipped with a warning.
func Discover(ctx context.Context, root string, cfg *config.Config) (*Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve project root %s", root)
	}

	paths, err := collectSources(absRoot, cfg.ExcludedDirSet())
	if err != nil {
		return nil, errors.Wrap(err, "failed to walk project")
	}
	logger.Debugw("discovered source files", "root", absRoot, "count", len(paths))

	project := &Project{
		Root:     absRoot,
		Modules:  make(map[string]*pysrc.Module),
		Index:    NewSymbolIndex(),
		TypeVars: make(map[string][]pysrc.TypeVarDecl),
		byRef:    make(map[string]*ClassInfo),
		bindings: make(map[string]map[string]string),
		gated:    make(map[string]map[string]string),
	}

	parser := pysrc.NewParser()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mod, err := parser.ParseFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			logger.Warnw("skipping unparseable file", "file", path, "error", err)
			continue
		}
		mod.Path = modulePath(absRoot, path)
		project.Modules[mod.Path] = mod
	}

	buildProject(project, cfg)
	classifyAll(project, cfg)

	return project, nil
}

// collectSources returns the sorted .py file paths under root,
// pruning excluded directory names.
func collectSources(root string, excluded map[string]struct{}) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := excluded[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".py") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// modulePath maps a file path to its dotted module path: strip the
// root, strip .py, slashes become dots, __init__ collapses to the
// package path.
func modulePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	mod := strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	mod = strings.ReplaceAll(mod, "/", ".")
	return strings.TrimSuffix(mod, ".__init__")
}

// buildProject derives classes, bindings, the symbol index, TypeVar
// declarations, and MROs from the parsed module table.
func buildProject(project *Project, cfg *config.Config) {
	for _, module := range project.ModulePaths() {
		mod := project.Modules[module]

		project.bindings[module], project.gated[module] = bindingMaps(mod, project.Modules)

		if len(mod.TypeVars) > 0 {
			project.TypeVars[module] = mod.TypeVars
		}

		excluded := cfg.IsExcludedModule(module)
		for _, cls := range mod.Classes {
			ci := &ClassInfo{
				Name:     cls.Name,
				Module:   module,
				FilePath: mod.FilePath,
				Decl:     cls,
				Excluded: excluded,
			}
			// Redefinition keeps the later class, like the interpreter.
			if prev, ok := project.byRef[ci.Ref()]; ok {
				*prev = *ci
				continue
			}
			project.byRef[ci.Ref()] = ci
			project.Classes = append(project.Classes, ci)
			project.Index.AddProjectClass(ci.Name, module)
		}

		for _, imp := range mod.Imports {
			source := imp.Module
			if imp.Relative {
				source = resolveRelative(module, mod.IsPackage, imp.Module)
			}
			for _, name := range imp.Names {
				project.Index.AddImportedName(name.Name, source)
			}
		}
	}
	project.Index.finalize()

	builder := newMROBuilder(project)
	for _, ci := range project.Classes {
		ci.MRO = builder.linearize(ci)
	}
}

// bindingMaps builds the name → source module maps for one module. A
// from-imported name that matches a known submodule binds the submodule
// itself — unless the source module also defines a class of that name,
// in which case the class wins.
func bindingMaps(mod *pysrc.Module, modules map[string]*pysrc.Module) (all, gated map[string]string) {
	all = make(map[string]string)
	gated = make(map[string]string)

	for _, imp := range mod.Imports {
		if imp.Wildcard {
			// Star imports bind names we cannot know statically.
			continue
		}
		source := imp.Module
		if imp.Relative {
			source = resolveRelative(mod.Path, mod.IsPackage, imp.Module)
		}
		if imp.Names == nil {
			// `import a.b [as c]` binds the alias, or the top package.
			binding := imp.Alias
			target := source
			if binding == "" {
				if idx := strings.IndexByte(source, '.'); idx >= 0 {
					binding = source[:idx]
					target = binding
				} else {
					binding = source
				}
			}
			all[binding] = target
			if imp.TypeChecking {
				gated[binding] = target
			}
			continue
		}
		for _, name := range imp.Names {
			target := fromImportTarget(source, name.Name, modules)
			all[name.Binding()] = target
			if imp.TypeChecking {
				gated[name.Binding()] = target
			}
		}
	}
	return all, gated
}

func fromImportTarget(source, name string, modules map[string]*pysrc.Module) string {
	if src, ok := modules[source]; ok {
		for _, cls := range src.Classes {
			if cls.Name == name {
				return source
			}
		}
	}
	submodule := name
	if source != "" {
		submodule = source + "." + name
	}
	if _, ok := modules[submodule]; ok {
		return submodule
	}
	return source
}
