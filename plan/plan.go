// Package plan groups discovered target classes into stub output
// units according to the configured stub style.
package plan

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/logger"
)

// Unit is one stub file to produce.
type Unit struct {
	// Path is the output file, relative to the project root.
	Path string
	// Classes render in order: declaration order within a module,
	// modules in sorted order when a unit aggregates several.
	Classes []*discovery.ClassInfo
}

// Modules returns the distinct source modules contributing to the
// unit, in rendering order.
func (u Unit) Modules() []string {
	var modules []string
	seen := make(map[string]bool)
	for _, ci := range u.Classes {
		if !seen[ci.Module] {
			seen[ci.Module] = true
			modules = append(modules, ci.Module)
		}
	}
	return modules
}

// SourceFiles returns the distinct source files the unit's content
// depends on: each class's own file plus the files of project
// ancestors, whose members flatten into the stub. The manifest hashes
// these to decide whether a unit is stale.
func (u Unit) SourceFiles() []string {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if path != "" && !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	for _, ci := range u.Classes {
		add(ci.FilePath)
		for _, anc := range ci.Ancestors() {
			if anc.Class != nil {
				add(anc.Class.FilePath)
			}
		}
	}
	return files
}

// DefinedClasses returns the class names the unit declares. References
// to these never import.
func (u Unit) DefinedClasses() map[string]bool {
	defined := make(map[string]bool, len(u.Classes))
	for _, ci := range u.Classes {
		defined[ci.Name] = true
	}
	return defined
}

// Plan lays out one unit per source module (inline and module styles)
// or per top-level package (package style). Every class outside
// excluded modules is stubbed; non-target classes simply render
// without inherited-member flattening.
func Plan(project *discovery.Project, cfg *config.Config) ([]Unit, error) {
	modules, byModule := stubbedByModule(project)

	var units []Unit
	switch cfg.StubStyle {
	case config.StyleInline:
		units = perModuleUnits(modules, byModule, inlinePath)
	case config.StyleModule:
		units = perModuleUnits(modules, byModule, modulePath)
	case config.StylePackage:
		units = perPackageUnits(modules, byModule)
	default:
		return nil, errors.Wrapf(errors.ErrUnknownStubStyle, "%q", cfg.StubStyle)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })
	logger.Debugw("planned stub units", "style", cfg.StubStyle, "units", len(units))
	return units, nil
}

// stubbedByModule collects stub-worthy classes per module. Walk order
// of project.Classes preserves declaration order within each module.
func stubbedByModule(project *discovery.Project) ([]string, map[string][]*discovery.ClassInfo) {
	byModule := make(map[string][]*discovery.ClassInfo)
	for _, ci := range project.Classes {
		if ci.Excluded {
			continue
		}
		byModule[ci.Module] = append(byModule[ci.Module], ci)
	}
	modules := make([]string, 0, len(byModule))
	for module := range byModule {
		modules = append(modules, module)
	}
	sort.Strings(modules)
	return modules, byModule
}

func perModuleUnits(modules []string, byModule map[string][]*discovery.ClassInfo, pathFor func(string) string) []Unit {
	units := make([]Unit, 0, len(modules))
	for _, module := range modules {
		units = append(units, Unit{Path: pathFor(module), Classes: byModule[module]})
	}
	return units
}

// perPackageUnits aggregates modules under their first dotted
// component, one stub per top-level package.
func perPackageUnits(modules []string, byModule map[string][]*discovery.ClassInfo) []Unit {
	byPackage := make(map[string][]*discovery.ClassInfo)
	var order []string
	for _, module := range modules {
		top, _, _ := strings.Cut(module, ".")
		if _, seen := byPackage[top]; !seen {
			order = append(order, top)
		}
		byPackage[top] = append(byPackage[top], byModule[module]...)
	}
	units := make([]Unit, 0, len(order))
	for _, top := range order {
		units = append(units, Unit{
			Path:    filepath.Join("stubs", top+".pyi"),
			Classes: byPackage[top],
		})
	}
	return units
}

// inlinePath places the stub beside its source module.
func inlinePath(module string) string {
	parts := strings.Split(module, ".")
	parts[len(parts)-1] += ".pyi"
	return filepath.Join(parts...)
}

// modulePath mirrors the package tree under stubs/.
func modulePath(module string) string {
	return filepath.Join("stubs", inlinePath(module))
}
