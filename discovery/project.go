// Package discovery walks a Python project, parses every source file,
// and builds the semantic model stub generation runs on: the module
// table, class inventory with MROs, the symbol index, and per-module
// TypeVar declarations.
package discovery

import (
	"sort"
	"strings"

	"github.com/stubzen/stubzen/pysrc"
)

// Category is the stub classification of a class.
type Category int

const (
	// CategoryStandard marks non-target classes: stubbed without
	// inherited-member flattening.
	CategoryStandard Category = iota
	// CategoryMixin marks configured mixins and *Mixin-named classes.
	CategoryMixin
	// CategoryBase marks the configured base classes themselves.
	CategoryBase
	// CategoryAbstract marks abstract descendants of a configured base.
	CategoryAbstract
	// CategoryConcrete marks concrete descendants of a configured base.
	CategoryConcrete
)

func (c Category) String() string {
	switch c {
	case CategoryMixin:
		return "mixin"
	case CategoryBase:
		return "base"
	case CategoryAbstract:
		return "abstract"
	case CategoryConcrete:
		return "concrete"
	default:
		return "standard"
	}
}

// Ancestor is one MRO entry. Class is nil for classes outside the
// project (stdlib, dependencies, unresolvable bases); those participate
// by name only.
type Ancestor struct {
	Name  string
	Class *ClassInfo
}

// ClassInfo is the semantic record for one discovered class. It is
// immutable once Discover returns.
type ClassInfo struct {
	Name     string
	Module   string
	FilePath string
	Decl     *pysrc.Class
	Category Category
	// Excluded marks classes whose module matches exclude_modules. They
	// stay discoverable (MRO flattening and import resolution may pass
	// through them) but never become output units.
	Excluded bool
	// MRO is the C3 linearization, self first, `object` omitted.
	MRO []Ancestor
}

// Ref returns the dotted module.Class reference.
func (ci *ClassInfo) Ref() string {
	return ci.Module + "." + ci.Name
}

// IsTarget reports whether the class was matched by configured base or
// mixin references.
func (ci *ClassInfo) IsTarget() bool {
	return ci.Category != CategoryStandard
}

// Ancestors returns the MRO without the class itself.
func (ci *ClassInfo) Ancestors() []Ancestor {
	if len(ci.MRO) == 0 {
		return nil
	}
	return ci.MRO[1:]
}

// Project is the discovered model of one source tree.
type Project struct {
	Root string
	// Modules maps dotted module paths to parsed sources.
	Modules map[string]*pysrc.Module
	// Classes lists every discovered top-level class in walk order
	// (sorted file paths, declaration order within a file).
	Classes []*ClassInfo
	Index   *SymbolIndex
	// TypeVars maps module path to TypeVar declarations in declaration
	// order.
	TypeVars map[string][]pysrc.TypeVarDecl

	byRef map[string]*ClassInfo
	// bindings: module → imported name → source module. Covers both
	// from-imports (name defined in source module) and plain import
	// aliases (name is the module itself).
	bindings map[string]map[string]string
	// gated: same, restricted to TYPE_CHECKING imports.
	gated map[string]map[string]string
}

// ClassByRef looks up a class by its dotted module.Class reference.
func (p *Project) ClassByRef(ref string) (*ClassInfo, bool) {
	ci, ok := p.byRef[ref]
	return ci, ok
}

// ClassIn looks up a class by module path and bare name.
func (p *Project) ClassIn(module, name string) (*ClassInfo, bool) {
	return p.ClassByRef(module + "." + name)
}

// ClassesInModule returns the classes declared in one module, in
// declaration order.
func (p *Project) ClassesInModule(module string) []*ClassInfo {
	var out []*ClassInfo
	for _, ci := range p.Classes {
		if ci.Module == module {
			out = append(out, ci)
		}
	}
	return out
}

// ModulePaths returns the discovered module paths, sorted.
func (p *Project) ModulePaths() []string {
	paths := make([]string, 0, len(p.Modules))
	for path := range p.Modules {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// ImportBinding resolves an imported name within a module to its source
// module.
func (p *Project) ImportBinding(module, name string) (string, bool) {
	src, ok := p.bindings[module][name]
	return src, ok
}

// TypeCheckingImport resolves a name against the module's
// TYPE_CHECKING-gated imports only. These are the strongest constructor
// annotation hints.
func (p *Project) TypeCheckingImport(module, name string) (string, bool) {
	src, ok := p.gated[module][name]
	return src, ok
}

// resolveRelative turns a relative import module ("..core") into an
// absolute dotted path, relative to the importing module.
func resolveRelative(module string, isPackage bool, imported string) string {
	if !strings.HasPrefix(imported, ".") {
		return imported
	}
	dots := 0
	for dots < len(imported) && imported[dots] == '.' {
		dots++
	}
	rest := imported[dots:]

	base := module
	if !isPackage {
		base = parentModule(base)
	}
	for i := 1; i < dots; i++ {
		base = parentModule(base)
	}

	switch {
	case base == "":
		return rest
	case rest == "":
		return base
	default:
		return base + "." + rest
	}
}

func parentModule(module string) string {
	if idx := strings.LastIndex(module, "."); idx >= 0 {
		return module[:idx]
	}
	return ""
}
