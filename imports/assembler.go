// Package imports assembles the import header of a stub unit from the
// references its type resolver accumulated: eager standard-library
// imports, a consolidated typing import, and project or dependency
// imports deferred behind TYPE_CHECKING so a stub never introduces an
// import cycle.
package imports

import (
	"sort"
	"strings"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/extract"
	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/pysrc"
)

// Assembler builds import headers for stub units. One assembler serves
// a whole run; per-unit state arrives as arguments.
type Assembler struct {
	index *discovery.SymbolIndex
	cfg   *config.Config
}

// NewAssembler returns an assembler that resolves bare type names
// through the project's symbol index.
func NewAssembler(index *discovery.SymbolIndex, cfg *config.Config) *Assembler {
	return &Assembler{index: index, cfg: cfg}
}

// Header renders the import block for one unit. defined holds the class
// names the unit itself declares, which are never imported. A unit with
// no signatures renders as a single blank line.
func (a *Assembler) Header(res *extract.TypeResolver, sigs []extract.SignatureInfo, defined map[string]bool) string {
	if len(sigs) == 0 {
		return "\n"
	}

	h := newHeader()
	for _, used := range res.UsedTypes() {
		a.addResolved(h, used, defined)
	}
	for _, ref := range res.ForwardRefs() {
		a.addForwardRef(h, ref, defined)
	}
	for _, expr := range res.ComplexExprs() {
		a.addComplexExpr(h, expr, defined)
	}
	for _, name := range res.StringRefs() {
		a.addStringRef(h, name, defined)
	}
	scanSignatures(h, sigs)

	return h.render()
}

// addResolved places an index-resolved class in its section: builtins
// need no import, typing names join the typing line, safe standard
// library modules import eagerly, everything else defers.
func (a *Assembler) addResolved(h *header, used extract.Resolved, defined map[string]bool) {
	if defined[used.Name] || a.cfg.IsExcludedModule(used.Module) {
		return
	}
	switch {
	case used.Module == "builtins":
	case used.Module == "typing":
		h.typing[used.Name] = struct{}{}
	case pysrc.SafeModules[used.Module]:
		h.standard[fromImport(used.Module, used.Name)] = struct{}{}
	default:
		h.gated[fromImport(used.Module, used.Name)] = struct{}{}
	}
}

// addForwardRef defers a "module.Class" reference. The import targets
// the original module, never the stub beside it.
func (a *Assembler) addForwardRef(h *header, ref string, defined map[string]bool) {
	dot := strings.LastIndex(ref, ".")
	if dot < 0 {
		return
	}
	module, name := ref[:dot], ref[dot+1:]
	if defined[name] || a.cfg.IsExcludedModule(module) {
		return
	}
	h.gated[fromImport(module, name)] = struct{}{}
}

// addComplexExpr mines a verbatim expression for typing constructs and
// quoted class names. Only CapWord names resolve; dotted references
// inside complex expressions stay as quoted text.
func (a *Assembler) addComplexExpr(h *header, expr string, defined map[string]bool) {
	for _, name := range pysrc.TypingMatches(expr) {
		h.typing[name] = struct{}{}
	}
	for _, name := range pysrc.QuotedNames(expr) {
		if !pysrc.IsCapWord(name) || defined[name] {
			continue
		}
		module, ok := a.index.Resolve(name)
		if !ok || a.cfg.IsExcludedModule(module) {
			continue
		}
		h.gated[fromImport(module, name)] = struct{}{}
	}
}

// addStringRef resolves a bare string reference through the symbol
// index. Unresolvable names stay quoted in the stub body with no
// import.
func (a *Assembler) addStringRef(h *header, name string, defined map[string]bool) {
	if pysrc.PrimitiveNames[name] || defined[name] {
		return
	}
	if pysrc.TypingConstructs[name] {
		h.typing[name] = struct{}{}
		return
	}
	module, ok := a.index.Resolve(name)
	if !ok {
		logger.Debugw("string type reference did not resolve", "name", name)
		return
	}
	if a.cfg.IsExcludedModule(module) {
		return
	}
	h.gated[fromImport(module, name)] = struct{}{}
}

// scanSignatures sweeps the rendered signature text for typing
// vocabulary the registries may have missed.
func scanSignatures(h *header, sigs []extract.SignatureInfo) {
	var raw strings.Builder
	for i, sig := range sigs {
		if i > 0 {
			raw.WriteByte(' ')
		}
		raw.WriteString(sig.Raw)
	}
	for _, name := range pysrc.TypingMatches(raw.String()) {
		h.typing[name] = struct{}{}
	}
}

// header collects import statements per section before rendering.
type header struct {
	standard map[string]struct{}
	typing   map[string]struct{}
	gated    map[string]struct{}
}

func newHeader() *header {
	return &header{
		standard: make(map[string]struct{}),
		typing:   make(map[string]struct{}),
		gated:    make(map[string]struct{}),
	}
}

// render lays the sections out in fixed order under a linter
// suppression line. An eager import suppresses its deferred duplicate.
func (h *header) render() string {
	for stmt := range h.standard {
		delete(h.gated, stmt)
	}
	for name := range h.typing {
		delete(h.gated, fromImport("typing", name))
	}

	lines := []string{"# noinspection PyUnresolvedReferences", ""}

	if len(h.standard) > 0 {
		lines = append(lines, sortedKeys(h.standard)...)
		lines = append(lines, "")
	}

	if len(h.typing) > 0 {
		lines = append(lines, typingLines(sortedKeys(h.typing))...)
		lines = append(lines, "")
	}

	if len(h.gated) > 0 {
		lines = append(lines, "from typing import TYPE_CHECKING", "", "if TYPE_CHECKING:")
		lines = append(lines, gatedLines(h.gated)...)
	}

	return strings.Join(lines, "\n")
}

// typingLines renders the typing import, parenthesized one name per
// line once the list outgrows a single readable line.
func typingLines(names []string) []string {
	if len(names) <= 6 {
		return []string{"from typing import " + strings.Join(names, ", ")}
	}
	lines := make([]string, 0, len(names)+2)
	lines = append(lines, "from typing import (")
	for i, name := range names {
		if i < len(names)-1 {
			lines = append(lines, "    "+name+",")
		} else {
			lines = append(lines, "    "+name)
		}
	}
	return append(lines, ")")
}

// gatedLines renders the TYPE_CHECKING body grouped by module, modules
// sorted, statements sorted within a group, a blank line between
// groups.
func gatedLines(gated map[string]struct{}) []string {
	byModule := make(map[string][]string)
	for stmt := range gated {
		module := importModule(stmt)
		byModule[module] = append(byModule[module], stmt)
	}
	modules := make([]string, 0, len(byModule))
	for module := range byModule {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	var lines []string
	for _, module := range modules {
		stmts := byModule[module]
		sort.Strings(stmts)
		for _, stmt := range stmts {
			lines = append(lines, "    "+stmt)
		}
		lines = append(lines, "")
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// importModule extracts the module a "from M import N" statement names.
func importModule(stmt string) string {
	rest := strings.TrimPrefix(stmt, "from ")
	if module, _, ok := strings.Cut(rest, " import "); ok {
		return module
	}
	return rest
}

func fromImport(module, name string) string {
	return "from " + module + " import " + name
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
