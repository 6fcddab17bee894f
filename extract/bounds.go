package extract

import (
	"strings"

	"github.com/stubzen/stubzen/discovery"
)

// typeVarBounds returns the bound classes acting as virtual nearest
// ancestors for a generic class: TypeVars named in the class's
// subscripted bases whose declarations carry a bound that resolves to a
// project class. Bounds merge in TypeVar declaration order, own-module
// declarations before imported ones.
func typeVarBounds(p *discovery.Project, ci *discovery.ClassInfo) []*discovery.ClassInfo {
	params := genericParams(ci)
	if len(params) == 0 {
		return nil
	}
	inParams := make(map[string]bool, len(params))
	for _, name := range params {
		inParams[name] = true
	}

	var bounds []*discovery.ClassInfo
	seen := make(map[string]bool)
	add := func(b *discovery.ClassInfo) {
		if b != nil && !seen[b.Ref()] {
			seen[b.Ref()] = true
			bounds = append(bounds, b)
		}
	}

	declared := make(map[string]bool)
	for _, decl := range p.TypeVars[ci.Module] {
		declared[decl.Name] = true
		if !inParams[decl.Name] || decl.Bound == "" {
			continue
		}
		add(resolveBoundRef(p, ci.Module, decl.Bound))
	}

	// TypeVars imported from another module resolve against their
	// declaring module, in parameter appearance order.
	for _, name := range params {
		if declared[name] {
			continue
		}
		src, ok := p.ImportBinding(ci.Module, name)
		if !ok {
			continue
		}
		for _, decl := range p.TypeVars[src] {
			if decl.Name == name && decl.Bound != "" {
				add(resolveBoundRef(p, src, decl.Bound))
			}
		}
	}

	return bounds
}

// genericParams collects the subscript argument names across the
// class's bases in appearance order: for `class C(Generic[T],
// Mapping[str, V])` that is T, str, V; only names with TypeVar
// declarations matter downstream.
func genericParams(ci *discovery.ClassInfo) []string {
	var params []string
	seen := make(map[string]bool)
	for _, base := range ci.Decl.Bases {
		for _, arg := range base.Args {
			arg = strings.Trim(strings.TrimSpace(arg), `'"`)
			if arg == "" || strings.ContainsAny(arg, "[](),") || seen[arg] {
				continue
			}
			seen[arg] = true
			params = append(params, arg)
		}
	}
	return params
}

// resolveBoundRef maps a TypeVar bound expression to a project class:
// quoted forms are unwrapped, bare names go through import bindings,
// the declaring module, then the index; dotted forms are looked up as
// absolute references first.
func resolveBoundRef(p *discovery.Project, module, bound string) *discovery.ClassInfo {
	clean := strings.Trim(strings.TrimSpace(bound), `'"`)
	if clean == "" {
		return nil
	}
	if strings.Contains(clean, ".") {
		if ci, ok := p.ClassByRef(clean); ok {
			return ci
		}
		head := clean[:strings.IndexByte(clean, '.')]
		rest := clean[strings.IndexByte(clean, '.'):]
		if src, ok := p.ImportBinding(module, head); ok {
			prefix := src + rest
			if idx := strings.LastIndex(prefix, "."); idx >= 0 {
				if ci, ok := p.ClassIn(prefix[:idx], prefix[idx+1:]); ok {
					return ci
				}
			}
		}
		return nil
	}
	if src, ok := p.ImportBinding(module, clean); ok {
		if ci, ok := p.ClassIn(src, clean); ok {
			return ci
		}
	}
	if ci, ok := p.ClassIn(module, clean); ok {
		return ci
	}
	if m, ok := p.Index.ResolveProject(clean); ok {
		if ci, ok := p.ClassIn(m, clean); ok {
			return ci
		}
	}
	return nil
}
