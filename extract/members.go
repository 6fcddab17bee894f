package extract

import (
	"sort"

	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/pysrc"
)

// collectMembers harvests the signature candidates for one class.
// Generic-bound classes go first and contribute their whole effective
// interface; the class and, when inherited flattening is on, its MRO
// follow with direct declarations only; annotated constructor
// attributes come last, own levels before bound ones. The first
// occurrence of a name wins.
func collectMembers(p *discovery.Project, ci *discovery.ClassInfo, inherited bool, bounds []*discovery.ClassInfo) []Member {
	var out []Member
	seenNames := make(map[string]bool)
	seenClasses := make(map[string]bool)

	add := func(m Member) {
		name := m.MemberName()
		if seenNames[name] || skipMember(name) {
			return
		}
		seenNames[name] = true
		out = append(out, m)
	}

	for _, bound := range bounds {
		if seenClasses[bound.Name] {
			continue
		}
		seenClasses[bound.Name] = true
		for _, dm := range interfaceMembers(bound) {
			dm.Class = bound
			dm.FromBound = true
			add(dm)
		}
	}

	levels := []*discovery.ClassInfo{ci}
	if inherited {
		for _, anc := range ci.Ancestors() {
			if anc.Class != nil {
				levels = append(levels, anc.Class)
			}
		}
	}
	for _, level := range levels {
		if seenClasses[level.Name] {
			continue
		}
		seenClasses[level.Name] = true
		for _, dm := range declaredMembers(level) {
			add(dm)
		}
	}

	for _, level := range levels {
		for _, cm := range constructorMembers(p, level) {
			add(cm)
		}
	}
	for _, bound := range bounds {
		for _, cm := range constructorMembers(p, bound) {
			add(cm)
		}
	}

	return out
}

// skipMember applies the member deny rules: interpreter and abc
// bookkeeping attributes, and dunders outside __init__/__str__/__repr__.
func skipMember(name string) bool {
	return pysrc.IsDeniedAttr(name) || (pysrc.IsDunder(name) && !pysrc.DunderAllowed[name])
}

// declaredMembers lists one class's direct declarations in source
// order, methods and class variables interleaved by line.
func declaredMembers(ci *discovery.ClassInfo) []DeclaredMember {
	decl := ci.Decl
	out := make([]DeclaredMember, 0, len(decl.Methods)+len(decl.ClassVars))
	for _, fn := range decl.Methods {
		out = append(out, DeclaredMember{Name: fn.Name, Function: fn, Class: ci})
	}
	for _, cv := range decl.ClassVars {
		out = append(out, DeclaredMember{Name: cv.Name, Assign: cv, Class: ci})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return memberLine(out[i]) < memberLine(out[j])
	})
	return out
}

func memberLine(m DeclaredMember) int {
	if m.Function != nil {
		return m.Function.Line
	}
	return m.Assign.Line
}

// interfaceMembers flattens a bound class's MRO into its visible
// interface: nearest declaration per name.
func interfaceMembers(bound *discovery.ClassInfo) []DeclaredMember {
	var out []DeclaredMember
	seen := make(map[string]bool)
	levels := bound.MRO
	if len(levels) == 0 {
		levels = []discovery.Ancestor{{Name: bound.Name, Class: bound}}
	}
	for _, level := range levels {
		if level.Class == nil {
			continue
		}
		for _, dm := range declaredMembers(level.Class) {
			if seen[dm.Name] {
				continue
			}
			seen[dm.Name] = true
			out = append(out, dm)
		}
	}
	return out
}

// constructorMembers yields the annotated self.<name> records of one
// class's own __init__.
func constructorMembers(p *discovery.Project, ci *discovery.ClassInfo) []ConstructorMember {
	for _, fn := range ci.Decl.Methods {
		if fn.Name != "__init__" {
			continue
		}
		var out []ConstructorMember
		for _, sa := range fn.SelfAssigns {
			if sa.Annotation == "" {
				continue
			}
			out = append(out, ConstructorMember{
				Name:          sa.Name,
				RawAnnotation: sa.Annotation,
				Resolved:      resolveConstructorAnnotation(p, ci.Module, sa.Annotation),
				Class:         ci,
			})
		}
		return out
	}
	return nil
}

// resolveConstructorAnnotation gives a constructor record its
// harvest-time resolution. Bare names check the defining module's
// TYPE_CHECKING imports first, then the symbol index; everything else
// defers to render-time dispatch.
func resolveConstructorAnnotation(p *discovery.Project, module, raw string) Type {
	t := ParseAnnotation(raw)
	named, ok := t.(Named)
	if !ok {
		return t
	}
	if pysrc.PrimitiveNames[named.Name] || pysrc.TypingConstructs[named.Name] {
		return t
	}
	if src, ok := p.TypeCheckingImport(module, named.Name); ok {
		return Resolved{Name: named.Name, Module: src}
	}
	if src, ok := p.Index.Resolve(named.Name); ok {
		return Resolved{Name: named.Name, Module: src}
	}
	return t
}
