package extract

import (
	"github.com/stubzen/stubzen/discovery"
)

// effectiveHints computes the annotation in force per attribute name
// for one target class. Ancestors fold farthest to nearest with each
// level overwriting, then the class's own annotations overwrite, then
// generic-bound hints fill remaining gaps — a bound never displaces a
// concrete own or ancestor annotation.
func effectiveHints(ci *discovery.ClassInfo, inherited bool, bounds []*discovery.ClassInfo) map[string]Type {
	hints := make(map[string]Type)

	if inherited {
		ancestors := ci.Ancestors()
		for i := len(ancestors) - 1; i >= 0; i-- {
			if ancestors[i].Class == nil {
				continue
			}
			overlayDirectHints(hints, ancestors[i].Class)
		}
	}
	overlayDirectHints(hints, ci)

	for _, bound := range bounds {
		for name, hint := range fullHints(bound) {
			current, ok := hints[name]
			if !ok || IsAny(current) {
				hints[name] = hint
			}
		}
	}

	return hints
}

// overlayDirectHints writes one class's own class-body annotations over
// the map.
func overlayDirectHints(hints map[string]Type, ci *discovery.ClassInfo) {
	for _, cv := range ci.Decl.ClassVars {
		if cv.Annotation != "" {
			hints[cv.Name] = ParseAnnotation(cv.Annotation)
		}
	}
}

// fullHints is the fully-inherited hint map of a bound class: its whole
// MRO folded farthest to nearest, the bound itself last.
func fullHints(ci *discovery.ClassInfo) map[string]Type {
	hints := make(map[string]Type)
	mro := ci.MRO
	for i := len(mro) - 1; i >= 0; i-- {
		if mro[i].Class == nil {
			continue
		}
		overlayDirectHints(hints, mro[i].Class)
	}
	return hints
}
