package discovery

import (
	"strings"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/logger"
)

// abstractNameMarkers flag abstract-by-convention class names.
var abstractNameMarkers = []string{"Base", "Abstract", "ABC"}

// classifyAll resolves the configured base/mixin references and assigns
// every class its category. References that do not resolve to a
// discovered class are skipped at debug level; they are configuration
// for code that is not in this tree, not an error.
func classifyAll(p *Project, cfg *config.Config) {
	bases := resolveConfiguredRefs(p, cfg.BaseClasses, "base")
	mixins := resolveConfiguredRefs(p, cfg.MixinClasses, "mixin")

	for _, ci := range p.Classes {
		ci.Category = classify(ci, bases, mixins)
	}
}

func resolveConfiguredRefs(p *Project, refs []string, kind string) map[*ClassInfo]bool {
	resolved := make(map[*ClassInfo]bool, len(refs))
	for _, ref := range refs {
		ci, ok := p.ClassByRef(ref)
		if !ok {
			logger.Debugw("configured class not found in project", "kind", kind, "ref", ref)
			continue
		}
		resolved[ci] = true
	}
	return resolved
}

func classify(ci *ClassInfo, bases, mixins map[*ClassInfo]bool) Category {
	mixin := isMixin(ci, mixins)
	if !mixin && !descendsFromAny(ci, bases) {
		return CategoryStandard
	}
	if mixin {
		return CategoryMixin
	}
	if bases[ci] {
		return CategoryBase
	}
	if isAbstract(ci) {
		return CategoryAbstract
	}
	return CategoryConcrete
}

/// isMixin: configured mixin ancestry, or the Mixin naming convention.
func isMixin(ci *ClassInfo, mixins map[*ClassInfo]bool) bool {
	if strings.HasSuffix(ci.Name, "Mixin") {
		return true
	}
	for _, a := range ci.MRO {
		if a.Class != nil && mixins[a.Class] {
			return true
		}
	}
	return false
}

// descendsFromAny includes the base itself.
func descendsFromAny(ci *ClassInfo, bases map[*ClassInfo]bool) bool {
	for _, a := range ci.MRO {
		if a.Class != nil && bases[a.Class] {
			return true
		}
	}
	return false
}

// isAbstract detects abstractness three ways: abc machinery in the
// hierarchy, outstanding abstract methods, or naming convention.
func isAbstract(ci *ClassInfo) bool {
	if hasABCAncestry(ci) {
		return true
	}
	if hasOutstandingAbstractMethods(ci) {
		return true
	}
	for _, marker := range abstractNameMarkers {
		if strings.Contains(ci.Name, marker) {
			return true
		}
	}
	return false
}

func hasABCAncestry(ci *ClassInfo) bool {
	for _, a := range ci.MRO {
		if a.Class == nil {
			if a.Name == "ABC" || a.Name == "ABCMeta" {
				return true
			}
			continue
		}
		if meta := a.Class.Decl.Metaclass; meta == "ABCMeta" || strings.HasSuffix(meta, ".ABCMeta") {
			return true
		}
	}
	return false
}

// hasOutstandingAbstractMethods walks the MRO nearest-first and keeps
// the first definition seen per method name; the class is abstract when
// any surviving definition is @abstractmethod.
func hasOutstandingAbstractMethods(ci *ClassInfo) bool {
	firstSeen := make(map[string]bool) // name → isAbstract of nearest def
	outstanding := false
	for _, a := range ci.MRO {
		if a.Class == nil {
			continue
		}
		for _, fn := range a.Class.Decl.Methods {
			if _, seen := firstSeen[fn.Name]; seen {
				continue
			}
			firstSeen[fn.Name] = fn.IsAbstract()
			if fn.IsAbstract() {
				outstanding = true
			}
		}
	}
	return outstanding
}
