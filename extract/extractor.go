package extract

import (
	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/logger"
)

// Extractor turns classified classes into stub signatures. The type
// resolver inside it is unit-scoped; missing annotation records
// accumulate across the whole run for the completeness report.
type Extractor struct {
	project  *discovery.Project
	cfg      *config.Config
	resolver *TypeResolver
	missing  []MissingAnnotation
}

// NewExtractor returns an extractor over a discovered project.
func NewExtractor(p *discovery.Project, cfg *config.Config) *Extractor {
	return &Extractor{
		project:  p,
		cfg:      cfg,
		resolver: NewTypeResolver(p.Index, cfg),
	}
}

// Resolver exposes the unit-scoped type resolver for import assembly.
func (e *Extractor) Resolver() *TypeResolver {
	return e.resolver
}

// ResetUnit clears per-unit resolver state before the next output file.
func (e *Extractor) ResetUnit() {
	e.resolver.Reset()
}

// Missing returns the accumulated missing annotation records.
func (e *Extractor) Missing() []MissingAnnotation {
	return e.missing
}

// ExtractClass renders the stub signatures for one class, in harvest
// order. Target classes flatten their MRO and generic bounds into the
// stub; standard classes carry their own declarations only.
func (e *Extractor) ExtractClass(ci *discovery.ClassInfo) []SignatureInfo {
	inherited := ci.IsTarget()
	var bounds []*discovery.ClassInfo
	if inherited {
		bounds = typeVarBounds(e.project, ci)
	}
	hints := effectiveHints(ci, inherited, bounds)
	members := collectMembers(e.project, ci, inherited, bounds)

	signatures := make([]SignatureInfo, 0, len(members))
	for _, m := range members {
		info, ok := e.createSignature(ci, hints, m)
		if !ok {
			continue
		}
		info.SourceClass = m.DeclaringClass().Name
		signatures = append(signatures, info)
	}

	logger.Debugw("extracted class signatures",
		"class", ci.Ref(),
		"signatures", len(signatures),
		"bounds", len(bounds))
	return signatures
}

// createSignature dispatches one harvested member to its creator.
func (e *Extractor) createSignature(target *discovery.ClassInfo, hints map[string]Type, m Member) (SignatureInfo, bool) {
	switch v := m.(type) {
	case DeclaredMember:
		switch {
		case v.Function != nil && v.Function.IsProperty():
			return propertySignature(e.resolver, hints, v), true
		case v.Function != nil:
			info, missing := methodSignature(e.resolver, target, v)
			e.missing = append(e.missing, missing...)
			if info.Detail != "" {
				logger.Warnw("method signature degraded",
					"class", target.Ref(),
					"method", v.Name,
					"outcome", OutcomeDegraded.String())
			}
			return info, true
		default:
			return variableSignature(e.resolver, hints, v)
		}
	case ConstructorMember:
		return syntheticSignature(e.project, e.resolver, target, v), true
	}
	return SignatureInfo{}, false
}
