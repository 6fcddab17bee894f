package extract

import (
	"fmt"
	"strings"

	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/pysrc"
)

// methodSignature renders a def line for a method member. Unannotated
// plain parameters render as Any and produce a missing-annotation
// record; splat parameters render as written. An unrecoverable
// parameter list falls back to a splat-only signature marked
// "extraction error".
func methodSignature(r *TypeResolver, target *discovery.ClassInfo, m DeclaredMember) (SignatureInfo, []MissingAnnotation) {
	fn := m.Function
	kind := KindMethod
	if m.FromBound {
		kind = KindProtocolMethod
	}

	if brokenParams(fn) {
		return SignatureInfo{
			Name:   fn.Name,
			Kind:   kind,
			Raw:    fmt.Sprintf("def %s(self, *args, **kwargs): ...", fn.Name),
			Detail: "extraction error",
		}, nil
	}

	var missing []MissingAnnotation
	var parts []string
	paramTypes := make(map[string]string)

	params := fn.Params
	if len(params) > 0 && params[0].Kind == pysrc.ParamPlain &&
		(params[0].Name == "self" || params[0].Name == "cls") {
		params = params[1:]
	}

	for _, param := range params {
		text := param.Display()
		switch {
		case param.Annotation != "":
			t := ParseAnnotation(param.Annotation)
			r.Track(t)
			formatted := r.Format(t)
			paramTypes[param.Name] = formatted
			text += ": " + formatted
		case param.Kind == pysrc.ParamPlain:
			missing = append(missing, MissingAnnotation{
				ClassName:   target.Name,
				ClassModule: m.Class.Module,
				MemberName:  fn.Name + "." + param.Name,
				Kind:        MissingParameter,
				Detail:      fmt.Sprintf("parameter in %s()", fn.Name),
			})
			paramTypes[param.Name] = "Any"
			text += ": Any"
		}
		if param.DefaultKind != pysrc.LiteralAbsent {
			text += formatDefault(param)
		}
		parts = append(parts, text)
	}

	returnAnnotation := ""
	returnType := ""
	if fn.Returns != "" {
		t := ParseAnnotation(fn.Returns)
		r.Track(t)
		returnType = r.Format(t)
		returnAnnotation = " -> " + returnType
	} else if !pysrc.VoidMethods[fn.Name] {
		missing = append(missing, MissingAnnotation{
			ClassName:   target.Name,
			ClassModule: m.Class.Module,
			MemberName:  fn.Name,
			Kind:        MissingReturn,
			Detail:      "missing return type annotation",
		})
	}

	head := "def "
	if fn.Async {
		head = "async def "
	}
	raw := head + fn.Name + "(self"
	if len(parts) > 0 {
		raw += ", " + strings.Join(parts, ", ")
	}
	raw += ")" + returnAnnotation + ": ..."

	return SignatureInfo{
		Name:       fn.Name,
		Kind:       kind,
		Raw:        raw,
		ReturnType: returnType,
		ParamTypes: paramTypes,
	}, missing
}

// brokenParams reports a parameter list the parser could not recover,
// the signal to fall back to a splat-only signature.
func brokenParams(fn *pysrc.Function) bool {
	for _, p := range fn.Params {
		if p.Name == "" {
			return true
		}
	}
	return false
}

// formatDefault renders a parameter default. Literal defaults keep
// their source text; anything computed collapses to ellipsis.
func formatDefault(p pysrc.Param) string {
	switch p.DefaultKind {
	case pysrc.LiteralNone:
		return " = None"
	case pysrc.LiteralString, pysrc.LiteralInt, pysrc.LiteralFloat, pysrc.LiteralBool:
		return " = " + p.Default
	default:
		return " = ..."
	}
}

// propertySignature renders `name: type` for a property, preferring the
// effective hint over the getter's return annotation.
func propertySignature(r *TypeResolver, hints map[string]Type, m DeclaredMember) SignatureInfo {
	t, ok := hints[m.Name]
	if !ok && m.Function.Returns != "" {
		t = ParseAnnotation(m.Function.Returns)
	}
	if t == nil {
		t = Any
	}
	kind := KindProperty
	if m.FromBound {
		kind = KindProtocolProperty
	}
	r.Track(t)
	formatted := r.Format(t)
	return SignatureInfo{
		Name:       m.Name,
		Kind:       kind,
		Raw:        m.Name + ": " + formatted,
		ReturnType: formatted,
	}
}

// variableSignature renders `name: type` for a class variable: the
// effective hint, then the declaration's own annotation, then the
// literal value's type. Abc bookkeeping names are dropped.
func variableSignature(r *TypeResolver, hints map[string]Type, m DeclaredMember) (SignatureInfo, bool) {
	if strings.HasPrefix(m.Name, "_abc_") {
		return SignatureInfo{}, false
	}
	t, ok := hints[m.Name]
	if !ok {
		if m.Assign.Annotation != "" {
			t = ParseAnnotation(m.Assign.Annotation)
		} else {
			t = valueType(m.Assign)
		}
	}
	r.Track(t)
	formatted := r.Format(t)
	return SignatureInfo{
		Name:       m.Name,
		Kind:       KindClassVariable,
		Raw:        m.Name + ": " + formatted,
		ReturnType: formatted,
	}, true
}

// valueType maps a literal right-hand side to its builtin type. Values
// the parser cannot evaluate, None, and sentinels fall back to Any.
func valueType(a *pysrc.Assignment) Type {
	switch a.ValueKind {
	case pysrc.LiteralString:
		return Named{Name: "str"}
	case pysrc.LiteralInt:
		return Named{Name: "int"}
	case pysrc.LiteralFloat:
		return Named{Name: "float"}
	case pysrc.LiteralBool:
		return Named{Name: "bool"}
	default:
		return Any
	}
}

// syntheticSignature renders `name: type` for a constructor attribute.
// A class-specific annotation on the target wins over the harvest-time
// resolution.
func syntheticSignature(p *discovery.Project, r *TypeResolver, target *discovery.ClassInfo, cm ConstructorMember) SignatureInfo {
	t, ok := classSpecificType(p, target, cm.Name)
	if !ok {
		t = cm.Resolved
	}
	if t == nil {
		t = Any
	}
	r.Track(t)
	formatted := r.Format(t)
	return SignatureInfo{
		Name:       cm.Name,
		Kind:       KindProperty,
		Raw:        cm.Name + ": " + formatted,
		ReturnType: formatted,
	}
}

// classSpecificType finds an annotation for name on the target class
// itself: a class-body declaration, or the target's own __init__
// record. Either shadows whatever an ancestor's constructor declared.
func classSpecificType(p *discovery.Project, target *discovery.ClassInfo, name string) (Type, bool) {
	for _, cv := range target.Decl.ClassVars {
		if cv.Name == name && cv.Annotation != "" {
			return resolveConstructorAnnotation(p, target.Module, cv.Annotation), true
		}
	}
	for _, fn := range target.Decl.Methods {
		if fn.Name != "__init__" {
			continue
		}
		for _, sa := range fn.SelfAssigns {
			if sa.Name == name && sa.Annotation != "" {
				return resolveConstructorAnnotation(p, target.Module, sa.Annotation), true
			}
		}
		break
	}
	return nil, false
}
