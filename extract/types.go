// Package extract turns classified classes into rendered stub
// signatures. It owns the annotation model, the type resolver that
// tracks import needs per output unit, member harvesting across the
// MRO, and the signature creators.
package extract

import (
	"fmt"

	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/pysrc"
)

// SignatureKind classifies a rendered stub member.
type SignatureKind string

const (
	KindMethod           SignatureKind = "method"
	KindProperty         SignatureKind = "property"
	KindClassVariable    SignatureKind = "class_variable"
	KindProtocolMethod   SignatureKind = "protocol_method"
	KindProtocolProperty SignatureKind = "protocol_property"
)

// SignatureInfo is one rendered stub member with its metadata. Raw is
// valid as a class-body statement; ParamTypes and ReturnType carry the
// resolved type text for import derivation.
type SignatureInfo struct {
	Name        string
	Kind        SignatureKind
	Raw         string
	ReturnType  string
	ParamTypes  map[string]string
	Detail      string
	SourceClass string
}

// MissingKind says which part of a member lacked an annotation.
type MissingKind string

const (
	MissingParameter MissingKind = "method_parameter"
	MissingReturn    MissingKind = "method_return"
)

// MissingAnnotation records one annotation gap. Gaps are accumulated
// across the whole run for the completeness report; they never cause a
// member to be omitted.
type MissingAnnotation struct {
	ClassName   string
	ClassModule string
	MemberName  string
	Kind        MissingKind
	Detail      string
}

// Key returns a stable identity for deduplicated reporting.
func (m MissingAnnotation) Key() string {
	return fmt.Sprintf("%s.%s(%s)%s", m.ClassName, m.MemberName, m.Kind, m.Detail)
}

// Outcome classifies how a processing step ended when it did not
// plainly succeed. Nothing short of OutcomeFatal prevents output.
type Outcome int

const (
	// OutcomeNotApplicable: the step did not apply to its input and was
	// skipped silently.
	OutcomeNotApplicable Outcome = iota
	// OutcomeDegraded: a placeholder stands in for the real result and
	// the gap is logged.
	OutcomeDegraded
	// OutcomeFatal: the unit is rejected. Only validation produces this.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFatal:
		return "fatal"
	default:
		return "not_applicable"
	}
}

// Member is one harvested signature candidate: a DeclaredMember or a
// ConstructorMember. Creators dispatch on the concrete type.
type Member interface {
	MemberName() string
	DeclaringClass() *discovery.ClassInfo
}

// DeclaredMember is a class-body definition found on an MRO level:
// exactly one of Function or Assign is set. FromBound marks members
// injected from a generic-bound class, whose whole effective interface
// qualifies rather than only direct declarations.
type DeclaredMember struct {
	Name      string
	Function  *pysrc.Function
	Assign    *pysrc.Assignment
	Class     *discovery.ClassInfo
	FromBound bool
}

func (m DeclaredMember) MemberName() string                   { return m.Name }
func (m DeclaredMember) DeclaringClass() *discovery.ClassInfo { return m.Class }

// ConstructorMember is a `self.<name>: <annot> = <expr>` record
// harvested from an __init__ body. Resolved is the best-effort
// harvest-time resolution of the annotation.
type ConstructorMember struct {
	Name          string
	RawAnnotation string
	Resolved      Type
	Class         *discovery.ClassInfo
}

func (m ConstructorMember) MemberName() string                   { return m.Name }
func (m ConstructorMember) DeclaringClass() *discovery.ClassInfo { return m.Class }
