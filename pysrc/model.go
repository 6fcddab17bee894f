// Package pysrc parses Python source files into a syntactic model using
// tree-sitter. The model carries everything stub generation needs —
// classes, signatures, annotation text, imports, TypeVar declarations —
// and nothing else; no name resolution happens here.
package pysrc

import "strings"

// LiteralKind classifies a literal expression on the right-hand side of
// a default or an assignment. It drives how defaults render in stubs.
type LiteralKind int

const (
	LiteralAbsent LiteralKind = iota // no value present
	LiteralNone
	LiteralString
	LiteralInt
	LiteralFloat
	LiteralBool
	LiteralOther // call, comprehension, anything non-literal
)

// ParamKind distinguishes ordinary parameters from splat forms.
type ParamKind int

const (
	ParamPlain      ParamKind = iota
	ParamStar                 // *args
	ParamDoubleStar           // **kwargs
)

// Module is one parsed Python file.
type Module struct {
	// FilePath is the path the module was parsed from.
	FilePath string
	// Path is the dotted module path ("app.models.user"). The parser
	// leaves it empty; discovery fills it once the project root is known.
	Path string
	// IsPackage marks __init__.py files.
	IsPackage bool
	Docstring string
	Imports   []Import
	Classes   []*Class
	Functions []*Function
	// Assignments are module-level name bindings (TypeVar declarations
	// are split out into TypeVars as well).
	Assignments []*Assignment
	// TypeVars holds module-level TypeVar declarations in declaration
	// order. Order matters: generic bounds merge in this order.
	TypeVars []TypeVarDecl
	// HasSyntaxErrors is set when tree-sitter reported errors; the model
	// still carries whatever parsed.
	HasSyntaxErrors bool
}

// Import is one import statement.
type Import struct {
	// Module is the dotted source module; relative imports keep their
	// leading dots ("..pkg").
	Module string
	// Names holds the imported names for from-imports; nil for plain
	// `import x`.
	Names []ImportedName
	// Alias is the binding name for `import x as y`.
	Alias    string
	Wildcard bool
	Relative bool
	// TypeChecking marks imports gated behind `if TYPE_CHECKING:`.
	TypeChecking bool
	Line         int
}

// ImportedName is one name in a from-import, with its optional alias.
type ImportedName struct {
	Name  string
	Alias string
}

// Binding returns the name the import binds in the module namespace.
func (n ImportedName) Binding() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Class is one class definition.
type Class struct {
	Name       string
	Bases      []BaseRef
	Decorators []string
	// Metaclass is the raw metaclass= keyword value ("ABCMeta",
	// "abc.ABCMeta"), empty when absent.
	Metaclass string
	Docstring string
	Methods   []*Function
	// ClassVars are class-body assignments in declaration order.
	ClassVars []*Assignment
	// Nested classes are recorded but not stubbed.
	Nested []*Class
	Line   int
}

// BaseRef is one entry in a class's base list.
type BaseRef struct {
	// Raw is the base expression verbatim: "Model", "generic.NDFrame",
	// "Generic[T]".
	Raw string
	// Name is the trailing bare name: "Model", "NDFrame", "Generic".
	Name string
	// Args are the raw subscript arguments for generic bases, nil
	// otherwise.
	Args []string
}

// IsGeneric reports whether the base is a subscripted expression.
func (b BaseRef) IsGeneric() bool {
	return len(b.Args) > 0
}

// Function is a function or method definition.
type Function struct {
	Name       string
	Decorators []string
	Params     []Param
	// Returns is the raw return annotation text, empty when
	// unannotated.
	Returns   string
	Async     bool
	Docstring string
	// SelfAssigns are `self.<name>[: <annot>] = <expr>` records from the
	// body, in order. Constructor harvesting reads them off __init__.
	SelfAssigns []*Assignment
	Line        int
}

// HasDecorator reports whether the function carries the named decorator,
// matching either the bare name or a dotted tail ("abc.abstractmethod").
func (f *Function) HasDecorator(name string) bool {
	for _, d := range f.Decorators {
		if d == name || strings.HasSuffix(d, "."+name) {
			return true
		}
	}
	return false
}

// IsProperty reports whether the function is a property getter or
// setter.
func (f *Function) IsProperty() bool {
	return f.HasDecorator("property") || f.HasDecorator("cached_property") || f.HasDecorator("setter")
}

// IsAbstract reports whether the function carries @abstractmethod (or a
// dotted/property-combined variant).
func (f *Function) IsAbstract() bool {
	return f.HasDecorator("abstractmethod") || f.HasDecorator("abstractproperty")
}

// Param is one function parameter.
type Param struct {
	Name string
	// Annotation is the raw annotation text, empty when unannotated.
	Annotation string
	// Default is the raw default expression text, empty when absent;
	// DefaultKind is LiteralAbsent in that case.
	Default     string
	DefaultKind LiteralKind
	Kind        ParamKind
}

// Display returns the parameter name as written, with splat markers.
func (p Param) Display() string {
	switch p.Kind {
	case ParamStar:
		return "*" + p.Name
	case ParamDoubleStar:
		return "**" + p.Name
	default:
		return p.Name
	}
}

// Assignment is a name binding: a module-level constant, a class-level
// variable, or a self.<name> attribute record inside a method body.
type Assignment struct {
	Name string
	// Annotation is the raw annotation text, empty when unannotated.
	Annotation string
	// Value is the raw right-hand side text, empty for bare
	// declarations like `x: int`.
	Value     string
	ValueKind LiteralKind
	Line      int
}

// TypeVarDecl is a module-level `X = TypeVar("X", ...)` declaration.
type TypeVarDecl struct {
	Name string
	// Bound is the raw text of the bound= keyword value, empty when
	// absent.
	Bound string
	// Constraints are the raw positional constraint expressions after
	// the name argument.
	Constraints []string
	Line        int
}
