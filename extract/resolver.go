package extract

import (
	"sort"
	"strings"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/pysrc"
)

// TypeResolver renders parsed annotations for stub output and records
// every type reference the unit will need to import: concrete resolved
// classes, deferred "module.Name" forward references, bare string
// references awaiting index resolution, and verbatim complex
// expressions. State accumulates per output unit; the orchestrator
// calls Reset between units so imports never leak across files.
type TypeResolver struct {
	index *discovery.SymbolIndex
	cfg   *config.Config

	used        map[string]Resolved
	forwardRefs map[string]struct{}
	stringRefs  map[string]struct{}
	complexExpr map[string]struct{}
}

// NewTypeResolver returns a resolver over the project's symbol index.
func NewTypeResolver(index *discovery.SymbolIndex, cfg *config.Config) *TypeResolver {
	r := &TypeResolver{index: index, cfg: cfg}
	r.Reset()
	return r
}

// Reset clears all four registries.
func (r *TypeResolver) Reset() {
	r.used = make(map[string]Resolved)
	r.forwardRefs = make(map[string]struct{})
	r.stringRefs = make(map[string]struct{})
	r.complexExpr = make(map[string]struct{})
}

// UsedTypes returns the concrete resolved classes, sorted by reference.
func (r *TypeResolver) UsedTypes() []Resolved {
	refs := make([]string, 0, len(r.used))
	for ref := range r.used {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	out := make([]Resolved, len(refs))
	for i, ref := range refs {
		out[i] = r.used[ref]
	}
	return out
}

// ForwardRefs returns the deferred "module.Name" references, sorted.
func (r *TypeResolver) ForwardRefs() []string {
	return sortedKeys(r.forwardRefs)
}

// StringRefs returns the bare string type references, sorted.
func (r *TypeResolver) StringRefs() []string {
	return sortedKeys(r.stringRefs)
}

// ComplexExprs returns the verbatim complex expressions, sorted.
func (r *TypeResolver) ComplexExprs() []string {
	return sortedKeys(r.complexExpr)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format renders t as stub annotation text, registering every
// reference the rendering uses.
func (r *TypeResolver) Format(t Type) string {
	switch v := t.(type) {
	case nil:
		return "None"
	case noneType:
		return "None"
	case anyType:
		return "Any"
	case Named:
		return r.formatNamed(v.Name)
	case Dotted:
		return r.formatDotted(v.Path)
	case Quoted:
		return r.formatQuoted(v.Text)
	case Resolved:
		r.trackResolved(v)
		return v.Name
	case Subscript:
		return r.formatSubscript(v)
	case Union:
		return r.formatUnion(v)
	case Complex:
		r.scanComplex(v.Raw)
		return v.Raw
	}
	return "Any"
}

// Track registers t's references without rendering.
func (r *TypeResolver) Track(t Type) {
	switch v := t.(type) {
	case nil, noneType, anyType:
	case Named:
		if pysrc.PrimitiveNames[v.Name] || pysrc.TypingConstructs[v.Name] {
			return
		}
		if module, ok := r.index.Resolve(v.Name); ok {
			r.trackResolved(Resolved{Name: v.Name, Module: module})
			return
		}
		r.stringRefs[v.Name] = struct{}{}
	case Dotted:
		r.trackDotted(v.Path)
	case Quoted:
		r.Track(parseQuotedText(v.Text))
	case Resolved:
		r.trackResolved(v)
	case Subscript:
		r.trackOrigin(v.Origin)
		for _, arg := range v.Args {
			r.Track(arg)
		}
	case Union:
		for _, m := range v.Members {
			r.Track(m)
		}
	case Complex:
		r.complexExpr[v.Raw] = struct{}{}
		r.scanComplex(v.Raw)
	}
}

func (r *TypeResolver) trackResolved(v Resolved) {
	ref := v.Module + "." + v.Name
	r.used[ref] = v
	// Classes from excluded modules render but are never imported.
	if !r.cfg.IsExcludedModule(v.Module) {
		r.forwardRefs[ref] = struct{}{}
	}
}

func (r *TypeResolver) trackDotted(path string) {
	parts := strings.Split(path, ".")
	if len(parts) == 2 {
		if r.cfg.IsExcludedModule(parts[0]) {
			r.stringRefs[parts[1]] = struct{}{}
		} else {
			r.forwardRefs[path] = struct{}{}
		}
		return
	}
	r.stringRefs[path] = struct{}{}
}

func (r *TypeResolver) formatNamed(name string) string {
	switch {
	case pysrc.PrimitiveNames[name]:
		return name
	case pysrc.TypingConstructs[name]:
		// Bare typing aliases render with their parameters filled, the
		// way the runtime aliases expand.
		switch name {
		case "List":
			return "List[Any]"
		case "Dict":
			return "Dict[Any, Any]"
		case "Type":
			return "Type[Any]"
		}
		return name
	}
	if module, ok := r.index.Resolve(name); ok {
		r.trackResolved(Resolved{Name: name, Module: module})
		return name
	}
	r.stringRefs[name] = struct{}{}
	return "'" + name + "'"
}

func (r *TypeResolver) formatDotted(path string) string {
	parts := strings.Split(path, ".")
	if len(parts) == 2 {
		r.trackDotted(path)
		return parts[1]
	}
	r.stringRefs[path] = struct{}{}
	return "'" + path + "'"
}

func (r *TypeResolver) formatQuoted(text string) string {
	clean := strings.Trim(text, `'"`)
	if isDottedName(clean) {
		return r.formatDotted(clean)
	}
	if strings.ContainsRune(text, '[') && strings.ContainsRune(text, ']') {
		r.scanComplex(text)
		return "'" + text + "'"
	}
	r.stringRefs[clean] = struct{}{}
	return "'" + clean + "'"
}

func (r *TypeResolver) formatSubscript(v Subscript) string {
	switch trailingName(v.Origin) {
	case "list", "List":
		if len(v.Args) > 0 {
			return "List[" + r.Format(v.Args[0]) + "]"
		}
		return "List[Any]"
	case "dict", "Dict":
		if len(v.Args) >= 2 {
			return "Dict[" + r.Format(v.Args[0]) + ", " + r.Format(v.Args[1]) + "]"
		}
		return "Dict[Any, Any]"
	case "type", "Type":
		if len(v.Args) > 0 {
			return "Type[" + r.Format(v.Args[0]) + "]"
		}
		return "Type[Any]"
	}
	r.trackOrigin(v.Origin)
	name := trailingName(v.Origin)
	if len(v.Args) == 0 {
		return name
	}
	args := make([]string, len(v.Args))
	for i, arg := range v.Args {
		args[i] = r.Format(arg)
	}
	return name + "[" + strings.Join(args, ", ") + "]"
}

func (r *TypeResolver) formatUnion(v Union) string {
	if len(v.Members) == 2 {
		if IsNone(v.Members[0]) {
			return "Optional[" + r.Format(v.Members[1]) + "]"
		}
		if IsNone(v.Members[1]) {
			return "Optional[" + r.Format(v.Members[0]) + "]"
		}
	}
	parts := make([]string, len(v.Members))
	for i, m := range v.Members {
		parts[i] = r.Format(m)
	}
	return "Union[" + strings.Join(parts, ", ") + "]"
}

// trackOrigin registers a subscript origin: project and dependency
// generics need importing just like plain classes.
func (r *TypeResolver) trackOrigin(origin string) {
	name := trailingName(origin)
	if pysrc.TypingConstructs[name] || pysrc.PrimitiveNames[name] {
		return
	}
	if strings.Contains(origin, ".") {
		r.trackDotted(origin)
		return
	}
	if module, ok := r.index.Resolve(name); ok {
		r.trackResolved(Resolved{Name: name, Module: module})
		return
	}
	r.stringRefs[name] = struct{}{}
}

// scanComplex harvests importable names from a verbatim expression:
// quoted names follow the dotted rules, bare capitalized identifiers
// become string references (typing vocabulary excluded).
func (r *TypeResolver) scanComplex(expr string) {
	for _, q := range pysrc.QuotedNames(expr) {
		if strings.Contains(q, ".") {
			parts := strings.Split(q, ".")
			if len(parts) == 2 {
				if r.cfg.IsExcludedModule(parts[0]) {
					r.stringRefs[parts[1]] = struct{}{}
				} else {
					r.forwardRefs[q] = struct{}{}
				}
			} else {
				r.stringRefs[q] = struct{}{}
			}
			continue
		}
		r.stringRefs[q] = struct{}{}
	}
	for _, w := range pysrc.CapWords(expr) {
		r.stringRefs[w] = struct{}{}
	}
}

// parseQuotedText applies the string dispatch rules to quoted inner
// text: dotted, complex, or bare.
func parseQuotedText(text string) Type {
	clean := strings.Trim(text, `'"`)
	if isDottedName(clean) {
		return Dotted{Path: clean}
	}
	if strings.ContainsRune(text, '[') && strings.ContainsRune(text, ']') {
		return Complex{Raw: text}
	}
	return Named{Name: clean}
}

// isDottedName reports whether s is a plain dotted path: at least one
// dot, no brackets, no spaces.
func isDottedName(s string) bool {
	return strings.Contains(s, ".") &&
		!strings.ContainsRune(s, '[') &&
		!strings.ContainsRune(s, ' ')
}
