package pysrc

import (
	"regexp"
	"sort"
	"strings"
)

// TypingConstructs are names the typing module provides (including the
// typing-era collections aliases). They import from "typing" and are
// never treated as project forward references.
var TypingConstructs = map[string]bool{
	"Dict": true, "List": true, "Set": true, "Tuple": true,
	"Optional": true, "Union": true, "Any": true, "Type": true,
	"Callable": true, "Iterable": true, "Iterator": true,
	"Sequence": true, "Mapping": true, "MutableMapping": true,
	"ClassVar": true, "TypeVar": true, "Generic": true,
	"Literal": true, "Final": true, "Annotated": true,
	"Concatenate": true, "ParamSpec": true, "ForwardRef": true,
	"NotRequired": true, "Required": true, "TypedDict": true,
	"NamedTuple": true, "Counter": true, "DefaultDict": true,
	"OrderedDict": true,
}

// BuiltinAttrs are interpreter bookkeeping attributes that never belong
// in a stub.
var BuiltinAttrs = map[string]bool{
	"__class__": true, "__doc__": true, "__module__": true,
	"__dict__": true, "__weakref__": true, "__abstractmethods__": true,
	"__abc_registry__": true, "__abc_cache__": true,
	"__abc_negative_cache__": true, "__abc_negative_cache_version__": true,
	"__subclasshook__": true, "__annotations__": true,
	"__orig_bases__": true, "__parameters__": true,
	"__origin__": true, "__args__": true,
}

// ABCInternals are abc-machinery attributes excluded alongside
// BuiltinAttrs.
var ABCInternals = map[string]bool{
	"_abc_impl": true, "_abc_registry": true, "_abc_cache": true,
	"_abc_negative_cache": true, "_abc_negative_cache_version": true,
	"_abc_positive_cache": true,
}

// BuiltinModules are modules whose classes never need generated imports.
var BuiltinModules = map[string]bool{
	"abc": true, "builtins": true, "__main__": true, "typing": true,
	"collections": true, "collections.abc": true, "functools": true,
	"itertools": true, "operator": true, "sys": true, "os": true,
	"pathlib": true, "re": true, "json": true, "datetime": true,
	"uuid": true, "logging": true, "threading": true,
	"multiprocessing": true,
}

// SafeModules import eagerly at the top of a stub; anything else defers
// behind TYPE_CHECKING to avoid import cycles.
var SafeModules = map[string]bool{
	"collections": true, "collections.abc": true, "functools": true,
	"itertools": true, "pathlib": true, "uuid": true, "logging": true,
}

// VoidMethods conventionally return None; a missing return annotation on
// them is not reported.
var VoidMethods = map[string]bool{
	"__init__": true, "__del__": true, "__enter__": true, "__exit__": true,
}

// DunderAllowed are the only dunder members that survive harvesting.
var DunderAllowed = map[string]bool{
	"__init__": true, "__str__": true, "__repr__": true,
}

// PrimitiveNames are builtin type names that need no import in a stub.
var PrimitiveNames = map[string]bool{
	"str": true, "int": true, "float": true, "bool": true,
	"list": true, "dict": true, "tuple": true, "set": true,
	"None": true, "bytes": true, "bytearray": true, "frozenset": true,
	"complex": true, "object": true, "type": true,
}

// TypingPattern matches any typing construct as a whole word inside raw
// signature or annotation text.
var TypingPattern = regexp.MustCompile(typingPatternSource())

func typingPatternSource() string {
	names := make([]string, 0, len(TypingConstructs))
	for name := range TypingConstructs {
		names = append(names, name)
	}
	sort.Strings(names)
	return `\b(` + strings.Join(names, "|") + `)\b`
}

// quotedNamePattern matches quoted forward references embedded in
// annotation text: 'Service', "Service", 'models.Service'.
var quotedNamePattern = regexp.MustCompile(`['"]([A-Za-z_][A-Za-z0-9_.]*)['"]`)

// capWordPattern matches bare capitalized identifiers, the shape of
// class names referenced without quotes.
var capWordPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9_]*)\b`)

// QuotedNames returns the identifiers embedded in quotes within expr, in
// order of appearance.
func QuotedNames(expr string) []string {
	var names []string
	for _, m := range quotedNamePattern.FindAllStringSubmatch(expr, -1) {
		names = append(names, m[1])
	}
	return names
}

// CapWords returns the bare capitalized identifiers in expr, excluding
// typing constructs (which come from the typing module, not the
// project).
func CapWords(expr string) []string {
	var names []string
	for _, m := range capWordPattern.FindAllStringSubmatch(expr, -1) {
		if !TypingConstructs[m[1]] {
			names = append(names, m[1])
		}
	}
	return names
}

// TypingMatches returns the typing constructs referenced in expr.
func TypingMatches(expr string) []string {
	var names []string
	for _, m := range TypingPattern.FindAllStringSubmatch(expr, -1) {
		names = append(names, m[1])
	}
	return names
}

// IsDunder reports whether name has the __name__ shape.
func IsDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// IsDeniedAttr reports whether name sits on the fixed member deny-list
// (interpreter bookkeeping plus abc machinery).
func IsDeniedAttr(name string) bool {
	return BuiltinAttrs[name] || ABCInternals[name]
}

// IsCapWord reports whether name looks like a class name: leading
// uppercase letter, alphanumeric/underscore tail.
func IsCapWord(name string) bool {
	if name == "" {
		return false
	}
	if name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if c != '_' && (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
