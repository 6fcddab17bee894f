// Package generate runs the stub pipeline end to end: extraction per
// planned unit, class-block rendering, import assembly, validation,
// atomic writing, and manifest recording.
package generate

import (
	"strings"

	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/extract"
)

// classLine renders the class declaration and registers the import
// needs of its rendered bases. Generic is dropped from the base list:
// it is a subscript-only construct whose type parameters already
// flattened into the members.
func classLine(r *extract.TypeResolver, ci *discovery.ClassInfo) string {
	var bases []string
	if ci.Decl != nil {
		for _, base := range ci.Decl.Bases {
			if base.Name == "Generic" {
				continue
			}
			origin := base.Raw
			if i := strings.IndexByte(origin, '['); i >= 0 {
				origin = origin[:i]
			}
			r.Track(extract.ParseAnnotation(origin))
			bases = append(bases, base.Name)
		}
	}
	if len(bases) == 0 {
		return "class " + ci.Name + ":"
	}
	return "class " + ci.Name + "(" + strings.Join(bases, ", ") + "):"
}

// renderClassBlock renders one class body: signatures bucketed by the
// hierarchy level they came from, own-class group first-seen, foreign
// groups under a "# From X" banner. A class with no harvested members
// renders an ellipsis body.
func renderClassBlock(line, className string, sigs []extract.SignatureInfo) string {
	if len(sigs) == 0 {
		return line + "\n    ...\n"
	}

	groups := make(map[string][]extract.SignatureInfo)
	var order []string
	for _, sig := range sigs {
		source := sig.SourceClass
		if source == "" {
			source = className
		}
		if _, seen := groups[source]; !seen {
			order = append(order, source)
		}
		groups[source] = append(groups[source], sig)
	}

	var b strings.Builder
	b.WriteString(line)
	b.WriteByte('\n')
	for _, source := range order {
		if source != className {
			b.WriteString("    # From " + source + "\n")
		}
		for _, sig := range groups[source] {
			b.WriteString("    " + sig.Raw + "\n")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// composeUnit joins the import header and class blocks into the final
// stub text.
func composeUnit(header string, blocks []string) []byte {
	return []byte(header + "\n" + strings.Join(blocks, "\n\n"))
}
