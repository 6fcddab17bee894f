package discovery

import (
	"strings"

	"github.com/stubzen/stubzen/logger"
	"github.com/stubzen/stubzen/pysrc"
)

// mroBuilder computes C3 linearizations over project-known classes.
// Bases that do not resolve to a project class linearize as opaque
// single-entry tails, which keeps external hierarchies (abc.ABC, typing
// Generic, dependency classes) visible by name.
type mroBuilder struct {
	project  *Project
	cache    map[string][]Ancestor
	visiting map[string]bool
}

func newMROBuilder(p *Project) *mroBuilder {
	return &mroBuilder{
		project:  p,
		cache:    make(map[string][]Ancestor),
		visiting: make(map[string]bool),
	}
}

// linearize returns the MRO for ci, self first, `object` omitted.
func (b *mroBuilder) linearize(ci *ClassInfo) []Ancestor {
	ref := ci.Ref()
	if cached, ok := b.cache[ref]; ok {
		return cached
	}
	if b.visiting[ref] {
		// Inheritance cycle; degrade to the class alone.
		logger.Debugw("inheritance cycle detected", "class", ref)
		return []Ancestor{{Name: ci.Name, Class: ci}}
	}
	b.visiting[ref] = true
	defer delete(b.visiting, ref)

	var sequences [][]Ancestor
	var directs []Ancestor
	for _, base := range ci.Decl.Bases {
		if base.Name == "object" {
			continue
		}
		if parent := b.resolveBase(ci, base); parent != nil && parent != ci {
			sequences = append(sequences, b.linearize(parent))
			directs = append(directs, Ancestor{Name: parent.Name, Class: parent})
		} else {
			external := Ancestor{Name: base.Name}
			sequences = append(sequences, []Ancestor{external})
			directs = append(directs, external)
		}
	}
	if len(directs) > 0 {
		sequences = append(sequences, directs)
	}

	merged, ok := c3Merge(sequences)
	if !ok {
		logger.Debugw("inconsistent hierarchy, using depth-first order", "class", ref)
		merged = depthFirst(sequences)
	}

	mro := append([]Ancestor{{Name: ci.Name, Class: ci}}, merged...)
	b.cache[ref] = mro
	return mro
}

// resolveBase maps a base expression to a project class, using the
// defining module's import bindings, same-module lookup, then the
// symbol index. Generic bases resolve by their origin expression.
func (b *mroBuilder) resolveBase(from *ClassInfo, base pysrc.BaseRef) *ClassInfo {
	expr := base.Raw
	if idx := strings.IndexByte(expr, '['); idx >= 0 {
		expr = expr[:idx]
	}
	name := base.Name

	if !strings.Contains(expr, ".") {
		if src, ok := b.project.ImportBinding(from.Module, name); ok {
			if ci, ok := b.project.ClassIn(src, name); ok {
				return ci
			}
		}
		if ci, ok := b.project.ClassIn(from.Module, name); ok {
			return ci
		}
		if module, ok := b.project.Index.ResolveProject(name); ok {
			if ci, ok := b.project.ClassIn(module, name); ok {
				return ci
			}
		}
		return nil
	}

	prefix := expr[:strings.LastIndex(expr, ".")]
	if _, ok := b.project.Modules[prefix]; ok {
		if ci, ok := b.project.ClassIn(prefix, name); ok {
			return ci
		}
	}
	// Dotted through an imported module binding: `import app.m as m`
	// or `from app import m`, then `m.Base`.
	head := prefix
	var rest string
	if idx := strings.IndexByte(prefix, '.'); idx >= 0 {
		head, rest = prefix[:idx], prefix[idx:]
	}
	if src, ok := b.project.ImportBinding(from.Module, head); ok {
		if ci, ok := b.project.ClassIn(src+rest, name); ok {
			return ci
		}
	}
	return nil
}

// c3Merge implements the C3 merge step: repeatedly take the head of the
// first sequence whose head appears in no other sequence's tail.
func c3Merge(sequences [][]Ancestor) ([]Ancestor, bool) {
	work := make([][]Ancestor, len(sequences))
	copy(work, sequences)

	var result []Ancestor
	for {
		work = dropEmpty(work)
		if len(work) == 0 {
			return result, true
		}

		var head *Ancestor
		for _, seq := range work {
			candidate := seq[0]
			if inAnyTail(work, candidate) {
				continue
			}
			head = &candidate
			break
		}
		if head == nil {
			return nil, false
		}

		result = append(result, *head)
		for i, seq := range work {
			if len(seq) > 0 && sameAncestor(seq[0], *head) {
				work[i] = seq[1:]
			}
		}
	}
}

// depthFirst is the fallback order for hierarchies C3 rejects:
// left-to-right, parents before their tails, first occurrence wins.
func depthFirst(sequences [][]Ancestor) []Ancestor {
	var result []Ancestor
	seen := make(map[string]bool)
	for _, seq := range sequences {
		for _, a := range seq {
			key := ancestorKey(a)
			if seen[key] {
				continue
			}
			seen[key] = true
			result = append(result, a)
		}
	}
	return result
}

func dropEmpty(sequences [][]Ancestor) [][]Ancestor {
	out := sequences[:0]
	for _, seq := range sequences {
		if len(seq) > 0 {
			out = append(out, seq)
		}
	}
	return out
}

func inAnyTail(sequences [][]Ancestor, candidate Ancestor) bool {
	for _, seq := range sequences {
		for _, a := range seq[1:] {
			if sameAncestor(a, candidate) {
				return true
			}
		}
	}
	return false
}

func sameAncestor(a, b Ancestor) bool {
	if a.Class != nil || b.Class != nil {
		return a.Class == b.Class
	}
	return a.Name == b.Name
}

func ancestorKey(a Ancestor) string {
	if a.Class != nil {
		return a.Class.Ref()
	}
	return "external:" + a.Name
}
