package discovery

import "sort"

// SymbolIndex maps bare class names to candidate defining modules. It
// replaces load-order-dependent lookups with a deterministic rule:
// project definitions beat imported (dependency) bindings, and within a
// partition the longest module path wins, with lexical order breaking
// exact length ties.
type SymbolIndex struct {
	project  map[string][]string
	imported map[string][]string
}

// NewSymbolIndex returns an empty index.
func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{
		project:  make(map[string][]string),
		imported: make(map[string][]string),
	}
}

// AddProjectClass records a class defined in a project module.
func (ix *SymbolIndex) AddProjectClass(name, module string) {
	ix.project[name] = appendUnique(ix.project[name], module)
}

// AddImportedName records that a project module imports name from
// module — the static stand-in for a dependency definition.
func (ix *SymbolIndex) AddImportedName(name, module string) {
	if module == "" || module == "." {
		return
	}
	ix.imported[name] = appendUnique(ix.imported[name], module)
}

// finalize sorts every candidate list into resolution order.
func (ix *SymbolIndex) finalize() {
	for _, candidates := range ix.project {
		sortCandidates(candidates)
	}
	for _, candidates := range ix.imported {
		sortCandidates(candidates)
	}
}

// Resolve returns the defining module for a bare class name, preferring
// project definitions over imported bindings.
func (ix *SymbolIndex) Resolve(name string) (string, bool) {
	if modules := ix.project[name]; len(modules) > 0 {
		return modules[0], true
	}
	if modules := ix.imported[name]; len(modules) > 0 {
		return modules[0], true
	}
	return "", false
}

// ResolveProject resolves against project definitions only.
func (ix *SymbolIndex) ResolveProject(name string) (string, bool) {
	if modules := ix.project[name]; len(modules) > 0 {
		return modules[0], true
	}
	return "", false
}

// IsProjectClass reports whether any project module defines name.
func (ix *SymbolIndex) IsProjectClass(name string) bool {
	return len(ix.project[name]) > 0
}

// ProjectModules returns all project modules defining name, in
// resolution order.
func (ix *SymbolIndex) ProjectModules(name string) []string {
	return ix.project[name]
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func sortCandidates(candidates []string) {
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
}
