// Package report aggregates a run's missing-annotation records into a
// deduplicated module/class/kind tree for terminal display, YAML
// export, and JSON output.
package report

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/extract"
	"github.com/stubzen/stubzen/generate"
)

// Member is one reported annotation gap.
type Member struct {
	Name   string `yaml:"name" json:"name"`
	Detail string `yaml:"detail,omitempty" json:"detail,omitempty"`
}

// KindGroup collects one class's gaps of a single kind.
type KindGroup struct {
	Kind    string   `yaml:"kind" json:"kind"`
	Members []Member `yaml:"members" json:"members"`
}

// ClassGroup collects one class's gaps.
type ClassGroup struct {
	Class string      `yaml:"class" json:"class"`
	Kinds []KindGroup `yaml:"kinds" json:"kinds"`
}

// ModuleGroup collects one module's gaps.
type ModuleGroup struct {
	Module  string       `yaml:"module" json:"module"`
	Classes []ClassGroup `yaml:"classes" json:"classes"`
}

// Report is the exportable summary of one generation run.
type Report struct {
	RunID        string        `yaml:"run_id" json:"run_id"`
	GeneratedAt  time.Time     `yaml:"generated_at" json:"generated_at"`
	Style        string        `yaml:"style" json:"style"`
	Planned      int           `yaml:"planned" json:"planned"`
	Written      int           `yaml:"written" json:"written"`
	Skipped      int           `yaml:"skipped" json:"skipped"`
	Failed       int           `yaml:"failed" json:"failed"`
	Duration     string        `yaml:"duration" json:"duration"`
	TotalMissing int           `yaml:"total_missing" json:"total_missing"`
	Modules      []ModuleGroup `yaml:"modules,omitempty" json:"modules,omitempty"`
}

// New builds the report for a finished run. Records repeated across
// units (a gap on an ancestor flattens into every descendant's unit)
// collapse to one entry; the total counts distinct gaps.
func New(res *generate.Result) *Report {
	modules, total := group(res.Missing)
	return &Report{
		RunID:        res.RunID,
		GeneratedAt:  time.Now().UTC(),
		Style:        res.Style,
		Planned:      res.Planned,
		Written:      res.Written,
		Skipped:      res.Skipped,
		Failed:       res.Failed,
		Duration:     res.Duration.String(),
		TotalMissing: total,
		Modules:      modules,
	}
}

// group builds the module/class/kind tree: modules, classes and kinds
// sorted, members in first-recorded order.
func group(missing []extract.MissingAnnotation) ([]ModuleGroup, int) {
	seen := make(map[string]bool)
	type classKey struct{ module, class string }
	byClass := make(map[classKey]map[string][]Member)
	kindOrder := make(map[classKey][]string)

	total := 0
	for _, m := range missing {
		key := m.ClassModule + "|" + m.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		total++

		ck := classKey{m.ClassModule, m.ClassName}
		if byClass[ck] == nil {
			byClass[ck] = make(map[string][]Member)
		}
		kind := string(m.Kind)
		if _, ok := byClass[ck][kind]; !ok {
			kindOrder[ck] = append(kindOrder[ck], kind)
		}
		byClass[ck][kind] = append(byClass[ck][kind], Member{Name: m.MemberName, Detail: m.Detail})
	}

	classesByModule := make(map[string][]ClassGroup)
	for ck, kinds := range byClass {
		names := append([]string(nil), kindOrder[ck]...)
		sort.Strings(names)
		groups := make([]KindGroup, 0, len(names))
		for _, kind := range names {
			groups = append(groups, KindGroup{Kind: kind, Members: kinds[kind]})
		}
		classesByModule[ck.module] = append(classesByModule[ck.module], ClassGroup{Class: ck.class, Kinds: groups})
	}

	moduleNames := make([]string, 0, len(classesByModule))
	for module := range classesByModule {
		moduleNames = append(moduleNames, module)
	}
	sort.Strings(moduleNames)

	groups := make([]ModuleGroup, 0, len(moduleNames))
	for _, module := range moduleNames {
		classes := classesByModule[module]
		sort.Slice(classes, func(i, j int) bool { return classes[i].Class < classes[j].Class })
		groups = append(groups, ModuleGroup{Module: module, Classes: classes})
	}
	return groups, total
}

// RenderTerminal prints the missing-annotation tree.
func (r *Report) RenderTerminal() {
	if r.TotalMissing == 0 {
		pterm.Success.Println("No missing type annotations found")
		return
	}

	pterm.DefaultSection.Println("Missing type annotations")
	for _, module := range r.Modules {
		pterm.Printf("📂 %s:\n", pterm.LightCyan(module.Module))
		for _, class := range module.Classes {
			pterm.Printf("   📄 %s:\n", class.Class)
			for _, kind := range class.Kinds {
				pterm.Printf("      %s:\n", kind.Kind)
				for _, member := range kind.Members {
					if member.Detail != "" {
						pterm.Printf("        • %s - %s\n", member.Name, member.Detail)
					} else {
						pterm.Printf("        • %s\n", member.Name)
					}
				}
			}
		}
	}
	pterm.Printf("\n📊 Total missing annotations: %s\n", pterm.Green(fmt.Sprintf("%d", r.TotalMissing)))
}

// WriteYAML exports the report for toolchain consumption.
func (r *Report) WriteYAML(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "failed to marshal report")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write report to %s", path)
	}
	return nil
}
