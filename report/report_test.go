package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/stubzen/stubzen/extract"
	"github.com/stubzen/stubzen/generate"
)

func sampleResult() *generate.Result {
	return &generate.Result{
		RunID:    "run-1",
		Style:    "module",
		Planned:  3,
		Written:  2,
		Skipped:  1,
		Duration: 42 * time.Millisecond,
		Missing: []extract.MissingAnnotation{
			{ClassName: "Worker", ClassModule: "app.jobs", MemberName: "run.n", Kind: extract.MissingParameter, Detail: "parameter in run()"},
			{ClassName: "Worker", ClassModule: "app.jobs", MemberName: "halt", Kind: extract.MissingReturn, Detail: "return type of halt()"},
			{ClassName: "Base", ClassModule: "app.base", MemberName: "tick", Kind: extract.MissingReturn, Detail: "return type of tick()"},
			// The same gap flattened into a descendant's unit.
			{ClassName: "Base", ClassModule: "app.base", MemberName: "tick", Kind: extract.MissingReturn, Detail: "return type of tick()"},
			{ClassName: "Helper", ClassModule: "app.jobs", MemberName: "aid.x", Kind: extract.MissingParameter, Detail: "parameter in aid()"},
		},
	}
}

func TestNew_GroupsAndDedups(t *testing.T) {
	r := New(sampleResult())

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "module", r.Style)
	assert.Equal(t, 3, r.Planned)
	assert.Equal(t, 2, r.Written)
	assert.Equal(t, "42ms", r.Duration)
	assert.Equal(t, 4, r.TotalMissing)

	require.Len(t, r.Modules, 2)
	assert.Equal(t, "app.base", r.Modules[0].Module)
	assert.Equal(t, "app.jobs", r.Modules[1].Module)

	base := r.Modules[0]
	require.Len(t, base.Classes, 1)
	require.Len(t, base.Classes[0].Kinds, 1)
	assert.Equal(t, string(extract.MissingReturn), base.Classes[0].Kinds[0].Kind)
	require.Len(t, base.Classes[0].Kinds[0].Members, 1)

	jobs := r.Modules[1]
	require.Len(t, jobs.Classes, 2)
	assert.Equal(t, "Helper", jobs.Classes[0].Class)
	assert.Equal(t, "Worker", jobs.Classes[1].Class)

	worker := jobs.Classes[1]
	require.Len(t, worker.Kinds, 2)
	assert.Equal(t, string(extract.MissingParameter), worker.Kinds[0].Kind)
	assert.Equal(t, string(extract.MissingReturn), worker.Kinds[1].Kind)
	assert.Equal(t, "run.n", worker.Kinds[0].Members[0].Name)
	assert.Equal(t, "parameter in run()", worker.Kinds[0].Members[0].Detail)
}

func TestNew_NothingMissing(t *testing.T) {
	r := New(&generate.Result{RunID: "run-2", Style: "module", Planned: 1, Written: 1})

	assert.Equal(t, 0, r.TotalMissing)
	assert.Empty(t, r.Modules)
}

func TestWriteYAML(t *testing.T) {
	r := New(sampleResult())
	path := filepath.Join(t.TempDir(), "report.yaml")

	require.NoError(t, r.WriteYAML(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "run_id: run-1")
	assert.Contains(t, text, "total_missing: 4")
	assert.Contains(t, text, "- module: app.base")
	assert.Contains(t, text, "class: Worker")
	assert.Contains(t, text, "kind: method_parameter")
	assert.Contains(t, text, "name: run.n")

	var restored Report
	require.NoError(t, yaml.Unmarshal(data, &restored))
	assert.Equal(t, r.TotalMissing, restored.TotalMissing)
	assert.Equal(t, r.Modules, restored.Modules)
}
