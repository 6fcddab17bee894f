package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/pysrc"
)

func discoverTree(t *testing.T, cfg *config.Config, files map[string]string) *discovery.Project {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	project, err := discovery.Discover(context.Background(), root, cfg)
	require.NoError(t, err)
	return project
}

func classNamed(t *testing.T, p *discovery.Project, ref string) *discovery.ClassInfo {
	t.Helper()
	ci, ok := p.ClassByRef(ref)
	require.True(t, ok, "class %s not discovered", ref)
	return ci
}

func sigByName(t *testing.T, sigs []SignatureInfo, name string) SignatureInfo {
	t.Helper()
	for _, s := range sigs {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("signature %s not extracted", name)
	return SignatureInfo{}
}

func TestExtractClass_TargetFlattensAncestors(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.models.Model"}
	project := discoverTree(t, cfg, map[string]string{
		"app/models.py": `class Model:
    id: int

    def save(self) -> bool:
        return True
`,
		"app/user.py": `from app.models import Model


class User(Model):
    name: str

    def __init__(self):
        self.email: str = ""

    def greet(self, prefix) -> str:
        return prefix + self.name
`,
	})

	e := NewExtractor(project, cfg)
	sigs := e.ExtractClass(classNamed(t, project, "app.user.User"))

	names := make([]string, len(sigs))
	sources := make([]string, len(sigs))
	for i, s := range sigs {
		names[i] = s.Name
		sources[i] = s.SourceClass
	}
	assert.Equal(t, []string{"name", "__init__", "greet", "id", "save", "email"}, names)
	assert.Equal(t, []string{"User", "User", "User", "Model", "Model", "User"}, sources)

	assert.Equal(t, "name: str", sigByName(t, sigs, "name").Raw)
	assert.Equal(t, "def __init__(self): ...", sigByName(t, sigs, "__init__").Raw)
	assert.Equal(t, "def greet(self, prefix: Any) -> str: ...", sigByName(t, sigs, "greet").Raw)
	assert.Equal(t, "id: int", sigByName(t, sigs, "id").Raw)
	assert.Equal(t, "def save(self) -> bool: ...", sigByName(t, sigs, "save").Raw)

	email := sigByName(t, sigs, "email")
	assert.Equal(t, "email: str", email.Raw)
	assert.Equal(t, KindProperty, email.Kind)

	// Exactly one gap: greet's unannotated parameter. __init__ is void.
	missing := e.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, "greet.prefix", missing[0].MemberName)
	assert.Equal(t, MissingParameter, missing[0].Kind)
	assert.Equal(t, "User", missing[0].ClassName)
	assert.Equal(t, "app.user", missing[0].ClassModule)
	assert.Equal(t, "parameter in greet()", missing[0].Detail)
}

func TestExtractClass_StandardClassKeepsOwnMembersOnly(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.models.Model"}
	project := discoverTree(t, cfg, map[string]string{
		"app/models.py": `class Model:
    id: int
`,
		"app/helper.py": `from app.models import Model


class Helper:
    def assist(self) -> str:
        return "ok"
`,
	})

	e := NewExtractor(project, cfg)
	sigs := e.ExtractClass(classNamed(t, project, "app.helper.Helper"))
	require.Len(t, sigs, 1)
	assert.Equal(t, "assist", sigs[0].Name)
}

func TestExtractClass_GenericBoundInterface(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.registry.Registry"}
	project := discoverTree(t, cfg, map[string]string{
		"app/registry.py": `from typing import TypeVar, Generic

T = TypeVar("T", bound="Item")


class Item:
    label: str

    def describe(self) -> str:
        return self.label


class Registry(Generic[T]):
    def first(self) -> int:
        return 0
`,
	})

	e := NewExtractor(project, cfg)
	sigs := e.ExtractClass(classNamed(t, project, "app.registry.Registry"))

	// Bound members lead, attributed to the bound class.
	label := sigByName(t, sigs, "label")
	assert.Equal(t, "label: str", label.Raw)
	assert.Equal(t, "Item", label.SourceClass)

	describe := sigByName(t, sigs, "describe")
	assert.Equal(t, "def describe(self) -> str: ...", describe.Raw)
	assert.Equal(t, KindProtocolMethod, describe.Kind)
	assert.Equal(t, "Item", describe.SourceClass)

	first := sigByName(t, sigs, "first")
	assert.Equal(t, KindMethod, first.Kind)
	assert.Equal(t, "Registry", first.SourceClass)

	assert.Equal(t, []string{"label", "describe", "first"}, []string{sigs[0].Name, sigs[1].Name, sigs[2].Name})
}

func TestExtractClass_BoundFillsOnlyHintGaps(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.store.Store"}
	project := discoverTree(t, cfg, map[string]string{
		"app/store.py": `from typing import TypeVar, Generic

S = TypeVar("S", bound="Record")


class Record:
    key: str

    def load(self) -> bool:
        return True


class Store(Generic[S]):
    key: int
`,
	})

	e := NewExtractor(project, cfg)
	sigs := e.ExtractClass(classNamed(t, project, "app.store.Store"))

	// Store's own annotation wins over the bound's hint for key.
	assert.Equal(t, "key: int", sigByName(t, sigs, "key").Raw)
	assert.Equal(t, "def load(self) -> bool: ...", sigByName(t, sigs, "load").Raw)
}

func TestExtractClass_OverrideWinsFirstSeen(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.jobs.Base"}
	project := discoverTree(t, cfg, map[string]string{
		"app/jobs.py": `class Base:
    def run(self) -> bool:
        return True


class Job(Base):
    def run(self):
        return False
`,
	})

	e := NewExtractor(project, cfg)
	sigs := e.ExtractClass(classNamed(t, project, "app.jobs.Job"))
	require.Len(t, sigs, 1)
	assert.Equal(t, "def run(self): ...", sigs[0].Raw)

	missing := e.Missing()
	require.Len(t, missing, 1)
	assert.Equal(t, "run", missing[0].MemberName)
	assert.Equal(t, MissingReturn, missing[0].Kind)
	assert.Equal(t, "missing return type annotation", missing[0].Detail)
}

func TestExtractClass_AncestorHintOverridden(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.hints.Parent"}
	project := discoverTree(t, cfg, map[string]string{
		"app/hints.py": `class Parent:
    flag: int


class Child(Parent):
    flag: str
`,
	})

	e := NewExtractor(project, cfg)
	sigs := e.ExtractClass(classNamed(t, project, "app.hints.Child"))
	require.Len(t, sigs, 1)
	assert.Equal(t, "flag: str", sigs[0].Raw)
	assert.Equal(t, "Child", sigs[0].SourceClass)
}

func TestExtractClass_GatedImportBeatsIndex(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.service.Service"}
	project := discoverTree(t, cfg, map[string]string{
		"app/models.py": `class User:
    pass
`,
		"app/service.py": `from typing import TYPE_CHECKING

if TYPE_CHECKING:
    from app.accounts import User


class Service:
    def __init__(self):
        self.owner: User = None
`,
	})

	e := NewExtractor(project, cfg)
	sigs := e.ExtractClass(classNamed(t, project, "app.service.Service"))

	assert.Equal(t, "owner: User", sigByName(t, sigs, "owner").Raw)
	assert.Contains(t, e.Resolver().ForwardRefs(), "app.accounts.User")
	assert.NotContains(t, e.Resolver().ForwardRefs(), "app.models.User")
}

func TestExtractor_ResetUnitKeepsMissing(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.jobs.Base"}
	project := discoverTree(t, cfg, map[string]string{
		"app/jobs.py": `class Base:
    def run(self):
        return None
`,
	})

	e := NewExtractor(project, cfg)
	e.ExtractClass(classNamed(t, project, "app.jobs.Base"))
	require.NotEmpty(t, e.Missing())

	e.ResetUnit()
	assert.Empty(t, e.Resolver().UsedTypes())
	assert.Empty(t, e.Resolver().StringRefs())
	assert.NotEmpty(t, e.Missing())
}

func testClass(name, module string) *discovery.ClassInfo {
	return &discovery.ClassInfo{Name: name, Module: module, Decl: &pysrc.Class{Name: name}}
}

func TestMethodSignature_SplatsAndDefaults(t *testing.T) {
	r := newTestResolver()
	ci := testClass("Svc", "app.svc")
	fn := &pysrc.Function{
		Name: "call",
		Params: []pysrc.Param{
			{Name: "self"},
			{Name: "count", Annotation: "int", Default: "3", DefaultKind: pysrc.LiteralInt},
			{Name: "label", Annotation: "str", Default: "'x'", DefaultKind: pysrc.LiteralString},
			{Name: "mode", Default: "None", DefaultKind: pysrc.LiteralNone},
			{Name: "factory", Default: "list()", DefaultKind: pysrc.LiteralOther},
			{Name: "args", Kind: pysrc.ParamStar},
			{Name: "kwargs", Kind: pysrc.ParamDoubleStar},
		},
		Returns: "None",
	}

	info, missing := methodSignature(r, ci, DeclaredMember{Name: "call", Function: fn, Class: ci})
	assert.Equal(t,
		"def call(self, count: int = 3, label: str = 'x', mode: Any = None, factory: Any = ..., *args, **kwargs) -> None: ...",
		info.Raw)

	// Splats never count as gaps; the two plain parameters do.
	require.Len(t, missing, 2)
	assert.Equal(t, "call.mode", missing[0].MemberName)
	assert.Equal(t, "call.factory", missing[1].MemberName)
}

func TestMethodSignature_LeadingClsSkipped(t *testing.T) {
	r := newTestResolver()
	ci := testClass("Svc", "app.svc")
	fn := &pysrc.Function{
		Name:       "build",
		Decorators: []string{"classmethod"},
		Params: []pysrc.Param{
			{Name: "cls"},
			{Name: "size", Annotation: "int"},
		},
		Returns: "'Svc'",
	}

	info, missing := methodSignature(r, ci, DeclaredMember{Name: "build", Function: fn, Class: ci})
	assert.Equal(t, "def build(self, size: int) -> 'Svc': ...", info.Raw)
	assert.Empty(t, missing)
}

func TestMethodSignature_Async(t *testing.T) {
	r := newTestResolver()
	ci := testClass("Svc", "app.svc")
	fn := &pysrc.Function{
		Name:    "fetch",
		Async:   true,
		Params:  []pysrc.Param{{Name: "self"}},
		Returns: "bytes",
	}

	info, _ := methodSignature(r, ci, DeclaredMember{Name: "fetch", Function: fn, Class: ci})
	assert.Equal(t, "async def fetch(self) -> bytes: ...", info.Raw)
}

func TestMethodSignature_Degraded(t *testing.T) {
	r := newTestResolver()
	ci := testClass("Broken", "app.broken")
	fn := &pysrc.Function{
		Name:   "explode",
		Params: []pysrc.Param{{Name: "self"}, {Name: ""}},
	}

	info, missing := methodSignature(r, ci, DeclaredMember{Name: "explode", Function: fn, Class: ci})
	assert.Equal(t, "def explode(self, *args, **kwargs): ...", info.Raw)
	assert.Equal(t, "extraction error", info.Detail)
	assert.Empty(t, missing)
}

func TestVariableSignature_Fallbacks(t *testing.T) {
	r := newTestResolver()
	ci := testClass("Cfg", "app.cfg")
	mk := func(name, annotation, value string, kind pysrc.LiteralKind) DeclaredMember {
		return DeclaredMember{
			Name:   name,
			Assign: &pysrc.Assignment{Name: name, Annotation: annotation, Value: value, ValueKind: kind},
			Class:  ci,
		}
	}

	hints := map[string]Type{"flag": Named{Name: "int"}}

	// Hint beats the declaration's own annotation.
	info, ok := variableSignature(r, hints, mk("flag", "str", "''", pysrc.LiteralString))
	require.True(t, ok)
	assert.Equal(t, "flag: int", info.Raw)

	// Own annotation beats the value type.
	info, _ = variableSignature(r, nil, mk("limit", "float", "3", pysrc.LiteralInt))
	assert.Equal(t, "limit: float", info.Raw)

	// Literal values type themselves.
	info, _ = variableSignature(r, nil, mk("retries", "", "3", pysrc.LiteralInt))
	assert.Equal(t, "retries: int", info.Raw)
	info, _ = variableSignature(r, nil, mk("label", "", "'x'", pysrc.LiteralString))
	assert.Equal(t, "label: str", info.Raw)
	info, _ = variableSignature(r, nil, mk("ratio", "", "0.5", pysrc.LiteralFloat))
	assert.Equal(t, "ratio: float", info.Raw)
	info, _ = variableSignature(r, nil, mk("active", "", "True", pysrc.LiteralBool))
	assert.Equal(t, "active: bool", info.Raw)

	// None and computed values say nothing about the type.
	info, _ = variableSignature(r, nil, mk("stash", "", "None", pysrc.LiteralNone))
	assert.Equal(t, "stash: Any", info.Raw)
	info, _ = variableSignature(r, nil, mk("store", "", "dict()", pysrc.LiteralOther))
	assert.Equal(t, "store: Any", info.Raw)

	// Abc bookkeeping never renders.
	_, ok = variableSignature(r, nil, mk("_abc_impl", "", "", pysrc.LiteralAbsent))
	assert.False(t, ok)
}
