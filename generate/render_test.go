package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/discovery"
	"github.com/stubzen/stubzen/extract"
	"github.com/stubzen/stubzen/pysrc"
)

func renderResolver() *extract.TypeResolver {
	ix := discovery.NewSymbolIndex()
	ix.AddProjectClass("Model", "app.models")
	ix.AddProjectClass("Registry", "app.registry")
	return extract.NewTypeResolver(ix, config.Default())
}

func declared(name string, bases ...pysrc.BaseRef) *discovery.ClassInfo {
	return &discovery.ClassInfo{Name: name, Decl: &pysrc.Class{Name: name, Bases: bases}}
}

func TestClassLine(t *testing.T) {
	t.Run("no declaration renders bare", func(t *testing.T) {
		got := classLine(renderResolver(), &discovery.ClassInfo{Name: "Ghost"})
		assert.Equal(t, "class Ghost:", got)
	})

	t.Run("no bases renders bare", func(t *testing.T) {
		got := classLine(renderResolver(), declared("Plain"))
		assert.Equal(t, "class Plain:", got)
	})

	t.Run("declared bases keep their names", func(t *testing.T) {
		ci := declared("Item",
			pysrc.BaseRef{Raw: "Model", Name: "Model"},
			pysrc.BaseRef{Raw: "mixins.Sortable", Name: "Sortable"},
		)
		got := classLine(renderResolver(), ci)
		assert.Equal(t, "class Item(Model, Sortable):", got)
	})

	t.Run("generic base is dropped", func(t *testing.T) {
		ci := declared("Repo",
			pysrc.BaseRef{Raw: "Generic[T]", Name: "Generic", Args: []string{"T"}},
			pysrc.BaseRef{Raw: "Model", Name: "Model"},
		)
		got := classLine(renderResolver(), ci)
		assert.Equal(t, "class Repo(Model):", got)
	})

	t.Run("generic-only base list renders bare", func(t *testing.T) {
		ci := declared("Repo", pysrc.BaseRef{Raw: "Generic[T]", Name: "Generic", Args: []string{"T"}})
		got := classLine(renderResolver(), ci)
		assert.Equal(t, "class Repo:", got)
	})

	t.Run("bases register their imports", func(t *testing.T) {
		res := renderResolver()
		ci := declared("Item",
			pysrc.BaseRef{Raw: "Model", Name: "Model"},
			pysrc.BaseRef{Raw: "services.mail.Mailer", Name: "Mailer"},
		)
		classLine(res, ci)

		used := res.UsedTypes()
		require.Len(t, used, 1)
		assert.Equal(t, "Model", used[0].Name)
		assert.Equal(t, "app.models", used[0].Module)
		assert.Contains(t, res.StringRefs(), "services.mail.Mailer")
	})

	t.Run("subscripted base tracks its origin", func(t *testing.T) {
		res := renderResolver()
		ci := declared("Sub", pysrc.BaseRef{Raw: "Registry[int]", Name: "Registry", Args: []string{"int"}})
		got := classLine(res, ci)

		assert.Equal(t, "class Sub(Registry):", got)
		used := res.UsedTypes()
		require.Len(t, used, 1)
		assert.Equal(t, "Registry", used[0].Name)
	})
}

func TestRenderClassBlock(t *testing.T) {
	t.Run("no members renders ellipsis body", func(t *testing.T) {
		got := renderClassBlock("class Empty:", "Empty", nil)
		assert.Equal(t, "class Empty:\n    ...\n", got)
	})

	t.Run("own members carry no banner", func(t *testing.T) {
		sigs := []extract.SignatureInfo{
			{Raw: "x: int", SourceClass: "User"},
			{Raw: "def f(self) -> str: ...", SourceClass: ""},
		}
		got := renderClassBlock("class User:", "User", sigs)
		want := "class User:\n    x: int\n    def f(self) -> str: ...\n"
		assert.Equal(t, want, got)
	})

	t.Run("foreign members group under a source banner", func(t *testing.T) {
		sigs := []extract.SignatureInfo{
			{Raw: "name: str", SourceClass: "User"},
			{Raw: "id: int", SourceClass: "Model"},
			{Raw: "def save(self) -> bool: ...", SourceClass: "Model"},
		}
		got := renderClassBlock("class User(Model):", "User", sigs)
		want := `class User(Model):
    name: str

    # From Model
    id: int
    def save(self) -> bool: ...
`
		assert.Equal(t, want, got)
	})

	t.Run("scattered members regroup by source", func(t *testing.T) {
		// Constructor attributes harvest after inherited members but
		// still render inside the own-class group.
		sigs := []extract.SignatureInfo{
			{Raw: "name: str", SourceClass: "User"},
			{Raw: "id: int", SourceClass: "Model"},
			{Raw: "email: str", SourceClass: "User"},
		}
		got := renderClassBlock("class User(Model):", "User", sigs)
		want := `class User(Model):
    name: str
    email: str

    # From Model
    id: int
`
		assert.Equal(t, want, got)
	})

	t.Run("leading foreign group keeps banner before own members", func(t *testing.T) {
		sigs := []extract.SignatureInfo{
			{Raw: "label: str", SourceClass: "Item"},
			{Raw: "def first(self) -> int: ...", SourceClass: "Registry"},
		}
		got := renderClassBlock("class Registry:", "Registry", sigs)
		want := `class Registry:
    # From Item
    label: str

    def first(self) -> int: ...
`
		assert.Equal(t, want, got)
	})
}

func TestComposeUnit(t *testing.T) {
	header := "# noinspection PyUnresolvedReferences\n"
	blocks := []string{
		"class A:\n    x: int\n",
		"class B:\n    ...\n",
	}
	got := string(composeUnit(header, blocks))
	want := `# noinspection PyUnresolvedReferences

class A:
    x: int


class B:
    ...
`
	assert.Equal(t, want, got)
}
