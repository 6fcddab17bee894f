package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubzen/stubzen/config"
)

// writeTree materializes a map of relative paths to file contents.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func discoverTree(t *testing.T, cfg *config.Config, files map[string]string) *Project {
	t.Helper()
	root := writeTree(t, files)
	project, err := Discover(context.Background(), root, cfg)
	require.NoError(t, err)
	return project
}

func TestModulePath(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"app/models.py", "app.models"},
		{"app/__init__.py", "app"},
		{"app/sub/deep.py", "app.sub.deep"},
		{"single.py", "single"},
		{"__init__.py", "__init__"},
	}
	for _, tt := range tests {
		got := modulePath("/project", filepath.Join("/project", filepath.FromSlash(tt.rel)))
		assert.Equal(t, tt.want, got, tt.rel)
	}
}

func TestDiscover_WalksAndMapsModules(t *testing.T) {
	project := discoverTree(t, config.Default(), map[string]string{
		"app/__init__.py": "",
		"app/models.py":   "class User:\n    pass\n",
		"app/sub/util.py": "class Helper:\n    pass\n",
		"docs/conf.py":    "class ShouldNotAppear:\n    pass\n",
		"tests/test_x.py": "class AlsoHidden:\n    pass\n",
		"README.md":       "not python",
	})

	assert.Contains(t, project.Modules, "app")
	assert.Contains(t, project.Modules, "app.models")
	assert.Contains(t, project.Modules, "app.sub.util")
	assert.NotContains(t, project.Modules, "docs.conf", "docs is excluded by default")
	assert.NotContains(t, project.Modules, "tests.test_x", "tests is always excluded")

	_, ok := project.ClassIn("app.models", "User")
	assert.True(t, ok)
}

func TestDiscover_ExcludedModulesStayDiscoverableButFlagged(t *testing.T) {
	cfg := config.Default()
	cfg.ExcludeModules = []string{"internal"}

	project := discoverTree(t, cfg, map[string]string{
		"app/internal/db.py": "class Conn:\n    pass\n",
		"app/models.py":      "class User:\n    pass\n",
	})

	conn, ok := project.ClassIn("app.internal.db", "Conn")
	require.True(t, ok, "excluded modules are still parsed")
	assert.True(t, conn.Excluded)

	user, ok := project.ClassIn("app.models", "User")
	require.True(t, ok)
	assert.False(t, user.Excluded)
}

func TestSymbolIndex_ProjectBeatsImported(t *testing.T) {
	ix := NewSymbolIndex()
	ix.AddImportedName("User", "django.contrib.auth.models")
	ix.AddProjectClass("User", "app.models")
	ix.finalize()

	module, ok := ix.Resolve("User")
	require.True(t, ok)
	assert.Equal(t, "app.models", module)
}

func TestSymbolIndex_LongestModuleWins(t *testing.T) {
	ix := NewSymbolIndex()
	ix.AddProjectClass("Widget", "app.widgets")
	ix.AddProjectClass("Widget", "app.widgets.core")
	ix.finalize()

	module, ok := ix.ResolveProject("Widget")
	require.True(t, ok)
	assert.Equal(t, "app.widgets.core", module, "most specific module wins")

	assert.Equal(t, []string{"app.widgets.core", "app.widgets"}, ix.ProjectModules("Widget"))
}

func TestSymbolIndex_ImportedFallback(t *testing.T) {
	ix := NewSymbolIndex()
	ix.AddImportedName("Session", "sqlalchemy.orm")
	ix.finalize()

	module, ok := ix.Resolve("Session")
	require.True(t, ok)
	assert.Equal(t, "sqlalchemy.orm", module)
	assert.False(t, ix.IsProjectClass("Session"))
}

func TestDiscover_MRODiamond(t *testing.T) {
	project := discoverTree(t, config.Default(), map[string]string{
		"shapes.py": `class A:
    pass

class B(A):
    pass

class C(A):
    pass

class D(B, C):
    pass
`,
	})

	d, ok := project.ClassIn("shapes", "D")
	require.True(t, ok)

	names := make([]string, 0, len(d.MRO))
	for _, a := range d.MRO {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"D", "B", "C", "A"}, names, "C3 linearization")
}

func TestDiscover_MROAcrossModules(t *testing.T) {
	project := discoverTree(t, config.Default(), map[string]string{
		"app/__init__.py": "",
		"app/base.py":     "class Model:\n    pass\n",
		"app/user.py": `from app.base import Model

class User(Model):
    pass
`,
		"app/admin.py": `from .user import User

class Admin(User):
    pass
`,
	})

	admin, ok := project.ClassIn("app.admin", "Admin")
	require.True(t, ok)

	require.Len(t, admin.MRO, 3)
	assert.Equal(t, "Admin", admin.MRO[0].Name)
	assert.Equal(t, "User", admin.MRO[1].Name)
	require.NotNil(t, admin.MRO[1].Class, "relative import resolves to project class")
	assert.Equal(t, "app.user", admin.MRO[1].Class.Module)
	assert.Equal(t, "Model", admin.MRO[2].Name)
	require.NotNil(t, admin.MRO[2].Class)
}

func TestDiscover_ExternalBasesParticipateByName(t *testing.T) {
	project := discoverTree(t, config.Default(), map[string]string{
		"models.py": `from abc import ABC
from django.db import models

class Entity(ABC):
    pass

class Record(models.Model):
    pass
`,
	})

	entity, _ := project.ClassIn("models", "Entity")
	require.Len(t, entity.MRO, 2)
	assert.Equal(t, "ABC", entity.MRO[1].Name)
	assert.Nil(t, entity.MRO[1].Class)

	record, _ := project.ClassIn("models", "Record")
	require.Len(t, record.MRO, 2)
	assert.Equal(t, "Model", record.MRO[1].Name)
	assert.Nil(t, record.MRO[1].Class)
}

func TestClassify_Categories(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"app.models.Model", "app.contracts.Contract"}
	cfg.MixinClasses = []string{"app.mixins.AuditTrail"}

	project := discoverTree(t, cfg, map[string]string{
		"app/__init__.py": "",
		"app/models.py": `from abc import abstractmethod, ABCMeta

class Model:
    pass

class User(Model):
    def save(self):
        pass

class Job(Model):
    @abstractmethod
    def run(self):
        ...

class EmailJob(Job):
    def run(self):
        pass

class AbstractRepo(Model):
    pass

class Plugin(Model, metaclass=ABCMeta):
    pass
`,
		"app/contracts.py": `from abc import ABC

class Contract(ABC):
    pass

class Invoice(Contract):
    pass
`,
		"app/mixins.py": `class AuditTrail:
    pass

class TimestampMixin:
    pass
`,
		"app/audit.py": `from app.mixins import AuditTrail

class ChangeLog(AuditTrail):
    pass
`,
		"app/other.py": `class Helper:
    pass
`,
	})

	expect := map[string]Category{
		"app.models.Model":          CategoryBase,
		"app.models.User":           CategoryConcrete,
		"app.models.Job":            CategoryAbstract, // outstanding @abstractmethod
		"app.models.EmailJob":       CategoryConcrete, // run() overridden
		"app.models.AbstractRepo":   CategoryAbstract, // name marker
		"app.models.Plugin":         CategoryAbstract, // metaclass=ABCMeta
		"app.contracts.Contract":    CategoryBase,     // exact identity beats ABC ancestry
		"app.contracts.Invoice":     CategoryAbstract, // inherits ABC
		"app.mixins.TimestampMixin": CategoryMixin,    // naming convention
		"app.audit.ChangeLog":       CategoryMixin,    // configured mixin ancestry
		"app.other.Helper":          CategoryStandard,
	}
	for ref, want := range expect {
		ci, ok := project.ClassByRef(ref)
		require.True(t, ok, ref)
		assert.Equal(t, want, ci.Category, ref)
	}

	helper, _ := project.ClassByRef("app.other.Helper")
	assert.False(t, helper.IsTarget())
	user, _ := project.ClassByRef("app.models.User")
	assert.True(t, user.IsTarget())
}

func TestClassify_UnresolvableRefSkipped(t *testing.T) {
	cfg := config.Default()
	cfg.BaseClasses = []string{"ghost.module.Nothing"}

	project := discoverTree(t, cfg, map[string]string{
		"app.py": "class Thing:\n    pass\n",
	})

	thing, _ := project.ClassIn("app", "Thing")
	assert.Equal(t, CategoryStandard, thing.Category)
}

func TestDiscover_TypeVarIndex(t *testing.T) {
	project := discoverTree(t, config.Default(), map[string]string{
		"generic.py": `from typing import TypeVar, Generic

T = TypeVar("T", bound=Thing)
S = TypeVar("S")

class Thing:
    pass

class Box(Generic[T]):
    pass
`,
	})

	decls := project.TypeVars["generic"]
	require.Len(t, decls, 2)
	assert.Equal(t, "T", decls[0].Name)
	assert.Equal(t, "Thing", decls[0].Bound)
	assert.Equal(t, "S", decls[1].Name)
}

func TestDiscover_TypeCheckingBindings(t *testing.T) {
	project := discoverTree(t, config.Default(), map[string]string{
		"app/__init__.py": "",
		"app/svc.py": `from typing import TYPE_CHECKING

if TYPE_CHECKING:
    from app.models import User

class Service:
    pass
`,
	})

	src, ok := project.TypeCheckingImport("app.svc", "User")
	require.True(t, ok)
	assert.Equal(t, "app.models", src)

	_, ok = project.TypeCheckingImport("app.svc", "TYPE_CHECKING")
	assert.False(t, ok, "ungated imports are not in the gated map")
}

func TestDiscover_SubmoduleBinding(t *testing.T) {
	project := discoverTree(t, config.Default(), map[string]string{
		"app/__init__.py":        "",
		"app/mixins/__init__.py": "",
		"app/mixins/audit.py":    "class AuditMixin:\n    pass\n",
		"app/uses.py": `from app.mixins import audit

class Tracked(audit.AuditMixin):
    pass
`,
	})

	tracked, ok := project.ClassIn("app.uses", "Tracked")
	require.True(t, ok)
	require.Len(t, tracked.MRO, 2)
	assert.Equal(t, "AuditMixin", tracked.MRO[1].Name)
	require.NotNil(t, tracked.MRO[1].Class, "dotted base through submodule binding resolves")
	assert.Equal(t, "app.mixins.audit", tracked.MRO[1].Class.Module)
}

func TestResolveRelative(t *testing.T) {
	tests := []struct {
		module    string
		isPackage bool
		imported  string
		want      string
	}{
		{"app.services.http", false, ".helpers", "app.services.helpers"},
		{"app.services.http", false, "..core", "app.core"},
		{"app.services", true, ".base", "app.services.base"},
		{"app.services", true, "..", "app"},
		{"top", false, ".", ""},
		{"app.x", false, "absolute.path", "absolute.path"},
	}
	for _, tt := range tests {
		got := resolveRelative(tt.module, tt.isPackage, tt.imported)
		assert.Equal(t, tt.want, got, "%s + %s", tt.module, tt.imported)
	}
}
