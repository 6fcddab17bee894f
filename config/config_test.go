package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, StyleModule, cfg.StubStyle)
	assert.True(t, cfg.LogMissingTypes)
	assert.False(t, cfg.VerboseLogging)
	assert.Equal(t, "0.1.0", cfg.PackageVersion)
	assert.Equal(t, "pip install -e", cfg.InstallerCommand)
	assert.Equal(t, []string{"docs", "scripts", "migrations"}, cfg.ExcludeDirs)
	assert.Empty(t, cfg.BaseClasses)
}

func TestLoad_NoPyproject(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, StyleModule, cfg.StubStyle)
	assert.True(t, cfg.LogMissingTypes)
}

func TestLoad_PyprojectTable(t *testing.T) {
	root := t.TempDir()
	content := `
[project]
name = "demo"

[tool.stubzen]
base_classes = ["demo.models.Model"]
mixin_classes = ["demo.mixins.TimestampMixin"]
exclude_modules = ["internal"]
exclude_dirs = ["notebooks"]
stub_style = "inline"
log_missing_types = false
package_version = "1.2.3"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, PyprojectFile), []byte(content), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, []string{"demo.models.Model"}, cfg.BaseClasses)
	assert.Equal(t, []string{"demo.mixins.TimestampMixin"}, cfg.MixinClasses)
	assert.Equal(t, StyleInline, cfg.StubStyle)
	assert.False(t, cfg.LogMissingTypes)
	assert.Equal(t, "1.2.3", cfg.PackageVersion)
	// Unset keys keep their defaults.
	assert.Equal(t, "pip install -e", cfg.InstallerCommand)
}

func TestLoad_PyprojectWithoutStubzenTable(t *testing.T) {
	root := t.TempDir()
	content := `
[project]
name = "demo"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, PyprojectFile), []byte(content), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, StyleModule, cfg.StubStyle)
}

func TestLoad_MalformedPyproject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, PyprojectFile), []byte("[tool.stubzen\n"), 0644))

	_, err := Load(root)
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	root := t.TempDir()
	content := `
[tool.stubzen]
stub_style = "inline"
`
	require.NoError(t, os.WriteFile(filepath.Join(root, PyprojectFile), []byte(content), 0644))

	t.Setenv("STUBZEN_STUB_STYLE", "package")
	t.Setenv("STUBZEN_PACKAGE_VERSION", "9.9.9")

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, StylePackage, cfg.StubStyle, "environment beats pyproject")
	assert.Equal(t, "9.9.9", cfg.PackageVersion, "environment beats defaults")
}

func TestLoadWithViper(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("stub_style", StylePackage)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, StylePackage, cfg.StubStyle)
}

func TestIsExcludedModule(t *testing.T) {
	cfg := Default()
	cfg.ExcludeModules = []string{"internal", "demo.vendor"}

	assert.True(t, cfg.IsExcludedModule("app.internal"))
	assert.True(t, cfg.IsExcludedModule("app.internal.db"))
	assert.True(t, cfg.IsExcludedModule("demo.vendor.client"))
	assert.False(t, cfg.IsExcludedModule("app.models"))
}

func TestIsExcludedModule_EmptyPatternIgnored(t *testing.T) {
	cfg := Default()
	cfg.ExcludeModules = []string{""}

	assert.False(t, cfg.IsExcludedModule("app.models"))
}

func TestExcludedDirSet(t *testing.T) {
	cfg := Default()
	cfg.ExcludeDirs = []string{"notebooks"}

	set := cfg.ExcludedDirSet()
	_, hasGit := set[".git"]
	_, hasNotebooks := set["notebooks"]
	_, hasTests := set["tests"]

	assert.True(t, hasGit, "built-in exclusions always present")
	assert.True(t, hasNotebooks, "configured exclusions merged in")
	assert.True(t, hasTests)
}

func TestWatchGlobs(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"*.py"}, cfg.WatchGlobs())

	cfg.WatchPatterns = []string{"*.py", "*.pyx"}
	assert.Equal(t, []string{"*.py", "*.pyx"}, cfg.WatchGlobs())
}
