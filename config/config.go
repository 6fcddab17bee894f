// Package config loads stubzen settings. Configuration lives in the
// [tool.stubzen] table of the project's pyproject.toml; any value can be
// overridden through STUBZEN_* environment variables. Loading has no
// global state: every call builds a fresh Config and callers pass the
// value down explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/stubzen/stubzen/errors"
)

// Stub placement styles accepted by stub_style.
const (
	StyleInline  = "inline"  // .pyi beside each source module
	StyleModule  = "module"  // stubs/ mirror of the package tree
	StylePackage = "package" // one .pyi per top-level package under stubs/
)

// PyprojectFile is the file Load reads relative to the project root.
const PyprojectFile = "pyproject.toml"

// DefaultExcludeDirs are directory names discovery never descends into,
// regardless of configuration.
var DefaultExcludeDirs = []string{
	".git", "__pycache__", ".pytest_cache", "node_modules",
	".venv", "venv", "env", ".env", "build", "dist", "tests",
}

// Config carries every stubzen setting. Precedence, lowest to highest:
// built-in defaults, [tool.stubzen], STUBZEN_* environment variables.
type Config struct {
	// BaseClasses are fully qualified names whose subclasses are stub
	// targets (e.g. "myapp.models.Model").
	BaseClasses []string `mapstructure:"base_classes"`
	// MixinClasses are fully qualified names treated as mixins: their
	// members fold into subclasses while the mixins themselves are
	// skipped as targets.
	MixinClasses []string `mapstructure:"mixin_classes"`
	// ExcludeModules are substrings; a module path containing any of
	// them is skipped during discovery.
	ExcludeModules []string `mapstructure:"exclude_modules"`
	// ExcludeDirs extends DefaultExcludeDirs with project-specific
	// directory names.
	ExcludeDirs []string `mapstructure:"exclude_dirs"`
	// StubStyle selects output placement: inline, module or package.
	StubStyle string `mapstructure:"stub_style"`
	// VerboseLogging raises the log level for generation runs started
	// without an explicit --verbose flag.
	VerboseLogging bool `mapstructure:"verbose_logging"`
	// LogMissingTypes enables the missing-annotation report.
	LogMissingTypes bool `mapstructure:"log_missing_types"`
	// WatchPaths are the roots the watch command observes. Empty means
	// the project root itself.
	WatchPaths []string `mapstructure:"watch_paths"`
	// WatchPatterns filter watch events by base name. Empty means
	// "*.py".
	WatchPatterns []string `mapstructure:"watch_patterns"`
	// PackageVersion is the semver written into the assembled stub
	// package's pyproject.toml.
	PackageVersion string `mapstructure:"package_version"`
	// InstallerCommand is the command line used to install the
	// assembled stub package, split shell-style before execution.
	InstallerCommand string `mapstructure:"installer_command"`
}

// Default returns the built-in configuration with no file or environment
// input applied.
func Default() *Config {
	return &Config{
		BaseClasses:      []string{},
		MixinClasses:     []string{},
		ExcludeModules:   []string{},
		ExcludeDirs:      []string{"docs", "scripts", "migrations"},
		StubStyle:        StyleModule,
		VerboseLogging:   false,
		LogMissingTypes:  true,
		WatchPaths:       []string{},
		WatchPatterns:    []string{},
		PackageVersion:   "0.1.0",
		InstallerCommand: "pip install -e",
	}
}

// Load builds the configuration for the project rooted at projectRoot.
// A missing pyproject.toml or a missing [tool.stubzen] table is not an
// error; defaults and environment overrides still apply.
func Load(projectRoot string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("STUBZEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	settings, err := readPyproject(filepath.Join(projectRoot, PyprojectFile))
	if err != nil {
		return nil, err
	}
	if settings != nil {
		if err := v.MergeConfigMap(settings); err != nil {
			return nil, errors.Wrap(err, "failed to merge pyproject settings")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadWithViper decodes a Config from a prepared Viper instance. Useful
// for tests that need full control over the sources.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// SetDefaults registers every stubzen default on v so that environment
// overrides resolve even when no pyproject table is present.
func SetDefaults(v *viper.Viper) {
	setDefaults(v)
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("base_classes", d.BaseClasses)
	v.SetDefault("mixin_classes", d.MixinClasses)
	v.SetDefault("exclude_modules", d.ExcludeModules)
	v.SetDefault("exclude_dirs", d.ExcludeDirs)
	v.SetDefault("stub_style", d.StubStyle)
	v.SetDefault("verbose_logging", d.VerboseLogging)
	v.SetDefault("log_missing_types", d.LogMissingTypes)
	v.SetDefault("watch_paths", d.WatchPaths)
	v.SetDefault("watch_patterns", d.WatchPatterns)
	v.SetDefault("package_version", d.PackageVersion)
	v.SetDefault("installer_command", d.InstallerCommand)
}

// readPyproject returns the [tool.stubzen] table as a flat settings map,
// or nil when the file or the table is absent.
func readPyproject(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	var doc struct {
		Tool struct {
			Stubzen map[string]interface{} `toml:"stubzen"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return doc.Tool.Stubzen, nil
}

// IsExcludedModule reports whether module matches any configured
// exclusion. Matching is substring containment, so "internal" excludes
// both "app.internal" and "app.internal.db".
func (c *Config) IsExcludedModule(module string) bool {
	for _, excluded := range c.ExcludeModules {
		if excluded != "" && strings.Contains(module, excluded) {
			return true
		}
	}
	return false
}

// ExcludedDirSet returns the union of DefaultExcludeDirs and the
// configured exclude_dirs as a membership set keyed by directory name.
func (c *Config) ExcludedDirSet() map[string]struct{} {
	set := make(map[string]struct{}, len(DefaultExcludeDirs)+len(c.ExcludeDirs))
	for _, dir := range DefaultExcludeDirs {
		set[dir] = struct{}{}
	}
	for _, dir := range c.ExcludeDirs {
		set[dir] = struct{}{}
	}
	return set
}

// WatchGlobs returns the configured watch patterns, defaulting to all
// Python sources.
func (c *Config) WatchGlobs() []string {
	if len(c.WatchPatterns) == 0 {
		return []string{"*.py"}
	}
	return c.WatchPatterns
}

// String returns a compact representation for debug logs.
func (c *Config) String() string {
	return fmt.Sprintf("Config{style=%s, bases=%d, mixins=%d, excluded_modules=%d}",
		c.StubStyle, len(c.BaseClasses), len(c.MixinClasses), len(c.ExcludeModules))
}
