// Package stubpkg assembles the generated stubs into a PEP 561
// stub-only distribution and installs it with the configured installer
// command. The layout is <root>/stubs-dist/<package>-stubs/ holding the
// .pyi tree, a py.typed marker, and a generated pyproject.toml.
package stubpkg

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"

	"github.com/stubzen/stubzen/config"
	"github.com/stubzen/stubzen/errors"
	"github.com/stubzen/stubzen/logger"
)

// DistDir is the directory under the project root that holds assembled
// stub packages.
const DistDir = "stubs-dist"

// Options adjust one packaging pass.
type Options struct {
	// PackageName overrides the inferred <project>-stubs name.
	PackageName string
	// Bump increments the configured package version's patch component
	// before writing pyproject.toml.
	Bump bool
	// NoInstall assembles the package without running the installer.
	NoInstall bool
}

// Result describes the assembled package.
type Result struct {
	PackageName string `json:"package_name"`
	Version     string `json:"version"`
	Dir         string `json:"dir"`
	StubFiles   int    `json:"stub_files"`
	Installed   bool   `json:"installed"`
}

// pyproject is the generated stub-package manifest.
type pyproject struct {
	BuildSystem buildSystem `toml:"build-system"`
	Project     project     `toml:"project"`
	Tool        tool        `toml:"tool"`
}

type buildSystem struct {
	Requires     []string `toml:"requires"`
	BuildBackend string   `toml:"build-backend"`
}

type project struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description string   `toml:"description"`
	Classifiers []string `toml:"classifiers"`
}

type tool struct {
	Setuptools setuptools `toml:"setuptools"`
}

type setuptools struct {
	Packages           []string            `toml:"packages"`
	IncludePackageData bool                `toml:"include-package-data"`
	PackageData        map[string][]string `toml:"package-data"`
}

// sourcePyproject reads just enough of the target project's own
// pyproject.toml to infer a package name.
type sourcePyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
}

// Assemble builds the stub package from the stubs/ tree the generator
// wrote and, unless opts.NoInstall is set, installs it with the
// configured installer command.
func Assemble(ctx context.Context, root string, cfg *config.Config, opts Options) (*Result, error) {
	stubsDir := filepath.Join(root, "stubs")
	if _, err := os.Stat(stubsDir); err != nil {
		return nil, errors.Wrapf(err, "no stubs directory under %s, run generate first", root)
	}

	name := opts.PackageName
	if name == "" {
		name = InferPackageName(root)
	}
	if !strings.HasSuffix(name, "-stubs") {
		name += "-stubs"
	}

	version, err := packageVersion(cfg, opts.Bump)
	if err != nil {
		return nil, err
	}

	pkgDir := filepath.Join(root, DistDir, name)
	if err := os.RemoveAll(pkgDir); err != nil {
		return nil, errors.Wrapf(err, "failed to clear %s", pkgDir)
	}
	stubsDest := filepath.Join(pkgDir, "stubs")
	copied, err := copyStubTree(stubsDir, stubsDest)
	if err != nil {
		return nil, err
	}
	if copied == 0 {
		return nil, errors.Newf("no .pyi files under %s", stubsDir)
	}

	if err := os.WriteFile(filepath.Join(stubsDest, "py.typed"), nil, 0o644); err != nil {
		return nil, errors.Wrap(err, "failed to write py.typed marker")
	}
	if err := writePyproject(pkgDir, name, version); err != nil {
		return nil, err
	}

	res := &Result{
		PackageName: name,
		Version:     version,
		Dir:         pkgDir,
		StubFiles:   copied,
	}
	logger.Infow("Assembled stub package",
		"package", name,
		"version", version,
		"stub_files", copied,
		"dir", pkgDir)

	if opts.NoInstall {
		return res, nil
	}
	if err := install(ctx, cfg, pkgDir); err != nil {
		return res, err
	}
	res.Installed = true
	return res, nil
}

// InferPackageName derives the stub package name from the project's
// pyproject.toml [project] name, falling back to the root directory
// name.
func InferPackageName(root string) string {
	var src sourcePyproject
	path := filepath.Join(root, config.PyprojectFile)
	if _, err := toml.DecodeFile(path, &src); err == nil && src.Project.Name != "" {
		return src.Project.Name + "-stubs"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return filepath.Base(abs) + "-stubs"
}

// packageVersion validates the configured version and applies --bump.
func packageVersion(cfg *config.Config, bump bool) (string, error) {
	v, err := semver.NewVersion(cfg.PackageVersion)
	if err != nil {
		return "", errors.Wrapf(err, "invalid package_version %q", cfg.PackageVersion)
	}
	if bump {
		next := v.IncPatch()
		v = &next
	}
	return v.String(), nil
}

// copyStubTree copies every .pyi file (and py.typed markers) under src
// into dst, preserving the directory shape. Returns the .pyi count.
func copyStubTree(src, dst string) (int, error) {
	copied := 0
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !strings.HasSuffix(p, ".pyi") && d.Name() != "py.typed" {
			return nil
		}
		if err := copyFile(p, target); err != nil {
			return err
		}
		if strings.HasSuffix(p, ".pyi") {
			copied++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to copy stubs from %s", src)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writePyproject emits the stub package's pyproject.toml.
func writePyproject(pkgDir, name, version string) error {
	doc := pyproject{
		BuildSystem: buildSystem{
			Requires:     []string{"setuptools>=45", "wheel"},
			BuildBackend: "setuptools.build_meta",
		},
		Project: project{
			Name:        name,
			Version:     version,
			Description: "Type stubs for " + strings.TrimSuffix(name, "-stubs"),
			Classifiers: []string{"Typing :: Stubs Only"},
		},
		Tool: tool{
			Setuptools: setuptools{
				Packages:           []string{"stubs"},
				IncludePackageData: true,
				PackageData: map[string][]string{
					"stubs": {"*.pyi", "**/*.pyi", "py.typed"},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return errors.Wrap(err, "failed to encode pyproject.toml")
	}
	path := filepath.Join(pkgDir, config.PyprojectFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// install runs the configured installer command against the assembled
// package directory. The command string splits shell-style, so quoted
// arguments survive.
func install(ctx context.Context, cfg *config.Config, pkgDir string) error {
	words, err := shellquote.Split(cfg.InstallerCommand)
	if err != nil {
		return errors.Wrapf(err, "invalid installer_command %q", cfg.InstallerCommand)
	}
	if len(words) == 0 {
		return errors.Newf("empty installer_command")
	}
	words = append(words, pkgDir)

	logger.Infow("Installing stub package", "command", strings.Join(words, " "))
	cmd := exec.CommandContext(ctx, words[0], words[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "installer failed: %s", strings.TrimSpace(string(output)))
	}
	logger.Debugw("Installer finished", "output", strings.TrimSpace(string(output)))
	return nil
}
