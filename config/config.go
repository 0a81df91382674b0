// Package config loads the generator configuration from TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"
)

type Submodule struct {
	Name string `toml:"name"`
	// Directory relative to the include root (defaults to Name).
	Dir string `toml:"dir"`
	// Entry function name (defaults to "init_submodule_<name>").
	Entry string `toml:"entry"`
}

type Config struct {
	Imports []string `toml:"imports"`

	// Name of the generated extension module.
	Module  string `toml:"module"`
	Doc     string `toml:"doc"`
	Version string `toml:"version"`

	// Directory holding one subdirectory per submodule.
	IncludeRoot string `toml:"include-root"`
	// Prefix of generated #include paths, e.g. "visp3".
	IncludePrefix string `toml:"include-prefix"`
	OutDir        string `toml:"out-dir"`

	HeaderExtensions []string `toml:"header-extensions"`
	// Macros blanked out before parsing, e.g. "VISP_EXPORT".
	ExportMacros []string `toml:"export-macros"`
	// Prefix stripped from C++ names to form exported names.
	StripPrefix string `toml:"strip-prefix"`

	MaxRegistrationsPerUnit int  `toml:"max-registrations-per-unit"`
	Workers                 int  `toml:"workers"`
	TolerateSyntaxErrors    bool `toml:"tolerate-syntax-errors"`

	// Path of a bindspec rule file.
	Bindspec string `toml:"bindspec"`
	// Path of a gitignore-style file listing headers to skip.
	IgnoreFile string `toml:"ignore-file"`
	// Gitignore-style patterns of headers to skip.
	Ignore []string `toml:"ignore"`

	// If empty, every subdirectory of IncludeRoot is a submodule.
	Submodules []Submodule `toml:"submodule"`
}

// Default returns the configuration used for values not set in a file.
func Default() *Config {
	return &Config{
		Module:           "visp",
		Doc:              "ViSP Python binding",
		IncludeRoot:      "/usr/local/include/visp3",
		IncludePrefix:    "visp3",
		OutDir:           "bindings/src",
		HeaderExtensions: []string{".h", ".hpp"},
		ExportMacros:     []string{"VISP_EXPORT"},
	}
}

// Validate checks the configuration for missing or invalid values.
func (c *Config) Validate() error {
	var errs []error
	if c.Module == "" {
		errs = append(errs, errors.New("module: must not be empty"))
	}
	if c.IncludeRoot == "" {
		errs = append(errs, errors.New("include-root: must not be empty"))
	}
	if c.OutDir == "" {
		errs = append(errs, errors.New("out-dir: must not be empty"))
	}
	if len(c.HeaderExtensions) == 0 {
		errs = append(errs, errors.New("header-extensions: must not be empty"))
	}
	if c.Version != "" && !semver.IsValid("v"+c.Version) && !semver.IsValid(c.Version) {
		errs = append(errs, fmt.Errorf("version: invalid semantic version %v", strconv.Quote(c.Version)))
	}
	if c.MaxRegistrationsPerUnit < 0 {
		errs = append(errs, errors.New("max-registrations-per-unit: must not be negative"))
	}
	seen := map[string]bool{}
	for i, sm := range c.Submodules {
		if sm.Name == "" {
			errs = append(errs, fmt.Errorf("submodule %v: name must not be empty", i+1))
			continue
		}
		if seen[sm.Name] {
			errs = append(errs, fmt.Errorf("submodule %v: duplicate name %v", i+1, strconv.Quote(sm.Name)))
		}
		seen[sm.Name] = true
	}
	return errors.Join(errs...)
}

type Error struct {
	filePath string
	err      error  // short, single-line error
	str      string // full, multi-line error string, or err string, if none
}

// Error returns a short error message.
func (e *Error) Error() string {
	return e.filePath + ": " + e.err.Error()
}

// String returns the full multi-line error string.
func (e *Error) String() string {
	if e.str != "" {
		return "Error in file " + strconv.Quote(e.filePath) + ":\n" + e.str
	} else {
		return e.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.err
}

type ImportCycleError struct {
	Path  string
	Stack []string
}

func (err *ImportCycleError) Error() string {
	var msg strings.Builder
	msg.WriteString("import cycle detected: ")
	for _, item := range err.Stack {
		msg.WriteString(item)
		msg.WriteString(" imports ")
	}
	msg.WriteString(err.Path)
	return msg.String()
}

// Load reads the configuration file at path and all files it imports.
// Values from imported files fill in values not set by the importing
// file; lists are appended. Relative paths in a file are relative to
// the file's directory.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// load is Load with stack holding the absolute paths of the files
// currently being imported, outermost first.
func load(path string, stack []string) (_ *Config, err error) {
	defer func() {
		if err != nil {
			if cErr := (&Error{}); errors.As(err, &cErr) {
				return
			}
			if tErr := (&toml.DecodeError{}); errors.As(err, &tErr) {
				err = &Error{filePath: path, err: err, str: tErr.String()}
			} else if tErr := (&toml.StrictMissingError{}); errors.As(err, &tErr) {
				err = &Error{filePath: path, err: err, str: tErr.String()}
			} else {
				err = &Error{filePath: path, err: err}
			}
		}
	}()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if idx := slices.Index(stack, absPath); idx != -1 {
		return nil, &ImportCycleError{Path: absPath, Stack: slices.Clone(stack[idx:])}
	}
	stack = append(stack, absPath)

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	err = toml.NewDecoder(bytes.NewReader(file)).
		DisallowUnknownFields().
		Decode(c)
	if err != nil {
		return nil, err
	}
	c.resolvePaths(filepath.Dir(path))

	var importedCs []*Config // collect imported files first so their imports don't leak into our file's imports
	for _, imp := range c.Imports {
		newC, err := load(imp, stack)
		if err != nil {
			return nil, err
		}
		importedCs = append(importedCs, newC)
	}
	for _, newC := range importedCs {
		if err := mergo.Merge(c, newC, mergo.WithAppendSlice); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// LoadWithDefaults loads the file at path, fills in defaults and
// validates the result.
func LoadWithDefaults(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(c, Default()); err != nil {
		return nil, err
	}
	c.resolvePaths(filepath.Dir(path))
	if err := c.Validate(); err != nil {
		return nil, &Error{filePath: path, err: err, str: err.Error()}
	}
	return c, nil
}

func (c *Config) resolvePaths(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	for i := range c.Imports {
		abs(&c.Imports[i])
	}
	abs(&c.IncludeRoot)
	abs(&c.OutDir)
	abs(&c.Bindspec)
	abs(&c.IgnoreFile)
}
