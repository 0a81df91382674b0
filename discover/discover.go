// Package discover finds the submodules and headers to bind below the
// include root.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/iancoleman/strcase"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/NoelVillette/visp/bindgen/config"
	"github.com/NoelVillette/visp/bindgen/submodule"
)

type Header struct {
	// Filesystem path.
	Path string
	// Path used in #include directives.
	IncludePath string
}

// Group is a discovered submodule with its headers, sorted by path.
type Group struct {
	Name    string
	Entry   string
	Headers []Header
}

// Spec returns the grouping of g as expected by [submodule.Assemble].
func (g Group) Spec() submodule.Spec {
	paths := make([]string, len(g.Headers))
	for i, h := range g.Headers {
		paths[i] = h.Path
	}
	return submodule.Spec{Name: g.Name, Entry: g.Entry, Headers: paths}
}

// EntryName returns the default entry function name of a submodule.
func EntryName(name string) string {
	return "init_submodule_" + strcase.ToSnake(name)
}

// Groups discovers all submodules configured in cfg, or, if none are
// configured, one submodule per subdirectory of the include root.
func Groups(cfg *config.Config) ([]Group, error) {
	gi, err := compileIgnore(cfg)
	if err != nil {
		return nil, err
	}

	subs := cfg.Submodules
	if len(subs) == 0 {
		ents, err := os.ReadDir(cfg.IncludeRoot)
		if err != nil {
			return nil, err
		}
		for _, ent := range ents {
			if !ent.IsDir() || strings.HasPrefix(ent.Name(), ".") || gi.MatchesPath(ent.Name()+"/") {
				continue
			}
			subs = append(subs, config.Submodule{Name: ent.Name()})
		}
	}

	var groups []Group
	for _, sm := range subs {
		dir := sm.Dir
		if dir == "" {
			dir = sm.Name
		}
		entry := sm.Entry
		if entry == "" {
			entry = EntryName(sm.Name)
		}
		hdrs, err := headers(cfg, dir, gi)
		if err != nil {
			return nil, fmt.Errorf("submodule %v: %w", sm.Name, err)
		}
		groups = append(groups, Group{Name: sm.Name, Entry: entry, Headers: hdrs})
	}
	return groups, nil
}

func compileIgnore(cfg *config.Config) (*ignore.GitIgnore, error) {
	if cfg.IgnoreFile != "" {
		return ignore.CompileIgnoreFileAndLines(cfg.IgnoreFile, cfg.Ignore...)
	}
	return ignore.CompileIgnoreLines(cfg.Ignore...), nil
}

func headers(cfg *config.Config, dir string, gi *ignore.GitIgnore) ([]Header, error) {
	var res []Header
	root := filepath.Join(cfg.IncludeRoot, dir)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(cfg.IncludeRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p != root && (strings.HasPrefix(d.Name(), ".") || gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !slices.Contains(cfg.HeaderExtensions, filepath.Ext(p)) || gi.MatchesPath(rel) {
			return nil
		}
		res = append(res, Header{
			Path:        p,
			IncludePath: path.Join(cfg.IncludePrefix, rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(res, func(a, b Header) int {
		return strings.Compare(a.Path, b.Path)
	})
	return res, nil
}
