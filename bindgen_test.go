package bindgen_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/NoelVillette/visp/bindgen"
	"github.com/NoelVillette/visp/bindgen/config"
	"github.com/NoelVillette/visp/bindgen/entry"
	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/NoelVillette/visp/bindgen/preprocessor"
	"github.com/NoelVillette/visp/bindgen/resolve"
	"github.com/NoelVillette/visp/bindgen/submodule"
)

// setup extracts the headers of a txtar archive into a fresh include
// root and returns a config pointing to it, along with the expected
// output files (the archive's want/ files).
func setup(t *testing.T, archive string) (*config.Config, map[string]string) {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", "bindgen", archive))
	require.NoError(t, err)

	dir := t.TempDir()
	root := filepath.Join(dir, "include")
	want := map[string]string{}
	for _, f := range ar.Files {
		if name, ok := strings.CutPrefix(f.Name, "want/"); ok {
			want[name] = string(f.Data)
			continue
		}
		p := filepath.Join(root, filepath.FromSlash(f.Name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0777))
		require.NoError(t, os.WriteFile(p, f.Data, 0666))
	}

	cfg := config.Default()
	cfg.IncludeRoot = root
	cfg.OutDir = filepath.Join(dir, "out")
	cfg.StripPrefix = "vp"
	return cfg, want
}

func readOut(t *testing.T, dir string) map[string]string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	res := map[string]string{}
	for _, ent := range ents {
		b, err := os.ReadFile(filepath.Join(dir, ent.Name()))
		require.NoError(t, err)
		res[ent.Name()] = string(b)
	}
	return res
}

func TestGenerate(t *testing.T) {
	require := require.New(t)

	cfg, want := setup(t, "order.txtar")
	var log bytes.Buffer
	g := &bindgen.Generator{
		Config:  cfg,
		Logger:  &bindgen.Logger{Writer: &log},
		DOTFile: filepath.Join(t.TempDir(), "deps.dot"),
	}
	st, err := g.Run(context.Background())
	require.NoError(err)
	require.Equal(want, readOut(t, cfg.OutDir))

	require.Equal(4, st.Headers)
	require.Equal([]string{"core.cpp", "io.cpp", "main.cpp"}, st.Files)
	require.Len(st.Submodules, 2)
	require.Equal(bindgen.SubmoduleStats{
		Name: "core", Headers: 3, Classes: 3, Enums: 1, Units: 1,
	}, st.Submodules[0])
	require.Equal(1, st.Submodules[1].Functions)

	require.Contains(log.String(), "INFO: discovered 4 headers in 2 submodules")
	require.FileExists(g.DOTFile)

	var tbl bytes.Buffer
	st.Render(&tbl)
	require.Contains(tbl.String(), "==Binding stats==")
	require.Contains(tbl.String(), "==Timing stats==")
}

func TestGenerateDeterministic(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "order.txtar")
	var outs []map[string]string
	for _, workers := range []int{1, 4} {
		cfg.Workers = workers
		cfg.OutDir = filepath.Join(t.TempDir(), "out")
		_, err := (&bindgen.Generator{Config: cfg}).Run(context.Background())
		require.NoError(err)
		outs = append(outs, readOut(t, cfg.OutDir))
	}
	require.Equal(outs[0], outs[1])
}

func TestGenerateSplitUnits(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "order.txtar")
	cfg.MaxRegistrationsPerUnit = 2
	st, err := (&bindgen.Generator{Config: cfg}).Run(context.Background())
	require.NoError(err)
	require.Equal([]string{"core.cpp", "core_1.cpp", "core_2.cpp", "io.cpp", "main.cpp"}, st.Files)

	out := readOut(t, cfg.OutDir)
	require.Contains(out["core.cpp"], "  init_submodule_core_part1(submodule);\n  init_submodule_core_part2(submodule);\n")
	require.Contains(out["core_2.cpp"], `py::class_<vpB, vpA>(submodule, "B");`)
}

func baseNames(paths []string) []string {
	res := make([]string, len(paths))
	for i, p := range paths {
		res[i] = filepath.Base(p)
	}
	return res
}

func TestGenerateCycle(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "cycle.txtar")
	g := &bindgen.Generator{
		Config:  cfg,
		DOTFile: filepath.Join(t.TempDir(), "deps.dot"),
	}
	_, err := g.Run(context.Background())
	var cErr *resolve.CyclicDependencyError
	require.ErrorAs(err, &cErr)
	require.Len(cErr.Cycles, 1)
	require.Equal([]string{"a.h", "b.h", "c.h"}, baseNames(cErr.Cycles[0]))
	require.Equal([]string{"d.h"}, baseNames(cErr.Blocked))

	require.NoDirExists(cfg.OutDir)
	// The graph is written even though ordering failed.
	require.FileExists(g.DOTFile)
}

func TestGenerateParseErrors(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "broken.txtar")
	var log bytes.Buffer
	g := &bindgen.Generator{
		Config: cfg,
		Logger: &bindgen.Logger{Writer: &log},
	}
	_, err := g.Run(context.Background())
	var pErr *preprocessor.ParseError
	require.ErrorAs(err, &pErr)
	require.Len(pErr.Failures, 1)
	require.Equal("d.h", filepath.Base(pErr.Failures[0].Path))
	require.NotEmpty(pErr.Failures[0].Trace)
	require.Contains(log.String(), "ERROR:")
	require.NoDirExists(cfg.OutDir)

	cfg.TolerateSyntaxErrors = true
	_, err = g.Run(context.Background())
	require.NoError(err)
	require.FileExists(filepath.Join(cfg.OutDir, "main.cpp"))
}

func TestGenerateAmbiguousBinding(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "ambiguous.txtar")
	_, err := (&bindgen.Generator{Config: cfg}).Run(context.Background())
	var aErr *header.AmbiguousBindingError
	require.ErrorAs(err, &aErr)
	require.Equal("user.h", filepath.Base(aErr.Header))
	require.Equal("vpPoint", aErr.Key)
	require.NoDirExists(cfg.OutDir)
}

func TestGenerateSameNameInSeparateHeaders(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "shadow.txtar")
	_, err := (&bindgen.Generator{Config: cfg}).Run(context.Background())
	require.NoError(err)

	out := readOut(t, cfg.OutDir)
	require.Contains(out["core.cpp"], "#include <visp3/core/first.h>\n#include <visp3/core/second.h>\n")
	require.Contains(out["core.cpp"], `py::class_<first::vpPoint>(submodule, "Point");`)
	require.Contains(out["core.cpp"], `py::class_<second::vpPoint>(submodule, "Point");`)
}

func TestGenerateCanceled(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "order.txtar")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&bindgen.Generator{Config: cfg}).Run(ctx)
	require.ErrorIs(err, context.Canceled)
	var pErr *preprocessor.ParseError
	require.False(errors.As(err, &pErr))
	require.NoDirExists(cfg.OutDir)
}

func TestGenerateDuplicateEntry(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "order.txtar")
	cfg.Submodules = []config.Submodule{
		{Name: "core", Entry: "bind_group"},
		{Name: "io", Entry: "bind_group"},
	}
	_, err := (&bindgen.Generator{Config: cfg}).Run(context.Background())
	var dErr *entry.DuplicateEntryNameError
	require.ErrorAs(err, &dErr)
	require.Equal(map[string][]string{"bind_group": {"core", "io"}}, dErr.Duplicates)
	require.NoDirExists(cfg.OutDir)
}

func TestGenerateOverlappingSubmodules(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "order.txtar")
	cfg.Submodules = []config.Submodule{
		{Name: "core"},
		{Name: "more", Dir: "core"},
	}
	_, err := (&bindgen.Generator{Config: cfg}).Run(context.Background())
	var pErr *submodule.PartitionViolationError
	require.ErrorAs(err, &pErr)
	require.Len(pErr.Duplicated, 3)
	require.NoDirExists(cfg.OutDir)
}

func TestGenerateCustomExtract(t *testing.T) {
	require := require.New(t)

	cfg, _ := setup(t, "order.txtar")
	var (
		mu   sync.Mutex
		seen []string
	)
	g := &bindgen.Generator{
		Config: cfg,
		Extract: func(ctx context.Context, task preprocessor.Task) (header.Declarations, error) {
			mu.Lock()
			seen = append(seen, filepath.Base(task.Path))
			mu.Unlock()
			name := "vp" + strings.TrimSuffix(filepath.Base(task.Path), ".h")
			return header.Declarations{Entities: []header.Entity{{
				Name: name, Qualified: name, Export: name, Kind: header.Class,
			}}}, nil
		},
	}
	_, err := g.Run(context.Background())
	require.NoError(err)
	slices.Sort(seen)
	require.Equal([]string{"alpha.h", "beta.h", "delta.h", "gamma.h"}, seen)

	out := readOut(t, cfg.OutDir)
	require.Contains(out["core.cpp"], "#include <visp3/core/alpha.h>\n#include <visp3/core/beta.h>\n#include <visp3/core/gamma.h>\n")
	require.Contains(out["io.cpp"], `py::class_<vpdelta>(submodule, "vpdelta");`)
}

func TestLogger(t *testing.T) {
	require := require.New(t)

	var b bytes.Buffer
	l := &bindgen.Logger{Writer: &b, Prefix: "bindgen", MinLevel: bindgen.WARN}
	l.Log(bindgen.INFO, "hidden")
	l.Log(bindgen.WARN, "%v: no bindable declarations", "a.h")
	l.Log(bindgen.ERROR, "b.h: syntax error\n1:1: unexpected")
	require.Equal("bindgen WARNING: a.h: no bindable declarations\n"+
		"bindgen ERROR:\n  b.h: syntax error\n  1:1: unexpected\n", b.String())

	var nilLogger *bindgen.Logger
	nilLogger.Log(bindgen.ERROR, "discarded")
}
