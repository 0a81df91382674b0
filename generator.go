package bindgen

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/NoelVillette/visp/bindgen/binderio"
	"github.com/NoelVillette/visp/bindgen/bindspec"
	"github.com/NoelVillette/visp/bindgen/config"
	"github.com/NoelVillette/visp/bindgen/discover"
	"github.com/NoelVillette/visp/bindgen/entry"
	"github.com/NoelVillette/visp/bindgen/environment"
	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/NoelVillette/visp/bindgen/parser"
	"github.com/NoelVillette/visp/bindgen/preprocessor"
	"github.com/NoelVillette/visp/bindgen/resolve"
	"github.com/NoelVillette/visp/bindgen/submodule"
)

// Generator runs the whole binding generation pipeline.
type Generator struct {
	Config *config.Config
	// May be nil.
	Logger *Logger
	// Extract overrides how declarations are extracted from a header.
	// By default, the header is read, preprocessed and parsed with
	// tree-sitter.
	Extract preprocessor.ExtractFunc
	// If set, the header dependency graph is written to this file as
	// graphviz DOT code, even if ordering fails.
	DOTFile string
}

func (g *Generator) extract() preprocessor.ExtractFunc {
	if g.Extract != nil {
		return g.Extract
	}
	cfg := g.Config
	opts := parser.Options{
		TolerateErrors: cfg.TolerateSyntaxErrors,
		StripPrefix:    cfg.StripPrefix,
	}
	return func(ctx context.Context, task preprocessor.Task) (header.Declarations, error) {
		src, err := os.ReadFile(task.Path)
		if err != nil {
			return header.Declarations{}, err
		}
		return parser.Extract(ctx, preprocessor.Preprocess(src, cfg.ExportMacros), opts)
	}
}

// Run generates all bindings and writes them to the configured output
// directory. Either every file is written or, on error, none is.
//
// The returned stats are valid up to the stage that failed.
func (g *Generator) Run(ctx context.Context) (*Stats, error) {
	cfg := g.Config
	log := g.Logger
	st := &Stats{}
	stage := func(name string, start time.Time) {
		st.Timings = append(st.Timings, Timing{Stage: name, Duration: time.Since(start)})
	}

	start := time.Now()
	groups, err := discover.Groups(cfg)
	if err != nil {
		return st, fmt.Errorf("discover headers: %w", err)
	}
	set := &header.Set{}
	var specs []submodule.Spec
	for _, grp := range groups {
		for _, h := range grp.Headers {
			set.Add(h.Path, h.IncludePath, grp.Name)
		}
		specs = append(specs, grp.Spec())
	}
	st.Headers = set.Len()
	log.Log(INFO, "discovered %v headers in %v submodules", set.Len(), len(groups))
	stage("Discover", start)

	start = time.Now()
	var tasks []preprocessor.Task
	for id, h := range set.All() {
		tasks = append(tasks, preprocessor.Task{ID: id, Path: h.Path})
	}
	results := preprocessor.Run(ctx, tasks, g.extract(), cfg.Workers)
	// Tasks failing on cancellation are not parse failures.
	if err := ctx.Err(); err != nil {
		return st, err
	}
	for _, r := range results {
		if r.Err != nil {
			msg := fmt.Sprintf("%v: %v", r.Task.Path, r.Err)
			if len(r.Trace) > 0 {
				msg += "\n" + strings.Join(r.Trace, "\n")
			}
			log.Log(ERROR, "%v", msg)
		} else if len(r.Decls.Entities) == 0 {
			log.Log(WARN, "%v: no bindable declarations", r.Task.Path)
		}
	}
	preprocessor.Apply(set, results)
	stage("Preprocess", start)
	if err := preprocessor.Check(results); err != nil {
		return st, err
	}

	if cfg.Bindspec != "" {
		start = time.Now()
		src, err := os.ReadFile(cfg.Bindspec)
		if err != nil {
			return st, err
		}
		prog, err := bindspec.Parse(cfg.Bindspec, src)
		if err != nil {
			return st, err
		}
		if err := bindspec.Apply(prog, set); err != nil {
			return st, err
		}
		stage("Bindspec", start)
	}

	start = time.Now()
	graph := resolve.BuildGraph(set)
	if g.DOTFile != "" {
		if err := os.WriteFile(g.DOTFile, graph.DOTCode(set), 0666); err != nil {
			return st, fmt.Errorf("write dependency graph: %w", err)
		}
	}
	order, err := resolve.Order(set, graph)
	if err != nil {
		return st, err
	}
	stage("Resolve", start)

	start = time.Now()
	if err := environment.Propagate(set, order, graph); err != nil {
		return st, err
	}
	stage("Propagate", start)

	start = time.Now()
	subs, err := submodule.Assemble(set, order, specs)
	if err != nil {
		return st, err
	}
	if err := entry.CheckNames(subs); err != nil {
		return st, err
	}
	subs, err = submodule.Order(subs, order, graph)
	if err != nil {
		return st, err
	}
	var files []binderio.File
	for _, sub := range subs {
		subFiles, err := submodule.Generate(sub, set, submodule.GenerateOptions{
			MaxPerUnit: cfg.MaxRegistrationsPerUnit,
		})
		if err != nil {
			return st, fmt.Errorf("submodule %v: %w", sub.Name, err)
		}
		files = append(files, subFiles...)
		st.addSubmodule(sub, set, len(subFiles))
	}
	mainFile, err := entry.Generate(subs, entry.Options{
		Module:  cfg.Module,
		Doc:     cfg.Doc,
		Version: cfg.Version,
	})
	if err != nil {
		return st, err
	}
	files = append(files, mainFile)
	stage("Generate", start)

	start = time.Now()
	if err := binderio.WriteFiles(cfg.OutDir, files); err != nil {
		return st, fmt.Errorf("write bindings: %w", err)
	}
	for _, f := range files {
		st.Files = append(st.Files, f.Name)
	}
	stage("Write", start)
	log.Log(INFO, "wrote %v files to %v", len(files), cfg.OutDir)

	return st, nil
}
