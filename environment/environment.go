// Package environment computes, for every header, the environment of
// bindings visible from it: its own declarations plus everything
// visible from the headers it depends on.
package environment

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/NoelVillette/visp/bindgen/resolve"
)

// Local returns the environment made up of h's own declarations.
func Local(h *header.Header) *header.Env {
	env := &header.Env{}
	for _, ent := range h.Entities {
		env.Define(header.Binding{
			Name:       ent.Name,
			Qualified:  ent.Qualified,
			Export:     ent.Export,
			Kind:       ent.Kind,
			Header:     h.ID,
			HeaderPath: h.Path,
		})
	}
	return env
}

// Propagate walks the headers in order and computes each header's
// environment by merging the environments of its immediate
// dependencies into its local one. order must be a dependency order
// as returned by [resolve.Order].
//
// Ambiguous bindings don't stop the walk; all of them are returned
// as a *multierror.Error after every header was visited.
func Propagate(set *header.Set, order []header.ID, g *resolve.Graph) error {
	done := make([]bool, set.Len())
	var errs *multierror.Error
	for _, id := range order {
		h := set.Get(id)
		env := Local(h)
		var deps []header.Source
		for _, dep := range g.Deps[id] {
			if !done[dep] {
				panic(fmt.Sprintf("environment: %v visited before its dependency %v", h.Path, set.Get(dep).Path))
			}
			d := set.Get(dep)
			deps = append(deps, header.Source{Path: d.Path, Env: d.Env})
		}
		for _, err := range env.Merge(h.Path, deps) {
			errs = multierror.Append(errs, err)
		}
		h.Env = env
		done[id] = true
	}
	return errs.ErrorOrNil()
}
