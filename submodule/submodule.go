// Package submodule partitions the globally ordered headers into named
// submodules and generates the registration code of each.
package submodule

import (
	"fmt"
	"slices"
	"strings"

	"github.com/NoelVillette/visp/bindgen/digraphutils"
	"github.com/NoelVillette/visp/bindgen/header"
	"github.com/NoelVillette/visp/bindgen/resolve"
)

// Spec is a caller-supplied submodule: its name, the name of its
// generated entry function and the paths of its member headers.
type Spec struct {
	Name    string
	Entry   string
	Headers []string
}

type Submodule struct {
	Name  string
	Entry string
	// Member headers, in global order.
	Headers []header.ID
}

// PartitionViolationError reports a grouping of headers into submodules
// which doesn't cover every header exactly once.
type PartitionViolationError struct {
	// Headers not in any submodule.
	Missing []string
	// Headers in more than one submodule (or listed twice).
	Duplicated []string
	// Paths listed in a submodule which aren't known headers.
	Unknown []string
}

// Error returns a short error message.
func (e *PartitionViolationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("%v header(s) in no submodule", len(e.Missing)))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, fmt.Sprintf("%v header(s) in multiple submodules", len(e.Duplicated)))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("%v unknown header(s)", len(e.Unknown)))
	}
	return "invalid submodule partition: " + strings.Join(parts, ", ")
}

// String returns the full multi-line error string.
func (e *PartitionViolationError) String() string {
	var b strings.Builder
	b.WriteString("invalid submodule partition:\n")
	list := func(title string, paths []string) {
		if len(paths) == 0 {
			return
		}
		fmt.Fprintf(&b, "  %v:\n", title)
		for _, p := range paths {
			fmt.Fprintf(&b, "    %v\n", p)
		}
	}
	list("in no submodule", e.Missing)
	list("in multiple submodules", e.Duplicated)
	list("unknown", e.Unknown)
	return b.String()
}

// Assemble checks that specs partition the header set and returns one
// submodule per spec, holding its headers in global order.
func Assemble(set *header.Set, order []header.ID, specs []Spec) ([]*Submodule, error) {
	var verr PartitionViolationError
	owner := make([]int, set.Len())
	for i := range owner {
		owner[i] = -1
	}
	duplicated := map[header.ID]bool{}
	for si, spec := range specs {
		for _, path := range spec.Headers {
			id, ok := set.Lookup(path)
			if !ok {
				verr.Unknown = append(verr.Unknown, path)
				continue
			}
			if owner[id] != -1 {
				if !duplicated[id] {
					duplicated[id] = true
					verr.Duplicated = append(verr.Duplicated, path)
				}
				continue
			}
			owner[id] = si
		}
	}
	for id, si := range owner {
		if si == -1 {
			verr.Missing = append(verr.Missing, set.Get(header.ID(id)).Path)
		}
	}
	if verr.Missing != nil || verr.Duplicated != nil || verr.Unknown != nil {
		return nil, &verr
	}

	subs := make([]*Submodule, len(specs))
	for si, spec := range specs {
		subs[si] = &Submodule{Name: spec.Name, Entry: spec.Entry}
	}
	for _, id := range order {
		sub := subs[owner[id]]
		sub.Headers = append(sub.Headers, id)
	}
	return subs, nil
}

// Order sorts submodules so that each comes after every submodule it
// depends on through its headers. Otherwise, submodules are ordered by
// the global position of their first header.
//
// Dependencies between submodules must be acyclic; a cycle results in
// a [*resolve.CyclicDependencyError] of kind "submodule".
func Order(subs []*Submodule, order []header.ID, g *resolve.Graph) ([]*Submodule, error) {
	pos := make(map[header.ID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	owner := map[header.ID]*Submodule{}
	for _, sub := range subs {
		for _, id := range sub.Headers {
			owner[id] = sub
		}
	}
	first := func(sub *Submodule) int {
		if len(sub.Headers) == 0 {
			return len(order)
		}
		return pos[sub.Headers[0]]
	}

	nodes := slices.Clone(subs)
	slices.SortStableFunc(nodes, func(a, b *Submodule) int {
		return first(a) - first(b)
	})
	deps := map[*Submodule][]*Submodule{}
	for _, sub := range nodes {
		for _, id := range sub.Headers {
			for _, dep := range g.Deps[id] {
				if d := owner[dep]; d != nil && d != sub && !slices.Contains(deps[sub], d) {
					deps[sub] = append(deps[sub], d)
				}
			}
		}
	}
	edges := func(s *Submodule) []*Submodule { return deps[s] }

	sorted, rest := digraphutils.TopoSort(nodes, edges)
	if len(rest) > 0 {
		return nil, resolve.CyclicError("submodule", rest, edges, func(s *Submodule) string {
			return s.Name
		})
	}
	return sorted, nil
}
