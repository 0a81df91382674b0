// Package resolve builds the dependency graph between headers and
// orders headers so every header comes after the headers it depends on.
package resolve

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/NoelVillette/visp/bindgen/digraphutils"
	"github.com/NoelVillette/visp/bindgen/header"
)

type Edge struct {
	From, To header.ID
}

// Graph holds the dependencies of every header, indexed by ID.
// Deps[h] is sorted and never contains h itself.
type Graph struct {
	Deps [][]header.ID
	// Names through which From depends on To.
	Symbols map[Edge][]string
}

func (g *Graph) edges(id header.ID) []header.ID {
	return g.Deps[id]
}

// BuildGraph derives header dependencies from declarations: a header
// depends on every other header declaring a name it references.
// Only processed headers declare names. A name the header declares
// itself resolves locally and never leads to another header.
func BuildGraph(set *header.Set) *Graph {
	declaredIn := map[string][]header.ID{}
	for id, h := range set.All() {
		if h.Status != header.Processed {
			continue
		}
		for _, ent := range h.Entities {
			if !slices.Contains(declaredIn[ent.Name], id) {
				declaredIn[ent.Name] = append(declaredIn[ent.Name], id)
			}
		}
	}

	g := &Graph{
		Deps:    make([][]header.ID, set.Len()),
		Symbols: map[Edge][]string{},
	}
	for id, h := range set.All() {
		local := map[string]bool{}
		for _, ent := range h.Entities {
			local[ent.Name] = true
		}
		for _, ref := range h.References {
			if local[ref] {
				continue
			}
			for _, dep := range declaredIn[ref] {
				if dep == id {
					continue
				}
				e := Edge{id, dep}
				if _, ok := g.Symbols[e]; !ok {
					g.Deps[id] = append(g.Deps[id], dep)
				}
				if !slices.Contains(g.Symbols[e], ref) {
					g.Symbols[e] = append(g.Symbols[e], ref)
				}
			}
		}
		slices.Sort(g.Deps[id])
	}
	return g
}

// Order returns all headers in dependency order. Headers without
// ordering constraints between them keep their discovery order.
//
// If the graph contains cycles, a [*CyclicDependencyError] naming
// every header involved is returned.
func Order(set *header.Set, g *Graph) ([]header.ID, error) {
	order, rest := digraphutils.TopoSort(set.IDs(), g.edges)
	if len(rest) == 0 {
		return order, nil
	}
	return nil, cyclicError("header", rest, g.edges, func(id header.ID) string {
		return set.Get(id).Path
	}, func(from, to header.ID) []string {
		return g.Symbols[Edge{from, to}]
	})
}

// CyclicError builds a [*CyclicDependencyError] from the nodes left
// over by a topological sort.
func CyclicError[K comparable](kind string, rest []K, edges func(K) []K, name func(K) string) *CyclicDependencyError {
	return cyclicError(kind, rest, edges, name, nil)
}

func cyclicError[K comparable](kind string, rest []K, edges func(K) []K, name func(K) string, via func(from, to K) []string) *CyclicDependencyError {
	err := &CyclicDependencyError{Kind: kind}
	inCycle := map[K]bool{}
	cycles := digraphutils.Cycles(rest, edges)
	for _, comp := range cycles {
		var names []string
		for _, k := range comp {
			inCycle[k] = true
			names = append(names, name(k))
		}
		err.Cycles = append(err.Cycles, names)

		var path []string
		p := cyclePath(comp, edges)
		for i, k := range p {
			s := name(k)
			if via != nil && i+1 < len(p) {
				if syms := via(k, p[i+1]); len(syms) > 0 {
					s += " (uses " + strings.Join(syms, ", ") + ")"
				}
			}
			path = append(path, s)
		}
		err.Paths = append(err.Paths, path)
	}
	for _, k := range rest {
		if inCycle[k] {
			continue
		}
		var on []int
		reach := digraphutils.Reachable([]K{k}, edges)
		for ci, comp := range cycles {
			for _, m := range comp {
				if _, ok := reach[m]; ok {
					on = append(on, ci)
					break
				}
			}
		}
		err.Blocked = append(err.Blocked, name(k))
		err.BlockedOn = append(err.BlockedOn, on)
	}
	return err
}

// cyclePath returns a closed path through the strongly connected
// component comp, starting and ending at comp[0].
func cyclePath[K comparable](comp []K, edges func(K) []K) []K {
	member := map[K]bool{}
	for _, k := range comp {
		member[k] = true
	}
	start := comp[0]
	visited := map[K]bool{}
	var path []K
	var dfs func(k K) bool
	dfs = func(k K) bool {
		path = append(path, k)
		visited[k] = true
		for _, next := range edges(k) {
			if !member[next] {
				continue
			}
			if next == start {
				path = append(path, start)
				return true
			}
			if !visited[next] && dfs(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	dfs(start)
	return path
}

// CyclicDependencyError reports dependency cycles, which make ordering
// impossible.
type CyclicDependencyError struct {
	// Kind of the nodes ("header" or "submodule").
	Kind string
	// Members of each cycle.
	Cycles [][]string
	// A closed path through each cycle.
	Paths [][]string
	// Nodes not part of a cycle, but depending on one.
	Blocked []string
	// Indices into Cycles of the cycles each blocked node depends on.
	BlockedOn [][]int
}

// Error returns a short error message.
func (e *CyclicDependencyError) Error() string {
	var cycles []string
	for _, c := range e.Cycles {
		quoted := make([]string, len(c))
		for i, s := range c {
			quoted[i] = strconv.Quote(s)
		}
		cycles = append(cycles, "{"+strings.Join(quoted, ", ")+"}")
	}
	return fmt.Sprintf("%v dependency cycle detected: %v", e.Kind, strings.Join(cycles, ", "))
}

// String returns the full multi-line error string.
func (e *CyclicDependencyError) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v dependency cycle detected:\n", e.Kind)
	for ci, p := range e.Paths {
		for i, s := range p {
			if i == 0 && len(e.Paths) > 1 {
				fmt.Fprintf(&b, "  %v. %v\n", ci+1, s)
			} else if i == 0 {
				fmt.Fprintf(&b, "  %v\n", s)
			} else {
				fmt.Fprintf(&b, "    depends on %v\n", s)
			}
		}
	}
	if len(e.Blocked) > 0 {
		fmt.Fprintf(&b, "blocked by the cycle:\n")
		for i, s := range e.Blocked {
			if len(e.Cycles) > 1 && i < len(e.BlockedOn) {
				var nums []string
				for _, ci := range e.BlockedOn[i] {
					nums = append(nums, strconv.Itoa(ci+1))
				}
				fmt.Fprintf(&b, "  %v (cycle %v)\n", s, strings.Join(nums, ", "))
			} else {
				fmt.Fprintf(&b, "  %v\n", s)
			}
		}
	}
	return b.String()
}

// DOTCode renders the dependency graph as graphviz DOT code. Edges are
// labeled with the names causing them.
func (g *Graph) DOTCode(set *header.Set) []byte {
	return digraphutils.DOTCode(set.IDs(), g.edges, "headers", `
rankdir=LR
node [shape=box]
`, func(id header.ID) string {
		h := set.Get(id)
		attrs := "label=" + strconv.Quote(h.IncludePath)
		if h.Status == header.Failed {
			attrs += " color=red"
		}
		return "[" + attrs + "]"
	}, func(from, to header.ID) string {
		return "[label=" + strconv.Quote(strings.Join(g.Symbols[Edge{from, to}], ", ")) + "]"
	})
}
