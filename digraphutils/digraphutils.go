// Package digraphutils provides utilities for directed graphs, represented as
// a list of node keys and a function mapping a key to its edges.
package digraphutils

import (
	"bytes"
	"container/heap"
	"fmt"
	"slices"
	"strings"

	"github.com/NoelVillette/visp/bindgen/textutils"
)

// Reachable returns the nodes reachable from roots, roots included.
func Reachable[K comparable](roots []K, edges func(K) []K) map[K]struct{} {
	reachable := map[K]struct{}{}
	nodes := slices.Clone(roots)
	var newNodes []K
	for len(nodes) > 0 {
		for _, node := range nodes {
			if _, ok := reachable[node]; ok {
				continue
			}
			reachable[node] = struct{}{}
			newNodes = append(newNodes, edges(node)...)
		}
		nodes, newNodes = newNodes, nodes[:0]
	}
	return reachable
}

type posHeap []int

func (h posHeap) Len() int           { return len(h) }
func (h posHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h posHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *posHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *posHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// TopoSort orders nodes so that every node comes after all of its
// dependencies (Kahn's algorithm). deps returns the dependencies of a
// node; dependencies not contained in nodes are ignored.
//
// Among nodes that are ready at the same time, the one appearing first
// in nodes is emitted first, so the result is fully determined by the
// input order.
//
// Nodes that can't be ordered because they are part of, or depend on, a
// cycle are returned in rest, in input order.
func TopoSort[K comparable](nodes []K, deps func(K) []K) (order, rest []K) {
	pos := make(map[K]int, len(nodes))
	for i, n := range nodes {
		if _, ok := pos[n]; !ok {
			pos[n] = i
		}
	}
	pending := make([]int, len(nodes))
	dependents := make([][]int, len(nodes))
	for i, n := range nodes {
		if pos[n] != i {
			continue // duplicate key
		}
		seen := map[int]struct{}{}
		for _, d := range deps(n) {
			j, ok := pos[d]
			if !ok || j == i {
				continue
			}
			if _, ok := seen[j]; ok {
				continue
			}
			seen[j] = struct{}{}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := &posHeap{}
	for i, n := range nodes {
		if pos[n] == i && pending[i] == 0 {
			*ready = append(*ready, i)
		}
	}
	heap.Init(ready)
	done := make([]bool, len(nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		done[i] = true
		order = append(order, nodes[i])
		for _, j := range dependents[i] {
			pending[j]--
			if pending[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}
	for i, n := range nodes {
		if pos[n] == i && !done[i] {
			rest = append(rest, n)
		}
	}
	return order, rest
}

// Cycles returns the strongly connected components of the graph that
// contain a cycle. Members of a component appear in input order;
// components are ordered by their first member.
func Cycles[K comparable](nodes []K, edges func(K) []K) [][]K {
	pos := make(map[K]int, len(nodes))
	for i, n := range nodes {
		if _, ok := pos[n]; !ok {
			pos[n] = i
		}
	}

	// Tarjan's algorithm
	index := map[K]int{}
	low := map[K]int{}
	onStack := map[K]bool{}
	var stack []K
	var comps [][]K
	next := 0
	var connect func(v K)
	connect = func(v K) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		selfLoop := false
		for _, w := range edges(v) {
			if _, ok := pos[w]; !ok {
				continue
			}
			if w == v {
				selfLoop = true
			}
			if _, visited := index[w]; !visited {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var comp []K
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		if len(comp) > 1 || selfLoop {
			slices.SortFunc(comp, func(a, b K) int { return pos[a] - pos[b] })
			comps = append(comps, comp)
		}
	}
	for _, n := range nodes {
		if _, visited := index[n]; !visited {
			connect(n)
		}
	}
	slices.SortFunc(comps, func(a, b []K) int { return pos[a[0]] - pos[b[0]] })
	return comps
}

// DOTCode generates graphviz DOT code to visualize a graph.
// nodes represents all nodes included in the graph.
// name is the name of the digraph, prelude DOT code inserted
// in the beginning, and nodeAttrs should return a string representing
// a node's attributes (in []).
// If edgeAttrs is not nil, every edge is written on its own line with
// the attributes it returns; otherwise edges are grouped by source.
func DOTCode[K comparable](nodes []K, edges func(K) []K, name, prelude string, nodeAttrs func(K) string, edgeAttrs func(from, to K) string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "digraph %v {\n", name)
	if prelude = strings.TrimSpace(prelude); prelude != "" {
		b.WriteString(textutils.IndentString(prelude, "  ", 1))
		b.WriteByte('\n')
	}
	nodeIDs := map[K]int{}
	for id, key := range nodes {
		fmt.Fprintf(&b, "  %v", id)
		if attrs := nodeAttrs(key); attrs != "" {
			b.WriteByte(' ')
			b.WriteString(attrs)
		}
		b.WriteByte('\n')
		nodeIDs[key] = id
	}
	for id, key := range nodes {
		edgs := slices.DeleteFunc(slices.Clone(edges(key)), func(k K) bool {
			_, ok := nodeIDs[k]
			return !ok
		})
		if len(edgs) == 0 {
			continue
		}
		if edgeAttrs != nil {
			for _, edg := range edgs {
				fmt.Fprintf(&b, "  %v -> %v", id, nodeIDs[edg])
				if attrs := edgeAttrs(key, edg); attrs != "" {
					b.WriteByte(' ')
					b.WriteString(attrs)
				}
				b.WriteByte('\n')
			}
			continue
		}
		fmt.Fprintf(&b, "  %v -> {", id)
		for i, edg := range edgs {
			if i != 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%v", nodeIDs[edg])
		}
		fmt.Fprintf(&b, "}\n")
	}
	fmt.Fprintf(&b, "}\n")
	return b.Bytes()
}
