// Package underlay computes IGP reachability over the P/PE graph.
//
// Only links declared up in both directions become edges. Shortest paths are
// computed for every source when the graph is built; afterwards the Graph is
// read-only and safe for concurrent use.
package underlay

import (
	"fmt"
	"math"
	"strings"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/model"
)

const unreachable = math.MaxInt

type edge struct {
	to     int
	metric int
}

// spf is the shortest-path tree of one source. paths[v] is the chosen node
// index sequence from the source to v, nil when v is unreachable.
type spf struct {
	dist  []int
	paths [][]int
}

// Graph is the undirected weighted underlay graph.
type Graph struct {
	nodes []string
	index map[string]int
	adj   [][]edge
	trees []spf

	// asymmetric links touching each node, for diagnostics.
	asymmetric map[string][]model.NetworkLink
	topo       *core.Topology
}

// Build constructs the graph from the P/PE nodes and links of topo and runs
// SPF from every node.
func Build(topo *core.Topology) *Graph {
	nodes := topo.NodesByRole(model.RoleP, model.RolePE)
	g := &Graph{
		nodes:      nodes,
		index:      make(map[string]int, len(nodes)),
		adj:        make([][]edge, len(nodes)),
		asymmetric: make(map[string][]model.NetworkLink),
		topo:       topo,
	}
	for i, id := range nodes {
		g.index[id] = i
	}
	for _, l := range topo.Links() {
		if l.Asymmetric() {
			g.asymmetric[l.A] = append(g.asymmetric[l.A], l)
			g.asymmetric[l.B] = append(g.asymmetric[l.B], l)
		}
		if !l.Bidirectional() {
			continue
		}
		a, okA := g.index[l.A]
		b, okB := g.index[l.B]
		if !okA || !okB {
			continue
		}
		metric := l.Metric
		if metric <= 0 {
			metric = model.DefaultMetric
		}
		g.adj[a] = append(g.adj[a], edge{to: b, metric: metric})
		g.adj[b] = append(g.adj[b], edge{to: a, metric: metric})
	}

	g.trees = make([]spf, len(nodes))
	for src := range nodes {
		g.trees[src] = g.dijkstra(src)
	}
	return g
}

// dijkstra runs the O(V²) selection variant. Among equal-cost paths the one
// whose node-ID sequence is lexicographically lowest wins; node indices
// follow sorted IDs so comparing indices compares IDs.
func (g *Graph) dijkstra(src int) spf {
	n := len(g.nodes)
	t := spf{dist: make([]int, n), paths: make([][]int, n)}
	done := make([]bool, n)
	for i := range t.dist {
		t.dist[i] = unreachable
	}
	t.dist[src] = 0
	t.paths[src] = []int{src}

	for {
		u := -1
		for v := 0; v < n; v++ {
			if done[v] || t.dist[v] == unreachable {
				continue
			}
			if u == -1 || t.dist[v] < t.dist[u] || (t.dist[v] == t.dist[u] && lessPath(t.paths[v], t.paths[u])) {
				u = v
			}
		}
		if u == -1 {
			return t
		}
		done[u] = true

		for _, e := range g.adj[u] {
			if done[e.to] {
				continue
			}
			d := t.dist[u] + e.metric
			candidate := append(append(make([]int, 0, len(t.paths[u])+1), t.paths[u]...), e.to)
			if d < t.dist[e.to] || (d == t.dist[e.to] && lessPath(candidate, t.paths[e.to])) {
				t.dist[e.to] = d
				t.paths[e.to] = candidate
			}
		}
	}
}

func lessPath(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// Nodes returns the P/PE node IDs of the graph, sorted.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Reachable reports whether b is reachable from a over bidirectional links.
func (g *Graph) Reachable(a, b string) bool {
	_, ok := g.Distance(a, b)
	return ok
}

// Distance returns the shortest-path cost from a to b.
func (g *Graph) Distance(a, b string) (int, bool) {
	ia, okA := g.index[a]
	ib, okB := g.index[b]
	if !okA || !okB {
		return 0, false
	}
	d := g.trees[ia].dist[ib]
	if d == unreachable {
		return 0, false
	}
	return d, true
}

// ShortestPath returns the chosen node sequence from a to b, both included.
func (g *Graph) ShortestPath(a, b string) ([]string, bool) {
	ia, okA := g.index[a]
	ib, okB := g.index[b]
	if !okA || !okB {
		return nil, false
	}
	p := g.trees[ia].paths[ib]
	if p == nil {
		return nil, false
	}
	out := make([]string, len(p))
	for i, idx := range p {
		out[i] = g.nodes[idx]
	}
	return out, true
}

// NextHop returns the IGP next hop on from toward to. A node is its own next
// hop toward itself.
func (g *Graph) NextHop(from, to string) (string, bool) {
	p, ok := g.ShortestPath(from, to)
	if !ok {
		return "", false
	}
	if len(p) == 1 {
		return from, true
	}
	return p[1], true
}

// Verdict is the outcome of the underlay check for one node pair.
type Verdict struct {
	Pass       bool
	Diagnostic string
	Path       []string
	// Notes name conditions that did not fail the check, such as a direct
	// link that is down in both directions while another path exists.
	Notes []string
}

// Check evaluates loopback reachability between a and b and the
// bidirectionality of any link declared directly between them.
func (g *Graph) Check(a, b string) Verdict {
	var notes []string
	if l, ok := g.topo.Link(a, b); ok {
		if l.Asymmetric() {
			return Verdict{Diagnostic: fmt.Sprintf("link not bidirectional: %s (%s)", l.Key(), l.Describe())}
		}
		if !l.Bidirectional() {
			notes = append(notes, fmt.Sprintf("direct link %s down in both directions (%s)", l.Key(), l.Describe()))
		}
	}
	path, ok := g.ShortestPath(a, b)
	if !ok {
		diag := fmt.Sprintf("no path from %s to %s", a, b)
		if asym := g.asymmetricNear(a, b); len(asym) > 0 {
			diag += "; asymmetric links: " + strings.Join(asym, ", ")
		}
		if len(notes) > 0 {
			diag += "; " + strings.Join(notes, "; ")
		}
		return Verdict{Diagnostic: diag, Notes: notes}
	}
	return Verdict{Pass: true, Path: path, Notes: notes}
}

func (g *Graph) asymmetricNear(a, b string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range []string{a, b} {
		for _, l := range g.asymmetric[n] {
			if seen[l.Key()] {
				continue
			}
			seen[l.Key()] = true
			out = append(out, fmt.Sprintf("%s (%s)", l.Key(), l.Describe()))
		}
	}
	return out
}
