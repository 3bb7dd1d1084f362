// Package graph holds the link graph that grows while a site is crawled.
// Nodes live in an arena indexed by their integer id; edges are stored as
// id pairs, so neither side owns the other.
package graph

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Status values recorded on a node
const (
	StatusPending = ""        // Discovered, never visited
	StatusFetched = "fetched" // Content retrieved and expanded
	StatusFailed  = "failed"  // Fetch attempted and failed
)

// Node is a discovered page, fetched or not
type Node struct {
	ID      int    // Assigned in discovery order, starting at 0
	URL     string // Canonical URL, the node identity
	Fetched bool   // True once the page content was retrieved and expanded
	Depth   int    // BFS layer at first discovery (seed = 0)
	Status  string // One of the Status* constants
	Reason  string // Failure reason when Status == StatusFailed
	Title   string // Document title of fetched pages
}

// Edge is a directed link between two node ids
type Edge struct {
	Source int
	Target int
}

// Snapshot is a read-only copy of the graph, nodes ordered by id and edges
// by (source, target)
type Snapshot struct {
	Nodes []Node
	Edges []Edge
}

// Graph is safe for concurrent use. AddEdge is idempotent and commutative,
// so concurrent writers produce the same edge set in any order.
type Graph struct {
	mu    sync.RWMutex
	ids   map[string]int // canonical URL -> node id
	nodes []*Node        // indexed by node id
	edges map[Edge]struct{}
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		ids:   make(map[string]int),
		edges: make(map[Edge]struct{}),
	}
}

// EnsureNode returns the node for url, creating it with a fresh id when it
// does not exist yet.
func (g *Graph) EnsureNode(url string) Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	return *g.ensureLocked(url, 0)
}

// EnsureNodeAt is EnsureNode recording depth for newly created nodes.
func (g *Graph) EnsureNodeAt(url string, depth int) Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	return *g.ensureLocked(url, depth)
}

func (g *Graph) ensureLocked(url string, depth int) *Node {
	if id, exists := g.ids[url]; exists {
		return g.nodes[id]
	}

	node := &Node{
		ID:    len(g.nodes),
		URL:   url,
		Depth: depth,
	}
	g.ids[url] = node.ID
	g.nodes = append(g.nodes, node)

	return node
}

// MarkFetched flags url as fetched. Unknown URLs are logged and ignored.
func (g *Graph) MarkFetched(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, exists := g.ids[url]
	if !exists {
		slog.Warn("MarkFetched on unknown node", "url", url)
		return
	}

	node := g.nodes[id]
	node.Fetched = true
	node.Status = StatusFetched
	node.Reason = ""
}

// MarkFailed records that fetching url failed. A node that was already
// fetched keeps its fetched state.
func (g *Graph) MarkFailed(url, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, exists := g.ids[url]
	if !exists {
		slog.Warn("MarkFailed on unknown node", "url", url)
		return
	}

	node := g.nodes[id]
	if node.Fetched {
		return
	}
	node.Status = StatusFailed
	node.Reason = reason
}

// SetTitle stores the document title of url
func (g *Graph) SetTitle(url, title string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, exists := g.ids[url]; exists {
		g.nodes[id].Title = title
	}
}

// AddEdge inserts the edge source -> target, creating missing endpoints.
// It reports whether the edge was new.
func (g *Graph) AddEdge(source, target string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	src := g.ensureLocked(source, 0)
	dst, exists := g.ids[target]
	if !exists {
		dst = g.ensureLocked(target, src.Depth+1).ID
	}

	edge := Edge{Source: src.ID, Target: dst}
	if _, exists := g.edges[edge]; exists {
		return false
	}
	g.edges[edge] = struct{}{}

	return true
}

// Node looks up a node by canonical URL
func (g *Graph) Node(url string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, exists := g.ids[url]
	if !exists {
		return Node{}, false
	}
	return *g.nodes[id], true
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// Stats returns the current node and edge counts
func (g *Graph) Stats() (nodeCount, edgeCount int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes), len(g.edges)
}

// FetchedCount returns the number of fetched nodes
func (g *Graph) FetchedCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	count := 0
	for _, node := range g.nodes {
		if node.Fetched {
			count++
		}
	}
	return count
}

// Snapshot copies the graph for export
func (g *Graph) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := Snapshot{
		Nodes: make([]Node, len(g.nodes)),
		Edges: make([]Edge, 0, len(g.edges)),
	}
	for i, node := range g.nodes {
		snap.Nodes[i] = *node
	}
	for edge := range g.edges {
		snap.Edges = append(snap.Edges, edge)
	}
	slices.SortFunc(snap.Edges, compareEdges)

	return snap
}

// Validate checks the graph invariants and reports every violation found
func (g *Graph) Validate() error {
	return g.Snapshot().Validate()
}

// Validate checks that node URLs and ids are unique, ids are dense, every
// edge endpoint exists and no edge is repeated.
func (s Snapshot) Validate() error {
	var result *multierror.Error

	urls := make(map[string]int, len(s.Nodes))
	for i, node := range s.Nodes {
		if node.ID != i {
			result = multierror.Append(result, fmt.Errorf("node %q has id %d at position %d", node.URL, node.ID, i))
		}
		if other, dup := urls[node.URL]; dup {
			result = multierror.Append(result, fmt.Errorf("nodes %d and %d share url %q", other, node.ID, node.URL))
		}
		urls[node.URL] = node.ID
	}

	edges := make(map[Edge]struct{}, len(s.Edges))
	for _, edge := range s.Edges {
		if edge.Source < 0 || edge.Source >= len(s.Nodes) {
			result = multierror.Append(result, fmt.Errorf("edge %d->%d has dangling source", edge.Source, edge.Target))
		}
		if edge.Target < 0 || edge.Target >= len(s.Nodes) {
			result = multierror.Append(result, fmt.Errorf("edge %d->%d has dangling target", edge.Source, edge.Target))
		}
		if _, dup := edges[edge]; dup {
			result = multierror.Append(result, fmt.Errorf("edge %d->%d is duplicated", edge.Source, edge.Target))
		}
		edges[edge] = struct{}{}
	}

	return result.ErrorOrNil()
}

func compareEdges(a, b Edge) int {
	if c := cmp.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	return cmp.Compare(a.Target, b.Target)
}
