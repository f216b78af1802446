package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/derive/internal/deppath"
	"github.com/roach88/derive/internal/ir"
)

// Cycle levels.
const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// CycleWarning represents a cycle among derived properties.
//
// The graph is built over model types, not records. A cycle whose every
// edge stays on the same record can never settle and is an error. A cycle
// that crosses a relationship may be a legitimate recursive structure (a
// tree summing its children) and is reported as a warning; the engine still
// catches a real instance-level cycle when it is evaluated.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a.x", "a.y", "a.x"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "error" or "warning"
}

// AnalyzeCycles performs static cycle analysis on derived properties.
//
// The algorithm:
//  1. Build a "model.property" dependency graph by resolving every
//     dependency path of every computed property against the schema
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// Dependency keys that do not parse or resolve are skipped; Validate reports
// them. A DAG returns an empty list.
func AnalyzeCycles(models []ir.ModelSpec) []CycleWarning {
	graph := buildDependencyGraph(models)
	if len(graph.edges) == 0 {
		return []CycleWarning{}
	}

	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})

	return warnings
}

// dependencyGraph maps "model.property" → derived properties it reads.
type dependencyGraph struct {
	edges map[string][]string
	// local marks edges that stay on one record.
	local map[[2]string]bool
}

func (g dependencyGraph) addEdge(from, to string, local bool) {
	if !slices.Contains(g.edges[from], to) {
		g.edges[from] = append(g.edges[from], to)
	}
	key := [2]string{from, to}
	g.local[key] = g.local[key] || local
}

// buildDependencyGraph constructs the derived property dependency graph.
// Adjacency lists are sorted so traversal order is deterministic.
func buildDependencyGraph(models []ir.ModelSpec) dependencyGraph {
	g := dependencyGraph{
		edges: make(map[string][]string),
		local: make(map[[2]string]bool),
	}

	models = InferInverses(models)
	idx := indexModels(models)

	for i := range models {
		m := &models[i]
		for _, c := range m.Computed {
			from := m.Name + "." + c.Name
			if g.edges[from] == nil {
				g.edges[from] = []string{}
			}
			for _, key := range c.DependsOn {
				paths, err := deppath.Parse(key)
				if err != nil {
					continue
				}
				for _, p := range paths {
					refs, _ := idx.resolvePath(m, p)
					for _, ref := range refs {
						g.addEdge(from, ref.node(), ref.Local)
					}
				}
			}
		}
	}

	for from := range g.edges {
		slices.Sort(g.edges[from])
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph.edges[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph.edges))
	for node := range graph.edges {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	var path []string
	if len(scc) == 1 {
		path = []string{scc[0], scc[0]}
	} else {
		path = reconstructCyclePath(scc, graph)
	}

	level := LevelError
	for i := 0; i+1 < len(path); i++ {
		if !graph.local[[2]string{path[i], path[i+1]}] {
			level = LevelWarning
			break
		}
	}

	pathStr := strings.Join(path, " → ")
	if level == LevelError {
		return CycleWarning{
			Path:    path,
			Message: fmt.Sprintf("derived properties depend on each other: %s", pathStr),
			Level:   level,
		}
	}
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential cycle across relationships: %s", pathStr),
		Level:   level,
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the first node, follow edges to other SCC members,
// and continue until we return to the start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph.edges[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			break
		}

		path = append(path, next)

		if next == start {
			break
		}

		current = next
	}

	return path
}
